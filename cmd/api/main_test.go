package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/config"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/handlers"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/identity"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/testutil/dynamofake"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
)

func TestBuildHandlerConfig_Resolver(t *testing.T) {
	clients := &aws.AWSClients{DynamoDB: dynamofake.New()}

	cfg := &config.Config{TableName: "helpdesk", StatusIndexName: "GSI1", AgentGroup: "Agents"}
	hc := buildHandlerConfig(cfg, clients)
	assert.IsType(t, &identity.GatewayResolver{}, hc.Resolver)
	require.NotNil(t, hc.Service)

	cfg.RunLocal, cfg.TrustIdentityHeaders = true, true
	hc = buildHandlerConfig(cfg, clients)
	assert.IsType(t, &identity.HeaderResolver{}, hc.Resolver)
}

func TestLocalWiring_CreateAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dynamo := dynamofake.New(dynamofake.WithIndex("GSI1", tickets.AttrGSI1PK, tickets.AttrGSI1SK))
	cfg := &config.Config{TableName: "helpdesk", StatusIndexName: "GSI1", AgentGroup: "Agents", RunLocal: true, TrustIdentityHeaders: true}
	r := handlers.NewRouter(buildHandlerConfig(cfg, &aws.AWSClients{DynamoDB: dynamo}))

	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(`{"title":"Printer broken","description":"It wont turn on"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderSubjectID, "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/agent/tickets?status=OPEN", nil)
	req.Header.Set(identity.HeaderSubjectID, "agent-1")
	req.Header.Set(identity.HeaderGroups, "Agents")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ownerId":"alice"`)
}
