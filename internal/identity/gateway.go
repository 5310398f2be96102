package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
)

const (
	claimSubject = "sub"
	claimGroups  = "cognito:groups"
)

// GatewayResolver reads the JWT authorizer claims that API Gateway (HTTP API,
// payload v2) attached to the request. The Lambda proxy adapter stores the
// gateway request context on the http.Request context.
type GatewayResolver struct {
	AgentGroup string

	requestContext func(ctx context.Context) (events.APIGatewayV2HTTPRequestContext, bool)
}

// NewGatewayResolver returns a resolver granting the agent role to agentGroup members.
func NewGatewayResolver(agentGroup string) *GatewayResolver {
	return &GatewayResolver{
		AgentGroup:     agentGroup,
		requestContext: core.GetAPIGatewayV2ContextFromContext,
	}
}

// Resolve implements Resolver.
func (g *GatewayResolver) Resolve(r *http.Request) (Identity, error) {
	rc, ok := g.requestContext(r.Context())
	if !ok || rc.Authorizer == nil || rc.Authorizer.JWT == nil {
		return Identity{}, ErrUnauthenticated
	}
	claims := rc.Authorizer.JWT.Claims
	sub := strings.TrimSpace(claims[claimSubject])
	if sub == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{
		SubjectID: sub,
		Roles:     rolesFromGroups(ParseGroups(claims[claimGroups]), g.AgentGroup),
	}, nil
}
