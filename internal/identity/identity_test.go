package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroups(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", []string{}},
		{"Agents", []string{"Agents"}},
		{"[Agents Users]", []string{"Agents", "Users"}},
		{"Agents,Users", []string{"Agents", "Users"}},
		{`["Agents", "Users"]`, []string{"Agents", "Users"}},
		{"[]", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseGroups(tc.raw))
		})
	}
}

func gatewayResolverWith(rc events.APIGatewayV2HTTPRequestContext, ok bool) *GatewayResolver {
	g := NewGatewayResolver("Agents")
	g.requestContext = func(context.Context) (events.APIGatewayV2HTTPRequestContext, bool) {
		return rc, ok
	}
	return g
}

func jwtContext(claims map[string]string) events.APIGatewayV2HTTPRequestContext {
	return events.APIGatewayV2HTTPRequestContext{
		RequestID: "req-1",
		Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
			JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{Claims: claims},
		},
	}
}

func TestGatewayResolver(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)

	t.Run("agent", func(t *testing.T) {
		g := gatewayResolverWith(jwtContext(map[string]string{
			"sub":            "user-1",
			"cognito:groups": "[Agents]",
		}), true)

		id, err := g.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "user-1", id.SubjectID)
		assert.True(t, id.IsAgent())
		assert.True(t, id.Roles.Has(RoleUser))
		assert.Equal(t, []string{"agent", "user"}, id.Roles.Slice())
	})

	t.Run("plain user", func(t *testing.T) {
		g := gatewayResolverWith(jwtContext(map[string]string{"sub": "user-2"}), true)

		id, err := g.Resolve(req)
		require.NoError(t, err)
		assert.False(t, id.IsAgent())
	})

	t.Run("group name is exact", func(t *testing.T) {
		g := gatewayResolverWith(jwtContext(map[string]string{
			"sub":            "user-3",
			"cognito:groups": "AgentsPending",
		}), true)

		id, err := g.Resolve(req)
		require.NoError(t, err)
		assert.False(t, id.IsAgent())
	})

	t.Run("missing subject", func(t *testing.T) {
		g := gatewayResolverWith(jwtContext(map[string]string{"cognito:groups": "Agents"}), true)

		_, err := g.Resolve(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("no authorizer", func(t *testing.T) {
		g := gatewayResolverWith(events.APIGatewayV2HTTPRequestContext{}, true)

		_, err := g.Resolve(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("not behind gateway", func(t *testing.T) {
		g := gatewayResolverWith(events.APIGatewayV2HTTPRequestContext{}, false)

		_, err := g.Resolve(req)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestHeaderResolver(t *testing.T) {
	h := NewHeaderResolver("Agents")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := h.Resolve(req)
	require.ErrorIs(t, err, ErrUnauthenticated)

	req.Header.Set(HeaderSubjectID, "dev-user")
	req.Header.Set(HeaderGroups, "Agents")
	id, err := h.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.SubjectID)
	assert.True(t, id.IsAgent())
}
