package identity

import (
	"net/http"
	"strings"
)

const (
	HeaderSubjectID = "X-Subject-Id"
	HeaderGroups    = "X-Groups"
)

// HeaderResolver trusts plain request headers. It exists for RUN_LOCAL
// development only; configuration refuses it anywhere else.
type HeaderResolver struct {
	AgentGroup string
}

// NewHeaderResolver returns a header based resolver.
func NewHeaderResolver(agentGroup string) *HeaderResolver {
	return &HeaderResolver{AgentGroup: agentGroup}
}

// Resolve implements Resolver.
func (h *HeaderResolver) Resolve(r *http.Request) (Identity, error) {
	sub := strings.TrimSpace(r.Header.Get(HeaderSubjectID))
	if sub == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{
		SubjectID: sub,
		Roles:     rolesFromGroups(ParseGroups(r.Header.Get(HeaderGroups)), h.AgentGroup),
	}, nil
}
