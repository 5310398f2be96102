// Package identity turns trusted request metadata into a typed caller identity.
//
// Bearer-token verification happens upstream (API Gateway JWT authorizer);
// this package only reads the claims the gateway has already verified.
package identity

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Role is a capability granted to a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Slice returns the roles in a stable order, for logging.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// Identity is the resolved caller.
type Identity struct {
	SubjectID string
	Roles     RoleSet
}

// IsAgent reports whether the caller holds the agent role.
func (i Identity) IsAgent() bool {
	return i.Roles.Has(RoleAgent)
}

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("missing or invalid auth context")

// Resolver extracts the caller identity from an inbound request.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// rolesFromGroups maps identity-provider groups onto roles. Every
// authenticated subject is a user; members of agentGroup are also agents.
func rolesFromGroups(groups []string, agentGroup string) RoleSet {
	roles := NewRoleSet(RoleUser)
	for _, g := range groups {
		if g == agentGroup {
			roles[RoleAgent] = struct{}{}
		}
	}
	return roles
}

// ParseGroups normalizes a groups claim. API Gateway HTTP APIs flatten list
// claims into strings such as "[Agents Users]"; single values and comma
// separated lists are accepted as well.
func ParseGroups(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
