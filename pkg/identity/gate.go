package identity

import (
	"context"
	"fmt"

	"github.com/landkeeper/engine/pkg/landerr"
	"github.com/landkeeper/engine/pkg/transport"
)

// CredentialKey is the JoinRequest.Metadata key a Join message carries its
// bearer credential under. JoinRequest.Metadata is otherwise opaque to the
// transport layer.
const CredentialKey = "token"

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithCredentialKey overrides the Metadata key a Gate reads the bearer
// credential from.
func WithCredentialKey(key string) GateOption {
	return func(g *Gate) {
		if key != "" {
			g.credentialKey = key
		}
	}
}

// RequireRole rejects a join whose Principal lacks role.
func RequireRole(role string) GateOption {
	return func(g *Gate) {
		g.requiredRoles = append(g.requiredRoles, role)
	}
}

// Gate adapts a Resolver into a transport.JoinGate: it resolves the join's
// credential to a Principal, rejects a join whose claimed PlayerID doesn't
// match the resolved identity, and rejects a join whose Principal lacks a
// required role. It reports only allow/deny; the resolved Principal is not
// stored on any context or returned to the caller.
type Gate struct {
	resolver      Resolver
	credentialKey string
	requiredRoles []string
}

// NewGate constructs a Gate over resolver.
func NewGate(resolver Resolver, opts ...GateOption) *Gate {
	g := &Gate{resolver: resolver, credentialKey: CredentialKey}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanJoin implements transport.JoinGate.
func (g *Gate) CanJoin(ctx context.Context, req transport.JoinRequest) (bool, error) {
	credential, _ := req.Metadata[g.credentialKey].(string)
	if credential == "" {
		return false, landerr.New(landerr.CodeAuthFailed, "missing credential", nil)
	}

	principal, err := g.resolver.Resolve(ctx, credential)
	if err != nil {
		return false, landerr.New(landerr.CodeAuthFailed, "credential rejected", map[string]any{"reason": err.Error()})
	}
	if principal.ID != req.PlayerID {
		return false, landerr.New(landerr.CodeAuthFailed, "credential does not match playerId", nil)
	}
	for _, role := range g.requiredRoles {
		if !principal.HasRole(role) {
			return false, landerr.New(landerr.CodeJoinDenied, fmt.Sprintf("missing role %q", role), nil)
		}
	}
	return true, nil
}
