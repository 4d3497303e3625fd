package realtime

import (
	"context"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// Roles an identity can carry. Admins may subscribe to any job in their
// tenant; members only to their own.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Identity is the authenticated caller bound to a connection. It is
// fixed at connect time and never changes for the connection's life.
type Identity struct {
	UserID   id.UserID   `json:"user_id"`
	TenantID id.TenantID `json:"tenant_id"`
	Role     string      `json:"role,omitempty"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Authenticator validates a connection token and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ── Static token authenticator ──────────────────────

// TokenEntry maps a token to an identity.
type TokenEntry struct {
	Token    string
	Identity Identity
}

// StaticAuthenticator validates tokens against a fixed list.
type StaticAuthenticator struct {
	tokens map[string]*Identity
}

// NewStaticAuthenticator creates a static token authenticator.
func NewStaticAuthenticator(entries ...TokenEntry) *StaticAuthenticator {
	tokens := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		ident := e.Identity
		tokens[e.Token] = &ident
	}
	return &StaticAuthenticator{tokens: tokens}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	ident, ok := a.tokens[token]
	if !ok {
		return nil, scribeq.ErrUnauthorized
	}
	cp := *ident
	return &cp, nil
}

// ── No-op authenticator ─────────────────────────────

// NoopAuthenticator accepts every token as the same fixed identity.
// Use for development only.
type NoopAuthenticator struct {
	identity Identity
}

// NewNoopAuthenticator creates an authenticator that maps all tokens to
// the given identity.
func NewNoopAuthenticator(identity Identity) *NoopAuthenticator {
	return &NoopAuthenticator{identity: identity}
}

func (a *NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	cp := a.identity
	return &cp, nil
}

// ── Composite authenticator ─────────────────────────

// CompositeAuthenticator tries multiple authenticators in order. The
// first successful authentication wins.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator chains multiple authenticators.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

func (c *CompositeAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	for _, auth := range c.authenticators {
		ident, err := auth.Authenticate(ctx, token)
		if err == nil {
			return ident, nil
		}
	}
	return nil, scribeq.ErrUnauthorized
}
