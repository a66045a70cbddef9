package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrInvalidToken is returned for a bearer token that is present but cannot be trusted.
var ErrInvalidToken = errors.New("invalid bearer token")

// Identity is the caller as asserted by the token issuer. The zero value is
// an anonymous caller.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// Anonymous reports whether no identity was asserted.
func (i Identity) Anonymous() bool {
	return i.ExternalID == ""
}

// claims is the token body issued by the identity provider
type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Config controls token verification
type Config struct {
	// Secret is the HS256 signing key. Empty enables demo mode.
	Secret   string
	Issuer   string
	Audience string
}

// Provider resolves callers from bearer tokens
type Provider struct {
	secret   []byte
	issuer   string
	audience string
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// NewProvider creates a Provider. A nil clock uses the real clock.
func NewProvider(cfg Config, clock clockwork.Clock, logger zerolog.Logger) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Provider{
		secret:   []byte(cfg.Secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		clock:    clock,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

// DemoMode reports whether tokens are ignored and every caller is anonymous.
func (p *Provider) DemoMode() bool {
	return len(p.secret) == 0
}

// Resolve returns the caller for an Authorization header value. An empty
// header, or any header in demo mode, yields the anonymous identity.
func (p *Provider) Resolve(header string) (Identity, error) {
	if p.DemoMode() {
		return Identity{}, nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return Identity{}, nil
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Identity{}, fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &parsed, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: sub is required", ErrInvalidToken)
	}

	return Identity{
		ExternalID:  parsed.Subject,
		Email:       parsed.Email,
		DisplayName: parsed.Name,
	}, nil
}

// Issue signs a token for id, valid for ttl. Used by tooling and tests.
func (p *Provider) Issue(id Identity, ttl time.Duration) (string, error) {
	if p.DemoMode() {
		return "", errors.New("cannot issue tokens without a secret")
	}
	now := p.clock.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ExternalID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		Name:  id.DisplayName,
	}
	if p.audience != "" {
		c.Audience = jwt.ClaimStrings{p.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller stored by Middleware, or the anonymous identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}

// Middleware resolves the caller once per request. Requests carrying an
// invalid token are rejected with 401.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := p.Resolve(r.Header.Get("Authorization"))
		if err != nil {
			p.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
