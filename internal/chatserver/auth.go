package chatserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// ErrUnauthorized is returned for bad credentials, unknown or expired tokens
// and inactive users.
var ErrUnauthorized = errors.New("unauthorized")

const (
	tokenCacheSize = 1024
	tokenCacheTTL  = time.Minute
)

type cachedUser struct {
	user    *store.User
	expires time.Time
}

// Authenticator issues access tokens and resolves them to users. Token
// lookups are cached briefly; Logout evicts immediately.
type Authenticator struct {
	db    *store.DB
	ttl   time.Duration
	cache *expirable.LRU[string, cachedUser]
	now   func() time.Time
}

// NewAuthenticator returns an authenticator issuing tokens valid for ttl.
func NewAuthenticator(db *store.DB, ttl time.Duration) *Authenticator {
	return &Authenticator{
		db:    db,
		ttl:   ttl,
		cache: expirable.NewLRU[string, cachedUser](tokenCacheSize, nil, tokenCacheTTL),
		now:   time.Now,
	}
}

// Login checks credentials and issues a token.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, time.Time, *store.User, error) {
	h := a.db.Shared()
	u, err := h.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", time.Time{}, nil, ErrUnauthorized
	}
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("looking up user: %w", err)
	}
	if !u.Active || !u.CheckPassword(password) {
		return "", time.Time{}, nil, ErrUnauthorized
	}
	token, expires, err := h.IssueToken(ctx, u.ID, a.ttl)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	a.cache.Add(token, cachedUser{user: u, expires: expires})
	return token, expires, u, nil
}

// Authenticate resolves a token to an active user.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	if c, ok := a.cache.Get(token); ok {
		if a.now().Before(c.expires) {
			return c.user, nil
		}
		a.cache.Remove(token)
		return nil, ErrUnauthorized
	}
	u, expires, err := a.db.Shared().UserByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	if !u.Active {
		return nil, ErrUnauthorized
	}
	a.cache.Add(token, cachedUser{user: u, expires: expires})
	return u, nil
}

// Logout revokes a token.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	a.cache.Remove(token)
	return a.db.Shared().RevokeToken(ctx, token)
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
