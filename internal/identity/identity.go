// Package identity supplies the bearer token and player id used to
// authenticate the channel handshake and REST calls. The authentication
// flow itself lives elsewhere; this is the glue the game core consumes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("no token available")

type Identity struct {
	UserID string
	Token  string
}

type Provider interface {
	Identity(ctx context.Context) (Identity, error)
}

// Static returns a fixed identity, mostly for tests and the dev server.
type Static struct {
	ID Identity
}

func (s Static) Identity(context.Context) (Identity, error) {
	if s.ID.Token == "" {
		return Identity{}, ErrNoToken
	}
	return s.ID, nil
}

// Refreshing caches a fetched identity and re-fetches once the token's exp
// claim is within the leeway window. Fetch errors propagate; a previously
// cached, still-valid identity keeps being served.
type Refreshing struct {
	Fetch  func(ctx context.Context) (Identity, error)
	Leeway time.Duration

	mu      sync.Mutex
	current Identity
	expires time.Time
	now     func() time.Time
}

func NewRefreshing(fetch func(ctx context.Context) (Identity, error)) *Refreshing {
	return &Refreshing{Fetch: fetch, Leeway: 30 * time.Second, now: time.Now}
}

func (r *Refreshing) Identity(ctx context.Context) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()()
	if r.current.Token != "" && (r.expires.IsZero() || now.Before(r.expires.Add(-r.Leeway))) {
		return r.current, nil
	}

	id, err := r.Fetch(ctx)
	if err != nil {
		if r.current.Token != "" && (r.expires.IsZero() || now.Before(r.expires)) {
			return r.current, nil
		}
		return Identity{}, fmt.Errorf("fetch token: %w", err)
	}

	exp, sub := inspect(id.Token)
	if id.UserID == "" {
		id.UserID = sub
	}
	r.current = id
	r.expires = exp
	return id, nil
}

func (r *Refreshing) clock() func() time.Time {
	if r.now != nil {
		return r.now
	}
	return time.Now
}

// inspect reads exp/sub from the token without verifying the signature; the
// backend verifies, we only schedule refreshes.
func inspect(token string) (time.Time, string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, ""
	}
	var exp time.Time
	if t, err := claims.GetExpirationTime(); err == nil && t != nil {
		exp = t.Time
	}
	sub, _ := claims.GetSubject()
	return exp, sub
}
