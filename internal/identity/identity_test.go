package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestStaticRequiresToken(t *testing.T) {
	_, err := Static{}.Identity(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("want ErrNoToken, got %v", err)
	}
}

func TestRefreshingCachesUntilExpiry(t *testing.T) {
	now := time.Unix(1000000, 0)
	calls := 0
	r := NewRefreshing(func(context.Context) (Identity, error) {
		calls++
		return Identity{Token: signedToken(t, "player-1", now.Add(time.Hour))}, nil
	})
	r.now = func() time.Time { return now }

	id, err := r.Identity(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id.UserID != "player-1" {
		t.Fatalf("sub not derived: %#v", id)
	}

	if _, err := r.Identity(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch calls: got %d, want 1", calls)
	}

	// Cross the leeway boundary, expect a refetch.
	now = now.Add(time.Hour)
	if _, err := r.Identity(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 2 {
		t.Fatalf("fetch calls: got %d, want 2", calls)
	}
}

func TestRefreshingServesCachedOnFetchError(t *testing.T) {
	now := time.Unix(1000000, 0)
	calls := 0
	r := NewRefreshing(func(context.Context) (Identity, error) {
		calls++
		if calls > 1 {
			return Identity{}, errors.New("backend down")
		}
		return Identity{Token: signedToken(t, "player-1", now.Add(time.Minute))}, nil
	})
	r.Leeway = 45 * time.Second // forces a refresh attempt on second call
	r.now = func() time.Time { return now }

	if _, err := r.Identity(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	now = now.Add(30 * time.Second) // inside leeway, before hard expiry
	id, err := r.Identity(context.Background())
	if err != nil {
		t.Fatalf("want cached identity, got err: %v", err)
	}
	if id.UserID != "player-1" {
		t.Fatalf("got %#v", id)
	}

	now = now.Add(time.Hour) // past hard expiry, error must surface
	if _, err := r.Identity(context.Background()); err == nil {
		t.Fatalf("expected error after expiry")
	}
}
