package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-dataspace-client/auth"
)

type grantLog struct {
	mu     sync.Mutex
	grants []string
}

func (g *grantLog) add(grant string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants = append(g.grants, grant)
}

func (g *grantLog) all() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.grants...)
}

func newTokenEndpoint(t *testing.T, log *grantLog, issueRefresh bool) *httptest.Server {
	t.Helper()
	var issued atomic.Int64
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		log.add(r.PostFormValue("grant_type"))

		n := issued.Add(1)
		resp := map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   600,
		}
		if issueRefresh {
			resp["refresh_token"] = "refresh-1"
			resp["refresh_expires_in"] = 3600
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestTokenReusedUntilExpiry(t *testing.T) {
	log := &grantLog{}
	server := newTokenEndpoint(t, log, false)
	defer server.Close()

	current := time.Now()
	source, err := auth.NewClientCredentials(
		auth.Config{TokenURL: server.URL, ClientID: "cdse-client", ClientSecret: "secret"},
		auth.WithClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	tok1, err := source.Token(context.Background())
	require.NoError(t, err)

	tok2, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2, "fresh token should be reused")
	assert.Len(t, log.all(), 1)

	// Cross the expiry boundary; the next call must refresh exactly once.
	current = current.Add(601 * time.Second)
	tok3, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok3)
	assert.Len(t, log.all(), 2)
}

func TestRefreshGrantPreferredWhileRefreshTokenLives(t *testing.T) {
	log := &grantLog{}
	server := newTokenEndpoint(t, log, true)
	defer server.Close()

	current := time.Now()
	source, err := auth.NewClientCredentials(
		auth.Config{TokenURL: server.URL, ClientID: "cdse-client", ClientSecret: "secret"},
		auth.WithClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	_, err = source.Token(context.Background())
	require.NoError(t, err)

	current = current.Add(601 * time.Second)
	_, err = source.Token(context.Background())
	require.NoError(t, err)

	grants := log.all()
	require.Len(t, grants, 2)
	assert.Equal(t, "client_credentials", grants[0])
	assert.Equal(t, "refresh_token", grants[1])
}

func TestDeadRefreshTokenFallsBackToClientCredentials(t *testing.T) {
	log := &grantLog{}
	var issued atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		grant := r.PostFormValue("grant_type")
		log.add(grant)

		// The provider has expired the refresh token server-side; only a
		// full re-authentication succeeds.
		if grant == "refresh_token" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"access_token":       fmt.Sprintf("tok-%d", issued.Add(1)),
			"expires_in":         600,
			"refresh_token":      "refresh-1",
			"refresh_expires_in": 3600,
		}))
	}))
	defer server.Close()

	current := time.Now()
	source, err := auth.NewClientCredentials(
		auth.Config{TokenURL: server.URL, ClientID: "cdse-client", ClientSecret: "secret"},
		auth.WithClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	tok1, err := source.Token(context.Background())
	require.NoError(t, err)

	current = current.Add(601 * time.Second)
	tok2, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)

	assert.Equal(t, []string{"client_credentials", "refresh_token", "client_credentials"}, log.all())
}

func TestConcurrentExpiryTriggersSingleRefresh(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 600})
	}))
	defer server.Close()

	source, err := auth.NewClientCredentials(
		auth.Config{TokenURL: server.URL, ClientID: "cdse-client"},
	)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := source.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent callers must share one refresh")
}

func TestInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	source, err := auth.NewClientCredentials(
		auth.Config{TokenURL: server.URL, ClientID: "cdse-client", ClientSecret: "wrong"},
	)
	require.NoError(t, err)

	_, err = source.Token(context.Background())
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestInvalidateForcesRefresh(t *testing.T) {
	log := &grantLog{}
	server := newTokenEndpoint(t, log, false)
	defer server.Close()

	source, err := auth.NewClientCredentials(
		auth.Config{TokenURL: server.URL, ClientID: "cdse-client"},
	)
	require.NoError(t, err)

	tok, err := source.Token(context.Background())
	require.NoError(t, err)

	// Invalidating a stale copy must not kill the held token.
	source.Invalidate("some-older-token")
	again, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok, again)
	assert.Len(t, log.all(), 1)

	source.Invalidate(tok)
	fresh, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, tok, fresh)
	assert.Len(t, log.all(), 2)
}

func TestConfigValidate(t *testing.T) {
	_, err := auth.NewClientCredentials(auth.Config{ClientID: "x"})
	require.Error(t, err)

	_, err = auth.NewClientCredentials(auth.Config{TokenURL: "https://idp.example.com/token"})
	require.Error(t, err)
}
