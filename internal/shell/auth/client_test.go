package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/pagepub/internal/core/domain"
)

// fakeClock returns immediately and records every requested sleep.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func newTestClient(baseURL string, clock Clock) *Client {
	return NewClient(Config{
		BaseURL:          baseURL,
		UserAgent:        "WonderlandEditor/1.2.3",
		PollInterval:     5 * time.Second,
		TimeoutIntervals: 12,
		Clock:            clock,
	}, slog.Default())
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:8080/"}, nil)

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, 5*time.Second, client.pollInterval)
	assert.Equal(t, 12, client.timeoutIntervals)
	assert.IsType(t, SystemClock{}, client.clock)
	assert.NotNil(t, client.logger)
}

// =============================================================================
// CreateToken Tests
// =============================================================================

func TestClient_CreateToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/action", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "WonderlandEditor/1.2.3", r.Header.Get("User-Agent"))

		var body createTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "createToken", body.Action)
		assert.Equal(t, "My Cool Game", body.Parameters.ProjectName)

		w.Write([]byte("action-123\n"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeClock{})

	token, err := client.CreateToken(context.Background(), "My Cool Game")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionToken("action-123"), token)
}

func TestClient_CreateToken_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeClock{})

	_, err := client.CreateToken(context.Background(), "game")
	assert.ErrorIs(t, err, domain.ErrService)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_CreateToken_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeClock{})

	_, err := client.CreateToken(context.Background(), "game")
	assert.ErrorIs(t, err, domain.ErrService)
}

func TestClient_CreateToken_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url, &fakeClock{})

	_, err := client.CreateToken(context.Background(), "game")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

// =============================================================================
// PollUntilResolved Tests
// =============================================================================

func TestClient_PollUntilResolved_ResolvesOnThirdTick(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/action/action-123/result", r.URL.Path)
		assert.Equal(t, "WonderlandEditor/1.2.3", r.Header.Get("User-Agent"))

		if requests.Add(1) < 3 {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"token":"secret-credential"}`))
	}))
	defer server.Close()

	clock := &fakeClock{}
	client := newTestClient(server.URL, clock)

	credential, err := client.PollUntilResolved(context.Background(), "action-123", &CancelFlag{})
	require.NoError(t, err)
	assert.Equal(t, domain.Credential("secret-credential"), credential)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, clock.sleeps)
}

func TestClient_PollUntilResolved_TimesOutAfterExactTicks(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"token":null}`))
	}))
	defer server.Close()

	clock := &fakeClock{}
	client := NewClient(Config{
		BaseURL:          server.URL,
		PollInterval:     time.Millisecond,
		TimeoutIntervals: 4,
		Clock:            clock,
	}, nil)

	_, err := client.PollUntilResolved(context.Background(), "action-123", nil)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, int32(4), requests.Load())
	assert.Equal(t, 4, clock.count())
}

func TestClient_PollUntilResolved_CancelDuringInFlightRequest(t *testing.T) {
	cancel := &CancelFlag{}
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 2 {
			// The user cancels while this request is being served.
			cancel.Cancel()
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	clock := &fakeClock{}
	client := newTestClient(server.URL, clock)

	_, err := client.PollUntilResolved(context.Background(), "action-123", cancel)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, 3, clock.count())
}

func TestClient_PollUntilResolved_CancelledBeforeFirstTick(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	cancel := &CancelFlag{}
	cancel.Cancel()
	client := newTestClient(server.URL, &fakeClock{})

	_, err := client.PollUntilResolved(context.Background(), "action-123", cancel)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Zero(t, requests.Load())
}

func TestClient_PollUntilResolved_ContextCancelled(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newTestClient(server.URL, &fakeClock{})

	_, err := client.PollUntilResolved(ctx, "action-123", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, requests.Load())
}

func TestClient_PollUntilResolved_ServiceErrorStopsPolling(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeClock{})

	_, err := client.PollUntilResolved(context.Background(), "action-123", nil)
	assert.ErrorIs(t, err, domain.ErrService)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_PollUntilResolved_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeClock{})

	_, err := client.PollUntilResolved(context.Background(), "action-123", nil)
	assert.ErrorIs(t, err, domain.ErrService)
}

func TestClient_PollUntilResolved_NonStringTokenIsPending(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Write([]byte(`{"token":false}`))
			return
		}
		w.Write([]byte(`{"token":"cred"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeClock{})

	credential, err := client.PollUntilResolved(context.Background(), "action-123", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Credential("cred"), credential)
	assert.Equal(t, int32(2), requests.Load())
}

// =============================================================================
// Clock and Flag Tests
// =============================================================================

func TestSystemClock_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SystemClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSystemClock_Sleep(t *testing.T) {
	assert.NoError(t, SystemClock{}.Sleep(context.Background(), time.Millisecond))
}

func TestCancelFlag(t *testing.T) {
	var nilFlag *CancelFlag
	assert.False(t, nilFlag.Cancelled())

	flag := &CancelFlag{}
	assert.False(t, flag.Cancelled())
	flag.Cancel()
	assert.True(t, flag.Cancelled())
	flag.Reset()
	assert.False(t, flag.Cancelled())
}

func TestAuthorizeURL(t *testing.T) {
	assert.Equal(t,
		"https://wonderlandengine.com/account/?actionId=abc-123",
		AuthorizeURL("https://wonderlandengine.com/account/", "abc-123"),
	)
}
