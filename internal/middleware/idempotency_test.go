package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"sharewheels/internal/logger"
)

// memoryReplayClient stands in for Redis GET/SET.
type memoryReplayClient struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemoryReplayClient() *memoryReplayClient {
	return &memoryReplayClient{data: make(map[string]string)}
}

func (m *memoryReplayClient) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryReplayClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _ := value.([]byte)
	m.data[key] = string(b)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryReplayClient) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// payRouter serves PUT /rides/:id/pay for caller u1 and counts handler runs
// per ride. status is the code the handler answers with.
func payRouter(client replayClient, status int) (*gin.Engine, map[string]int) {
	calls := make(map[string]int)
	var mu sync.Mutex

	r := gin.New()
	r.PUT("/rides/:id/pay",
		func(c *gin.Context) { c.Set(callerIDKey, "u1") },
		idempotency(replayStore{client: client, ttl: time.Minute}, logger.Discard()),
		func(c *gin.Context) {
			mu.Lock()
			calls[c.Param("id")]++
			mu.Unlock()
			c.JSON(status, gin.H{"ride": c.Param("id")})
		},
	)
	return r, calls
}

func sendPay(r *gin.Engine, rideID, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/rides/"+rideID+"/pay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, key)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysSameRequest(t *testing.T) {
	t.Parallel()

	r, calls := payRouter(newMemoryReplayClient(), http.StatusOK)

	first := sendPay(r, "ride-A", "k1", `{}`)
	second := sendPay(r, "ride-A", "k1", `{}`)

	if calls["ride-A"] != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls["ride-A"])
	}
	if second.Header().Get(replayedHeader) != "true" {
		t.Error("expected the second response to be a replay")
	}
	if second.Code != first.Code || second.Body.String() != first.Body.String() {
		t.Errorf("replay differs: %d %q vs %d %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
}

func TestIdempotency_SameKeyOnDifferentPaths_RunsBoth(t *testing.T) {
	t.Parallel()

	r, calls := payRouter(newMemoryReplayClient(), http.StatusOK)

	sendPay(r, "ride-A", "k1", `{}`)
	rec := sendPay(r, "ride-B", "k1", `{}`)

	if calls["ride-A"] != 1 || calls["ride-B"] != 1 {
		t.Errorf("expected one run per ride, got %v", calls)
	}
	if rec.Header().Get(replayedHeader) != "" {
		t.Error("ride-B must not replay ride-A's response")
	}
	if !strings.Contains(rec.Body.String(), "ride-B") {
		t.Errorf("expected ride-B response, got %s", rec.Body.String())
	}
}

func TestIdempotency_ReusedKeyWithDifferentBody_Rejected(t *testing.T) {
	t.Parallel()

	r, calls := payRouter(newMemoryReplayClient(), http.StatusOK)

	sendPay(r, "ride-A", "k1", `{"seats":1}`)
	rec := sendPay(r, "ride-A", "k1", `{"seats":2}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if calls["ride-A"] != 1 {
		t.Errorf("expected handler to run once, ran %d times", calls["ride-A"])
	}
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	t.Parallel()

	client := newMemoryReplayClient()
	r, calls := payRouter(client, http.StatusInternalServerError)

	sendPay(r, "ride-A", "k1", `{}`)
	sendPay(r, "ride-A", "k1", `{}`)

	if calls["ride-A"] != 2 {
		t.Errorf("expected a retry after a server error, ran %d times", calls["ride-A"])
	}
	if client.stored() != 0 {
		t.Errorf("expected nothing stored, got %d entries", client.stored())
	}
}

func TestIdempotency_LookupFailure_RunsHandler(t *testing.T) {
	t.Parallel()

	client := newMemoryReplayClient()
	client.getErr = errors.New("connection refused")
	r, calls := payRouter(client, http.StatusOK)

	rec := sendPay(r, "ride-A", "k1", `{}`)

	if rec.Code != http.StatusOK || calls["ride-A"] != 1 {
		t.Errorf("expected handler to run despite the lookup failure, got %d after %d runs", rec.Code, calls["ride-A"])
	}
}
