package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	idempotencyTTL    = 24 * time.Hour
)

// storedResponse is what a repeated request gets back. BodyHash fingerprints
// the request that produced it.
type storedResponse struct {
	BodyHash    string `json:"body_hash"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the handler's output so it can be stored after the fact.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// replayClient is the subset of *redis.Client the replay store uses.
type replayClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// replayStore keeps responses in Redis under idempotency keys.
type replayStore struct {
	client replayClient
	ttl    time.Duration
}

func (s replayStore) load(ctx context.Context, key string) (*storedResponse, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s replayStore) save(ctx context.Context, key string, resp storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

// IdempotencyMiddleware replays the stored response of a repeated write
// carrying an Idempotency-Key header. Keys are scoped to the authenticated
// caller, the method and the request path, so the same key on two rides runs
// twice. Reusing a key with a different body is rejected with 422. Server
// errors are not stored, so a retry runs the handler again.
func IdempotencyMiddleware(client *redis.Client, log logrus.FieldLogger) gin.HandlerFunc {
	return idempotency(replayStore{client: client, ttl: idempotencyTTL}, log)
}

func idempotency(store replayStore, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" || !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			if body, err = io.ReadAll(c.Request.Body); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		bodyHash := fingerprint(body)

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(CallerID(c), c.Request.Method, c.Request.URL.Path, key)

		prev, err := store.load(ctx, cacheKey)
		switch {
		case err == nil && prev.BodyHash != bodyHash:
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency key reused with a different request body"})
			return
		case err == nil:
			c.Header(replayedHeader, "true")
			c.Data(prev.Status, prev.ContentType, prev.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			log.WithError(err).WithField("path", c.Request.URL.Path).Warn("idempotency lookup failed")
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < http.StatusOK || status >= http.StatusInternalServerError {
			return
		}
		resp := storedResponse{
			BodyHash:    bodyHash,
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		}
		if err := store.save(ctx, cacheKey, resp); err != nil {
			log.WithError(err).WithField("path", c.Request.URL.Path).Warn("idempotency store failed")
		}
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func idempotencyCacheKey(callerID, method, path, key string) string {
	if callerID == "" {
		callerID = "anonymous"
	}
	return "idempotency:" + callerID + ":" + method + ":" + path + ":" + key
}
