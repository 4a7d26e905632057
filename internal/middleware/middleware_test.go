package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/academvault/discussions/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type revokedSet struct {
	tokens map[string]bool
	err    error
}

func (r revokedSet) IsRevoked(_ context.Context, token string) (bool, error) {
	return r.tokens[token], r.err
}

func authRouter(jwtManager *auth.JWTManager, revoked RevocationChecker) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(jwtManager, revoked, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextKeyUserID).(uuid.UUID).String())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	jm := auth.NewJWTManager("test-secret", "academvault", time.Hour)
	userID := uuid.New()
	token, err := jm.GenerateToken(userID, "Alice")
	require.NoError(t, err)
	revokedToken, err := jm.GenerateToken(uuid.New(), "Mallory")
	require.NoError(t, err)

	r := authRouter(jm, revokedSet{tokens: map[string]bool{revokedToken: true}})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"revoked", "Bearer " + revokedToken, http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_FailsClosedOnStoreError(t *testing.T) {
	jm := auth.NewJWTManager("test-secret", "academvault", time.Hour)
	token, err := jm.GenerateToken(uuid.New(), "Alice")
	require.NoError(t, err)

	r := authRouter(jm, revokedSet{err: errors.New("redis down")})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimiter_PerUserBucket(t *testing.T) {
	l := NewRateLimiter(60, 2)
	clock := time.Now()
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("user:a"))
	assert.True(t, l.Allow("user:a"))
	assert.False(t, l.Allow("user:a"), "burst exhausted")
	assert.True(t, l.Allow("user:b"), "buckets are per key")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("user:a"), "one token per second refills")
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(1, 1)
	r := gin.New()
	r.POST("/join", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/join", nil))
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()), RequestLogger(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
}
