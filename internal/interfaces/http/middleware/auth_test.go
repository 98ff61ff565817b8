package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat-api/pkg/utils"
)

const (
	testSecret = "test-secret"
	testIssuer = "rag-chat"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authEngine(cfg AuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(Auth(cfg))
	r.GET("/v1/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestAuth(t *testing.T) {
	cfg := AuthConfig{Secret: testSecret, Issuer: testIssuer, Enabled: true, SkipPaths: DefaultSkipPaths}
	r := authEngine(cfg)
	jm := utils.NewJWTManager(testSecret, testIssuer)

	access, err := jm.GenerateToken("user-1", "user", "access", time.Hour)
	require.NoError(t, err)
	refresh, err := jm.GenerateToken("user-1", "user", "refresh", time.Hour)
	require.NoError(t, err)
	expired, err := jm.GenerateToken("user-1", "user", "access", -time.Minute)
	require.NoError(t, err)
	foreign, err := utils.NewJWTManager("other", testIssuer).GenerateToken("user-1", "user", "access", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"valid access token", "/v1/me", "Bearer " + access, http.StatusOK, "user-1"},
		{"skip path", "/health", "", http.StatusOK, "ok"},
		{"missing header", "/v1/me", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/v1/me", "Basic " + access, http.StatusUnauthorized, ""},
		{"refresh token rejected", "/v1/me", "Bearer " + refresh, http.StatusUnauthorized, ""},
		{"expired", "/v1/me", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"bad signature", "/v1/me", "Bearer " + foreign, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAuth_DisabledUsesDevUser(t *testing.T) {
	r := authEngine(AuthConfig{Enabled: false, DevUserID: "dev"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev", w.Body.String())
}

type countingLimiter struct {
	allow int
	keys  []string
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	l.allow--
	return l.allow >= 0, nil
}

func TestRateLimit_KeyedByUser(t *testing.T) {
	limiter := &countingLimiter{allow: 1}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "user-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{Enabled: true, RequestsPerSecond: 1}, limiter))
	r.GET("/v1/chat", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	assert.Equal(t, "ratelimit:user-1:/v1/chat", limiter.keys[0])
}
