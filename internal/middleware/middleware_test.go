package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/geo-dashboard/internal/auth"
	"github.com/jengzang/geo-dashboard/internal/logger"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}

func TestRateLimitMiddleware(t *testing.T) {
	m := telemetry.NewMetrics()
	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(1, time.Minute), m))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":429`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejects))
}

func TestLoggerCorrelationID(t *testing.T) {
	r := gin.New()
	r.Use(Logger())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = logger.CorrelationID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(logger.CorrelationHeader, "abc")
	w := serve(r, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get(logger.CorrelationHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(logger.CorrelationHeader))
	assert.Equal(t, seen, w.Header().Get(logger.CorrelationHeader))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestMetricsMiddleware(t *testing.T) {
	m := telemetry.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/trips/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/trips/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/trips/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/trips/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRequireRole(t *testing.T) {
	secret := "s3cret"
	r := gin.New()
	r.POST("/admin", RequireRole(func() string { return secret }, auth.RoleAdmin), func(c *gin.Context) {
		_, ok := c.Get(ClaimsKey)
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})
	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return serve(r, req).Code
	}

	admin, err := auth.IssueToken(secret, "ops", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	viewer, err := auth.IssueToken(secret, "ops", "viewer", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.Equal(t, http.StatusUnauthorized, post("garbage"))
	assert.Equal(t, http.StatusForbidden, post(viewer))
	assert.Equal(t, http.StatusOK, post(admin))

	secret = ""
	r2 := gin.New()
	r2.POST("/admin", RequireRole(func() string { return secret }, auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r2, httptest.NewRequest(http.MethodPost, "/admin", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
