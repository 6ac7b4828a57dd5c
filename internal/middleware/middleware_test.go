package middleware

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/auth"
	"github.com/qrforge/qrforge/internal/credentials"
	"github.com/qrforge/qrforge/internal/models"
	"github.com/qrforge/qrforge/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()

	limits := map[models.Tier]models.TierLimits{
		models.TierFree:      {RequestsPerWindow: 3, WindowSeconds: 60, MaxBatchSize: 5},
		models.TierAnonymous: {RequestsPerWindow: 2, WindowSeconds: 60},
	}

	store := credentials.NewStore(limits, nil)
	require.NoError(t, store.Upsert(context.Background(), models.Account{
		Identity: "acct_free",
		KeyHash:  auth.HashKey("key-free"),
		Tier:     models.TierFree,
		Enabled:  true,
	}))
	require.NoError(t, store.Upsert(context.Background(), models.Account{
		Identity: "acct_off",
		KeyHash:  auth.HashKey("key-off"),
		Tier:     models.TierFree,
		Enabled:  false,
	}))

	return auth.New(store, limits, true, models.TierAnonymous, "test-salt")
}

func newRouter(t *testing.T, cost CostFunc) *gin.Engine {
	t.Helper()

	authenticator := testAuthenticator(t)
	limiter := ratelimit.NewSlidingWindow(time.Minute)

	r := gin.New()
	group := r.Group("/", Authenticate(authenticator), RateLimit(limiter, authenticator, cost))
	group.POST("/qr", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"identity": Identity(c), "tier": Tier(c)})
	})
	return r
}

func doPost(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/qr", nil)
	if apiKey != "" {
		req.Header.Set(auth.HeaderAPIKey, apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_UniformUnauthorizedBody(t *testing.T) {
	authenticator := testAuthenticator(t)

	r := gin.New()
	r.Use(Authenticate(authenticator))
	r.POST("/qr", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Unknown and disabled keys must be indistinguishable from outside.
	var bodies []string
	for _, key := range []string{"no-such-key", "key-off"} {
		req := httptest.NewRequest(http.MethodPost, "/qr", nil)
		req.Header.Set(auth.HeaderAPIKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		bodies = append(bodies, w.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.NotContains(t, bodies[0], "disabled")
}

func TestAuthenticate_ValidKeyPassesIdentity(t *testing.T) {
	r := newRouter(t, CostOne)

	w := doPost(r, "key-free")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acct_free")
	assert.Contains(t, w.Body.String(), "free")
}

func TestAuthenticate_AnonymousFallback(t *testing.T) {
	r := newRouter(t, CostOne)

	w := doPost(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anon:")
	assert.Equal(t, "anonymous", w.Header().Get("X-RateLimit-Tier"))
}

func TestRateLimit_HeadersAndExhaustion(t *testing.T) {
	r := newRouter(t, CostOne)

	w := doPost(r, "key-free")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "free", w.Header().Get("X-RateLimit-Tier"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	doPost(r, "key-free")
	w = doPost(r, "key-free")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doPost(r, "key-free")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimit_IdentitiesAreIsolated(t *testing.T) {
	r := newRouter(t, CostOne)

	for i := 0; i < 3; i++ {
		doPost(r, "key-free")
	}
	w := doPost(r, "key-free")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// Anonymous caller has its own window and tier.
	w = doPost(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
}

func multipartWithFiles(t *testing.T, field string, n int) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < n; i++ {
		fw, err := mw.CreateFormFile(field, "bg.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("not-a-real-png"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRateLimit_BatchCostIsAtomic(t *testing.T) {
	authenticator := testAuthenticator(t)
	limiter := ratelimit.NewSlidingWindow(time.Minute)

	r := gin.New()
	group := r.Group("/", Authenticate(authenticator), RateLimit(limiter, authenticator, CostMultipartFiles("backgrounds")))
	group.POST("/batch", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(n int) *httptest.ResponseRecorder {
		body, contentType := multipartWithFiles(t, "backgrounds", n)
		req := httptest.NewRequest(http.MethodPost, "/batch", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(auth.HeaderAPIKey, "key-free")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// Limit is 3; a 2-file batch consumes 2 slots.
	w := send(2)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	// A second 2-file batch does not fit and must not consume the last slot.
	w = send(2)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = send(1)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCostMultipartFiles_NonMultipartCostsOne(t *testing.T) {
	cost := CostMultipartFiles("backgrounds")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/batch", nil)
	assert.Equal(t, 1, cost(c))
}
