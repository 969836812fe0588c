package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"knotstats/internal/shared/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})
	r.POST("/write", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("username"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	r := newEngine(RequestID(), RequestLogger())

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = serve(r, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryReturnsJSONError(t *testing.T) {
	r := newEngine(RequestID(), Recovery())

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"http://example.test"}
	r := newEngine(CORS(cfg))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://example.test")
	rec := serve(r, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "43200", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodPost, "/write", strings.NewReader("x"))
	req.Header.Set("Origin", "http://example.test")
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultIsSameOrigin(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig()))

	// 其他站点的读请求照常处理，但不返回允许头
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/write", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(r, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// 跨站的简单写请求被拒绝
	req = httptest.NewRequest(http.MethodPost, "/write", strings.NewReader("x"))
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Content-Type", "text/plain")
	rec = serve(r, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// 同源页面发出的写请求放行
	req = httptest.NewRequest(http.MethodPost, "http://dash.lan:5001/write", strings.NewReader("x"))
	req.Header.Set("Origin", "http://dash.lan:5001")
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 没有 Origin 的请求（curl 等）放行
	rec = serve(r, httptest.NewRequest(http.MethodPost, "/write", strings.NewReader("x")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(newEngine(SecurityHeaders()), httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://cdn.jsdelivr.net")
}

func TestBasicAuth(t *testing.T) {
	hash, err := utils.HashPassword("s3cret")
	require.NoError(t, err)
	r := newEngine(BasicAuth("admin", hash))

	rec := serve(r, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.SetBasicAuth("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/write", nil)
	req.SetBasicAuth("root", "s3cret")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/write", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())
}

func TestBasicAuthDisabled(t *testing.T) {
	rec := serve(newEngine(BasicAuth("", "")), httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
