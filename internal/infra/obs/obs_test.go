package obs

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRequestIDAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := require.New(t)
	var buf bytes.Buffer
	m := Middleware{Logger: newLogger(&buf, "prod")}

	r := gin.New()
	r.Use(m.RequestID(), m.LoggerMiddleware())
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusTeapot)
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		w := httptest.NewRecorder()
		httpReq := httptest.NewRequest(http.MethodGet, "/ping", nil)
		httpReq.Header.Set(RequestIDHeader, "req-42")
		r.ServeHTTP(w, httpReq)
		req.Equal("req-42", w.Header().Get(RequestIDHeader))
		req.Equal("req-42", seen)
		req.Contains(buf.String(), `"request_id":"req-42"`)
		req.Contains(buf.String(), `"level":"WARN"`)
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		req.NotEmpty(w.Header().Get(RequestIDHeader))
		req.Equal(w.Header().Get(RequestIDHeader), seen)
	})
}

func TestHealthHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := require.New(t)
	ready := errors.New("mongo down")
	h := HealthHandlers{Ready: func(context.Context) error { return ready }}
	r := gin.New()
	r.GET("/livez", h.Livez)
	r.GET("/readyz", h.Readyz)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	req.Equal(http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	req.Equal(http.StatusServiceUnavailable, w.Code)

	ready = nil
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	req.Equal(http.StatusOK, w.Code)
}
