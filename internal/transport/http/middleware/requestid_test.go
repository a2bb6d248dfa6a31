package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/requestid"
	"github.com/ErlanBelekov/app-launch-scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func newRequestIDEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "%s", requestid.FromContext(c.Request.Context()))
	})
	return r
}

func TestRequestID_KeepsWellFormedHeader(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	newRequestIDEngine().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("header = %q, want abc-123", got)
	}
	if w.Body.String() != "abc-123" {
		t.Errorf("context id = %q, want abc-123", w.Body.String())
	}
}

func TestRequestID_ReplacesMalformedHeader(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "evil value\tinjected=1")
	newRequestIDEngine().ServeHTTP(w, req)

	got := w.Header().Get("X-Request-ID")
	if got == "evil value\tinjected=1" || !requestid.Valid(got) {
		t.Errorf("header = %q, want a fresh id", got)
	}
	if w.Body.String() != got {
		t.Errorf("context id = %q, header %q", w.Body.String(), got)
	}
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	w := httptest.NewRecorder()
	newRequestIDEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Request-ID"); !requestid.Valid(got) {
		t.Errorf("header = %q, want generated id", got)
	}
}

func TestRequestID_StreamClientsMayUseQuery(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?request_id=tab-42", nil)
	req.Header.Set("Accept", "text/event-stream")
	newRequestIDEngine().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "tab-42" {
		t.Errorf("header = %q, want tab-42", got)
	}
}

func TestRequestID_QueryIgnoredOutsideStreams(t *testing.T) {
	w := httptest.NewRecorder()
	newRequestIDEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?request_id=tab-42", nil))

	if got := w.Header().Get("X-Request-ID"); got == "tab-42" {
		t.Error("query id accepted on a plain request")
	}
}
