package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestCallbackWithoutOAuthConfigured(t *testing.T) {
	t.Parallel()

	h := NewOAuthHandler(slog.Default(), nil, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state=xyz", nil)
	rec := httptest.NewRecorder()

	if err := h.Callback(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Fatalf("body = %q, want an unconfigured notice", rec.Body.String())
	}
}

func TestCallbackMissingParams(t *testing.T) {
	t.Parallel()

	h := NewOAuthHandler(slog.Default(), nil, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback", nil)
	rec := httptest.NewRecorder()

	if err := h.Callback(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Callback: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
