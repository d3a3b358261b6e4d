package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/rankbridge/rankbridge/internal/rank"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

func TestParsePageParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"25", 25, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePageParam(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePageParam(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePageParam(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseRobloxID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRobloxID(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRobloxID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRobloxID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestBindRankRequest(t *testing.T) {
	t.Parallel()

	e := echo.New()
	newCtx := func(body string) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/api/promote", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return e.NewContext(req, httptest.NewRecorder())
	}

	got, err := bindRankRequest(newCtx(`{"roblox_id": 42, "actor": "game-server"}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.RobloxID != 42 || got.Actor != "game-server" {
		t.Fatalf("unexpected request: %+v", got)
	}

	if _, err := bindRankRequest(newCtx(`{"actor": "game-server"}`)); err == nil {
		t.Fatalf("expected error for missing roblox_id")
	}
	if _, err := bindRankRequest(newCtx(`not json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}

func TestSetRankRejectsOutOfRangeRank(t *testing.T) {
	t.Parallel()

	h := &GameHandler{logger: slog.Default()}
	e := echo.New()
	for _, body := range []string{
		`{"roblox_id": 42, "rank": 0}`,
		`{"roblox_id": 42, "rank": 256}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/setrank", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()

		if err := h.SetRank(e.NewContext(req, rec)); err != nil {
			t.Fatalf("SetRank: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d for body %s", rec.Code, http.StatusBadRequest, body)
		}
	}
}

func TestRankErrorStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{rank.ErrNoGroup, http.StatusServiceUnavailable},
		{roblox.ErrUserNotFound, http.StatusNotFound},
		{roblox.ErrNotInGroup, http.StatusConflict},
		{roblox.ErrRankBoundary, http.StatusConflict},
		{roblox.ErrRankNotFound, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	h := &GameHandler{logger: slog.Default()}
	e := echo.New()
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		if err := h.rankError(e.NewContext(req, rec), tt.err); err != nil {
			t.Fatalf("rankError(%v): %v", tt.err, err)
		}
		if rec.Code != tt.want {
			t.Fatalf("rankError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
