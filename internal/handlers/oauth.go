package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/oauth"
	"github.com/rankbridge/rankbridge/internal/rolesync"
)

const syncAfterLinkTimeout = 30 * time.Second

// OAuthHandler serves the browser side of the Roblox sign-in flow.
type OAuthHandler struct {
	oauth  *oauth.Service
	sync   *rolesync.Service
	logger *slog.Logger
}

func NewOAuthHandler(log *slog.Logger, oauthSvc *oauth.Service, syncSvc *rolesync.Service) *OAuthHandler {
	return &OAuthHandler{
		oauth:  oauthSvc,
		sync:   syncSvc,
		logger: log.With(slog.String("handler", "oauth")),
	}
}

// Register mounts GET /oauth/callback on the Echo instance.
func (h *OAuthHandler) Register(e *echo.Echo) {
	e.GET("/oauth/callback", h.Callback)
}

// Callback finishes the authorization: it exchanges the code, writes the
// link, and kicks off a background role sync for the newly linked member.
func (h *OAuthHandler) Callback(c echo.Context) error {
	// The handler is mounted even when the deployment runs without OAuth
	// credentials, so a stale link must not crash the server.
	if h.oauth == nil {
		return c.HTML(http.StatusServiceUnavailable, resultPage("Verification unavailable", "Browser sign-in is not configured on this server. Use the bio verification flow in Discord instead."))
	}

	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return c.HTML(http.StatusBadRequest, resultPage("Verification failed", "The sign-in link is incomplete. Go back to Discord and try again."))
	}

	result, err := h.oauth.HandleCallback(c.Request().Context(), code, state)
	if err != nil {
		h.logger.Warn("oauth callback failed", slog.Any("error", err))
		return c.HTML(callbackStatus(err), resultPage("Verification failed", callbackMessage(err)))
	}

	if h.sync != nil && result.GuildID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), syncAfterLinkTimeout)
			defer cancel()
			if _, err := h.sync.SyncMember(ctx, result.GuildID, result.DiscordID); err != nil {
				h.logger.Warn("post-link sync failed",
					slog.String("discord_id", result.DiscordID),
					slog.Any("error", err),
				)
			}
		}()
	}

	return c.HTML(http.StatusOK, resultPage(
		"Verified",
		fmt.Sprintf("Your Discord account is now linked to %s. You can close this tab and return to Discord.", result.RobloxUsername),
	))
}

func callbackStatus(err error) int {
	switch {
	case errors.Is(err, oauth.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, oauth.ErrBlacklisted), errors.Is(err, oauth.ErrAlreadyVerified), errors.Is(err, accounts.ErrRobloxAlreadyLinked):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func callbackMessage(err error) string {
	switch {
	case errors.Is(err, oauth.ErrInvalidState):
		return "This sign-in link has expired or was already used. Go back to Discord and request a new one."
	case errors.Is(err, oauth.ErrBlacklisted):
		return "You are not allowed to verify on this server."
	case errors.Is(err, oauth.ErrAlreadyVerified):
		return "Your Discord account is already linked. Use the reverify option to switch accounts."
	case errors.Is(err, accounts.ErrRobloxAlreadyLinked):
		return "That Roblox account is already linked to another Discord user."
	default:
		return "Something went wrong during sign-in. Try again later."
	}
}

func resultPage(title, body string) string {
	return fmt.Sprintf(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>%[1]s</title>
<style>
body { font-family: sans-serif; background: #2c2f33; color: #ffffff; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
.card { background: #23272a; padding: 2rem 3rem; border-radius: 8px; text-align: center; max-width: 28rem; }
h1 { font-size: 1.4rem; }
p { color: #b9bbbe; }
</style>
</head>
<body><div class="card"><h1>%[1]s</h1><p>%[2]s</p></div></body>
</html>`, title, body)
}
