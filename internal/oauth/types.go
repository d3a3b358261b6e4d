// Package oauth implements the Roblox OAuth2 account linking flow: the user
// authorizes on Roblox and the callback exchanges the code for their identity.
package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/rankbridge/rankbridge/internal/accounts"
)

// Errors returned by the OAuth flow.
var (
	ErrInvalidState    = errors.New("invalid or expired oauth state")
	ErrBlacklisted     = errors.New("identity is blacklisted from verification")
	ErrAlreadyVerified = errors.New("account is already verified")
	ErrTokenExchange   = errors.New("token exchange failed")
	ErrUserinfo        = errors.New("userinfo fetch failed")
)

// StateRecord is one pending authorization, keyed uniquely by Discord user so
// re-issuing overwrites any dangling state.
type StateRecord struct {
	State      string    `json:"state"`
	DiscordID  string    `json:"discord_id"`
	GuildID    string    `json:"guild_id"`
	IsReverify bool      `json:"is_reverify"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// CallbackResult is the outcome of a successful callback.
type CallbackResult struct {
	DiscordID      string `json:"discord_id"`
	GuildID        string `json:"guild_id"`
	RobloxID       int64  `json:"roblox_id"`
	RobloxUsername string `json:"roblox_username"`
	DisplayName    string `json:"display_name"`
}

// Userinfo is the OpenID profile returned by the game platform.
type Userinfo struct {
	Sub               string `json:"sub"`
	Name              string `json:"name"`
	Nickname          string `json:"nickname"`
	PreferredUsername string `json:"preferred_username"`
}

// LinkStore is the identity-link persistence surface.
type LinkStore interface {
	Link(ctx context.Context, discordID string, robloxID int64, robloxUsername string) error
	Unlink(ctx context.Context, discordID string) error
	GetByDiscordID(ctx context.Context, discordID string) (accounts.Link, error)
	GetByRobloxID(ctx context.Context, robloxID int64) (accounts.Link, error)
}

// BlacklistChecker gates verification on per-guild bans.
type BlacklistChecker interface {
	IsBlacklistedDiscord(ctx context.Context, guildID, discordID string) (bool, error)
	IsBlacklistedRoblox(ctx context.Context, guildID string, robloxID int64) (bool, error)
}

// Auditor records terminal linking outcomes.
type Auditor interface {
	Verification(ctx context.Context, guildID, discordID string, robloxID int64)
	Unlink(ctx context.Context, guildID, discordID string, robloxID int64)
}

// StateStore persists pending authorization states.
type StateStore interface {
	// Upsert replaces any previous state for the same Discord user.
	Upsert(ctx context.Context, rec StateRecord) error
	// GetUnexpired returns the record for a state token, treating expired rows as absent.
	GetUnexpired(ctx context.Context, state string) (StateRecord, error)
	Delete(ctx context.Context, state string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// Exchanger builds authorization URLs and performs the code exchange plus
// userinfo fetch. The production implementation wraps golang.org/x/oauth2.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Userinfo, error)
}
