// Package verify implements the bio-code account linking flow: a user claims a
// Roblox username, receives a one-time code, places it in their profile bio,
// and completes the link once the code is found there.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

// Errors returned by verification operations.
var (
	ErrAlreadyVerified = errors.New("account is already verified")
	ErrBlacklisted     = errors.New("identity is blacklisted from verification")
	ErrUserNotFound    = errors.New("roblox user not found")
	ErrNoPending       = errors.New("no pending verification")
	ErrCodeNotFound    = errors.New("verification code not found in bio")
	ErrNotVerified     = errors.New("account is not verified")
)

// Pending is an issued, unconsumed verification challenge.
type Pending struct {
	DiscordID      string    `json:"discord_id"`
	Code           string    `json:"code"`
	RobloxUsername string    `json:"roblox_username"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// StartResult is returned when a challenge is issued.
type StartResult struct {
	Code       string      `json:"code"`
	RobloxUser roblox.User `json:"roblox_user"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// Status values for a Discord user's linking state.
const (
	StatusVerified   = "verified"
	StatusPending    = "pending"
	StatusUnverified = "unverified"
)

// State describes where a Discord user sits in the linking state machine.
type State struct {
	Status  string        `json:"status"`
	Link    accounts.Link `json:"link,omitzero"`
	Pending Pending       `json:"pending,omitzero"`
}

// Gateway is the Roblox API surface the flow depends on.
type Gateway interface {
	GetUserByUsername(ctx context.Context, username string) (roblox.User, error)
	GetUserByID(ctx context.Context, userID int64) (roblox.Profile, error)
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

// PendingStore persists issued challenges keyed uniquely by Discord user.
type PendingStore interface {
	// Upsert replaces any previous challenge for the same Discord user.
	Upsert(ctx context.Context, p Pending) error
	// GetUnexpired returns the pending challenge, treating expired rows as absent.
	GetUnexpired(ctx context.Context, discordID string) (Pending, error)
	Delete(ctx context.Context, discordID string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
