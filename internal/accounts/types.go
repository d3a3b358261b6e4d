// Package accounts stores the verified Discord-to-Roblox identity links.
package accounts

import (
	"errors"
	"time"
)

// Errors returned by link operations.
var (
	ErrNotLinked           = errors.New("account is not linked")
	ErrRobloxAlreadyLinked = errors.New("roblox account already linked to another user")
)

// Link is the verified 1:1 mapping between a Discord user and a Roblox account.
type Link struct {
	DiscordID      string    `json:"discord_id"`
	RobloxID       int64     `json:"roblox_id"`
	RobloxUsername string    `json:"roblox_username"`
	VerifiedAt     time.Time `json:"verified_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
