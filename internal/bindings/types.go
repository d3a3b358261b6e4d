// Package bindings stores the declarative rank-to-role and group-to-role mapping rules.
package bindings

import (
	"errors"
	"time"
)

// Errors returned by binding operations.
var (
	ErrInvalidRank     = errors.New("rank must be between 0 and 255")
	ErrBindingNotFound = errors.New("binding not found")
)

// RankBinding maps one numeric rank within a Roblox group to one Discord role.
// Several bindings may share (guild, group, rank) to fan one rank out to
// multiple roles.
type RankBinding struct {
	ID               int64     `json:"id"`
	GuildID          string    `json:"guild_id"`
	GroupID          int64     `json:"group_id"`
	Rank             int       `json:"rank"`
	RankName         string    `json:"rank_name"`
	DiscordRoleID    string    `json:"discord_role_id"`
	DiscordRoleName  string    `json:"discord_role_name"`
	Priority         int       `json:"priority"`
	NicknameTemplate string    `json:"nickname_template,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// GroupBinding maps any membership in a Roblox group (regardless of rank) to
// one Discord role.
type GroupBinding struct {
	ID               int64     `json:"id"`
	GuildID          string    `json:"guild_id"`
	GroupID          int64     `json:"group_id"`
	DiscordRoleID    string    `json:"discord_role_id"`
	DiscordRoleName  string    `json:"discord_role_name"`
	Priority         int       `json:"priority"`
	NicknameTemplate string    `json:"nickname_template,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
