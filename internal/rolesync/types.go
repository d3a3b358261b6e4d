// Package rolesync reconciles Discord roles and nicknames against Roblox
// group ranks. The diff is computed only over roles the guild's bindings
// manage, so manually assigned roles are never touched.
package rolesync

import (
	"context"
	"errors"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/bindings"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

var (
	ErrNotVerified = errors.New("member has no linked account")
	ErrNoBindings  = errors.New("guild has no role bindings")
)

// Member is the snapshot of a guild member the platform hands us.
type Member struct {
	UserID      string
	Username    string
	DisplayName string
	Nickname    string
	RoleIDs     []string
	IsBot       bool
}

// Plan is the computed reconciliation for one member. It is pure data so the
// diff can be tested without a live platform.
type Plan struct {
	RolesToAdd    []string
	RolesToRemove []string
	Nickname      string
	UpdateNick    bool
	// Matched lists the bindings the member qualified for, highest
	// priority first.
	Matched []Matched
}

// Matched is one binding the member satisfied together with the group
// membership that satisfied it.
type Matched struct {
	RoleID   string
	Priority int
	Template string
	RankName string
	// GroupWide marks a group binding rather than an exact-rank binding.
	GroupWide bool
	// order breaks priority ties deterministically: rank bindings sort
	// before group bindings, then by binding id.
	order int64
}

func (p Plan) Empty() bool {
	return len(p.RolesToAdd) == 0 && len(p.RolesToRemove) == 0 && !p.UpdateNick
}

// Result is the applied outcome for one member.
type Result struct {
	UserID        string
	RolesAdded    []string
	RolesRemoved  []string
	NicknameSet   bool
	Nickname      string
	PartialErrors []error
}

func (r Result) Changed() bool {
	return len(r.RolesAdded) > 0 || len(r.RolesRemoved) > 0 || r.NicknameSet
}

// GuildResult aggregates a full-guild sweep.
type GuildResult struct {
	Total    int
	Synced   int
	Changed  int
	Skipped  int
	Failed   int
	Failures []MemberFailure
}

type MemberFailure struct {
	UserID string
	Err    error
}

// Platform applies role and nickname changes to the chat platform. Batched
// calls may fail as a unit; callers fall back to the per-role variants.
type Platform interface {
	Member(ctx context.Context, guildID, userID string) (Member, error)
	Members(ctx context.Context, guildID string) ([]Member, error)
	AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	SetNickname(ctx context.Context, guildID, userID, nickname string) error
}

// Gateway is the subset of the Roblox client the engine needs.
type Gateway interface {
	GetUserByID(ctx context.Context, id int64) (roblox.Profile, error)
	GetUserGroupRank(ctx context.Context, userID, groupID int64) (roblox.Membership, error)
}

// LinkStore resolves chat users to game identities. UpdateUsername keeps the
// stored Roblox username in step with renames noticed during sync.
type LinkStore interface {
	GetByDiscordID(ctx context.Context, discordID string) (accounts.Link, error)
	UpdateUsername(ctx context.Context, discordID, robloxUsername string) error
}

// BindingStore loads the guild's binding tables, either whole or narrowed to
// one Roblox group.
type BindingStore interface {
	RankBindingsByGuild(ctx context.Context, guildID string) ([]bindings.RankBinding, error)
	GroupBindingsByGuild(ctx context.Context, guildID string) ([]bindings.GroupBinding, error)
	RankBindingsByGuildAndGroup(ctx context.Context, guildID string, groupID int64) ([]bindings.RankBinding, error)
	GroupBindingsByGuildAndGroup(ctx context.Context, guildID string, groupID int64) ([]bindings.GroupBinding, error)
}
