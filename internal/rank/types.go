// Package rank changes Roblox group ranks on behalf of Discord moderators.
package rank

import (
	"context"
	"errors"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/roblox"
	"github.com/rankbridge/rankbridge/internal/rolesync"
)

var (
	ErrNotVerified = errors.New("target member has no linked account")
	ErrNoGroup     = errors.New("no group is configured for this guild")
)

// Info is the resolved rank of a member in the configured group.
type Info struct {
	RobloxID       int64  `json:"roblox_id"`
	RobloxUsername string `json:"roblox_username"`
	GroupID        int64  `json:"group_id"`
	InGroup        bool   `json:"in_group"`
	Rank           int    `json:"rank"`
	RankName       string `json:"rank_name"`
}

// Change is the outcome of a rank mutation plus the follow-up role sync.
type Change struct {
	RobloxID       int64            `json:"roblox_id"`
	RobloxUsername string           `json:"roblox_username"`
	OldRank        string           `json:"old_rank"`
	NewRank        string           `json:"new_rank"`
	NewRankNumber  int              `json:"new_rank_number"`
	SyncResult     *rolesync.Result `json:"sync_result,omitempty"`
}

// Gateway is the subset of the Roblox client rank changes need.
type Gateway interface {
	GetUserByID(ctx context.Context, id int64) (roblox.Profile, error)
	GetUserGroupRank(ctx context.Context, userID, groupID int64) (roblox.Membership, error)
	Promote(ctx context.Context, groupID, userID int64) (roblox.RankChange, error)
	Demote(ctx context.Context, groupID, userID int64) (roblox.RankChange, error)
	SetToRankNumber(ctx context.Context, groupID, userID int64, rank int) (roblox.RankChange, error)
	SetToRankName(ctx context.Context, groupID, userID int64, rankName string) (roblox.RankChange, error)
}

// LinkStore resolves Discord users to Roblox identities.
type LinkStore interface {
	GetByDiscordID(ctx context.Context, discordID string) (accounts.Link, error)
	GetByRobloxID(ctx context.Context, robloxID int64) (accounts.Link, error)
}

// Auditor records rank mutations.
type Auditor interface {
	RankChange(ctx context.Context, action, guildID, actorID, targetID string, robloxID int64, oldRank, newRank string)
}

// Syncer re-reconciles a member after their rank moved.
type Syncer interface {
	SyncMember(ctx context.Context, guildID, userID string) (rolesync.Result, error)
}
