// Package roblox is the HTTP client for the Roblox Open Cloud and legacy web APIs.
package roblox

import "errors"

// Errors returned by gateway lookups.
var (
	ErrUserNotFound  = errors.New("roblox user not found")
	ErrGroupNotFound = errors.New("roblox group not found")
	ErrRankNotFound  = errors.New("rank not found in group")
	ErrRankBoundary  = errors.New("no adjacent rank to move to")
	ErrNotInGroup    = errors.New("user is not in the group")
)

// User is the minimal identity for a Roblox account.
type User struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Profile is a Roblox account profile including the bio text.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// GroupRole is one role (rank slot) within a Roblox group.
type GroupRole struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Membership describes a user's standing in one group. The zero value means
// not a member.
type Membership struct {
	InGroup  bool   `json:"inGroup"`
	Rank     int    `json:"rank"`
	RoleID   int64  `json:"roleId,omitempty"`
	RoleName string `json:"roleName,omitempty"`
}

// RankChange is the outcome of a promote/demote/set-rank mutation.
type RankChange struct {
	OldRank       string `json:"oldRank"`
	NewRank       string `json:"newRank"`
	NewRankNumber int    `json:"newRankNumber"`
}
