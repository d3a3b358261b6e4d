// Package audit stores the append-only action log.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Action types recorded by the service.
const (
	ActionVerification = "VERIFICATION"
	ActionUnlink       = "UNLINK"
	ActionPromotion    = "PROMOTION"
	ActionDemotion     = "DEMOTION"
	ActionSetRank      = "SETRANK"
)

// Entry is one audit log row.
type Entry struct {
	ID              int64          `json:"id"`
	GuildID         string         `json:"guild_id"`
	ActionType      string         `json:"action_type"`
	ActorDiscordID  string         `json:"actor_discord_id,omitempty"`
	TargetDiscordID string         `json:"target_discord_id,omitempty"`
	TargetRobloxID  int64          `json:"target_roblox_id,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Store persists audit entries in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "audit")),
	}
}

// Record appends one entry. Failures are logged, never propagated: audit
// logging must not fail the operation being audited.
func (s *Store) Record(ctx context.Context, e Entry) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		s.logger.Warn("audit details marshal failed", slog.Any("error", err))
		payload = []byte("{}")
	}
	var robloxID any
	if e.TargetRobloxID != 0 {
		robloxID = e.TargetRobloxID
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs (guild_id, action_type, actor_discord_id, target_discord_id, target_roblox_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.GuildID, e.ActionType, e.ActorDiscordID, e.TargetDiscordID, robloxID, payload,
	)
	if err != nil {
		s.logger.Warn("audit record failed",
			slog.String("action", e.ActionType),
			slog.Any("error", err),
		)
	}
}

// Verification records a completed account link.
func (s *Store) Verification(ctx context.Context, guildID, discordID string, robloxID int64) {
	s.Record(ctx, Entry{
		GuildID:         guildID,
		ActionType:      ActionVerification,
		ActorDiscordID:  discordID,
		TargetDiscordID: discordID,
		TargetRobloxID:  robloxID,
	})
}

// Unlink records an account unlink.
func (s *Store) Unlink(ctx context.Context, guildID, discordID string, robloxID int64) {
	s.Record(ctx, Entry{
		GuildID:         guildID,
		ActionType:      ActionUnlink,
		ActorDiscordID:  discordID,
		TargetDiscordID: discordID,
		TargetRobloxID:  robloxID,
	})
}

// RankChange records a promotion, demotion, or explicit rank set.
func (s *Store) RankChange(ctx context.Context, action, guildID, actorID, targetID string, robloxID int64, oldRank, newRank string) {
	s.Record(ctx, Entry{
		GuildID:         guildID,
		ActionType:      action,
		ActorDiscordID:  actorID,
		TargetDiscordID: targetID,
		TargetRobloxID:  robloxID,
		Details: map[string]any{
			"old_rank": oldRank,
			"new_rank": newRank,
		},
	})
}

// Recent returns the newest entries for a guild.
func (s *Store) Recent(ctx context.Context, guildID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, guild_id, action_type, actor_discord_id, target_discord_id, COALESCE(target_roblox_id, 0), details, created_at
		FROM audit_logs WHERE guild_id = $1
		ORDER BY created_at DESC LIMIT $2`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.GuildID, &e.ActionType, &e.ActorDiscordID, &e.TargetDiscordID, &e.TargetRobloxID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
