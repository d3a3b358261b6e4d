// Package blacklist stores per-guild verification bans for Discord and Roblox identities.
package blacklist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is a verification ban for a Discord user, a Roblox account, or both.
// A nil ExpiresAt means the ban is permanent.
type Entry struct {
	ID        int64      `json:"id"`
	GuildID   string     `json:"guild_id"`
	DiscordID string     `json:"discord_id,omitempty"`
	RobloxID  int64      `json:"roblox_id,omitempty"`
	Reason    string     `json:"reason"`
	BannedBy  string     `json:"banned_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Store persists blacklist entries in PostgreSQL.
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
		logger: log.With(slog.String("store", "blacklist")),
	}
}

// Add upserts a blacklist entry keyed by (guild, discord user).
func (s *Store) Add(ctx context.Context, e Entry) error {
	var robloxID any
	if e.RobloxID != 0 {
		robloxID = e.RobloxID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blacklist (guild_id, discord_id, roblox_id, reason, banned_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guild_id, discord_id) DO UPDATE SET
			roblox_id = EXCLUDED.roblox_id,
			reason = EXCLUDED.reason,
			banned_by = EXCLUDED.banned_by,
			expires_at = EXCLUDED.expires_at`,
		e.GuildID, e.DiscordID, robloxID, e.Reason, e.BannedBy, e.ExpiresAt,
	)
	if err != nil {
		return err
	}
	s.logger.Info("blacklist entry added",
		slog.String("guild_id", e.GuildID),
		slog.String("discord_id", e.DiscordID),
		slog.Int64("roblox_id", e.RobloxID),
	)
	return nil
}

// RemoveDiscord deletes the entry for a Discord user in a guild.
func (s *Store) RemoveDiscord(ctx context.Context, guildID, discordID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM blacklist WHERE guild_id = $1 AND discord_id = $2`, guildID, discordID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveRoblox deletes entries holding a Roblox account in a guild.
func (s *Store) RemoveRoblox(ctx context.Context, guildID string, robloxID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM blacklist WHERE guild_id = $1 AND roblox_id = $2`, guildID, robloxID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IsBlacklistedDiscord reports whether a Discord user holds an unexpired ban.
// Expiry is lazy-checked: expired rows read as absent.
func (s *Store) IsBlacklistedDiscord(ctx context.Context, guildID, discordID string) (bool, error) {
	return s.exists(ctx, `
		SELECT 1 FROM blacklist
		WHERE guild_id = $1 AND discord_id = $2
		AND (expires_at IS NULL OR expires_at > now())`, guildID, discordID)
}

// IsBlacklistedRoblox reports whether a Roblox account holds an unexpired ban.
func (s *Store) IsBlacklistedRoblox(ctx context.Context, guildID string, robloxID int64) (bool, error) {
	return s.exists(ctx, `
		SELECT 1 FROM blacklist
		WHERE guild_id = $1 AND roblox_id = $2
		AND (expires_at IS NULL OR expires_at > now())`, guildID, robloxID)
}

// ListByGuild returns all entries for a guild, newest first.
func (s *Store) ListByGuild(ctx context.Context, guildID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, guild_id, COALESCE(discord_id, ''), COALESCE(roblox_id, 0), reason, banned_by, expires_at, created_at
		FROM blacklist WHERE guild_id = $1 ORDER BY created_at DESC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.GuildID, &e.DiscordID, &e.RobloxID, &e.Reason, &e.BannedBy, &e.ExpiresAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeExpired eagerly deletes expired entries and returns the number removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM blacklist WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("purged expired blacklist entries", slog.Int64("count", n))
		return n, nil
	}
	return 0, nil
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
