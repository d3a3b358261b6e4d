package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rankbridge/rankbridge/internal/db"
)

// Store persists identity links in PostgreSQL.
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
		logger: log.With(slog.String("store", "accounts")),
	}
}

// Link writes the identity link for discordID, replacing any previous link for
// the same Discord user. A different Discord user holding the same Roblox
// account surfaces as ErrRobloxAlreadyLinked.
func (s *Store) Link(ctx context.Context, discordID string, robloxID int64, robloxUsername string) error {
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return errors.New("discord id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO linked_accounts (discord_id, roblox_id, roblox_username)
		VALUES ($1, $2, $3)
		ON CONFLICT (discord_id) DO UPDATE SET
			roblox_id = EXCLUDED.roblox_id,
			roblox_username = EXCLUDED.roblox_username,
			updated_at = now()`,
		discordID, robloxID, robloxUsername,
	)
	if err != nil {
		if db.UniqueConstraint(err) == "linked_accounts_roblox_id_unique" {
			return ErrRobloxAlreadyLinked
		}
		return err
	}
	s.logger.Info("account linked",
		slog.String("discord_id", discordID),
		slog.Int64("roblox_id", robloxID),
	)
	return nil
}

// Unlink removes the link for discordID. Returns ErrNotLinked when no link exists.
func (s *Store) Unlink(ctx context.Context, discordID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM linked_accounts WHERE discord_id = $1`, discordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotLinked
	}
	s.logger.Info("account unlinked", slog.String("discord_id", discordID))
	return nil
}

// GetByDiscordID returns the link for a Discord user, or ErrNotLinked.
func (s *Store) GetByDiscordID(ctx context.Context, discordID string) (Link, error) {
	return s.get(ctx, `
		SELECT discord_id, roblox_id, roblox_username, verified_at, updated_at
		FROM linked_accounts WHERE discord_id = $1`, discordID)
}

// GetByRobloxID returns the link holding a Roblox account, or ErrNotLinked.
func (s *Store) GetByRobloxID(ctx context.Context, robloxID int64) (Link, error) {
	return s.get(ctx, `
		SELECT discord_id, roblox_id, roblox_username, verified_at, updated_at
		FROM linked_accounts WHERE roblox_id = $1`, robloxID)
}

// UpdateUsername refreshes the cached Roblox username for a linked Discord user.
func (s *Store) UpdateUsername(ctx context.Context, discordID, robloxUsername string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE linked_accounts SET roblox_username = $2, updated_at = now()
		WHERE discord_id = $1`, discordID, robloxUsername)
	return err
}

// List returns links ordered by verification time, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Link, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT discord_id, roblox_id, roblox_username, verified_at, updated_at
		FROM linked_accounts ORDER BY verified_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.DiscordID, &l.RobloxID, &l.RobloxUsername, &l.VerifiedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) get(ctx context.Context, query string, arg any) (Link, error) {
	var l Link
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&l.DiscordID, &l.RobloxID, &l.RobloxUsername, &l.VerifiedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, ErrNotLinked
		}
		return Link{}, err
	}
	return l, nil
}
