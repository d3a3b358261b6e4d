package verify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists pending verifications in PostgreSQL.
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
		logger: log.With(slog.String("store", "verify")),
	}
}

func (s *Store) Upsert(ctx context.Context, p Pending) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_verifications (discord_id, verification_code, roblox_username, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (discord_id) DO UPDATE SET
			verification_code = EXCLUDED.verification_code,
			roblox_username = EXCLUDED.roblox_username,
			expires_at = EXCLUDED.expires_at,
			created_at = now()`,
		p.DiscordID, p.Code, p.RobloxUsername, p.ExpiresAt,
	)
	return err
}

func (s *Store) GetUnexpired(ctx context.Context, discordID string) (Pending, error) {
	var p Pending
	err := s.pool.QueryRow(ctx, `
		SELECT discord_id, verification_code, roblox_username, expires_at, created_at
		FROM pending_verifications
		WHERE discord_id = $1 AND expires_at > now()`, discordID).Scan(
		&p.DiscordID, &p.Code, &p.RobloxUsername, &p.ExpiresAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pending{}, ErrNoPending
		}
		return Pending{}, err
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, discordID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM pending_verifications WHERE discord_id = $1`, discordID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM pending_verifications WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("cleaned up expired pending verifications", slog.Int64("count", n))
		return n, nil
	}
	return 0, nil
}
