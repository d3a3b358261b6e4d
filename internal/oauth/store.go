package oauth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists OAuth states in PostgreSQL.
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
		logger: log.With(slog.String("store", "oauth")),
	}
}

func (s *Store) Upsert(ctx context.Context, rec StateRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oauth_states (state, discord_id, guild_id, is_reverify, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (discord_id) DO UPDATE SET
			state = EXCLUDED.state,
			guild_id = EXCLUDED.guild_id,
			is_reverify = EXCLUDED.is_reverify,
			expires_at = EXCLUDED.expires_at,
			created_at = now()`,
		rec.State, rec.DiscordID, rec.GuildID, rec.IsReverify, rec.ExpiresAt,
	)
	return err
}

func (s *Store) GetUnexpired(ctx context.Context, state string) (StateRecord, error) {
	var rec StateRecord
	err := s.pool.QueryRow(ctx, `
		SELECT state, discord_id, guild_id, is_reverify, expires_at, created_at
		FROM oauth_states
		WHERE state = $1 AND expires_at > now()`, state).Scan(
		&rec.State, &rec.DiscordID, &rec.GuildID, &rec.IsReverify, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StateRecord{}, ErrInvalidState
		}
		return StateRecord{}, err
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, state string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM oauth_states WHERE state = $1`, state)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM oauth_states WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("cleaned up expired oauth states", slog.Int64("count", n))
		return n, nil
	}
	return 0, nil
}
