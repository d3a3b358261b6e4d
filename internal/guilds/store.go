// Package guilds stores per-guild configuration.
package guilds

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the per-guild settings row. A guild without a row behaves as the
// zero value with AutoSyncEnabled true.
type Config struct {
	GuildID               string    `json:"guild_id"`
	LogChannelID          string    `json:"log_channel_id,omitempty"`
	VerificationChannelID string    `json:"verification_channel_id,omitempty"`
	WelcomeMessage        string    `json:"welcome_message,omitempty"`
	AutoSyncEnabled       bool      `json:"auto_sync_enabled"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Store persists guild configuration in PostgreSQL.
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
		logger: log.With(slog.String("store", "guilds")),
	}
}

// Upsert writes the config row for a guild.
func (s *Store) Upsert(ctx context.Context, cfg Config) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO guild_configs (guild_id, log_channel_id, verification_channel_id, welcome_message, auto_sync_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO UPDATE SET
			log_channel_id = EXCLUDED.log_channel_id,
			verification_channel_id = EXCLUDED.verification_channel_id,
			welcome_message = EXCLUDED.welcome_message,
			auto_sync_enabled = EXCLUDED.auto_sync_enabled,
			updated_at = now()`,
		cfg.GuildID, cfg.LogChannelID, cfg.VerificationChannelID, cfg.WelcomeMessage, cfg.AutoSyncEnabled,
	)
	return err
}

// Get returns the config for a guild, or the default config when no row exists.
func (s *Store) Get(ctx context.Context, guildID string) (Config, error) {
	var cfg Config
	err := s.pool.QueryRow(ctx, `
		SELECT guild_id, log_channel_id, verification_channel_id, welcome_message, auto_sync_enabled, created_at, updated_at
		FROM guild_configs WHERE guild_id = $1`, guildID).Scan(
		&cfg.GuildID, &cfg.LogChannelID, &cfg.VerificationChannelID, &cfg.WelcomeMessage, &cfg.AutoSyncEnabled, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{GuildID: guildID, AutoSyncEnabled: true}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// ListAutoSync returns guild ids with auto-sync enabled.
func (s *Store) ListAutoSync(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT guild_id FROM guild_configs WHERE auto_sync_enabled`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
