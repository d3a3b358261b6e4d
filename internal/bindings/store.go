package bindings

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists rank and group bindings in PostgreSQL.
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
		logger: log.With(slog.String("store", "bindings")),
	}
}

// UpsertRankBinding creates a rank binding, or updates name, priority, and
// template when the (guild, group, rank, role) tuple already exists.
func (s *Store) UpsertRankBinding(ctx context.Context, b RankBinding) (RankBinding, error) {
	if b.Rank < 0 || b.Rank > 255 {
		return RankBinding{}, ErrInvalidRank
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO role_bindings (guild_id, group_id, roblox_rank, roblox_rank_name, discord_role_id, discord_role_name, priority, nickname_template)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		ON CONFLICT (guild_id, group_id, roblox_rank, discord_role_id) DO UPDATE SET
			roblox_rank_name = EXCLUDED.roblox_rank_name,
			discord_role_name = EXCLUDED.discord_role_name,
			priority = EXCLUDED.priority,
			nickname_template = EXCLUDED.nickname_template
		RETURNING id, created_at`,
		b.GuildID, b.GroupID, b.Rank, b.RankName, b.DiscordRoleID, b.DiscordRoleName, b.Priority, b.NicknameTemplate,
	)
	if err := row.Scan(&b.ID, &b.CreatedAt); err != nil {
		return RankBinding{}, err
	}
	s.logger.Info("rank binding upserted",
		slog.String("guild_id", b.GuildID),
		slog.Int64("group_id", b.GroupID),
		slog.Int("rank", b.Rank),
		slog.String("role_id", b.DiscordRoleID),
		slog.Int("priority", b.Priority),
	)
	return b, nil
}

// DeleteRankBinding removes bindings for (guild, group, rank); a non-empty
// roleID narrows the delete to a single role. Returns the number removed.
func (s *Store) DeleteRankBinding(ctx context.Context, guildID string, groupID int64, rank int, roleID string) (int64, error) {
	if roleID != "" {
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM role_bindings
			WHERE guild_id = $1 AND group_id = $2 AND roblox_rank = $3 AND discord_role_id = $4`,
			guildID, groupID, rank, roleID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM role_bindings
		WHERE guild_id = $1 AND group_id = $2 AND roblox_rank = $3`,
		guildID, groupID, rank)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RankBindingsByGuild returns all rank bindings for a guild ordered by
// priority descending, then id.
func (s *Store) RankBindingsByGuild(ctx context.Context, guildID string) ([]RankBinding, error) {
	return s.queryRankBindings(ctx, `
		SELECT id, guild_id, group_id, roblox_rank, roblox_rank_name, discord_role_id, discord_role_name, priority, COALESCE(nickname_template, ''), created_at
		FROM role_bindings WHERE guild_id = $1
		ORDER BY priority DESC, id`, guildID)
}

// RankBindingsByGuildAndGroup returns rank bindings for one group in a guild.
func (s *Store) RankBindingsByGuildAndGroup(ctx context.Context, guildID string, groupID int64) ([]RankBinding, error) {
	return s.queryRankBindings(ctx, `
		SELECT id, guild_id, group_id, roblox_rank, roblox_rank_name, discord_role_id, discord_role_name, priority, COALESCE(nickname_template, ''), created_at
		FROM role_bindings WHERE guild_id = $1 AND group_id = $2
		ORDER BY priority DESC, id`, guildID, groupID)
}

// UpsertGroupBinding creates a group binding, or updates name, priority, and
// template when the (guild, group, role) tuple already exists.
func (s *Store) UpsertGroupBinding(ctx context.Context, b GroupBinding) (GroupBinding, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO group_bindings (guild_id, group_id, discord_role_id, discord_role_name, priority, nickname_template)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (guild_id, group_id, discord_role_id) DO UPDATE SET
			discord_role_name = EXCLUDED.discord_role_name,
			priority = EXCLUDED.priority,
			nickname_template = EXCLUDED.nickname_template
		RETURNING id, created_at`,
		b.GuildID, b.GroupID, b.DiscordRoleID, b.DiscordRoleName, b.Priority, b.NicknameTemplate,
	)
	if err := row.Scan(&b.ID, &b.CreatedAt); err != nil {
		return GroupBinding{}, err
	}
	s.logger.Info("group binding upserted",
		slog.String("guild_id", b.GuildID),
		slog.Int64("group_id", b.GroupID),
		slog.String("role_id", b.DiscordRoleID),
		slog.Int("priority", b.Priority),
	)
	return b, nil
}

// DeleteGroupBinding removes group bindings for (guild, group); a non-empty
// roleID narrows the delete to a single role. Returns the number removed.
func (s *Store) DeleteGroupBinding(ctx context.Context, guildID string, groupID int64, roleID string) (int64, error) {
	if roleID != "" {
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM group_bindings
			WHERE guild_id = $1 AND group_id = $2 AND discord_role_id = $3`,
			guildID, groupID, roleID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM group_bindings WHERE guild_id = $1 AND group_id = $2`,
		guildID, groupID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GroupBindingsByGuild returns all group bindings for a guild ordered by
// priority descending, then id.
func (s *Store) GroupBindingsByGuild(ctx context.Context, guildID string) ([]GroupBinding, error) {
	return s.queryGroupBindings(ctx, `
		SELECT id, guild_id, group_id, discord_role_id, discord_role_name, priority, COALESCE(nickname_template, ''), created_at
		FROM group_bindings WHERE guild_id = $1
		ORDER BY priority DESC, id`, guildID)
}

// GroupBindingsByGuildAndGroup returns group bindings for one group in a guild.
func (s *Store) GroupBindingsByGuildAndGroup(ctx context.Context, guildID string, groupID int64) ([]GroupBinding, error) {
	return s.queryGroupBindings(ctx, `
		SELECT id, guild_id, group_id, discord_role_id, discord_role_name, priority, COALESCE(nickname_template, ''), created_at
		FROM group_bindings WHERE guild_id = $1 AND group_id = $2
		ORDER BY priority DESC, id`, guildID, groupID)
}

// DeleteAllForGuild removes every rank and group binding for a guild.
func (s *Store) DeleteAllForGuild(ctx context.Context, guildID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM role_bindings WHERE guild_id = $1`, guildID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM group_bindings WHERE guild_id = $1`, guildID)
	return err
}

func (s *Store) queryRankBindings(ctx context.Context, query string, args ...any) ([]RankBinding, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRankBindings(rows)
}

func (s *Store) queryGroupBindings(ctx context.Context, query string, args ...any) ([]GroupBinding, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroupBindings(rows)
}

func scanRankBindings(rows pgx.Rows) ([]RankBinding, error) {
	var items []RankBinding
	for rows.Next() {
		var b RankBinding
		if err := rows.Scan(&b.ID, &b.GuildID, &b.GroupID, &b.Rank, &b.RankName, &b.DiscordRoleID, &b.DiscordRoleName, &b.Priority, &b.NicknameTemplate, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func scanGroupBindings(rows pgx.Rows) ([]GroupBinding, error) {
	var items []GroupBinding
	for rows.Next() {
		var b GroupBinding
		if err := rows.Scan(&b.ID, &b.GuildID, &b.GroupID, &b.DiscordRoleID, &b.DiscordRoleName, &b.Priority, &b.NicknameTemplate, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
