// Package discord hosts the bot session, slash commands, and the
// platform adapter the reconciler writes roles through.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/rankbridge/rankbridge/internal/rolesync"
)

const membersPageSize = 1000

// Client adapts a discordgo session to the rolesync.Platform surface.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewClient(log *slog.Logger, session *discordgo.Session) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		session: session,
		logger:  log.With(slog.String("service", "discord")),
	}
}

func (c *Client) Member(ctx context.Context, guildID, userID string) (rolesync.Member, error) {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return rolesync.Member{}, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return toMember(m), nil
}

// Members pages through the full member list.
func (c *Client) Members(ctx context.Context, guildID string) ([]rolesync.Member, error) {
	var out []rolesync.Member
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members after %q: %w", after, err)
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, m := range page {
			out = append(out, toMember(m))
		}
		after = page[len(page)-1].User.ID
		if len(page) < membersPageSize {
			return out, nil
		}
	}
}

// AddRoles applies a batch edit with the merged role list. Discord treats the
// edit as the member's complete role set, so the current roles are refetched
// first.
func (c *Client) AddRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	return c.editRoles(ctx, guildID, userID, roleIDs, nil)
}

func (c *Client) RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	return c.editRoles(ctx, guildID, userID, nil, roleIDs)
}

func (c *Client) editRoles(ctx context.Context, guildID, userID string, add, remove []string) error {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch member %s: %w", userID, err)
	}

	merged := make(map[string]struct{}, len(m.Roles)+len(add))
	for _, id := range m.Roles {
		merged[id] = struct{}{}
	}
	for _, id := range add {
		merged[id] = struct{}{}
	}
	for _, id := range remove {
		delete(merged, id)
	}

	roles := make([]string, 0, len(merged))
	for id := range merged {
		roles = append(roles, id)
	}
	_, err = c.session.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{
		Roles: &roles,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit roles for %s: %w", userID, err)
	}
	return nil
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s: %w", roleID, err)
	}
	return nil
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s: %w", roleID, err)
	}
	return nil
}

func (c *Client) SetNickname(ctx context.Context, guildID, userID, nickname string) error {
	if err := c.session.GuildMemberNickname(guildID, userID, nickname, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("set nickname for %s: %w", userID, err)
	}
	return nil
}

func toMember(m *discordgo.Member) rolesync.Member {
	member := rolesync.Member{
		Nickname: m.Nick,
		RoleIDs:  m.Roles,
	}
	if m.User != nil {
		member.UserID = m.User.ID
		member.Username = m.User.Username
		member.DisplayName = m.User.GlobalName
		member.IsBot = m.User.Bot
	}
	return member
}
