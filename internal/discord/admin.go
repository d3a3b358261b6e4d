package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rankbridge/rankbridge/internal/audit"
	"github.com/rankbridge/rankbridge/internal/blacklist"
	"github.com/rankbridge/rankbridge/internal/guilds"
)

func (b *Bot) handleBlacklist(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if len(data.Options) == 0 {
		return b.respondError(i, "Pick a subcommand: add, remove, or list.")
	}
	sub := data.Options[0]
	switch sub.Name {
	case "add":
		return b.blacklistAdd(ctx, i, optionMap(sub.Options))
	case "remove":
		return b.blacklistRemove(ctx, i, optionMap(sub.Options))
	case "list":
		return b.blacklistList(ctx, i)
	default:
		return b.respondError(i, "Unknown subcommand.")
	}
}

func (b *Bot) blacklistAdd(ctx context.Context, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	entry := blacklist.Entry{
		GuildID:  i.GuildID,
		BannedBy: interactionUserID(i),
	}
	if opt, ok := opts["member"]; ok {
		entry.DiscordID = opt.UserValue(b.session).ID
	}
	if opt, ok := opts["roblox"]; ok {
		entry.RobloxID = opt.IntValue()
	}
	if entry.DiscordID == "" && entry.RobloxID == 0 {
		return b.respondError(i, "Provide a member, a Roblox id, or both.")
	}
	if opt, ok := opts["reason"]; ok {
		entry.Reason = opt.StringValue()
	}
	if opt, ok := opts["days"]; ok {
		expires := time.Now().AddDate(0, 0, int(opt.IntValue()))
		entry.ExpiresAt = &expires
	}

	if err := b.blacklist.Add(ctx, entry); err != nil {
		return b.respondError(i, "Could not save the blacklist entry.")
	}
	return b.respondText(i, fmt.Sprintf("Blacklisted %s.", describeBanTarget(entry)), false)
}

func (b *Bot) blacklistRemove(ctx context.Context, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) error {
	var (
		removed bool
		err     error
		what    string
	)
	switch {
	case opts["member"] != nil:
		target := opts["member"].UserValue(b.session)
		removed, err = b.blacklist.RemoveDiscord(ctx, i.GuildID, target.ID)
		what = target.Mention()
	case opts["roblox"] != nil:
		robloxID := opts["roblox"].IntValue()
		removed, err = b.blacklist.RemoveRoblox(ctx, i.GuildID, robloxID)
		what = fmt.Sprintf("Roblox `%d`", robloxID)
	default:
		return b.respondError(i, "Provide a member or a Roblox id.")
	}
	if err != nil {
		return b.respondError(i, "Could not remove the blacklist entry.")
	}
	if !removed {
		return b.respondText(i, "No matching blacklist entry found.", true)
	}
	return b.respondText(i, fmt.Sprintf("Removed %s from the blacklist.", what), false)
}

func (b *Bot) blacklistList(ctx context.Context, i *discordgo.InteractionCreate) error {
	entries, err := b.blacklist.ListByGuild(ctx, i.GuildID)
	if err != nil {
		return b.respondError(i, "Could not load the blacklist.")
	}
	if len(entries) == 0 {
		return b.respondText(i, "The blacklist is empty.", true)
	}
	return b.respondEmbed(i, blacklistEmbed(entries), false)
}

func (b *Bot) handleConfig(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	if len(opts) == 0 {
		cfg, err := b.guilds.Get(ctx, i.GuildID)
		if err != nil {
			return b.respondError(i, "Could not load the server settings.")
		}
		return b.respondEmbed(i, guildConfigEmbed(cfg), true)
	}

	cfg, err := b.guilds.Get(ctx, i.GuildID)
	if err != nil {
		return b.respondError(i, "Could not load the server settings.")
	}
	cfg.GuildID = i.GuildID
	if opt, ok := opts["log_channel"]; ok {
		cfg.LogChannelID = opt.ChannelValue(b.session).ID
	}
	if opt, ok := opts["verification_channel"]; ok {
		cfg.VerificationChannelID = opt.ChannelValue(b.session).ID
	}
	if opt, ok := opts["welcome_message"]; ok {
		cfg.WelcomeMessage = opt.StringValue()
	}
	if opt, ok := opts["auto_sync"]; ok {
		cfg.AutoSyncEnabled = opt.BoolValue()
	}

	if err := b.guilds.Upsert(ctx, cfg); err != nil {
		return b.respondError(i, "Could not save the server settings.")
	}
	return b.respondEmbed(i, guildConfigEmbed(cfg), true)
}

func (b *Bot) handleLogs(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	limit := 0
	if opt, ok := optionMap(data.Options)["limit"]; ok {
		limit = int(opt.IntValue())
	}

	entries, err := b.audit.Recent(ctx, i.GuildID, limit)
	if err != nil {
		return b.respondError(i, "Could not load the audit log.")
	}
	if len(entries) == 0 {
		return b.respondText(i, "No actions recorded yet.", true)
	}
	return b.respondEmbed(i, auditLogEmbed(entries), true)
}

func describeBanTarget(e blacklist.Entry) string {
	var parts []string
	if e.DiscordID != "" {
		parts = append(parts, "<@"+e.DiscordID+">")
	}
	if e.RobloxID != 0 {
		parts = append(parts, fmt.Sprintf("Roblox `%d`", e.RobloxID))
	}
	out := strings.Join(parts, " and ")
	if e.ExpiresAt != nil {
		out += fmt.Sprintf(" until <t:%d:D>", e.ExpiresAt.Unix())
	}
	return out
}

func blacklistEmbed(entries []blacklist.Entry) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString("- ")
		sb.WriteString(describeBanTarget(e))
		if e.Reason != "" {
			sb.WriteString(": ")
			sb.WriteString(e.Reason)
		}
		sb.WriteString("\n")
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Blacklist (%d)", len(entries)),
		Description: sb.String(),
		Color:       colorRed,
	}
}

func guildConfigEmbed(cfg guilds.Config) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Server settings",
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Log channel", Value: mentionChannel(cfg.LogChannelID), Inline: true},
			{Name: "Verification channel", Value: mentionChannel(cfg.VerificationChannelID), Inline: true},
			{Name: "Auto sync", Value: onOff(cfg.AutoSyncEnabled), Inline: true},
			{Name: "Welcome message", Value: orUnset(cfg.WelcomeMessage), Inline: false},
		},
	}
}

func auditLogEmbed(entries []audit.Entry) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "<t:%d:R> **%s** <@%s>", e.CreatedAt.Unix(), e.ActionType, e.ActorDiscordID)
		if e.TargetDiscordID != "" && e.TargetDiscordID != e.ActorDiscordID {
			fmt.Fprintf(&sb, " on <@%s>", e.TargetDiscordID)
		}
		sb.WriteString("\n")
	}
	return &discordgo.MessageEmbed{
		Title:       "Recent actions",
		Description: sb.String(),
		Color:       colorBlue,
	}
}

func mentionChannel(id string) string {
	if id == "" {
		return "not set"
	}
	return "<#" + id + ">"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func orUnset(v string) string {
	if v == "" {
		return "not set"
	}
	return v
}
