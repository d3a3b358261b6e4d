package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/bindings"
	"github.com/rankbridge/rankbridge/internal/rank"
	"github.com/rankbridge/rankbridge/internal/rolesync"
	"github.com/rankbridge/rankbridge/internal/verify"
)

var (
	manageRoles = int64(discordgo.PermissionManageRoles)
	manageGuild = int64(discordgo.PermissionManageServer)
)

func commandDefinitions(oauthEnabled bool) []*discordgo.ApplicationCommand {
	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "verify",
			Description: "Link your Roblox account by placing a code in your profile bio",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "username",
				Description: "Your Roblox username",
				Required:    true,
			}},
		},
		{
			Name:        "done",
			Description: "Finish verification after adding the code to your bio",
		},
		{
			Name:        "cancel",
			Description: "Cancel your pending verification",
		},
		{
			Name:        "unlink",
			Description: "Remove the link to your Roblox account",
		},
		{
			Name:        "whois",
			Description: "Look up the Roblox account linked to a member",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "The member to look up",
				Required:    true,
			}},
		},
		{
			Name:        "update",
			Description: "Refresh your roles and nickname from your Roblox ranks",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to refresh (moderators only)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "group",
					Description: "Only refresh bindings of this Roblox group",
					Required:    false,
				},
			},
		},
		{
			Name:                     "syncall",
			Description:              "Refresh roles and nicknames for every member",
			DefaultMemberPermissions: &manageGuild,
		},
		{
			Name:                     "bind",
			Description:              "Bind a Roblox group rank to a Discord role",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "group", Description: "Roblox group id", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "rank", Description: "Rank number (0-255)", Required: true},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Discord role to grant", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "priority", Description: "Nickname priority, higher wins", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "template", Description: "Nickname template, e.g. [{rank-name}] {roblox-username}", Required: false},
			},
		},
		{
			Name:                     "unbind",
			Description:              "Remove a rank binding",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "group", Description: "Roblox group id", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "rank", Description: "Rank number", Required: true},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Only remove the binding to this role", Required: false},
			},
		},
		{
			Name:        "bindings",
			Description: "List this server's rank and group bindings",
		},
		{
			Name:                     "groupbind",
			Description:              "Bind membership of a Roblox group to a Discord role",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "group", Description: "Roblox group id", Required: true},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Discord role to grant", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "priority", Description: "Nickname priority, higher wins", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "template", Description: "Nickname template", Required: false},
			},
		},
		{
			Name:                     "groupunbind",
			Description:              "Remove a group binding",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "group", Description: "Roblox group id", Required: true},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Only remove the binding to this role", Required: false},
			},
		},
		{
			Name:                     "promote",
			Description:              "Promote a member one rank in the group",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to promote", Required: true,
			}},
		},
		{
			Name:                     "demote",
			Description:              "Demote a member one rank in the group",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to demote", Required: true,
			}},
		},
		{
			Name:                     "setrank",
			Description:              "Set a member to an exact rank in the group",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to rank", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "rank", Description: "Rank number (1-255)", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Rank name", Required: false},
			},
		},
		{
			Name:                     "blacklist",
			Description:              "Manage the server's verification blacklist",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Ban a Discord member or Roblox account from verifying",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Discord member to ban", Required: false},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "roblox", Description: "Roblox user id to ban", Required: false},
						{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Why the ban was issued", Required: false},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Days until the ban expires, permanent if omitted", Required: false},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Lift a ban",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Discord member to unban", Required: false},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "roblox", Description: "Roblox user id to unban", Required: false},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List active bans",
				},
			},
		},
		{
			Name:                     "config",
			Description:              "View or change this server's settings",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "log_channel", Description: "Channel for moderation log messages", Required: false},
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "verification_channel", Description: "Channel where new members are greeted", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "welcome_message", Description: "Message sent to unverified joiners", Required: false},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "auto_sync", Description: "Include this server in the scheduled sync", Required: false},
			},
		},
		{
			Name:                     "logs",
			Description:              "Show recent verification and ranking actions",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "How many entries to show (default 25)", Required: false,
			}},
		},
	}
	if oauthEnabled {
		cmds = append(cmds, &discordgo.ApplicationCommand{
			Name:        "login",
			Description: "Link your Roblox account through Roblox sign-in",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "reverify",
				Description: "Replace your current link with a new account",
				Required:    false,
			}},
		})
	}
	return cmds
}

type commandHandler func(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error

func (b *Bot) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		"verify":      b.handleVerify,
		"done":        b.handleDone,
		"cancel":      b.handleCancel,
		"unlink":      b.handleUnlink,
		"whois":       b.handleWhois,
		"update":      b.handleUpdate,
		"syncall":     b.handleSyncAll,
		"bind":        b.handleBind,
		"unbind":      b.handleUnbind,
		"bindings":    b.handleBindings,
		"groupbind":   b.handleGroupBind,
		"groupunbind": b.handleGroupUnbind,
		"promote":     b.handlePromote,
		"demote":      b.handleDemote,
		"setrank":     b.handleSetRank,
		"blacklist":   b.handleBlacklist,
		"config":      b.handleConfig,
		"logs":        b.handleLogs,
		"login":       b.handleLogin,
	}
}

func (b *Bot) handleVerify(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	username := opts["username"].StringValue()

	result, err := b.verify.Start(ctx, interactionUserID(i), i.GuildID, username)
	if err != nil {
		return b.respondError(i, verifyErrorMessage(err, username))
	}

	return b.respondEmbed(i, &discordgo.MessageEmbed{
		Title: "Verification started",
		Description: fmt.Sprintf(
			"Add the code below to your Roblox profile **About** section, then run `/done`.\n\n```\n%s\n```\nAccount: **%s**\nThe code expires <t:%d:R>.",
			result.Code, result.RobloxUser.Name, result.ExpiresAt.Unix(),
		),
		Color: colorBlue,
	}, true)
}

func (b *Bot) handleDone(ctx context.Context, i *discordgo.InteractionCreate, _ discordgo.ApplicationCommandInteractionData) error {
	userID := interactionUserID(i)
	pending, robloxID, err := b.verify.Complete(ctx, userID, i.GuildID)
	if err != nil {
		return b.respondError(i, verifyErrorMessage(err, ""))
	}

	if result, err := b.sync.SyncMember(ctx, i.GuildID, userID); err != nil {
		b.logger.Warn("post-verification sync failed", slog.Any("error", err))
	} else if result.Changed() {
		b.logger.Info("post-verification sync applied roles")
	}

	return b.respondEmbed(i, &discordgo.MessageEmbed{
		Title:       "Verified",
		Description: fmt.Sprintf("Your Discord account is now linked to **%s** (`%d`). You can remove the code from your bio.", pending.RobloxUsername, robloxID),
		Color:       colorGreen,
	}, true)
}

func (b *Bot) handleCancel(ctx context.Context, i *discordgo.InteractionCreate, _ discordgo.ApplicationCommandInteractionData) error {
	ok, err := b.verify.Cancel(ctx, interactionUserID(i))
	if err != nil {
		return b.respondError(i, verifyErrorMessage(err, ""))
	}
	if !ok {
		return b.respondText(i, "You have no pending verification.", true)
	}
	return b.respondText(i, "Pending verification cancelled.", true)
}

func (b *Bot) handleUnlink(ctx context.Context, i *discordgo.InteractionCreate, _ discordgo.ApplicationCommandInteractionData) error {
	username, err := b.verify.Unlink(ctx, interactionUserID(i), i.GuildID)
	if err != nil {
		return b.respondError(i, verifyErrorMessage(err, ""))
	}
	return b.respondText(i, fmt.Sprintf("Unlinked from **%s**. Managed roles are removed on the next sync.", username), true)
}

func (b *Bot) handleWhois(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	target := opts["member"].UserValue(b.session)

	link, err := b.verify.Status(ctx, target.ID)
	if err != nil {
		return b.respondError(i, "Could not look up that member.")
	}
	if link.Status != verify.StatusVerified {
		return b.respondText(i, fmt.Sprintf("%s is not verified.", target.Mention()), true)
	}

	embed := whoisEmbed(target, link.Link)
	if b.rank != nil {
		if info, err := b.rank.RankInfo(ctx, target.ID); err == nil && info.InGroup {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Group rank",
				Value:  fmt.Sprintf("%s (%d)", info.RankName, info.Rank),
				Inline: true,
			})
		}
	}
	return b.respondEmbed(i, embed, false)
}

func (b *Bot) handleUpdate(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	userID := interactionUserID(i)
	targetID := userID
	forced := false
	if opt, ok := opts["member"]; ok {
		target := opt.UserValue(b.session)
		if target.ID != userID {
			if !hasPermission(i, discordgo.PermissionManageRoles) {
				return b.respondError(i, "You need the Manage Roles permission to refresh other members.")
			}
			forced = true
		}
		targetID = target.ID
	}
	groupID := int64(0)
	if opt, ok := opts["group"]; ok {
		groupID = opt.IntValue()
	}

	if forced {
		// A moderator-forced refresh clears the target's own cooldown so
		// they are not locked out right after.
		b.cooldowns.Reset(i.GuildID, targetID)
	} else if ok, remaining := b.cooldowns.Check(i.GuildID, targetID); !ok {
		return b.respondError(i, fmt.Sprintf("You were synced recently. Try again in %s.", remaining.Round(time.Second)))
	}

	if err := b.deferResponse(i, true); err != nil {
		return err
	}
	result, err := b.sync.SyncMemberGroup(ctx, i.GuildID, targetID, groupID)
	if err != nil {
		return b.followupError(i, syncErrorMessage(err))
	}
	return b.followupEmbed(i, syncResultEmbed(result))
}

func (b *Bot) handleSyncAll(ctx context.Context, i *discordgo.InteractionCreate, _ discordgo.ApplicationCommandInteractionData) error {
	if err := b.deferResponse(i, false); err != nil {
		return err
	}

	onProgress := func(done, total int) {
		content := fmt.Sprintf("Syncing... %d/%d members processed.", done, total)
		_, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
		if err != nil {
			b.logger.Warn("progress update failed", slog.Any("error", err))
		}
	}

	gr, err := b.sync.SyncGuild(ctx, i.GuildID, onProgress)
	if err != nil {
		return b.followupError(i, syncErrorMessage(err))
	}
	return b.followupEmbed(i, &discordgo.MessageEmbed{
		Title: "Server sync complete",
		Description: fmt.Sprintf(
			"Processed **%d** members: %d synced, %d changed, %d skipped, %d failed.",
			gr.Total, gr.Synced, gr.Changed, gr.Skipped, gr.Failed,
		),
		Color: colorGreen,
	})
}

func (b *Bot) handleBind(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	groupID := opts["group"].IntValue()
	rankNum := int(opts["rank"].IntValue())
	role := opts["role"].RoleValue(b.session, i.GuildID)

	priority := 0
	if opt, ok := opts["priority"]; ok {
		priority = int(opt.IntValue())
	}
	template := ""
	if opt, ok := opts["template"]; ok {
		template = opt.StringValue()
	}

	rankName := fmt.Sprintf("Rank %d", rankNum)
	if roles, err := b.roblox.GetGroupRoles(ctx, groupID); err == nil {
		for _, r := range roles {
			if r.Rank == rankNum {
				rankName = r.Name
				break
			}
		}
	}

	_, err := b.bindings.UpsertRankBinding(ctx, bindings.RankBinding{
		GuildID:          i.GuildID,
		GroupID:          groupID,
		Rank:             rankNum,
		RankName:         rankName,
		DiscordRoleID:    role.ID,
		DiscordRoleName:  role.Name,
		Priority:         priority,
		NicknameTemplate: template,
	})
	if err != nil {
		return b.respondError(i, fmt.Sprintf("Could not save binding: %s", userFacing(err)))
	}
	return b.respondText(i, fmt.Sprintf("Bound **%s** (rank %d) in group `%d` to %s.", rankName, rankNum, groupID, role.Mention()), false)
}

func (b *Bot) handleUnbind(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	groupID := opts["group"].IntValue()
	rankNum := int(opts["rank"].IntValue())
	roleID := ""
	if opt, ok := opts["role"]; ok {
		roleID = opt.RoleValue(b.session, i.GuildID).ID
	}

	n, err := b.bindings.DeleteRankBinding(ctx, i.GuildID, groupID, rankNum, roleID)
	if err != nil {
		return b.respondError(i, "Could not remove the binding.")
	}
	if n == 0 {
		return b.respondText(i, "No matching binding found.", true)
	}
	return b.respondText(i, fmt.Sprintf("Removed %d binding(s).", n), false)
}

func (b *Bot) handleBindings(ctx context.Context, i *discordgo.InteractionCreate, _ discordgo.ApplicationCommandInteractionData) error {
	rankBindings, err := b.bindings.RankBindingsByGuild(ctx, i.GuildID)
	if err != nil {
		return b.respondError(i, "Could not load bindings.")
	}
	groupBindings, err := b.bindings.GroupBindingsByGuild(ctx, i.GuildID)
	if err != nil {
		return b.respondError(i, "Could not load bindings.")
	}
	if len(rankBindings) == 0 && len(groupBindings) == 0 {
		return b.respondText(i, "This server has no bindings. Use `/bind` or `/groupbind` to add one.", true)
	}
	return b.respondEmbed(i, bindingsEmbed(rankBindings, groupBindings), false)
}

func (b *Bot) handleGroupBind(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	groupID := opts["group"].IntValue()
	role := opts["role"].RoleValue(b.session, i.GuildID)
	priority := 0
	if opt, ok := opts["priority"]; ok {
		priority = int(opt.IntValue())
	}
	template := ""
	if opt, ok := opts["template"]; ok {
		template = opt.StringValue()
	}

	_, err := b.bindings.UpsertGroupBinding(ctx, bindings.GroupBinding{
		GuildID:          i.GuildID,
		GroupID:          groupID,
		DiscordRoleID:    role.ID,
		DiscordRoleName:  role.Name,
		Priority:         priority,
		NicknameTemplate: template,
	})
	if err != nil {
		return b.respondError(i, fmt.Sprintf("Could not save binding: %s", userFacing(err)))
	}
	return b.respondText(i, fmt.Sprintf("Bound membership of group `%d` to %s.", groupID, role.Mention()), false)
}

func (b *Bot) handleGroupUnbind(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	opts := optionMap(data.Options)
	groupID := opts["group"].IntValue()
	roleID := ""
	if opt, ok := opts["role"]; ok {
		roleID = opt.RoleValue(b.session, i.GuildID).ID
	}

	n, err := b.bindings.DeleteGroupBinding(ctx, i.GuildID, groupID, roleID)
	if err != nil {
		return b.respondError(i, "Could not remove the binding.")
	}
	if n == 0 {
		return b.respondText(i, "No matching binding found.", true)
	}
	return b.respondText(i, fmt.Sprintf("Removed %d binding(s).", n), false)
}

// checkCommandCooldown rate-limits ranking commands per invoker so a
// moderator cannot hammer the Roblox API.
func (b *Bot) checkCommandCooldown(i *discordgo.InteractionCreate) (bool, time.Duration) {
	return b.cmdCooldowns.Check(i.GuildID, interactionUserID(i))
}

func (b *Bot) handlePromote(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if ok, remaining := b.checkCommandCooldown(i); !ok {
		return b.respondError(i, fmt.Sprintf("Slow down. Try again in %s.", remaining.Round(time.Second)))
	}
	target := optionMap(data.Options)["member"].UserValue(b.session)
	if err := b.deferResponse(i, false); err != nil {
		return err
	}
	change, err := b.rank.Promote(ctx, i.GuildID, interactionUserID(i), target.ID)
	if err != nil {
		return b.followupError(i, rankErrorMessage(err))
	}
	return b.followupEmbed(i, rankChangeEmbed("Promoted", target, change))
}

func (b *Bot) handleDemote(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if ok, remaining := b.checkCommandCooldown(i); !ok {
		return b.respondError(i, fmt.Sprintf("Slow down. Try again in %s.", remaining.Round(time.Second)))
	}
	target := optionMap(data.Options)["member"].UserValue(b.session)
	if err := b.deferResponse(i, false); err != nil {
		return err
	}
	change, err := b.rank.Demote(ctx, i.GuildID, interactionUserID(i), target.ID)
	if err != nil {
		return b.followupError(i, rankErrorMessage(err))
	}
	return b.followupEmbed(i, rankChangeEmbed("Demoted", target, change))
}

func (b *Bot) handleSetRank(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if ok, remaining := b.checkCommandCooldown(i); !ok {
		return b.respondError(i, fmt.Sprintf("Slow down. Try again in %s.", remaining.Round(time.Second)))
	}
	opts := optionMap(data.Options)
	target := opts["member"].UserValue(b.session)

	rankOpt, hasRank := opts["rank"]
	nameOpt, hasName := opts["name"]
	if hasRank == hasName {
		return b.respondError(i, "Provide exactly one of `rank` or `name`.")
	}

	if err := b.deferResponse(i, false); err != nil {
		return err
	}
	var (
		change rank.Change
		err    error
	)
	if hasRank {
		change, err = b.rank.SetRankNumber(ctx, i.GuildID, interactionUserID(i), target.ID, int(rankOpt.IntValue()))
	} else {
		change, err = b.rank.SetRankName(ctx, i.GuildID, interactionUserID(i), target.ID, nameOpt.StringValue())
	}
	if err != nil {
		return b.followupError(i, rankErrorMessage(err))
	}
	return b.followupEmbed(i, rankChangeEmbed("Rank set", target, change))
}

func (b *Bot) handleLogin(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) error {
	if b.oauth == nil {
		return b.respondError(i, "Roblox sign-in is not configured on this server.")
	}
	reverify := false
	if opt, ok := optionMap(data.Options)["reverify"]; ok {
		reverify = opt.BoolValue()
	}

	url, err := b.oauth.AuthURL(ctx, interactionUserID(i), i.GuildID, reverify)
	if err != nil {
		return b.respondError(i, "Could not start the sign-in flow.")
	}
	return b.respondEmbed(i, &discordgo.MessageEmbed{
		Title:       "Sign in with Roblox",
		Description: fmt.Sprintf("[Click here to link your account](%s)\nThe link expires in 10 minutes.", url),
		Color:       colorBlue,
	}, true)
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func hasPermission(i *discordgo.InteractionCreate, perm int64) bool {
	return i.Member != nil && i.Member.Permissions&perm != 0
}

func verifyErrorMessage(err error, username string) string {
	switch {
	case errors.Is(err, verify.ErrAlreadyVerified):
		return "You are already verified. Use `/unlink` first to switch accounts."
	case errors.Is(err, verify.ErrBlacklisted):
		return "You are not allowed to verify on this server."
	case errors.Is(err, verify.ErrUserNotFound):
		if username != "" {
			return fmt.Sprintf("No Roblox user named **%s** was found.", username)
		}
		return "That Roblox user could not be found."
	case errors.Is(err, verify.ErrNoPending):
		return "You have no pending verification. Start one with `/verify`."
	case errors.Is(err, verify.ErrCodeNotFound):
		return "The code was not found in your profile bio. Save your profile and try `/done` again."
	case errors.Is(err, verify.ErrNotVerified):
		return "You are not verified."
	case errors.Is(err, accounts.ErrRobloxAlreadyLinked):
		return "That Roblox account is already linked to another Discord user."
	default:
		return "Something went wrong. Try again later."
	}
}

func syncErrorMessage(err error) string {
	switch {
	case errors.Is(err, rolesync.ErrNotVerified):
		return "That member is not verified."
	case errors.Is(err, rolesync.ErrNoBindings):
		return "This server has no bindings. Use `/bind` or `/groupbind` to add one."
	default:
		return "Sync failed. Try again later."
	}
}

func rankErrorMessage(err error) string {
	switch {
	case errors.Is(err, rank.ErrNotVerified):
		return "That member is not verified."
	case errors.Is(err, rank.ErrNoGroup):
		return "No Roblox group is configured."
	default:
		return userFacing(err)
	}
}

func userFacing(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	if msg == "" {
		return "Something went wrong."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
