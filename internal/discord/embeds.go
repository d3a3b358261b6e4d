package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/bindings"
	"github.com/rankbridge/rankbridge/internal/rank"
	"github.com/rankbridge/rankbridge/internal/rolesync"
)

const (
	colorGreen = 0x43b581
	colorRed   = 0xf04747
	colorBlue  = 0x5865f2
)

func (b *Bot) respondText(i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   responseFlags(ephemeral),
		},
	})
}

func (b *Bot) respondError(i *discordgo.InteractionCreate, message string) error {
	return b.respondEmbed(i, &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	}, true)
}

func (b *Bot) respondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) error {
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  responseFlags(ephemeral),
		},
	})
}

func (b *Bot) deferResponse(i *discordgo.InteractionCreate, ephemeral bool) error {
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: responseFlags(ephemeral),
		},
	})
}

func (b *Bot) followupEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	empty := ""
	_, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &empty,
		Embeds:  &[]*discordgo.MessageEmbed{embed},
	})
	return err
}

func (b *Bot) followupError(i *discordgo.InteractionCreate, message string) error {
	return b.followupEmbed(i, &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	})
}

func responseFlags(ephemeral bool) discordgo.MessageFlags {
	if ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func whoisEmbed(target *discordgo.User, link accounts.Link) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Linked account",
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Discord", Value: target.Mention(), Inline: true},
			{
				Name:   "Roblox",
				Value:  fmt.Sprintf("[%s](https://www.roblox.com/users/%d/profile)", link.RobloxUsername, link.RobloxID),
				Inline: true,
			},
			{Name: "Verified", Value: fmt.Sprintf("<t:%d:R>", link.VerifiedAt.Unix()), Inline: true},
		},
	}
}

func syncResultEmbed(result rolesync.Result) *discordgo.MessageEmbed {
	if !result.Changed() {
		return &discordgo.MessageEmbed{
			Description: "Already up to date, nothing to change.",
			Color:       colorBlue,
		}
	}
	var lines []string
	if len(result.RolesAdded) > 0 {
		lines = append(lines, "Added: "+mentionRoles(result.RolesAdded))
	}
	if len(result.RolesRemoved) > 0 {
		lines = append(lines, "Removed: "+mentionRoles(result.RolesRemoved))
	}
	if result.NicknameSet {
		lines = append(lines, fmt.Sprintf("Nickname: `%s`", result.Nickname))
	}
	if len(result.PartialErrors) > 0 {
		lines = append(lines, fmt.Sprintf("%d change(s) could not be applied.", len(result.PartialErrors)))
	}
	return &discordgo.MessageEmbed{
		Title:       "Sync complete",
		Description: strings.Join(lines, "\n"),
		Color:       colorGreen,
	}
}

func rankChangeEmbed(title string, target *discordgo.User, change rank.Change) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("%s (**%s**): %s to **%s**", target.Mention(), change.RobloxUsername, change.OldRank, change.NewRank)
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       colorGreen,
	}
	if change.SyncResult != nil && change.SyncResult.Changed() {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Discord roles updated to match."}
	}
	return embed
}

func bindingsEmbed(rankBindings []bindings.RankBinding, groupBindings []bindings.GroupBinding) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Bindings",
		Color: colorBlue,
	}
	if len(rankBindings) > 0 {
		var sb strings.Builder
		for _, rb := range rankBindings {
			fmt.Fprintf(&sb, "Group `%d` rank **%d** (%s) -> <@&%s>", rb.GroupID, rb.Rank, rb.RankName, rb.DiscordRoleID)
			if rb.Priority != 0 {
				fmt.Fprintf(&sb, " (priority %d)", rb.Priority)
			}
			if rb.NicknameTemplate != "" {
				fmt.Fprintf(&sb, " `%s`", rb.NicknameTemplate)
			}
			sb.WriteString("\n")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Rank bindings",
			Value: sb.String(),
		})
	}
	if len(groupBindings) > 0 {
		var sb strings.Builder
		for _, gb := range groupBindings {
			fmt.Fprintf(&sb, "Group `%d` members -> <@&%s>", gb.GroupID, gb.DiscordRoleID)
			if gb.Priority != 0 {
				fmt.Fprintf(&sb, " (priority %d)", gb.Priority)
			}
			if gb.NicknameTemplate != "" {
				fmt.Fprintf(&sb, " `%s`", gb.NicknameTemplate)
			}
			sb.WriteString("\n")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Group bindings",
			Value: sb.String(),
		})
	}
	return embed
}

func mentionRoles(ids []string) string {
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = "<@&" + id + ">"
	}
	return strings.Join(mentions, " ")
}
