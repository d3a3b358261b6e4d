package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/rankbridge/rankbridge/internal/audit"
	"github.com/rankbridge/rankbridge/internal/bindings"
	"github.com/rankbridge/rankbridge/internal/blacklist"
	"github.com/rankbridge/rankbridge/internal/config"
	"github.com/rankbridge/rankbridge/internal/guilds"
	"github.com/rankbridge/rankbridge/internal/oauth"
	"github.com/rankbridge/rankbridge/internal/rank"
	"github.com/rankbridge/rankbridge/internal/roblox"
	"github.com/rankbridge/rankbridge/internal/rolesync"
	"github.com/rankbridge/rankbridge/internal/verify"
)

// Bot wires the gateway session to the linking and reconciliation services.
type Bot struct {
	session   *discordgo.Session
	cfg       config.DiscordConfig
	verify    *verify.Service
	oauth     *oauth.Service
	sync      *rolesync.Service
	rank      *rank.Service
	roblox    *roblox.Client
	bindings  *bindings.Store
	blacklist *blacklist.Store
	guilds    *guilds.Store
	audit     *audit.Store
	cooldowns *rolesync.CooldownTracker
	// cmdCooldowns rate-limits ranking commands per invoker, separately
	// from the member sync cooldown.
	cmdCooldowns *rolesync.CooldownTracker

	logger *slog.Logger

	registered []*discordgo.ApplicationCommand
}

type BotParams struct {
	Config           config.DiscordConfig
	Verify           *verify.Service
	OAuth            *oauth.Service
	Sync             *rolesync.Service
	Rank             *rank.Service
	Roblox           *roblox.Client
	Bindings         *bindings.Store
	Blacklist        *blacklist.Store
	Guilds           *guilds.Store
	Audit            *audit.Store
	Cooldowns        *rolesync.CooldownTracker
	CommandCooldowns *rolesync.CooldownTracker
}

func NewBot(log *slog.Logger, p BotParams) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	session, err := discordgo.New("Bot " + p.Config.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Bot{
		session:      session,
		cfg:          p.Config,
		verify:       p.Verify,
		oauth:        p.OAuth,
		sync:         p.Sync,
		rank:         p.Rank,
		roblox:       p.Roblox,
		bindings:     p.Bindings,
		blacklist:    p.Blacklist,
		guilds:       p.Guilds,
		audit:        p.Audit,
		cooldowns:    p.Cooldowns,
		cmdCooldowns: p.CommandCooldowns,
		logger:       log.With(slog.String("service", "bot")),
	}, nil
}

// Session exposes the underlying gateway session for the platform adapter.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// SetServices wires the sync and rank services after construction. Both
// depend on the session, so they cannot be passed to NewBot.
func (b *Bot) SetServices(syncSvc *rolesync.Service, rankSvc *rank.Service) {
	b.sync = syncSvc
	b.rank = rankSvc
}

func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onGuildMemberAdd)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	cmds, err := b.session.ApplicationCommandBulkOverwrite(b.cfg.ApplicationID, b.cfg.GuildID, commandDefinitions(b.oauth != nil))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.registered = cmds
	b.logger.Info("slash commands registered", slog.Int("count", len(cmds)))
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready",
		slog.String("username", r.User.Username),
		slog.Int("guilds", len(r.Guilds)),
	)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	ctx := context.Background()
	log := b.logger.With(
		slog.String("command", data.Name),
		slog.String("guild_id", i.GuildID),
		slog.String("user_id", interactionUserID(i)),
	)
	log.Info("command invoked")

	handler, ok := b.commandHandlers()[data.Name]
	if !ok {
		log.Warn("unknown command")
		return
	}
	if err := handler(ctx, i, data); err != nil {
		log.Error("command failed", slog.Any("error", err))
	}
}

// onGuildMemberAdd syncs returning members so rejoining never strips their
// linked state, and greets unverified ones.
func (b *Bot) onGuildMemberAdd(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.User == nil || e.User.Bot {
		return
	}
	ctx := context.Background()

	result, err := b.sync.SyncMember(ctx, e.GuildID, e.User.ID)
	if err == nil {
		if result.Changed() {
			b.logger.Info("synced member on join",
				slog.String("guild_id", e.GuildID),
				slog.String("user_id", e.User.ID),
			)
		}
		return
	}

	cfg, cfgErr := b.guilds.Get(ctx, e.GuildID)
	if cfgErr != nil || cfg.WelcomeMessage == "" || cfg.VerificationChannelID == "" {
		return
	}
	if _, err := s.ChannelMessageSend(cfg.VerificationChannelID, fmt.Sprintf("%s %s", e.User.Mention(), cfg.WelcomeMessage)); err != nil {
		b.logger.Warn("welcome message failed", slog.Any("error", err))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
