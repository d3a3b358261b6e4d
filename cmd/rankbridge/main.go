package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	dbfs "github.com/rankbridge/rankbridge/db"
	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/audit"
	"github.com/rankbridge/rankbridge/internal/bindings"
	"github.com/rankbridge/rankbridge/internal/blacklist"
	"github.com/rankbridge/rankbridge/internal/config"
	"github.com/rankbridge/rankbridge/internal/db"
	"github.com/rankbridge/rankbridge/internal/discord"
	"github.com/rankbridge/rankbridge/internal/guilds"
	"github.com/rankbridge/rankbridge/internal/handlers"
	"github.com/rankbridge/rankbridge/internal/logger"
	"github.com/rankbridge/rankbridge/internal/oauth"
	"github.com/rankbridge/rankbridge/internal/rank"
	"github.com/rankbridge/rankbridge/internal/roblox"
	"github.com/rankbridge/rankbridge/internal/rolesync"
	"github.com/rankbridge/rankbridge/internal/scheduler"
	"github.com/rankbridge/rankbridge/internal/server"
	"github.com/rankbridge/rankbridge/internal/verify"
	"github.com/rankbridge/rankbridge/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func migrationsFS() (fs.FS, error) {
	return fs.Sub(dbfs.MigrationsFS, "migrations")
}

func main() {
	// `rankbridge migrate up|down|version|force N` runs migrations and exits.
	// `rankbridge token <subject> [ttl]` mints a bearer token for the game API.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrateCommand(os.Args[2:])
			return
		case "token":
			runTokenCommand(os.Args[2:])
			return
		}
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,

			provideRobloxClient,
			provideExchanger,

			accounts.NewStore,
			bindings.NewStore,
			blacklist.NewStore,
			guilds.NewStore,
			audit.NewStore,
			verify.NewStore,
			oauth.NewStore,

			provideVerifyService,
			provideOAuthService,
			provideCooldownTracker,
			provideSyncService,
			provideRankService,
			provideBot,
			providePlatform,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideOAuthHandler),
			provideServerHandler(provideGameHandler),

			provideScheduler,
			provideServer,
		),
		fx.Invoke(
			startBot,
			startScheduler,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrateCommand(args []string) {
	cfg, err := provideConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log := provideLogger(cfg)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	migFS, err := migrationsFS()
	if err != nil {
		log.Error("migrations unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.RunMigrate(log, cfg.Postgres, migFS, command, args); err != nil {
		log.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func runTokenCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rankbridge token <subject> [ttl]")
		os.Exit(1)
	}
	cfg, err := provideConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var ttl time.Duration
	if len(args) > 1 {
		ttl, err = time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid ttl: %v\n", err)
			os.Exit(1)
		}
	}

	token, err := server.IssueToken(cfg.Auth.JWTSecret, args[0], ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx := context.Background()

	migFS, err := migrationsFS()
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if err := db.RunMigrate(log, cfg.Postgres, migFS, "up", nil); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	conn, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideRobloxClient(log *slog.Logger, cfg config.Config) *roblox.Client {
	return roblox.NewClient(log, cfg.Roblox)
}

// provideExchanger returns nil when OAuth is not configured; the bot and
// handlers treat a nil OAuth service as flow disabled.
func provideExchanger(cfg config.Config) oauth.Exchanger {
	if !cfg.OAuth.Enabled() {
		return nil
	}
	return oauth.NewExchanger(cfg.OAuth)
}

func provideVerifyService(log *slog.Logger, client *roblox.Client, links *accounts.Store, pending *verify.Store, blacklistStore *blacklist.Store, auditStore *audit.Store, cfg config.Config) *verify.Service {
	return verify.NewService(log, client, links, pending, blacklistStore, auditStore,
		cfg.Verification.CodeLength,
		time.Duration(cfg.Verification.TimeoutMinutes)*time.Minute,
	)
}

func provideOAuthService(log *slog.Logger, exchanger oauth.Exchanger, states *oauth.Store, links *accounts.Store, blacklistStore *blacklist.Store, auditStore *audit.Store) *oauth.Service {
	if exchanger == nil {
		return nil
	}
	return oauth.NewService(log, exchanger, states, links, blacklistStore, auditStore)
}

func provideCooldownTracker(cfg config.Config) *rolesync.CooldownTracker {
	return rolesync.NewCooldownTracker(time.Duration(cfg.Sync.CooldownSeconds) * time.Second)
}

func providePlatform(log *slog.Logger, bot *discord.Bot) rolesync.Platform {
	return discord.NewClient(log, bot.Session())
}

func provideSyncService(log *slog.Logger, platform rolesync.Platform, client *roblox.Client, links *accounts.Store, bindingStore *bindings.Store) *rolesync.Service {
	return rolesync.NewService(log, platform, client, links, bindingStore)
}

func provideRankService(log *slog.Logger, client *roblox.Client, links *accounts.Store, auditStore *audit.Store, syncSvc *rolesync.Service, cfg config.Config) *rank.Service {
	return rank.NewService(log, client, links, auditStore, syncSvc, cfg.Roblox.DefaultGroupID)
}

func provideBot(log *slog.Logger, cfg config.Config, verifySvc *verify.Service, oauthSvc *oauth.Service, client *roblox.Client, bindingStore *bindings.Store, blacklistStore *blacklist.Store, guildStore *guilds.Store, auditStore *audit.Store, cooldowns *rolesync.CooldownTracker) (*discord.Bot, error) {
	return discord.NewBot(log, discord.BotParams{
		Config:           cfg.Discord,
		Verify:           verifySvc,
		OAuth:            oauthSvc,
		Roblox:           client,
		Bindings:         bindingStore,
		Blacklist:        blacklistStore,
		Guilds:           guildStore,
		Audit:            auditStore,
		Cooldowns:        cooldowns,
		CommandCooldowns: rolesync.NewCooldownTracker(time.Duration(cfg.Sync.CommandCooldownSeconds) * time.Second),
	})
}

func provideOAuthHandler(log *slog.Logger, oauthSvc *oauth.Service, syncSvc *rolesync.Service) *handlers.OAuthHandler {
	return handlers.NewOAuthHandler(log, oauthSvc, syncSvc)
}

func provideGameHandler(log *slog.Logger, links *accounts.Store, rankSvc *rank.Service) *handlers.GameHandler {
	return handlers.NewGameHandler(log, links, rankSvc)
}

func provideScheduler(log *slog.Logger, verifySvc *verify.Service, oauthSvc *oauth.Service, blacklistStore *blacklist.Store, cooldowns *rolesync.CooldownTracker, syncSvc *rolesync.Service, guildStore *guilds.Store, cfg config.Config) *scheduler.Scheduler {
	var oauthCleaner scheduler.Cleaner
	if oauthSvc != nil {
		oauthCleaner = oauthSvc
	}
	return scheduler.New(log, verifySvc, oauthCleaner, blacklistStore, cooldowns, syncSvc, guildStore, cfg.Sync.AutoSyncEnabled)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startBot(lc fx.Lifecycle, bot *discord.Bot, syncSvc *rolesync.Service, rankSvc *rank.Service, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			bot.SetServices(syncSvc, rankSvc)
			return bot.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return bot.Stop(ctx)
		},
	})
}

func startScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sched.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting RankBridge %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown() // shutdown the application if the server fails to start
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
