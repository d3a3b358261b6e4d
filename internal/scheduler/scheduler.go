// Package scheduler runs the recurring maintenance jobs: expired
// verification cleanup, cooldown sweeps, blacklist purges, and the periodic
// guild-wide role sync.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rankbridge/rankbridge/internal/blacklist"
	"github.com/rankbridge/rankbridge/internal/guilds"
	"github.com/rankbridge/rankbridge/internal/rolesync"
)

const autoSyncTimeout = 30 * time.Minute

// Cleaner reclaims expired rows and reports how many were removed.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron      *cron.Cron
	verify    Cleaner
	oauth     Cleaner
	blacklist *blacklist.Store
	cooldowns *rolesync.CooldownTracker
	sync      *rolesync.Service
	guilds    *guilds.Store
	autoSync  bool
	logger    *slog.Logger
}

func New(log *slog.Logger, verifyCleaner, oauthCleaner Cleaner, blacklistStore *blacklist.Store, cooldowns *rolesync.CooldownTracker, syncSvc *rolesync.Service, guildStore *guilds.Store, autoSync bool) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		verify:    verifyCleaner,
		oauth:     oauthCleaner,
		blacklist: blacklistStore,
		cooldowns: cooldowns,
		sync:      syncSvc,
		guilds:    guildStore,
		autoSync:  autoSync,
		logger:    log.With(slog.String("service", "scheduler")),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		{"@every 5m", "verification cleanup", s.cleanupVerifications},
		{"@every 10m", "cooldown sweep", s.sweepCooldowns},
		{"@daily", "blacklist purge", s.purgeBlacklist},
	}
	if s.autoSync {
		jobs = append(jobs, struct {
			spec string
			name string
			run  func()
		}{"@every 6h", "auto sync", s.runAutoSync})
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return err
		}
		s.logger.Info("job scheduled", slog.String("job", job.name), slog.String("spec", job.spec))
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	return nil
}

// cleanupVerifications reclaims expired bio-code and OAuth attempts.
func (s *Scheduler) cleanupVerifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if n, err := s.verify.CleanupExpired(ctx); err != nil {
		s.logger.Error("verification cleanup failed", slog.Any("error", err))
	} else if n > 0 {
		s.logger.Info("expired verifications removed", slog.Int64("count", n))
	}
	if s.oauth == nil {
		return
	}
	if n, err := s.oauth.CleanupExpired(ctx); err != nil {
		s.logger.Error("oauth state cleanup failed", slog.Any("error", err))
	} else if n > 0 {
		s.logger.Info("expired oauth states removed", slog.Int64("count", n))
	}
}

func (s *Scheduler) sweepCooldowns() {
	if n := s.cooldowns.Sweep(); n > 0 {
		s.logger.Debug("cooldowns swept", slog.Int("count", n))
	}
}

func (s *Scheduler) purgeBlacklist() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if n, err := s.blacklist.PurgeExpired(ctx); err != nil {
		s.logger.Error("blacklist purge failed", slog.Any("error", err))
	} else if n > 0 {
		s.logger.Info("expired blacklist entries removed", slog.Int64("count", n))
	}
}

// runAutoSync sweeps every guild that has automatic syncing enabled.
func (s *Scheduler) runAutoSync() {
	ctx, cancel := context.WithTimeout(context.Background(), autoSyncTimeout)
	defer cancel()

	guildIDs, err := s.guilds.ListAutoSync(ctx)
	if err != nil {
		s.logger.Error("auto sync guild listing failed", slog.Any("error", err))
		return
	}
	for _, guildID := range guildIDs {
		gr, err := s.sync.SyncGuild(ctx, guildID, nil)
		if err != nil {
			s.logger.Error("auto sync failed",
				slog.String("guild_id", guildID), slog.Any("error", err))
			continue
		}
		s.logger.Info("auto sync finished",
			slog.String("guild_id", guildID),
			slog.Int("total", gr.Total),
			slog.Int("changed", gr.Changed),
			slog.Int("failed", gr.Failed),
		)
	}
}
