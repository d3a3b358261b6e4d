package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

// codeAlphabet excludes characters that read ambiguously in a profile bio
// (0/O and 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultCodeLength = 8
	defaultTimeout    = 10 * time.Minute
)

// Service drives the bio-code linking state machine:
// unlinked -> pending(code) -> linked, with pending expiring back to unlinked.
type Service struct {
	gateway   Gateway
	links     LinkStore
	pending   PendingStore
	blacklist BlacklistChecker
	audit     Auditor
	logger    *slog.Logger

	codeLength int
	timeout    time.Duration
}

func NewService(log *slog.Logger, gateway Gateway, links LinkStore, pending PendingStore, blacklist BlacklistChecker, audit Auditor, codeLength int, timeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if codeLength <= 0 {
		codeLength = defaultCodeLength
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		gateway:    gateway,
		links:      links,
		pending:    pending,
		blacklist:  blacklist,
		audit:      audit,
		logger:     log.With(slog.String("service", "verify")),
		codeLength: codeLength,
		timeout:    timeout,
	}
}

// Start issues a challenge for discordID claiming robloxUsername. Re-invoking
// overwrites any previous challenge for the same Discord user.
func (s *Service) Start(ctx context.Context, discordID, guildID, robloxUsername string) (StartResult, error) {
	if _, err := s.links.GetByDiscordID(ctx, discordID); err == nil {
		return StartResult{}, ErrAlreadyVerified
	}

	banned, err := s.blacklist.IsBlacklistedDiscord(ctx, guildID, discordID)
	if err != nil {
		return StartResult{}, fmt.Errorf("blacklist check: %w", err)
	}
	if banned {
		return StartResult{}, ErrBlacklisted
	}

	user, err := s.gateway.GetUserByUsername(ctx, strings.TrimSpace(robloxUsername))
	if err != nil {
		if isUserNotFound(err) {
			return StartResult{}, ErrUserNotFound
		}
		return StartResult{}, fmt.Errorf("resolve username: %w", err)
	}

	banned, err = s.blacklist.IsBlacklistedRoblox(ctx, guildID, user.ID)
	if err != nil {
		return StartResult{}, fmt.Errorf("blacklist check: %w", err)
	}
	if banned {
		return StartResult{}, ErrBlacklisted
	}

	if existing, err := s.links.GetByRobloxID(ctx, user.ID); err == nil && existing.DiscordID != discordID {
		return StartResult{}, accounts.ErrRobloxAlreadyLinked
	}

	code, err := s.generateCode()
	if err != nil {
		return StartResult{}, err
	}
	expiresAt := time.Now().UTC().Add(s.timeout)
	if err := s.pending.Upsert(ctx, Pending{
		DiscordID:      discordID,
		Code:           code,
		RobloxUsername: user.Name,
		ExpiresAt:      expiresAt,
	}); err != nil {
		return StartResult{}, fmt.Errorf("store pending verification: %w", err)
	}

	s.logger.Info("verification started",
		slog.String("discord_id", discordID),
		slog.String("roblox_username", user.Name),
	)
	return StartResult{
		Code:       code,
		RobloxUser: user,
		ExpiresAt:  expiresAt,
	}, nil
}

// Complete checks the claimed account's bio for the issued code and writes the
// identity link on a match. Failure paths (ErrNoPending, ErrUserNotFound,
// ErrCodeNotFound) leave the pending challenge untouched so the caller can
// retry without re-issuing.
func (s *Service) Complete(ctx context.Context, discordID, guildID string) (Pending, int64, error) {
	pending, err := s.pending.GetUnexpired(ctx, discordID)
	if err != nil {
		return Pending{}, 0, err
	}

	user, err := s.gateway.GetUserByUsername(ctx, pending.RobloxUsername)
	if err != nil {
		if isUserNotFound(err) {
			return pending, 0, ErrUserNotFound
		}
		return pending, 0, fmt.Errorf("resolve username: %w", err)
	}

	profile, err := s.gateway.GetUserByID(ctx, user.ID)
	if err != nil {
		return pending, 0, fmt.Errorf("fetch profile: %w", err)
	}
	if !strings.Contains(profile.Description, pending.Code) {
		return pending, 0, ErrCodeNotFound
	}

	if err := s.links.Link(ctx, discordID, user.ID, profile.Name); err != nil {
		return pending, 0, fmt.Errorf("write link: %w", err)
	}
	s.audit.Verification(ctx, guildID, discordID, user.ID)
	if _, err := s.pending.Delete(ctx, discordID); err != nil {
		s.logger.Warn("delete pending verification failed",
			slog.String("discord_id", discordID),
			slog.Any("error", err),
		)
	}

	s.logger.Info("verification completed",
		slog.String("discord_id", discordID),
		slog.Int64("roblox_id", user.ID),
	)
	return pending, user.ID, nil
}

// Cancel discards the pending challenge, if any.
func (s *Service) Cancel(ctx context.Context, discordID string) (bool, error) {
	return s.pending.Delete(ctx, discordID)
}

// Unlink removes the identity link for discordID.
func (s *Service) Unlink(ctx context.Context, discordID, guildID string) (string, error) {
	existing, err := s.links.GetByDiscordID(ctx, discordID)
	if err != nil {
		return "", ErrNotVerified
	}
	if err := s.links.Unlink(ctx, discordID); err != nil {
		return "", err
	}
	s.audit.Unlink(ctx, guildID, discordID, existing.RobloxID)
	return existing.RobloxUsername, nil
}

// Status reports where discordID sits in the linking state machine.
func (s *Service) Status(ctx context.Context, discordID string) (State, error) {
	if link, err := s.links.GetByDiscordID(ctx, discordID); err == nil {
		return State{Status: StatusVerified, Link: link}, nil
	}
	pending, err := s.pending.GetUnexpired(ctx, discordID)
	if err == nil {
		return State{Status: StatusPending, Pending: pending}, nil
	}
	if !errors.Is(err, ErrNoPending) {
		return State{}, err
	}
	return State{Status: StatusUnverified}, nil
}

// CleanupExpired reclaims expired pending challenges.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.pending.DeleteExpired(ctx)
}

func (s *Service) generateCode() (string, error) {
	buf := make([]byte, s.codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

func isUserNotFound(err error) bool {
	return errors.Is(err, roblox.ErrUserNotFound)
}
