package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rankbridge/rankbridge/internal/accounts"
)

const stateTTL = 10 * time.Minute

// Service drives the OAuth2 linking state machine. State tokens are
// single-use: every terminal callback outcome deletes the state record.
type Service struct {
	exchanger Exchanger
	states    StateStore
	links     LinkStore
	blacklist BlacklistChecker
	audit     Auditor
	logger    *slog.Logger
}

func NewService(log *slog.Logger, exchanger Exchanger, states StateStore, links LinkStore, blacklist BlacklistChecker, audit Auditor) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		exchanger: exchanger,
		states:    states,
		links:     links,
		blacklist: blacklist,
		audit:     audit,
		logger:    log.With(slog.String("service", "oauth")),
	}
}

// AuthURL issues a state token for discordID and returns the authorization
// URL. Re-invoking overwrites the previous state so one Discord user never has
// two live authorizations.
func (s *Service) AuthURL(ctx context.Context, discordID, guildID string, isReverify bool) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	if err := s.states.Upsert(ctx, StateRecord{
		State:      state,
		DiscordID:  discordID,
		GuildID:    guildID,
		IsReverify: isReverify,
		ExpiresAt:  time.Now().UTC().Add(stateTTL),
	}); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	s.logger.Info("oauth authorization issued",
		slog.String("discord_id", discordID),
		slog.Bool("reverify", isReverify),
	)
	return s.exchanger.AuthCodeURL(state), nil
}

// HandleCallback validates the state, exchanges the code, and writes the
// identity link. The state record is deleted on every terminal outcome.
func (s *Service) HandleCallback(ctx context.Context, code, state string) (CallbackResult, error) {
	rec, err := s.states.GetUnexpired(ctx, state)
	if err != nil {
		return CallbackResult{}, err
	}
	// From here on the state is consumed regardless of outcome.
	defer func() {
		if _, err := s.states.Delete(ctx, state); err != nil {
			s.logger.Warn("delete oauth state failed", slog.Any("error", err))
		}
	}()

	result := CallbackResult{DiscordID: rec.DiscordID, GuildID: rec.GuildID}

	banned, err := s.blacklist.IsBlacklistedDiscord(ctx, rec.GuildID, rec.DiscordID)
	if err != nil {
		return result, fmt.Errorf("blacklist check: %w", err)
	}
	if banned {
		return result, ErrBlacklisted
	}

	info, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return result, err
	}
	robloxID, err := strconv.ParseInt(info.Sub, 10, 64)
	if err != nil {
		return result, fmt.Errorf("%w: bad subject %q", ErrUserinfo, info.Sub)
	}
	username := info.PreferredUsername
	if username == "" {
		username = info.Name
	}
	if username == "" {
		username = "User" + info.Sub
	}
	result.RobloxID = robloxID
	result.RobloxUsername = username
	result.DisplayName = info.Nickname
	if result.DisplayName == "" {
		result.DisplayName = username
	}

	banned, err = s.blacklist.IsBlacklistedRoblox(ctx, rec.GuildID, robloxID)
	if err != nil {
		return result, fmt.Errorf("blacklist check: %w", err)
	}
	if banned {
		return result, ErrBlacklisted
	}

	if existing, err := s.links.GetByRobloxID(ctx, robloxID); err == nil && existing.DiscordID != rec.DiscordID {
		return result, accounts.ErrRobloxAlreadyLinked
	}

	if rec.IsReverify {
		// Remove the prior link first so a failed write below never leaves
		// two links for one Discord user.
		if existing, err := s.links.GetByDiscordID(ctx, rec.DiscordID); err == nil {
			if err := s.links.Unlink(ctx, rec.DiscordID); err != nil {
				return result, fmt.Errorf("unlink previous account: %w", err)
			}
			s.audit.Unlink(ctx, rec.GuildID, rec.DiscordID, existing.RobloxID)
		}
	} else if _, err := s.links.GetByDiscordID(ctx, rec.DiscordID); err == nil {
		return result, ErrAlreadyVerified
	} else if !errors.Is(err, accounts.ErrNotLinked) {
		return result, err
	}

	if err := s.links.Link(ctx, rec.DiscordID, robloxID, username); err != nil {
		return result, fmt.Errorf("write link: %w", err)
	}
	s.audit.Verification(ctx, rec.GuildID, rec.DiscordID, robloxID)

	s.logger.Info("oauth verification completed",
		slog.String("discord_id", rec.DiscordID),
		slog.Int64("roblox_id", robloxID),
	)
	return result, nil
}

// CleanupExpired reclaims expired state records.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.states.DeleteExpired(ctx)
}
