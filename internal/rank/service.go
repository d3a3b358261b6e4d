package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/audit"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

// Service mutates group ranks and re-syncs the affected member. A failed
// re-sync never fails the rank change; the new rank is already live on the
// group and the next sweep repairs the roles.
type Service struct {
	gateway Gateway
	links   LinkStore
	auditor Auditor
	syncer  Syncer
	groupID int64
	logger  *slog.Logger
}

func NewService(log *slog.Logger, gateway Gateway, links LinkStore, auditor Auditor, syncer Syncer, groupID int64) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gateway: gateway,
		links:   links,
		auditor: auditor,
		syncer:  syncer,
		groupID: groupID,
		logger:  log.With(slog.String("service", "rank")),
	}
}

// Promote moves the target one rank up.
func (s *Service) Promote(ctx context.Context, guildID, actorID, targetID string) (Change, error) {
	return s.change(ctx, guildID, actorID, targetID, audit.ActionPromotion, func(ctx context.Context, robloxID int64) (roblox.RankChange, error) {
		return s.gateway.Promote(ctx, s.groupID, robloxID)
	})
}

// Demote moves the target one rank down.
func (s *Service) Demote(ctx context.Context, guildID, actorID, targetID string) (Change, error) {
	return s.change(ctx, guildID, actorID, targetID, audit.ActionDemotion, func(ctx context.Context, robloxID int64) (roblox.RankChange, error) {
		return s.gateway.Demote(ctx, s.groupID, robloxID)
	})
}

// SetRankNumber sets the target to an exact rank number.
func (s *Service) SetRankNumber(ctx context.Context, guildID, actorID, targetID string, rank int) (Change, error) {
	return s.change(ctx, guildID, actorID, targetID, audit.ActionSetRank, func(ctx context.Context, robloxID int64) (roblox.RankChange, error) {
		return s.gateway.SetToRankNumber(ctx, s.groupID, robloxID, rank)
	})
}

// SetRankName sets the target to the named role.
func (s *Service) SetRankName(ctx context.Context, guildID, actorID, targetID, rankName string) (Change, error) {
	return s.change(ctx, guildID, actorID, targetID, audit.ActionSetRank, func(ctx context.Context, robloxID int64) (roblox.RankChange, error) {
		return s.gateway.SetToRankName(ctx, s.groupID, robloxID, rankName)
	})
}

// RankInfo resolves the target's current rank without mutating anything.
func (s *Service) RankInfo(ctx context.Context, targetID string) (Info, error) {
	if s.groupID == 0 {
		return Info{}, ErrNoGroup
	}
	link, err := s.resolve(ctx, targetID)
	if err != nil {
		return Info{}, err
	}
	membership, err := s.gateway.GetUserGroupRank(ctx, link.RobloxID, s.groupID)
	if err != nil {
		return Info{}, fmt.Errorf("group membership: %w", err)
	}
	return Info{
		RobloxID:       link.RobloxID,
		RobloxUsername: link.RobloxUsername,
		GroupID:        s.groupID,
		InGroup:        membership.InGroup,
		Rank:           membership.Rank,
		RankName:       membership.RoleName,
	}, nil
}

func (s *Service) change(ctx context.Context, guildID, actorID, targetID, action string, mutate func(context.Context, int64) (roblox.RankChange, error)) (Change, error) {
	if s.groupID == 0 {
		return Change{}, ErrNoGroup
	}
	link, err := s.resolve(ctx, targetID)
	if err != nil {
		return Change{}, err
	}

	rc, err := mutate(ctx, link.RobloxID)
	if err != nil {
		return Change{}, err
	}

	change := Change{
		RobloxID:       link.RobloxID,
		RobloxUsername: link.RobloxUsername,
		OldRank:        rc.OldRank,
		NewRank:        rc.NewRank,
		NewRankNumber:  rc.NewRankNumber,
	}

	s.auditor.RankChange(ctx, action, guildID, actorID, targetID, link.RobloxID, rc.OldRank, rc.NewRank)
	s.logger.Info("rank changed",
		slog.String("action", action),
		slog.String("target_id", targetID),
		slog.Int64("roblox_id", link.RobloxID),
		slog.String("old_rank", rc.OldRank),
		slog.String("new_rank", rc.NewRank),
	)

	if s.syncer != nil && guildID != "" {
		if result, err := s.syncer.SyncMember(ctx, guildID, targetID); err != nil {
			s.logger.Warn("post-rank sync failed",
				slog.String("target_id", targetID), slog.Any("error", err))
		} else {
			change.SyncResult = &result
		}
	}
	return change, nil
}

func (s *Service) resolve(ctx context.Context, targetID string) (accounts.Link, error) {
	link, err := s.links.GetByDiscordID(ctx, targetID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, accounts.ErrNotLinked) {
		return accounts.Link{}, err
	}
	return accounts.Link{}, ErrNotVerified
}

// The ByRobloxID variants serve the in-game API, which addresses players by
// Roblox id and needs no Discord link. No role sync runs here: the caller has
// no guild context, so the next guild sweep picks up the change.

func (s *Service) PromoteRoblox(ctx context.Context, actorID string, robloxID int64) (Change, error) {
	return s.changeRoblox(ctx, actorID, robloxID, audit.ActionPromotion, func(ctx context.Context) (roblox.RankChange, error) {
		return s.gateway.Promote(ctx, s.groupID, robloxID)
	})
}

func (s *Service) DemoteRoblox(ctx context.Context, actorID string, robloxID int64) (Change, error) {
	return s.changeRoblox(ctx, actorID, robloxID, audit.ActionDemotion, func(ctx context.Context) (roblox.RankChange, error) {
		return s.gateway.Demote(ctx, s.groupID, robloxID)
	})
}

func (s *Service) SetRankRoblox(ctx context.Context, actorID string, robloxID int64, rank int) (Change, error) {
	return s.changeRoblox(ctx, actorID, robloxID, audit.ActionSetRank, func(ctx context.Context) (roblox.RankChange, error) {
		return s.gateway.SetToRankNumber(ctx, s.groupID, robloxID, rank)
	})
}

// RankInfoRoblox resolves a player's rank by Roblox id.
func (s *Service) RankInfoRoblox(ctx context.Context, robloxID int64) (Info, error) {
	if s.groupID == 0 {
		return Info{}, ErrNoGroup
	}
	info := Info{RobloxID: robloxID, GroupID: s.groupID}
	if user, err := s.gateway.GetUserByID(ctx, robloxID); err == nil {
		info.RobloxUsername = user.Name
	} else if errors.Is(err, roblox.ErrUserNotFound) {
		return Info{}, err
	}
	membership, err := s.gateway.GetUserGroupRank(ctx, robloxID, s.groupID)
	if err != nil {
		return Info{}, fmt.Errorf("group membership: %w", err)
	}
	info.InGroup = membership.InGroup
	info.Rank = membership.Rank
	info.RankName = membership.RoleName
	return info, nil
}

func (s *Service) changeRoblox(ctx context.Context, actorID string, robloxID int64, action string, mutate func(context.Context) (roblox.RankChange, error)) (Change, error) {
	if s.groupID == 0 {
		return Change{}, ErrNoGroup
	}
	rc, err := mutate(ctx)
	if err != nil {
		return Change{}, err
	}

	change := Change{
		RobloxID:      robloxID,
		OldRank:       rc.OldRank,
		NewRank:       rc.NewRank,
		NewRankNumber: rc.NewRankNumber,
	}

	link, err := s.links.GetByRobloxID(ctx, robloxID)
	if err == nil {
		change.RobloxUsername = link.RobloxUsername
		s.auditor.RankChange(ctx, action, "", actorID, link.DiscordID, robloxID, rc.OldRank, rc.NewRank)
	} else {
		s.auditor.RankChange(ctx, action, "", actorID, "", robloxID, rc.OldRank, rc.NewRank)
	}

	s.logger.Info("rank changed",
		slog.String("action", action),
		slog.Int64("roblox_id", robloxID),
		slog.String("old_rank", rc.OldRank),
		slog.String("new_rank", rc.NewRank),
	)
	return change, nil
}
