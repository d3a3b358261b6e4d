package rolesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/bindings"
)

const progressEvery = 10

// Service runs single-member and full-guild reconciliation.
type Service struct {
	platform Platform
	gateway  Gateway
	links    LinkStore
	bindings BindingStore
	logger   *slog.Logger
}

func NewService(log *slog.Logger, platform Platform, gateway Gateway, links LinkStore, bindingStore BindingStore) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		platform: platform,
		gateway:  gateway,
		links:    links,
		bindings: bindingStore,
		logger:   log.With(slog.String("service", "rolesync")),
	}
}

// SyncMember reconciles one member across every bound group.
func (s *Service) SyncMember(ctx context.Context, guildID, userID string) (Result, error) {
	return s.SyncMemberGroup(ctx, guildID, userID, 0)
}

// SyncMemberGroup reconciles one member, optionally restricted to the
// bindings of a single Roblox group (groupID 0 means all). Role changes and
// the nickname update are independent: a nickname failure never rolls back
// applied roles.
func (s *Service) SyncMemberGroup(ctx context.Context, guildID, userID string, groupID int64) (Result, error) {
	result := Result{UserID: userID}

	link, err := s.links.GetByDiscordID(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotLinked) {
			return result, ErrNotVerified
		}
		return result, err
	}

	rankBindings, groupBindings, err := s.loadBindings(ctx, guildID, groupID)
	if err != nil {
		return result, err
	}
	if len(rankBindings) == 0 && len(groupBindings) == 0 {
		return result, ErrNoBindings
	}

	member, err := s.platform.Member(ctx, guildID, userID)
	if err != nil {
		return result, fmt.Errorf("fetch member: %w", err)
	}

	ranks, err := s.fetchRanks(ctx, link.RobloxID, rankBindings, groupBindings)
	if err != nil {
		return result, err
	}

	plan := ComputePlan(member, rankBindings, groupBindings, ranks)

	fields := TemplateFields{
		RobloxUsername: link.RobloxUsername,
		DiscordName:    displayOrUsername(member),
	}
	if user, err := s.gateway.GetUserByID(ctx, link.RobloxID); err == nil {
		fields.RobloxUsername = user.Name
		fields.DisplayName = user.DisplayName
		if user.Name != "" && user.Name != link.RobloxUsername {
			if err := s.links.UpdateUsername(ctx, userID, user.Name); err != nil {
				s.logger.Warn("stored username refresh failed",
					slog.String("user_id", userID), slog.Any("error", err))
			}
		}
	} else {
		s.logger.Warn("roblox user lookup failed, using stored username",
			slog.Int64("roblox_id", link.RobloxID), slog.Any("error", err))
		fields.DisplayName = link.RobloxUsername
	}
	if nick := ResolveNickname(plan.Matched, fields); nick != "" && nick != member.Nickname {
		plan.Nickname = nick
		plan.UpdateNick = true
	}

	return s.apply(ctx, guildID, member, plan)
}

// loadBindings reads the guild's binding tables, narrowed to one group when
// groupID is non-zero.
func (s *Service) loadBindings(ctx context.Context, guildID string, groupID int64) ([]bindings.RankBinding, []bindings.GroupBinding, error) {
	var (
		rankBindings  []bindings.RankBinding
		groupBindings []bindings.GroupBinding
		err           error
	)
	if groupID != 0 {
		rankBindings, err = s.bindings.RankBindingsByGuildAndGroup(ctx, guildID, groupID)
	} else {
		rankBindings, err = s.bindings.RankBindingsByGuild(ctx, guildID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load rank bindings: %w", err)
	}
	if groupID != 0 {
		groupBindings, err = s.bindings.GroupBindingsByGuildAndGroup(ctx, guildID, groupID)
	} else {
		groupBindings, err = s.bindings.GroupBindingsByGuild(ctx, guildID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load group bindings: %w", err)
	}
	return rankBindings, groupBindings, nil
}

// SyncGuild sweeps every member. Bots and unverified members are skipped;
// individual failures never abort the sweep. onProgress, when non-nil, is
// called every few members with (done, total).
func (s *Service) SyncGuild(ctx context.Context, guildID string, onProgress func(done, total int)) (GuildResult, error) {
	var gr GuildResult

	rankBindings, err := s.bindings.RankBindingsByGuild(ctx, guildID)
	if err != nil {
		return gr, fmt.Errorf("load rank bindings: %w", err)
	}
	groupBindings, err := s.bindings.GroupBindingsByGuild(ctx, guildID)
	if err != nil {
		return gr, fmt.Errorf("load group bindings: %w", err)
	}
	if len(rankBindings) == 0 && len(groupBindings) == 0 {
		return gr, ErrNoBindings
	}

	members, err := s.platform.Members(ctx, guildID)
	if err != nil {
		return gr, fmt.Errorf("list members: %w", err)
	}
	gr.Total = len(members)

	for i, member := range members {
		if err := ctx.Err(); err != nil {
			return gr, err
		}
		if member.IsBot {
			gr.Skipped++
			continue
		}

		result, err := s.syncOne(ctx, guildID, member, rankBindings, groupBindings)
		switch {
		case errors.Is(err, ErrNotVerified):
			gr.Skipped++
		case err != nil:
			gr.Failed++
			gr.Failures = append(gr.Failures, MemberFailure{UserID: member.UserID, Err: err})
			s.logger.Warn("member sync failed",
				slog.String("guild_id", guildID),
				slog.String("user_id", member.UserID),
				slog.Any("error", err),
			)
		default:
			gr.Synced++
			if result.Changed() {
				gr.Changed++
			}
		}

		if onProgress != nil && (i+1)%progressEvery == 0 {
			onProgress(i+1, gr.Total)
		}
	}

	s.logger.Info("guild sync finished",
		slog.String("guild_id", guildID),
		slog.Int("total", gr.Total),
		slog.Int("synced", gr.Synced),
		slog.Int("changed", gr.Changed),
		slog.Int("skipped", gr.Skipped),
		slog.Int("failed", gr.Failed),
	)
	return gr, nil
}

func (s *Service) syncOne(ctx context.Context, guildID string, member Member, rankBindings []bindings.RankBinding, groupBindings []bindings.GroupBinding) (Result, error) {
	link, err := s.links.GetByDiscordID(ctx, member.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotLinked) {
			return Result{UserID: member.UserID}, ErrNotVerified
		}
		return Result{UserID: member.UserID}, err
	}

	ranks, err := s.fetchRanks(ctx, link.RobloxID, rankBindings, groupBindings)
	if err != nil {
		return Result{UserID: member.UserID}, err
	}

	plan := ComputePlan(member, rankBindings, groupBindings, ranks)
	fields := TemplateFields{
		RobloxUsername: link.RobloxUsername,
		DisplayName:    link.RobloxUsername,
		DiscordName:    displayOrUsername(member),
	}
	if nick := ResolveNickname(plan.Matched, fields); nick != "" && nick != member.Nickname {
		plan.Nickname = nick
		plan.UpdateNick = true
	}

	return s.apply(ctx, guildID, member, plan)
}

// fetchRanks resolves the member's standing in every bound group, one query
// per distinct group. The live role name rides along so group-wide bindings
// can fill nickname templates.
func (s *Service) fetchRanks(ctx context.Context, robloxID int64, rankBindings []bindings.RankBinding, groupBindings []bindings.GroupBinding) (Ranks, error) {
	ranks := make(Ranks)
	for _, groupID := range DistinctGroups(rankBindings, groupBindings) {
		membership, err := s.gateway.GetUserGroupRank(ctx, robloxID, groupID)
		if err != nil {
			return nil, fmt.Errorf("group %d membership: %w", groupID, err)
		}
		if membership.InGroup {
			ranks[groupID] = GroupRank{Rank: membership.Rank, Name: membership.RoleName}
		}
	}
	return ranks, nil
}

// apply pushes the plan to the platform. Batched role edits are attempted
// first; on failure each role is retried individually so one bad role id
// cannot block the rest.
func (s *Service) apply(ctx context.Context, guildID string, member Member, plan Plan) (Result, error) {
	result := Result{UserID: member.UserID}
	if plan.Empty() {
		return result, nil
	}

	if len(plan.RolesToAdd) > 0 || len(plan.RolesToRemove) > 0 {
		batchErr := s.applyBatch(ctx, guildID, member.UserID, plan)
		if batchErr == nil {
			result.RolesAdded = plan.RolesToAdd
			result.RolesRemoved = plan.RolesToRemove
		} else {
			s.logger.Warn("batched role edit failed, retrying per role",
				slog.String("guild_id", guildID),
				slog.String("user_id", member.UserID),
				slog.Any("error", batchErr),
			)
			for _, roleID := range plan.RolesToAdd {
				if err := s.platform.AddRole(ctx, guildID, member.UserID, roleID); err != nil {
					result.PartialErrors = append(result.PartialErrors, fmt.Errorf("add role %s: %w", roleID, err))
					continue
				}
				result.RolesAdded = append(result.RolesAdded, roleID)
			}
			for _, roleID := range plan.RolesToRemove {
				if err := s.platform.RemoveRole(ctx, guildID, member.UserID, roleID); err != nil {
					result.PartialErrors = append(result.PartialErrors, fmt.Errorf("remove role %s: %w", roleID, err))
					continue
				}
				result.RolesRemoved = append(result.RolesRemoved, roleID)
			}
		}
	}

	if plan.UpdateNick {
		if err := s.platform.SetNickname(ctx, guildID, member.UserID, plan.Nickname); err != nil {
			result.PartialErrors = append(result.PartialErrors, fmt.Errorf("set nickname: %w", err))
		} else {
			result.NicknameSet = true
			result.Nickname = plan.Nickname
		}
	}

	if len(result.PartialErrors) > 0 && !result.Changed() {
		return result, fmt.Errorf("sync failed: %w", errors.Join(result.PartialErrors...))
	}
	return result, nil
}

func (s *Service) applyBatch(ctx context.Context, guildID, userID string, plan Plan) error {
	if len(plan.RolesToAdd) > 0 {
		if err := s.platform.AddRoles(ctx, guildID, userID, plan.RolesToAdd); err != nil {
			return err
		}
	}
	if len(plan.RolesToRemove) > 0 {
		if err := s.platform.RemoveRoles(ctx, guildID, userID, plan.RolesToRemove); err != nil {
			return err
		}
	}
	return nil
}

func displayOrUsername(m Member) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}
