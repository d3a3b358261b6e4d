package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/audit"
	"github.com/rankbridge/rankbridge/internal/roblox"
	"github.com/rankbridge/rankbridge/internal/rolesync"
)

type fakeGateway struct {
	membership roblox.Membership
	change     roblox.RankChange
	err        error

	promoted int
	demoted  int
	setTo    []int
}

func (g *fakeGateway) GetUserByID(context.Context, int64) (roblox.Profile, error) {
	return roblox.Profile{ID: 42, Name: "builderman"}, nil
}

func (g *fakeGateway) GetUserGroupRank(context.Context, int64, int64) (roblox.Membership, error) {
	return g.membership, nil
}

func (g *fakeGateway) Promote(context.Context, int64, int64) (roblox.RankChange, error) {
	g.promoted++
	return g.change, g.err
}

func (g *fakeGateway) Demote(context.Context, int64, int64) (roblox.RankChange, error) {
	g.demoted++
	return g.change, g.err
}

func (g *fakeGateway) SetToRankNumber(_ context.Context, _, _ int64, rank int) (roblox.RankChange, error) {
	g.setTo = append(g.setTo, rank)
	return g.change, g.err
}

func (g *fakeGateway) SetToRankName(context.Context, int64, int64, string) (roblox.RankChange, error) {
	return g.change, g.err
}

type fakeLinks struct {
	byDiscord map[string]accounts.Link
}

func (l *fakeLinks) GetByDiscordID(_ context.Context, discordID string) (accounts.Link, error) {
	if link, ok := l.byDiscord[discordID]; ok {
		return link, nil
	}
	return accounts.Link{}, accounts.ErrNotLinked
}

func (l *fakeLinks) GetByRobloxID(_ context.Context, robloxID int64) (accounts.Link, error) {
	for _, link := range l.byDiscord {
		if link.RobloxID == robloxID {
			return link, nil
		}
	}
	return accounts.Link{}, accounts.ErrNotLinked
}

type fakeAuditor struct {
	actions []string
}

func (a *fakeAuditor) RankChange(_ context.Context, action, _, _, _ string, _ int64, _, _ string) {
	a.actions = append(a.actions, action)
}

type fakeSyncer struct {
	calls  int
	err    error
	result rolesync.Result
}

func (s *fakeSyncer) SyncMember(context.Context, string, string) (rolesync.Result, error) {
	s.calls++
	return s.result, s.err
}

func newFixture(groupID int64) (*Service, *fakeGateway, *fakeAuditor, *fakeSyncer) {
	gateway := &fakeGateway{
		membership: roblox.Membership{InGroup: true, Rank: 1, RoleName: "Member"},
		change:     roblox.RankChange{OldRank: "Member", NewRank: "Officer", NewRankNumber: 10},
	}
	links := &fakeLinks{byDiscord: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	auditor := &fakeAuditor{}
	syncer := &fakeSyncer{result: rolesync.Result{UserID: "u1", RolesAdded: []string{"role-officer"}}}
	return NewService(nil, gateway, links, auditor, syncer, groupID), gateway, auditor, syncer
}

func TestPromote(t *testing.T) {
	svc, gateway, auditor, syncer := newFixture(7)

	change, err := svc.Promote(context.Background(), "guild", "mod", "u1")
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if gateway.promoted != 1 {
		t.Fatalf("promoted = %d", gateway.promoted)
	}
	if change.OldRank != "Member" || change.NewRank != "Officer" {
		t.Fatalf("change = %+v", change)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionPromotion {
		t.Fatalf("audited actions = %v", auditor.actions)
	}
	if syncer.calls != 1 {
		t.Fatalf("sync calls = %d, want the member re-synced", syncer.calls)
	}
	if change.SyncResult == nil || len(change.SyncResult.RolesAdded) != 1 {
		t.Fatalf("SyncResult = %+v", change.SyncResult)
	}
}

func TestPromoteSyncFailureDoesNotFailChange(t *testing.T) {
	svc, _, _, syncer := newFixture(7)
	syncer.err = errors.New("gateway down")

	change, err := svc.Promote(context.Background(), "guild", "mod", "u1")
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if change.SyncResult != nil {
		t.Fatalf("SyncResult = %+v, want nil on sync failure", change.SyncResult)
	}
}

func TestDemoteAudited(t *testing.T) {
	svc, gateway, auditor, _ := newFixture(7)

	if _, err := svc.Demote(context.Background(), "guild", "mod", "u1"); err != nil {
		t.Fatalf("Demote: %v", err)
	}
	if gateway.demoted != 1 {
		t.Fatalf("demoted = %d", gateway.demoted)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionDemotion {
		t.Fatalf("audited actions = %v", auditor.actions)
	}
}

func TestSetRankNumber(t *testing.T) {
	svc, gateway, auditor, _ := newFixture(7)

	if _, err := svc.SetRankNumber(context.Background(), "guild", "mod", "u1", 10); err != nil {
		t.Fatalf("SetRankNumber: %v", err)
	}
	if len(gateway.setTo) != 1 || gateway.setTo[0] != 10 {
		t.Fatalf("setTo = %v", gateway.setTo)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionSetRank {
		t.Fatalf("audited actions = %v", auditor.actions)
	}
}

func TestChangeTargetNotVerified(t *testing.T) {
	svc, _, _, _ := newFixture(7)

	_, err := svc.Promote(context.Background(), "guild", "mod", "stranger")
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("err = %v, want ErrNotVerified", err)
	}
}

func TestChangeNoGroupConfigured(t *testing.T) {
	svc, _, _, _ := newFixture(0)

	_, err := svc.Promote(context.Background(), "guild", "mod", "u1")
	if !errors.Is(err, ErrNoGroup) {
		t.Fatalf("err = %v, want ErrNoGroup", err)
	}
}

func TestRankInfo(t *testing.T) {
	svc, _, _, _ := newFixture(7)

	info, err := svc.RankInfo(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RankInfo: %v", err)
	}
	if !info.InGroup || info.Rank != 1 || info.RankName != "Member" || info.RobloxID != 42 {
		t.Fatalf("info = %+v", info)
	}
}

func TestPromoteRobloxWithoutLink(t *testing.T) {
	svc, gateway, auditor, syncer := newFixture(7)

	change, err := svc.PromoteRoblox(context.Background(), "game-server", 999)
	if err != nil {
		t.Fatalf("PromoteRoblox: %v", err)
	}
	if gateway.promoted != 1 {
		t.Fatalf("promoted = %d", gateway.promoted)
	}
	if change.RobloxUsername != "" {
		t.Fatalf("unlinked player must not resolve a username, got %q", change.RobloxUsername)
	}
	if len(auditor.actions) != 1 {
		t.Fatalf("audited actions = %v", auditor.actions)
	}
	if syncer.calls != 0 {
		t.Fatalf("sync calls = %d, unlinked player has nothing to sync", syncer.calls)
	}
}
