package rolesync

import (
	"context"
	"errors"
	"testing"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/bindings"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

type fakeGateway struct {
	profiles    map[int64]roblox.Profile
	memberships map[int64]roblox.Membership
}

func (g *fakeGateway) GetUserByID(_ context.Context, id int64) (roblox.Profile, error) {
	if p, ok := g.profiles[id]; ok {
		return p, nil
	}
	return roblox.Profile{}, roblox.ErrUserNotFound
}

func (g *fakeGateway) GetUserGroupRank(_ context.Context, _ int64, groupID int64) (roblox.Membership, error) {
	return g.memberships[groupID], nil
}

type fakeLinks struct {
	links   map[string]accounts.Link
	renamed map[string]string
}

func (l *fakeLinks) GetByDiscordID(_ context.Context, discordID string) (accounts.Link, error) {
	if link, ok := l.links[discordID]; ok {
		return link, nil
	}
	return accounts.Link{}, accounts.ErrNotLinked
}

func (l *fakeLinks) UpdateUsername(_ context.Context, discordID, robloxUsername string) error {
	if l.renamed == nil {
		l.renamed = make(map[string]string)
	}
	l.renamed[discordID] = robloxUsername
	return nil
}

type fakeBindings struct {
	rank  []bindings.RankBinding
	group []bindings.GroupBinding
}

func (b *fakeBindings) RankBindingsByGuild(context.Context, string) ([]bindings.RankBinding, error) {
	return b.rank, nil
}

func (b *fakeBindings) GroupBindingsByGuild(context.Context, string) ([]bindings.GroupBinding, error) {
	return b.group, nil
}

func (b *fakeBindings) RankBindingsByGuildAndGroup(_ context.Context, _ string, groupID int64) ([]bindings.RankBinding, error) {
	var out []bindings.RankBinding
	for _, rb := range b.rank {
		if rb.GroupID == groupID {
			out = append(out, rb)
		}
	}
	return out, nil
}

func (b *fakeBindings) GroupBindingsByGuildAndGroup(_ context.Context, _ string, groupID int64) ([]bindings.GroupBinding, error) {
	var out []bindings.GroupBinding
	for _, gb := range b.group {
		if gb.GroupID == groupID {
			out = append(out, gb)
		}
	}
	return out, nil
}

type fakePlatform struct {
	members map[string]Member
	all     []Member

	batchErr   error
	added      []string
	removed    []string
	perAdded   []string
	perRemoved []string
	nickname   string
	nickSet    bool
}

func (p *fakePlatform) Member(_ context.Context, _, userID string) (Member, error) {
	m, ok := p.members[userID]
	if !ok {
		return Member{}, errors.New("unknown member")
	}
	return m, nil
}

func (p *fakePlatform) Members(context.Context, string) ([]Member, error) {
	return p.all, nil
}

func (p *fakePlatform) AddRoles(_ context.Context, _, _ string, roleIDs []string) error {
	if p.batchErr != nil {
		return p.batchErr
	}
	p.added = append(p.added, roleIDs...)
	return nil
}

func (p *fakePlatform) RemoveRoles(_ context.Context, _, _ string, roleIDs []string) error {
	if p.batchErr != nil {
		return p.batchErr
	}
	p.removed = append(p.removed, roleIDs...)
	return nil
}

func (p *fakePlatform) AddRole(_ context.Context, _, _, roleID string) error {
	p.perAdded = append(p.perAdded, roleID)
	return nil
}

func (p *fakePlatform) RemoveRole(_ context.Context, _, _, roleID string) error {
	p.perRemoved = append(p.perRemoved, roleID)
	return nil
}

func (p *fakePlatform) SetNickname(_ context.Context, _, _, nickname string) error {
	p.nickname = nickname
	p.nickSet = true
	return nil
}

func newTestService(platform *fakePlatform, gateway *fakeGateway, links *fakeLinks, b *fakeBindings) *Service {
	return NewService(nil, platform, gateway, links, b)
}

func TestSyncMemberNotVerified(t *testing.T) {
	svc := newTestService(&fakePlatform{}, &fakeGateway{}, &fakeLinks{}, &fakeBindings{
		rank: []bindings.RankBinding{rankBinding(1, 100, 10, "role-a", 0, "")},
	})

	_, err := svc.SyncMember(context.Background(), "guild", "u1")
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("err = %v, want ErrNotVerified", err)
	}
}

func TestSyncMemberNoBindings(t *testing.T) {
	links := &fakeLinks{links: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	svc := newTestService(&fakePlatform{}, &fakeGateway{}, links, &fakeBindings{})

	_, err := svc.SyncMember(context.Background(), "guild", "u1")
	if !errors.Is(err, ErrNoBindings) {
		t.Fatalf("err = %v, want ErrNoBindings", err)
	}
}

func TestSyncMemberAppliesPlan(t *testing.T) {
	platform := &fakePlatform{members: map[string]Member{
		"u1": {UserID: "u1", Username: "builder", RoleIDs: []string{"role-old"}},
	}}
	gateway := &fakeGateway{
		profiles: map[int64]roblox.Profile{
			42: {ID: 42, Name: "builderman", DisplayName: "Builder Man"},
		},
		memberships: map[int64]roblox.Membership{
			100: {InGroup: true, Rank: 10, RoleName: "Officer"},
		},
	}
	links := &fakeLinks{links: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	b := &fakeBindings{rank: []bindings.RankBinding{
		rankBinding(1, 100, 10, "role-officer", 0, "[{rank-name}] {roblox-username}"),
		rankBinding(2, 100, 5, "role-old", 0, ""),
	}}

	result, err := newTestService(platform, gateway, links, b).SyncMember(context.Background(), "guild", "u1")
	if err != nil {
		t.Fatalf("SyncMember: %v", err)
	}
	if len(result.RolesAdded) != 1 || result.RolesAdded[0] != "role-officer" {
		t.Errorf("RolesAdded = %v", result.RolesAdded)
	}
	if len(result.RolesRemoved) != 1 || result.RolesRemoved[0] != "role-old" {
		t.Errorf("RolesRemoved = %v", result.RolesRemoved)
	}
	if !result.NicknameSet || result.Nickname != "[Officer] builderman" {
		t.Errorf("Nickname = %q set=%v", result.Nickname, result.NicknameSet)
	}
	if platform.nickname != "[Officer] builderman" {
		t.Errorf("platform nickname = %q", platform.nickname)
	}
}

func TestSyncMemberGroupFilterLeavesOtherGroupsAlone(t *testing.T) {
	// The member lost their standing in group 100 but holds its role. A
	// sync scoped to group 200 must not strip it.
	platform := &fakePlatform{members: map[string]Member{
		"u1": {UserID: "u1", RoleIDs: []string{"role-cadet"}},
	}}
	gateway := &fakeGateway{
		memberships: map[int64]roblox.Membership{
			200: {InGroup: true, Rank: 10, RoleName: "Officer"},
		},
	}
	links := &fakeLinks{links: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	b := &fakeBindings{rank: []bindings.RankBinding{
		rankBinding(1, 100, 5, "role-cadet", 0, ""),
		rankBinding(2, 200, 10, "role-officer", 0, ""),
	}}

	result, err := newTestService(platform, gateway, links, b).SyncMemberGroup(context.Background(), "guild", "u1", 200)
	if err != nil {
		t.Fatalf("SyncMemberGroup: %v", err)
	}
	if len(result.RolesAdded) != 1 || result.RolesAdded[0] != "role-officer" {
		t.Errorf("RolesAdded = %v", result.RolesAdded)
	}
	if len(result.RolesRemoved) != 0 {
		t.Errorf("RolesRemoved = %v, want none outside the filtered group", result.RolesRemoved)
	}
}

func TestSyncMemberRefreshesStoredUsername(t *testing.T) {
	platform := &fakePlatform{members: map[string]Member{
		"u1": {UserID: "u1", RoleIDs: []string{"role-officer"}},
	}}
	gateway := &fakeGateway{
		profiles: map[int64]roblox.Profile{
			42: {ID: 42, Name: "renamedman", DisplayName: "Builder Man"},
		},
		memberships: map[int64]roblox.Membership{
			100: {InGroup: true, Rank: 10, RoleName: "Officer"},
		},
	}
	links := &fakeLinks{links: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	b := &fakeBindings{rank: []bindings.RankBinding{
		rankBinding(1, 100, 10, "role-officer", 0, ""),
	}}

	if _, err := newTestService(platform, gateway, links, b).SyncMember(context.Background(), "guild", "u1"); err != nil {
		t.Fatalf("SyncMember: %v", err)
	}
	if links.renamed["u1"] != "renamedman" {
		t.Fatalf("stored username = %q, want refreshed to renamedman", links.renamed["u1"])
	}
}

func TestSyncMemberBatchFallback(t *testing.T) {
	platform := &fakePlatform{
		members: map[string]Member{
			"u1": {UserID: "u1", RoleIDs: []string{"role-old"}},
		},
		batchErr: errors.New("missing permission"),
	}
	gateway := &fakeGateway{
		memberships: map[int64]roblox.Membership{
			100: {InGroup: true, Rank: 10, RoleName: "Officer"},
		},
	}
	links := &fakeLinks{links: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	b := &fakeBindings{rank: []bindings.RankBinding{
		rankBinding(1, 100, 10, "role-officer", 0, ""),
		rankBinding(2, 100, 5, "role-old", 0, ""),
	}}

	result, err := newTestService(platform, gateway, links, b).SyncMember(context.Background(), "guild", "u1")
	if err != nil {
		t.Fatalf("SyncMember: %v", err)
	}
	if len(platform.perAdded) != 1 || platform.perAdded[0] != "role-officer" {
		t.Errorf("per-role adds = %v", platform.perAdded)
	}
	if len(platform.perRemoved) != 1 || platform.perRemoved[0] != "role-old" {
		t.Errorf("per-role removes = %v", platform.perRemoved)
	}
	if !result.Changed() {
		t.Error("result should report changes")
	}
}

func TestSyncGuildSkipsBotsAndUnverified(t *testing.T) {
	platform := &fakePlatform{
		all: []Member{
			{UserID: "bot", IsBot: true},
			{UserID: "stranger"},
			{UserID: "u1", RoleIDs: []string{"role-officer"}},
		},
	}
	gateway := &fakeGateway{
		memberships: map[int64]roblox.Membership{
			100: {InGroup: true, Rank: 10, RoleName: "Officer"},
		},
	}
	links := &fakeLinks{links: map[string]accounts.Link{
		"u1": {DiscordID: "u1", RobloxID: 42, RobloxUsername: "builderman"},
	}}
	b := &fakeBindings{rank: []bindings.RankBinding{
		rankBinding(1, 100, 10, "role-officer", 0, ""),
	}}

	gr, err := newTestService(platform, gateway, links, b).SyncGuild(context.Background(), "guild", nil)
	if err != nil {
		t.Fatalf("SyncGuild: %v", err)
	}
	if gr.Total != 3 || gr.Synced != 1 || gr.Skipped != 2 || gr.Failed != 0 {
		t.Fatalf("GuildResult = %+v", gr)
	}
	if gr.Changed != 0 {
		t.Fatalf("converged member counted as changed: %+v", gr)
	}
}

func TestSyncGuildNoBindings(t *testing.T) {
	svc := newTestService(&fakePlatform{}, &fakeGateway{}, &fakeLinks{}, &fakeBindings{})
	_, err := svc.SyncGuild(context.Background(), "guild", nil)
	if !errors.Is(err, ErrNoBindings) {
		t.Fatalf("err = %v, want ErrNoBindings", err)
	}
}
