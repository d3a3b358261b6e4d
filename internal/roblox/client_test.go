package roblox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rankbridge/rankbridge/internal/config"
)

func newTestClient(ts *httptest.Server) *Client {
	return NewClient(nil, config.RobloxConfig{
		APIKey:            "test-key",
		OpenCloudBaseURL:  ts.URL,
		UsersAPIURL:       ts.URL,
		GroupsAPIURL:      ts.URL,
		RequestsPerSecond: 100,
	})
}

func TestGetUserByUsername(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/usernames/users" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"id":42,"name":"builderman","displayName":"Builder Man"}]}`)
	}))
	defer ts.Close()

	user, err := newTestClient(ts).GetUserByUsername(context.Background(), "builderman")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user.ID != 42 || user.Name != "builderman" {
		t.Fatalf("user = %+v", user)
	}
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).GetUserByUsername(context.Background(), "nobody")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestGetGroupRolesCloudPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cloud/v2/groups/7/roles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("open cloud request missing api key")
		}
		fmt.Fprint(w, `{"groupRoles":[
			{"path":"groups/7/roles/101","displayName":"Member","rank":1},
			{"path":"groups/7/roles/102","displayName":"Officer","rank":10}
		]}`)
	}))
	defer ts.Close()

	roles, err := newTestClient(ts).GetGroupRoles(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetGroupRoles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("roles = %+v", roles)
	}
	if roles[1].ID != 102 || roles[1].Name != "Officer" || roles[1].Rank != 10 {
		t.Fatalf("roles[1] = %+v", roles[1])
	}
}

func TestGetGroupRolesLegacyFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cloud/v2/groups/7/roles":
			http.Error(w, "forbidden", http.StatusForbidden)
		case "/v1/groups/7/roles":
			fmt.Fprint(w, `{"roles":[{"id":101,"name":"Member","rank":1}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	roles, err := newTestClient(ts).GetGroupRoles(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetGroupRoles: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "Member" {
		t.Fatalf("roles = %+v", roles)
	}
}

func TestGetUserGroupRankNotInGroup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"groupMemberships":[]}`)
	}))
	defer ts.Close()

	m, err := newTestClient(ts).GetUserGroupRank(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("GetUserGroupRank: %v", err)
	}
	if m.InGroup {
		t.Fatalf("membership = %+v, want not in group", m)
	}
}

func TestGetUserGroupRankResolvesRole(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cloud/v2/groups/7/memberships":
			fmt.Fprint(w, `{"groupMemberships":[{"role":"groups/7/roles/102"}]}`)
		case "/cloud/v2/groups/7/roles":
			fmt.Fprint(w, `{"groupRoles":[{"path":"groups/7/roles/102","displayName":"Officer","rank":10}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	m, err := newTestClient(ts).GetUserGroupRank(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("GetUserGroupRank: %v", err)
	}
	if !m.InGroup || m.Rank != 10 || m.RoleName != "Officer" {
		t.Fatalf("membership = %+v", m)
	}
}

func TestGetUserGroupRankLegacyFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cloud/v2/groups/7/memberships":
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case "/v1/users/42/groups/roles":
			fmt.Fprint(w, `{"data":[
				{"group":{"id":9},"role":{"id":5,"name":"Other","rank":3}},
				{"group":{"id":7},"role":{"id":102,"name":"Officer","rank":10}}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	m, err := newTestClient(ts).GetUserGroupRank(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("GetUserGroupRank: %v", err)
	}
	if !m.InGroup || m.Rank != 10 || m.RoleName != "Officer" {
		t.Fatalf("membership = %+v", m)
	}
}

func TestDoJSONRetriesOnServerError(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "be right back", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id":42,"name":"builderman","displayName":"Builder Man","description":"bio"}`)
	}))
	defer ts.Close()

	profile, err := newTestClient(ts).GetUserByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if profile.Description != "bio" {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestPromoteAtTopRank(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cloud/v2/groups/7/memberships":
			fmt.Fprint(w, `{"groupMemberships":[{"role":"groups/7/roles/103"}]}`)
		case "/cloud/v2/groups/7/roles":
			fmt.Fprint(w, `{"groupRoles":[
				{"path":"groups/7/roles/100","displayName":"Guest","rank":0},
				{"path":"groups/7/roles/101","displayName":"Member","rank":1},
				{"path":"groups/7/roles/103","displayName":"Owner","rank":255}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	_, err := newTestClient(ts).Promote(context.Background(), 7, 42)
	if !errors.Is(err, ErrRankBoundary) {
		t.Fatalf("err = %v, want ErrRankBoundary", err)
	}
}

func TestDemoteAtLowestMemberRank(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cloud/v2/groups/7/memberships":
			fmt.Fprint(w, `{"groupMemberships":[{"role":"groups/7/roles/101"}]}`)
		case "/cloud/v2/groups/7/roles":
			fmt.Fprint(w, `{"groupRoles":[
				{"path":"groups/7/roles/100","displayName":"Guest","rank":0},
				{"path":"groups/7/roles/101","displayName":"Member","rank":1},
				{"path":"groups/7/roles/103","displayName":"Owner","rank":255}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	// demoting the lowest member rank would land on Guest, which is not a
	// real membership
	_, err := newTestClient(ts).Demote(context.Background(), 7, 42)
	if !errors.Is(err, ErrRankBoundary) {
		t.Fatalf("err = %v, want ErrRankBoundary", err)
	}
}

func TestSetToRankNumber(t *testing.T) {
	var patched bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cloud/v2/groups/7/roles":
			fmt.Fprint(w, `{"groupRoles":[
				{"path":"groups/7/roles/101","displayName":"Member","rank":1},
				{"path":"groups/7/roles/102","displayName":"Officer","rank":10}
			]}`)
		case r.URL.Path == "/cloud/v2/groups/7/memberships" && r.Method == http.MethodGet:
			fmt.Fprint(w, `{"groupMemberships":[{"role":"groups/7/roles/101"}]}`)
		case r.URL.Path == "/cloud/v2/groups/7/memberships/42" && r.Method == http.MethodPatch:
			patched = true
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	change, err := newTestClient(ts).SetToRankNumber(context.Background(), 7, 42, 10)
	if err != nil {
		t.Fatalf("SetToRankNumber: %v", err)
	}
	if !patched {
		t.Fatal("membership PATCH never sent")
	}
	if change.OldRank != "Member" || change.NewRank != "Officer" || change.NewRankNumber != 10 {
		t.Fatalf("change = %+v", change)
	}
}

func TestSetToRankNumberUnknownRank(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"groupRoles":[{"path":"groups/7/roles/101","displayName":"Member","rank":1}]}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).SetToRankNumber(context.Background(), 7, 42, 99)
	if !errors.Is(err, ErrRankNotFound) {
		t.Fatalf("err = %v, want ErrRankNotFound", err)
	}
}
