package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rankbridge/rankbridge/internal/config"
)

const (
	requestTimeout = 15 * time.Second
	retryBackoff   = 2 * time.Second
)

// Client talks to the Roblox Open Cloud API, falling back to the legacy web
// APIs when an Open Cloud path errors. All requests share one rate limiter;
// a 429 or 5xx response is retried once after a backoff.
type Client struct {
	http          *http.Client
	limiter       *rate.Limiter
	logger        *slog.Logger
	apiKey        string
	openCloudBase string
	usersBase     string
	groupsBase    string
}

func NewClient(log *slog.Logger, cfg config.RobloxConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		http:          &http.Client{Timeout: requestTimeout},
		limiter:       rate.NewLimiter(rate.Limit(rps), rps),
		logger:        log.With(slog.String("client", "roblox")),
		apiKey:        cfg.APIKey,
		openCloudBase: strings.TrimRight(cfg.OpenCloudBaseURL, "/"),
		usersBase:     strings.TrimRight(cfg.UsersAPIURL, "/"),
		groupsBase:    strings.TrimRight(cfg.GroupsAPIURL, "/"),
	}
}

// GetUserByUsername resolves a username to a user via the batch lookup endpoint.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (User, error) {
	body := map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	}
	var resp struct {
		Data []User `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.usersBase+"/v1/usernames/users", body, false, &resp); err != nil {
		return User{}, fmt.Errorf("lookup username %q: %w", username, err)
	}
	if len(resp.Data) == 0 {
		return User{}, ErrUserNotFound
	}
	return resp.Data[0], nil
}

// GetUserByID fetches a user profile including the bio text.
func (c *Client) GetUserByID(ctx context.Context, userID int64) (Profile, error) {
	var profile Profile
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/v1/users/%d", c.usersBase, userID), nil, false, &profile)
	if err != nil {
		if isNotFound(err) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("fetch user %d: %w", userID, err)
	}
	return profile, nil
}

// GetGroupRoles enumerates the roles of a group, preferring Open Cloud and
// falling back to the legacy groups API.
func (c *Client) GetGroupRoles(ctx context.Context, groupID int64) ([]GroupRole, error) {
	roles, err := c.getGroupRolesCloud(ctx, groupID)
	if err == nil {
		return roles, nil
	}
	c.logger.Debug("open cloud group roles failed, using legacy API",
		slog.Int64("group_id", groupID),
		slog.Any("error", err),
	)
	return c.getGroupRolesLegacy(ctx, groupID)
}

// GetUserGroupRank returns the user's membership standing in one group.
// A user outside the group yields Membership{InGroup: false}, not an error.
func (c *Client) GetUserGroupRank(ctx context.Context, userID, groupID int64) (Membership, error) {
	m, err := c.getMembershipCloud(ctx, userID, groupID)
	if err == nil {
		return m, nil
	}
	c.logger.Debug("open cloud membership failed, using legacy API",
		slog.Int64("user_id", userID),
		slog.Int64("group_id", groupID),
		slog.Any("error", err),
	)
	return c.getMembershipLegacy(ctx, userID, groupID)
}

// SetRank assigns a group role to a user via Open Cloud.
func (c *Client) SetRank(ctx context.Context, groupID, userID, roleID int64) error {
	endpoint := fmt.Sprintf("%s/cloud/v2/groups/%d/memberships/%d", c.openCloudBase, groupID, userID)
	body := map[string]any{
		"role": fmt.Sprintf("groups/%d/roles/%d", groupID, roleID),
	}
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, body, true, nil); err != nil {
		return fmt.Errorf("set rank for user %d in group %d: %w", userID, groupID, err)
	}
	c.logger.Info("rank set",
		slog.Int64("group_id", groupID),
		slog.Int64("user_id", userID),
		slog.Int64("role_id", roleID),
	)
	return nil
}

// Promote moves the user up one rank slot in the group.
func (c *Client) Promote(ctx context.Context, groupID, userID int64) (RankChange, error) {
	return c.step(ctx, groupID, userID, +1)
}

// Demote moves the user down one rank slot in the group. The lowest member
// rank cannot be demoted further (rank 0 is the non-member Guest slot).
func (c *Client) Demote(ctx context.Context, groupID, userID int64) (RankChange, error) {
	return c.step(ctx, groupID, userID, -1)
}

// SetToRankNumber assigns the role whose numeric rank equals rank.
func (c *Client) SetToRankNumber(ctx context.Context, groupID, userID int64, rank int) (RankChange, error) {
	roles, err := c.GetGroupRoles(ctx, groupID)
	if err != nil {
		return RankChange{}, err
	}
	var target *GroupRole
	for i := range roles {
		if roles[i].Rank == rank {
			target = &roles[i]
			break
		}
	}
	if target == nil {
		return RankChange{}, ErrRankNotFound
	}

	current, err := c.GetUserGroupRank(ctx, userID, groupID)
	if err != nil {
		return RankChange{}, err
	}
	if err := c.SetRank(ctx, groupID, userID, target.ID); err != nil {
		return RankChange{}, err
	}
	return RankChange{
		OldRank:       current.RoleName,
		NewRank:       target.Name,
		NewRankNumber: target.Rank,
	}, nil
}

// SetToRankName assigns the role whose name matches rankName, case-insensitively.
func (c *Client) SetToRankName(ctx context.Context, groupID, userID int64, rankName string) (RankChange, error) {
	roles, err := c.GetGroupRoles(ctx, groupID)
	if err != nil {
		return RankChange{}, err
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, rankName) {
			return c.SetToRankNumber(ctx, groupID, userID, role.Rank)
		}
	}
	return RankChange{}, ErrRankNotFound
}

func (c *Client) step(ctx context.Context, groupID, userID int64, direction int) (RankChange, error) {
	current, err := c.GetUserGroupRank(ctx, userID, groupID)
	if err != nil {
		return RankChange{}, err
	}
	if !current.InGroup {
		return RankChange{}, ErrNotInGroup
	}

	roles, err := c.GetGroupRoles(ctx, groupID)
	if err != nil {
		return RankChange{}, err
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Rank < roles[j].Rank })

	idx := -1
	for i, role := range roles {
		if role.Rank == current.Rank {
			idx = i
			break
		}
	}
	if idx == -1 {
		return RankChange{}, ErrRankNotFound
	}
	if direction > 0 && idx == len(roles)-1 {
		return RankChange{}, ErrRankBoundary
	}
	if direction < 0 && idx <= 1 {
		return RankChange{}, ErrRankBoundary
	}

	next := roles[idx+direction]
	if err := c.SetRank(ctx, groupID, userID, next.ID); err != nil {
		return RankChange{}, err
	}
	return RankChange{
		OldRank:       current.RoleName,
		NewRank:       next.Name,
		NewRankNumber: next.Rank,
	}, nil
}

func (c *Client) getGroupRolesCloud(ctx context.Context, groupID int64) ([]GroupRole, error) {
	endpoint := fmt.Sprintf("%s/cloud/v2/groups/%d/roles?maxPageSize=20", c.openCloudBase, groupID)
	var resp struct {
		GroupRoles []struct {
			Path        string `json:"path"`
			DisplayName string `json:"displayName"`
			Rank        int    `json:"rank"`
		} `json:"groupRoles"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, true, &resp); err != nil {
		return nil, err
	}
	roles := make([]GroupRole, 0, len(resp.GroupRoles))
	for _, role := range resp.GroupRoles {
		id, _ := strconv.ParseInt(lastPathSegment(role.Path), 10, 64)
		roles = append(roles, GroupRole{
			ID:   id,
			Name: role.DisplayName,
			Rank: role.Rank,
		})
	}
	return roles, nil
}

func (c *Client) getGroupRolesLegacy(ctx context.Context, groupID int64) ([]GroupRole, error) {
	endpoint := fmt.Sprintf("%s/v1/groups/%d/roles", c.groupsBase, groupID)
	var resp struct {
		Roles []GroupRole `json:"roles"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, false, &resp); err != nil {
		if isNotFound(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("fetch group %d roles: %w", groupID, err)
	}
	return resp.Roles, nil
}

func (c *Client) getMembershipCloud(ctx context.Context, userID, groupID int64) (Membership, error) {
	filter := url.QueryEscape(fmt.Sprintf("user == 'users/%d'", userID))
	endpoint := fmt.Sprintf("%s/cloud/v2/groups/%d/memberships?filter=%s&maxPageSize=1", c.openCloudBase, groupID, filter)
	var resp struct {
		GroupMemberships []struct {
			Role string `json:"role"`
		} `json:"groupMemberships"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, true, &resp); err != nil {
		return Membership{}, err
	}
	if len(resp.GroupMemberships) == 0 {
		return Membership{}, nil
	}

	roleID, _ := strconv.ParseInt(lastPathSegment(resp.GroupMemberships[0].Role), 10, 64)
	roles, err := c.GetGroupRoles(ctx, groupID)
	if err != nil {
		return Membership{}, err
	}
	for _, role := range roles {
		if role.ID == roleID {
			return Membership{
				InGroup:  true,
				Rank:     role.Rank,
				RoleID:   role.ID,
				RoleName: role.Name,
			}, nil
		}
	}
	return Membership{InGroup: true, RoleID: roleID}, nil
}

func (c *Client) getMembershipLegacy(ctx context.Context, userID, groupID int64) (Membership, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%d/groups/roles", c.groupsBase, userID)
	var resp struct {
		Data []struct {
			Group struct {
				ID int64 `json:"id"`
			} `json:"group"`
			Role struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
				Rank int    `json:"rank"`
			} `json:"role"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, false, &resp); err != nil {
		if isNotFound(err) {
			return Membership{}, ErrUserNotFound
		}
		return Membership{}, fmt.Errorf("fetch user %d group roles: %w", userID, err)
	}
	for _, entry := range resp.Data {
		if entry.Group.ID == groupID {
			return Membership{
				InGroup:  true,
				Rank:     entry.Role.Rank,
				RoleID:   entry.Role.ID,
				RoleName: entry.Role.Name,
			}, nil
		}
	}
	return Membership{}, nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("roblox API error %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// doJSON performs one API request, waiting on the rate limiter and retrying
// once after a backoff when the response is 429 or 5xx.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, authenticated bool, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if authenticated {
			req.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(data) == 0 {
				return nil
			}
			return json.Unmarshal(data, out)
		}

		if retryable(resp.StatusCode) && attempt == 0 {
			c.logger.Warn("roblox API retryable error",
				slog.Int("status", resp.StatusCode),
				slog.String("endpoint", endpoint),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
			continue
		}

		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
}

func lastPathSegment(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
