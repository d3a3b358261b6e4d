package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rankbridge/rankbridge/internal/accounts"
	"github.com/rankbridge/rankbridge/internal/rank"
	"github.com/rankbridge/rankbridge/internal/roblox"
)

// GameHandler is the authenticated API game servers call to look up links
// and change ranks from in-game.
type GameHandler struct {
	links  *accounts.Store
	rank   *rank.Service
	logger *slog.Logger
}

func NewGameHandler(log *slog.Logger, links *accounts.Store, rankSvc *rank.Service) *GameHandler {
	return &GameHandler{
		links:  links,
		rank:   rankSvc,
		logger: log.With(slog.String("handler", "game")),
	}
}

// Register mounts the /api routes on the Echo instance.
func (h *GameHandler) Register(e *echo.Echo) {
	e.GET("/api/users", h.ListUsers)
	e.GET("/api/user/:robloxId", h.GetUser)
	e.GET("/api/user/:robloxId/rank", h.GetRank)
	e.POST("/api/promote", h.Promote)
	e.POST("/api/demote", h.Demote)
	e.POST("/api/setrank", h.SetRank)
}

type linkResponse struct {
	RobloxID       int64  `json:"roblox_id"`
	RobloxUsername string `json:"roblox_username"`
	DiscordID      string `json:"discord_id"`
	Verified       bool   `json:"verified"`
}

// ListUsers pages through all linked accounts, newest first.
func (h *GameHandler) ListUsers(c echo.Context) error {
	limit, err := parsePageParam(c.QueryParam("limit"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid limit"})
	}
	offset, err := parsePageParam(c.QueryParam("offset"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid offset"})
	}

	links, err := h.links.List(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("link list failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "lookup failed"})
	}
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, linkResponse{
			RobloxID:       l.RobloxID,
			RobloxUsername: l.RobloxUsername,
			DiscordID:      l.DiscordID,
			Verified:       true,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetUser returns the Discord link for a Roblox player, if any.
func (h *GameHandler) GetUser(c echo.Context) error {
	robloxID, err := parseRobloxID(c.Param("robloxId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid roblox id"})
	}

	link, err := h.links.GetByRobloxID(c.Request().Context(), robloxID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotLinked) {
			return c.JSON(http.StatusOK, linkResponse{RobloxID: robloxID, Verified: false})
		}
		h.logger.Error("link lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "lookup failed"})
	}
	return c.JSON(http.StatusOK, linkResponse{
		RobloxID:       link.RobloxID,
		RobloxUsername: link.RobloxUsername,
		DiscordID:      link.DiscordID,
		Verified:       true,
	})
}

// GetRank returns the player's rank in the configured group.
func (h *GameHandler) GetRank(c echo.Context) error {
	robloxID, err := parseRobloxID(c.Param("robloxId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid roblox id"})
	}

	info, err := h.rank.RankInfoRoblox(c.Request().Context(), robloxID)
	if err != nil {
		return h.rankError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

type rankRequest struct {
	RobloxID int64  `json:"roblox_id"`
	Rank     int    `json:"rank,omitempty"`
	Actor    string `json:"actor,omitempty"`
}

// Promote moves the player one rank up in the configured group.
func (h *GameHandler) Promote(c echo.Context) error {
	req, err := bindRankRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	}
	change, err := h.rank.PromoteRoblox(c.Request().Context(), req.Actor, req.RobloxID)
	if err != nil {
		return h.rankError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

// Demote moves the player one rank down in the configured group.
func (h *GameHandler) Demote(c echo.Context) error {
	req, err := bindRankRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	}
	change, err := h.rank.DemoteRoblox(c.Request().Context(), req.Actor, req.RobloxID)
	if err != nil {
		return h.rankError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

// SetRank sets the player to an exact rank number.
func (h *GameHandler) SetRank(c echo.Context) error {
	req, err := bindRankRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	}
	if req.Rank < 1 || req.Rank > 255 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "rank must be between 1 and 255"})
	}
	change, err := h.rank.SetRankRoblox(c.Request().Context(), req.Actor, req.RobloxID, req.Rank)
	if err != nil {
		return h.rankError(c, err)
	}
	return c.JSON(http.StatusOK, change)
}

func (h *GameHandler) rankError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, rank.ErrNoGroup):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "no group configured"})
	case errors.Is(err, roblox.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "roblox user not found"})
	case errors.Is(err, roblox.ErrNotInGroup):
		return c.JSON(http.StatusConflict, ErrorResponse{Message: "user is not in the group"})
	case errors.Is(err, roblox.ErrRankBoundary):
		return c.JSON(http.StatusConflict, ErrorResponse{Message: "no adjacent rank to move to"})
	case errors.Is(err, roblox.ErrRankNotFound):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "rank not found in group"})
	default:
		h.logger.Error("rank operation failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "rank operation failed"})
	}
}

func bindRankRequest(c echo.Context) (rankRequest, error) {
	var req rankRequest
	if err := c.Bind(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	if req.RobloxID <= 0 {
		return req, errors.New("roblox_id is required")
	}
	return req, nil
}

// parsePageParam reads a non-negative paging parameter, 0 when absent.
func parsePageParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid paging parameter")
	}
	return n, nil
}

func parseRobloxID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid roblox id")
	}
	return id, nil
}
