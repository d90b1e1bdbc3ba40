package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

type StatsHandler struct {
	stats     service.StatsService
	community service.CommunityService
}

func NewStatsHandler(stats service.StatsService, community service.CommunityService) *StatsHandler {
	return &StatsHandler{stats: stats, community: community}
}

type LedgerResponse struct {
	*model.Ledger
	Unlocked []string `json:"unlocked"`
}

func (h *StatsHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stats.Snapshot(c.Request().Context()))
}

func (h *StatsHandler) Ledger(c echo.Context) error {
	led, err := h.stats.Ledger(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, LedgerResponse{Ledger: led, Unlocked: led.AchievementNames()})
}

func (h *StatsHandler) CommunityPoints(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]model.CommunityPoint{"communityPoints": h.community.Points(c.Request().Context())})
}

func (h *StatsHandler) Volunteers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]model.Volunteer{"volunteers": h.community.Volunteers(c.Request().Context())})
}
