package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

type FeedbackHandler struct {
	svc service.FeedbackService
}

func NewFeedbackHandler(svc service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

type FeedbackResponse struct {
	Feedback          *model.Feedback `json:"feedback"`
	DurabilityWarning bool            `json:"durabilityWarning,omitempty"`
}

type FeedbackListResponse struct {
	Feedbacks []model.Feedback `json:"feedbacks"`
}

func (h *FeedbackHandler) Submit(c echo.Context) error {
	var req service.FeedbackInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	f, err := h.svc.Submit(c.Request().Context(), c.Param("id"), req)
	if err != nil && (f == nil || !durabilityOnly(err)) {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, FeedbackResponse{Feedback: f, DurabilityWarning: err != nil})
}

func (h *FeedbackHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return c.JSON(http.StatusOK, FeedbackListResponse{Feedbacks: h.svc.List(c.Request().Context(), limit)})
}
