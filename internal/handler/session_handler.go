package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/mealmitra/mealmitra-backend/internal/middleware"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

type SessionHandler struct {
	svc service.SessionService
}

func NewSessionHandler(svc service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type LoginRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type SwitchRoleRequest struct {
	Role model.Role `json:"role"`
}

// LocationRequest carries a fix taken by the client. Omitting latitude or
// longitude records the location as unavailable.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
}

var errNoFix = errors.New("no position supplied")

type noFix struct{}

func (noFix) Locate(context.Context) (model.Location, error) {
	return model.Location{}, errNoFix
}

func (h *SessionHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	uid, _ := c.Get("uid").(string)
	sess, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, req.Role, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *SessionHandler) Current(c echo.Context) error {
	sess, ok := appmw.Session(c)
	if !ok {
		return writeError(c, service.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) SwitchRole(c echo.Context) error {
	var req SwitchRoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	sess, err := h.svc.SwitchRole(c.Request().Context(), c.Request().Header.Get(appmw.SessionHeader), req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), c.Request().Header.Get(appmw.SessionHeader)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) RefreshLocation(c echo.Context) error {
	var req LocationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	var provider service.LocationProvider = noFix{}
	if req.Latitude != nil && req.Longitude != nil {
		provider = service.StaticLocation{Latitude: *req.Latitude, Longitude: *req.Longitude, Accuracy: req.Accuracy}
	}
	sess, err := h.svc.RefreshLocation(c.Request().Context(), c.Request().Header.Get(appmw.SessionHeader), provider)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}
