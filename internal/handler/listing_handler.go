package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/mealmitra/mealmitra-backend/internal/middleware"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

type ListingHandler struct {
	svc service.ListingService
}

func NewListingHandler(svc service.ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

type ListingResponse struct {
	Listing           *model.Listing `json:"listing"`
	DurabilityWarning bool           `json:"durabilityWarning,omitempty"`
}

type ListingListResponse struct {
	Listings []*model.Listing `json:"listings"`
	Total    int              `json:"total"`
}

func (h *ListingHandler) Create(c echo.Context) error {
	var req service.CreateListingInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	l, err := h.svc.Create(c.Request().Context(), actor(c), req)
	return respondListing(c, http.StatusCreated, l, err)
}

func (h *ListingHandler) Get(c echo.Context) error {
	l, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ListingResponse{Listing: l})
}

// List filters by at most one of status, donor or volunteer, in that order
// of precedence.
func (h *ListingHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	var listings []*model.Listing
	switch {
	case c.QueryParam("status") != "":
		var err error
		listings, err = h.svc.ListByStatus(ctx, model.ListingStatus(c.QueryParam("status")))
		if err != nil {
			return writeError(c, err)
		}
	case c.QueryParam("donor") != "":
		listings = h.svc.ListByDonor(ctx, c.QueryParam("donor"))
	case c.QueryParam("volunteer") != "":
		listings = h.svc.ListByVolunteer(ctx, c.QueryParam("volunteer"))
	default:
		listings = h.svc.ListAll(ctx)
	}
	if listings == nil {
		listings = []*model.Listing{}
	}
	return c.JSON(http.StatusOK, ListingListResponse{Listings: listings, Total: len(listings)})
}

func (h *ListingHandler) Accept(c echo.Context) error {
	l, err := h.svc.Accept(c.Request().Context(), c.Param("id"), actor(c))
	return respondListing(c, http.StatusOK, l, err)
}

func (h *ListingHandler) Pick(c echo.Context) error {
	l, err := h.svc.MarkPicked(c.Request().Context(), c.Param("id"), actor(c))
	return respondListing(c, http.StatusOK, l, err)
}

func (h *ListingHandler) Deliver(c echo.Context) error {
	l, err := h.svc.MarkDelivered(c.Request().Context(), c.Param("id"), actor(c))
	return respondListing(c, http.StatusOK, l, err)
}

func respondListing(c echo.Context, status int, l *model.Listing, err error) error {
	if err != nil && (l == nil || !durabilityOnly(err)) {
		return writeError(c, err)
	}
	return c.JSON(status, ListingResponse{Listing: l, DurabilityWarning: err != nil})
}

// actor is the session identity, or the zero identity on public routes.
func actor(c echo.Context) model.Identity {
	if sess, ok := appmw.Session(c); ok {
		return sess.Identity
	}
	return model.Identity{}
}
