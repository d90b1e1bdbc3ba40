package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mealmitra/mealmitra-backend/internal/handler"
	"github.com/mealmitra/mealmitra-backend/internal/imagestore"
	appmw "github.com/mealmitra/mealmitra-backend/internal/middleware"
	"github.com/mealmitra/mealmitra-backend/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP surface is built from. Auth and
// Uploader are optional.
type Deps struct {
	Services  *service.Services
	Estimator handler.Estimator
	Uploader  imagestore.Uploader
	Auth      *appmw.AuthMiddleware
	Gatherer  prometheus.Gatherer
	GitSHA    string
	BuildTime string
}

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestID)
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", appmw.SessionHeader},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin,
	}))

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	svc := d.Services
	listingHandler := handler.NewListingHandler(svc.Listings)
	sessionHandler := handler.NewSessionHandler(svc.Sessions)
	feedbackHandler := handler.NewFeedbackHandler(svc.Feedback)
	statsHandler := handler.NewStatsHandler(svc.Stats, svc.Community)
	imageHandler := handler.NewImageHandler(d.Estimator, d.Uploader)
	sessMw := appmw.NewSessionMiddleware(svc.Sessions)

	// Firebase auth, when configured, guards everything a session guards
	// plus login itself.
	var authed []echo.MiddlewareFunc
	if d.Auth != nil {
		authed = append(authed, d.Auth.RequireAuth)
	}
	withSession := append(append([]echo.MiddlewareFunc{}, authed...), sessMw.RequireSession)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.GitSHA,
			"build_time": d.BuildTime,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/sessions", sessionHandler.Login, authed...)
	api.GET("/sessions/current", sessionHandler.Current, withSession...)
	api.PUT("/sessions/current/role", sessionHandler.SwitchRole, withSession...)
	api.DELETE("/sessions/current", sessionHandler.Logout, withSession...)
	api.POST("/sessions/current/location", sessionHandler.RefreshLocation, withSession...)

	api.POST("/estimates", imageHandler.Estimate, withSession...)
	api.POST("/images", imageHandler.Upload, withSession...)

	api.POST("/listings", listingHandler.Create, withSession...)
	api.GET("/listings", listingHandler.List)
	api.GET("/listings/:id", listingHandler.Get)
	api.POST("/listings/:id/accept", listingHandler.Accept, withSession...)
	api.POST("/listings/:id/pick", listingHandler.Pick, withSession...)
	api.POST("/listings/:id/deliver", listingHandler.Deliver, withSession...)
	api.POST("/listings/:id/feedback", feedbackHandler.Submit, withSession...)
	api.GET("/feedbacks", feedbackHandler.List)

	api.GET("/stats", statsHandler.Stats)
	api.GET("/volunteers/:id/ledger", statsHandler.Ledger)
	api.GET("/community-points", statsHandler.CommunityPoints)
	api.GET("/volunteers", statsHandler.Volunteers)

	return &Server{e: e}
}

func allowOrigin(origin string) (bool, error) {
	low := strings.ToLower(origin)
	if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
		strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
		return true, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, nil
	}
	host := u.Hostname()
	if strings.HasSuffix(host, "vercel.app") || strings.HasSuffix(host, "web.app") {
		return true, nil
	}
	return false, nil
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}
