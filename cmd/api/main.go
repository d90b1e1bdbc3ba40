package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mealmitra/mealmitra-backend/internal/app"
	"github.com/mealmitra/mealmitra-backend/internal/config"
	"github.com/mealmitra/mealmitra-backend/internal/estimator"
	"github.com/mealmitra/mealmitra-backend/internal/metrics"
	appmw "github.com/mealmitra/mealmitra-backend/internal/middleware"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/mealmitra/mealmitra-backend/internal/server"
	"github.com/mealmitra/mealmitra-backend/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[store] close err=%v", err)
		}
	}()

	uploader, closeUploader, err := app.OpenUploader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUploader()

	authMw, err := appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID)
	if err != nil {
		return fmt.Errorf("init firebase auth: %w", err)
	}
	if authMw == nil {
		log.Printf("[auth] FIREBASE_PROJECT_ID not set; serving without token verification")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	svc := service.New(repository.NewStateRepository(store, cfg.KeyPrefix), service.Options{
		EnforceRoles:    cfg.EnforceRoles,
		HeroThreshold:   cfg.HeroThreshold,
		LocationTimeout: cfg.LocationTimeout(),
		Rand:            rand.New(rand.NewSource(seed)),
		Metrics:         m,
	})
	seeded, err := svc.Bootstrap(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	log.Printf("[boot] driver=%s seeded=%t listings=%d", cfg.StoreDriver, seeded, len(svc.Listings.ListAll(ctx)))

	est := estimator.New(rand.New(rand.NewSource(seed+1)),
		estimator.WithDelay(cfg.EstimateDelay()),
		estimator.WithRecorder(func(kind model.Kind, rule string) { m.Estimated(string(kind), rule) }),
	)

	srv := server.New(server.Deps{
		Services:  svc,
		Estimator: est,
		Uploader:  uploader,
		Auth:      authMw,
		Gatherer:  reg,
		GitSHA:    cfg.GitSHA,
		BuildTime: cfg.BuildTime,
	})

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting server on %s", addr)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		log.Printf("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
