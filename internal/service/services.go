package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/metrics"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/mealmitra/mealmitra-backend/internal/seed"
)

type Options struct {
	EnforceRoles    bool
	HeroThreshold   int
	LocationTimeout time.Duration
	Rand            *rand.Rand
	Now             func() time.Time
	Metrics         *metrics.Metrics
	ListingOptions  []ListingOption
}

// Services bundles the core components wired to one StateRepository.
type Services struct {
	State     repository.StateRepository
	Listings  ListingService
	Stats     StatsService
	Community CommunityService
	Feedback  FeedbackService
	Sessions  SessionService
}

func New(state repository.StateRepository, opts Options) *Services {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Now().UnixNano()))
	}
	if opts.HeroThreshold < 1 {
		opts.HeroThreshold = 10
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = 12 * time.Second
	}

	stats := NewStatsService(state, opts.Metrics, DefaultAchievements(opts.HeroThreshold), opts.Now)
	community := NewCommunityService(state, opts.Metrics, opts.Rand)
	listingOpts := append([]ListingOption{WithClock(opts.Now)}, opts.ListingOptions...)
	listings := NewListingService(state, stats, community, RolePolicy{Enforce: opts.EnforceRoles}, opts.Metrics, listingOpts...)
	return &Services{
		State:     state,
		Listings:  listings,
		Stats:     stats,
		Community: community,
		Feedback:  NewFeedbackService(state, listings, stats, opts.Metrics, opts.Now),
		Sessions:  NewSessionService(stats, opts.LocationTimeout, opts.Now),
	}
}

// Bootstrap seeds the demo dataset when no listings are stored, then loads
// every component. Stats are loaded last since they derive from the rest.
func (s *Services) Bootstrap(ctx context.Context, now time.Time) (seeded bool, err error) {
	listings, _, err := s.State.LoadListings(ctx)
	if err != nil {
		return false, fmt.Errorf("load listings: %w", err)
	}
	if len(listings) == 0 {
		if err := Seed(ctx, s.State, now); err != nil {
			return false, err
		}
		seeded = true
	}
	if err := s.Listings.Load(ctx); err != nil {
		return seeded, fmt.Errorf("load listings: %w", err)
	}
	if err := s.Community.Load(ctx); err != nil {
		return seeded, fmt.Errorf("load community: %w", err)
	}
	if err := s.Feedback.Load(ctx); err != nil {
		return seeded, fmt.Errorf("load feedbacks: %w", err)
	}
	if err := s.Stats.Load(ctx, s.Listings.ListAll(ctx), s.Feedback.List(ctx, 0)); err != nil {
		return seeded, fmt.Errorf("load stats: %w", err)
	}
	return seeded, nil
}

// Seed overwrites every collection with the demo dataset. The stats blob is
// reset to empty so the next load rebuilds it from the seeded listings.
func Seed(ctx context.Context, state repository.StateRepository, now time.Time) error {
	ds, err := seed.Demo(now)
	if err != nil {
		return err
	}
	if err := state.SaveListings(ctx, ds.Listings); err != nil {
		return err
	}
	if err := state.SaveCommunityPoints(ctx, ds.CommunityPoints); err != nil {
		return err
	}
	if err := state.SaveVolunteers(ctx, ds.Volunteers); err != nil {
		return err
	}
	if err := state.SaveFeedbacks(ctx, ds.Feedbacks); err != nil {
		return err
	}
	if err := state.SaveStats(ctx, nil); err != nil {
		return err
	}
	log.Printf("[seed] rid=%s listings=%d points=%d volunteers=%d feedbacks=%d",
		logctx.RID(ctx), len(ds.Listings), len(ds.CommunityPoints), len(ds.Volunteers), len(ds.Feedbacks))
	return nil
}
