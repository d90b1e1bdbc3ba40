package service

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/metrics"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
)

type VolunteerAction string

const (
	ActionAccept  VolunteerAction = "accept"
	ActionPick    VolunteerAction = "pick"
	ActionDeliver VolunteerAction = "deliver"
)

// Ledger point table.
const (
	PointsAccept            = 10
	PointsPick              = 20
	PointsDeliverBase       = 50
	PointsPerDeliveredUnit  = 2
	PointsLocationPing      = 5
	PointsAchievementUnlock = 100
)

// Achievement unlocks once a volunteer's completed deliveries reach
// Deliveries.
type Achievement struct {
	Name       string
	Deliveries int
}

func DefaultAchievements(heroThreshold int) []Achievement {
	return []Achievement{
		{Name: model.AchievementFirstDelivery, Deliveries: 1},
		{Name: model.AchievementMealsHero, Deliveries: heroThreshold},
	}
}

type StatsService interface {
	Load(ctx context.Context, listings []*model.Listing, feedbacks []model.Feedback) error
	OnListingCreated(ctx context.Context, l *model.Listing) error
	OnListingDelivered(ctx context.Context, l *model.Listing) error
	OnVolunteerAction(ctx context.Context, v model.VolunteerRef, action VolunteerAction, l *model.Listing) (int, error)
	OnLocationPing(ctx context.Context, v model.VolunteerRef) (int, error)
	RefreshRatings(ctx context.Context, listings []*model.Listing, feedbacks []model.Feedback) error
	Snapshot(ctx context.Context) model.StatsSnapshot
	Ledger(ctx context.Context, volunteerID string) (*model.Ledger, error)
}

type statsService struct {
	mu           sync.Mutex
	state        repository.StateRepository
	metrics      *metrics.Metrics
	achievements []Achievement
	now          func() time.Time
	stats        *model.Stats
}

func NewStatsService(state repository.StateRepository, m *metrics.Metrics, achievements []Achievement, now func() time.Time) StatsService {
	if now == nil {
		now = time.Now
	}
	return &statsService{
		state:        state,
		metrics:      m,
		achievements: achievements,
		now:          now,
		stats:        emptyStats(),
	}
}

func emptyStats() *model.Stats {
	return &model.Stats{Ledgers: map[string]*model.Ledger{}}
}

// Load restores the persisted snapshot. A missing snapshot is rebuilt by
// replaying the listing set; an existing one only has its active and total
// post counts recounted.
func (s *statsService) Load(ctx context.Context, listings []*model.Listing, feedbacks []model.Feedback) error {
	stored, ok, err := s.state.LoadStats(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok || stored == nil {
		s.stats = s.rebuild(listings, feedbacks)
		log.Printf("[stats] rid=%s stage=rebuild listings=%d deliveries=%d", logctx.RID(ctx), len(listings), s.stats.Deliveries)
		return s.persist(ctx)
	}
	if stored.Ledgers == nil {
		stored.Ledgers = map[string]*model.Ledger{}
	}
	for _, l := range stored.Ledgers {
		if l.Achievements == nil {
			l.Achievements = map[string]time.Time{}
		}
	}
	s.stats = stored

	active := 0
	for _, l := range listings {
		if l.Status.Active() {
			active++
		}
	}
	if s.stats.ActivePosts == active && s.stats.TotalPosts == len(listings) {
		return nil
	}
	log.Printf("[stats] rid=%s stage=reconcile active=%d->%d total=%d->%d",
		logctx.RID(ctx), s.stats.ActivePosts, active, s.stats.TotalPosts, len(listings))
	s.stats.ActivePosts = active
	s.stats.TotalPosts = len(listings)
	return s.persist(ctx)
}

func (s *statsService) rebuild(listings []*model.Listing, feedbacks []model.Feedback) *model.Stats {
	st := emptyStats()
	ordered := append([]*model.Listing(nil), listings...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	for _, l := range ordered {
		applyCreated(st, l)
		if l.AcceptedBy == nil {
			continue
		}
		at := l.CreatedAt
		s.award(st, *l.AcceptedBy, ActionAccept, l, at)
		if l.PickedAt != nil {
			s.award(st, *l.AcceptedBy, ActionPick, l, *l.PickedAt)
		}
		if l.Status == model.ListingStatusDelivered {
			if l.DeliveredAt != nil {
				at = *l.DeliveredAt
			}
			applyDelivered(st, l)
			s.award(st, *l.AcceptedBy, ActionDeliver, l, at)
		}
	}
	applyRatings(st, listings, feedbacks)
	return st
}

func applyCreated(st *model.Stats, l *model.Listing) {
	st.ActivePosts++
	st.TotalPosts++
	switch l.Kind {
	case model.KindFarm:
		st.FarmProduceSavedKg += l.Quantity
		st.MealsSaved += l.MealEquivalent()
	default:
		st.MealsSaved += l.Quantity
	}
}

func applyDelivered(st *model.Stats, l *model.Listing) {
	st.Deliveries++
	st.MealsDelivered += l.MealEquivalent()
	if st.ActivePosts > 0 {
		st.ActivePosts--
	}
}

func ledgerFor(st *model.Stats, v model.VolunteerRef) *model.Ledger {
	led, ok := st.Ledgers[v.ID]
	if !ok {
		led = model.NewLedger(v)
		st.Ledgers[v.ID] = led
	}
	if led.Name == "" {
		led.Name = v.Name
	}
	return led
}

// award applies one volunteer action to st and returns the points granted,
// achievement bonuses included.
func (s *statsService) award(st *model.Stats, v model.VolunteerRef, action VolunteerAction, l *model.Listing, at time.Time) int {
	led := ledgerFor(st, v)
	points := 0
	switch action {
	case ActionAccept:
		led.Accepted++
		points = PointsAccept
	case ActionPick:
		led.Picked++
		points = PointsPick
	case ActionDeliver:
		points = PointsDeliverBase + PointsPerDeliveredUnit*l.Quantity
		led.Badges.Deliveries++
		led.Badges.Meals += l.MealEquivalent()
		if l.CommunityPoint != "" && !contains(led.Communities, l.CommunityPoint) {
			led.Communities = append(led.Communities, l.CommunityPoint)
		}
		led.Badges.Communities = len(led.Communities)
	}
	led.Points += points
	s.metrics.PointsAwarded(string(action), points)

	if action == ActionDeliver {
		for _, a := range s.achievements {
			if led.Badges.Deliveries < a.Deliveries || led.Unlocked(a.Name) {
				continue
			}
			led.Achievements[a.Name] = at
			led.Points += PointsAchievementUnlock
			points += PointsAchievementUnlock
			s.metrics.PointsAwarded("achievement", PointsAchievementUnlock)
		}
	}
	return points
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// applyRatings sets the global rating and every ledger's ratingAverage from
// feedback attached to delivered listings. Means are rounded to two places.
func applyRatings(st *model.Stats, listings []*model.Listing, feedbacks []model.Feedback) {
	byID := make(map[string]*model.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	type acc struct{ sum, n int }
	total := acc{}
	perVolunteer := map[string]*acc{}
	for _, f := range feedbacks {
		l, ok := byID[f.ListingID]
		if !ok || l.Status != model.ListingStatusDelivered {
			continue
		}
		total.sum += f.Rating
		total.n++
		if l.AcceptedBy == nil {
			continue
		}
		a, ok := perVolunteer[l.AcceptedBy.ID]
		if !ok {
			a = &acc{}
			perVolunteer[l.AcceptedBy.ID] = a
		}
		a.sum += f.Rating
		a.n++
	}
	mean := func(a acc) float64 {
		if a.n == 0 {
			return 0
		}
		return math.Round(float64(a.sum)/float64(a.n)*100) / 100
	}
	st.Rating = mean(total)
	for id, led := range st.Ledgers {
		if a, ok := perVolunteer[id]; ok {
			led.Badges.RatingAverage = mean(*a)
		} else {
			led.Badges.RatingAverage = 0
		}
	}
}

func (s *statsService) persist(ctx context.Context) error {
	if err := s.state.SaveStats(ctx, s.stats); err != nil {
		log.Printf("[stats] rid=%s stage=persist err=%v", logctx.RID(ctx), err)
		s.metrics.StorageFailed(repository.KeyStats)
		return err
	}
	return nil
}

func (s *statsService) OnListingCreated(ctx context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyCreated(s.stats, l)
	return s.persist(ctx)
}

func (s *statsService) OnListingDelivered(ctx context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyDelivered(s.stats, l)
	return s.persist(ctx)
}

func (s *statsService) OnVolunteerAction(ctx context.Context, v model.VolunteerRef, action VolunteerAction, l *model.Listing) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.award(s.stats, v, action, l, s.now())
	log.Printf("[stats] rid=%s volunteer=%s action=%s listing=%s points=%d", logctx.RID(ctx), v.ID, action, l.ID, points)
	return points, s.persist(ctx)
}

func (s *statsService) OnLocationPing(ctx context.Context, v model.VolunteerRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	led := ledgerFor(s.stats, v)
	led.Points += PointsLocationPing
	s.metrics.PointsAwarded("location_ping", PointsLocationPing)
	return PointsLocationPing, s.persist(ctx)
}

func (s *statsService) RefreshRatings(ctx context.Context, listings []*model.Listing, feedbacks []model.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyRatings(s.stats, listings, feedbacks)
	return s.persist(ctx)
}

func (s *statsService) Snapshot(ctx context.Context) model.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.StatsSnapshot{Stats: *s.stats.Clone()}
	if s.stats.TotalPosts > 0 {
		rate := int(math.Round(float64(s.stats.Deliveries) * 100 / float64(s.stats.TotalPosts)))
		snap.SuccessRate = min(rate, 100)
	}
	return snap
}

func (s *statsService) Ledger(ctx context.Context, volunteerID string) (*model.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	led, ok := s.stats.Ledgers[volunteerID]
	if !ok {
		return nil, ErrNotFound
	}
	return led.Clone(), nil
}
