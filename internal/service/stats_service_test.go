package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStats(t *testing.T, heroThreshold int) (StatsService, repository.StateRepository) {
	t.Helper()
	state := repository.NewStateRepository(repository.NewMemoryBlobStore(), "")
	clock := newFakeClock()
	s := NewStatsService(state, nil, DefaultAchievements(heroThreshold), clock.Now)
	require.NoError(t, s.Load(context.Background(), nil, nil))
	return s, state
}

func deliveredCooked(id string, qty int, v model.VolunteerRef) *model.Listing {
	return &model.Listing{
		ID: id, Kind: model.KindCooked, Quantity: qty, Status: model.ListingStatusDelivered,
		AcceptedBy: &v, Cooked: &model.CookedDetails{},
	}
}

func TestVolunteerPointTable(t *testing.T) {
	s, _ := newStats(t, 10)
	ctx := context.Background()
	v := volunteer.VolunteerRef()
	l := deliveredCooked("1", 15, v)

	got, err := s.OnVolunteerAction(ctx, v, ActionAccept, l)
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	got, err = s.OnVolunteerAction(ctx, v, ActionPick, l)
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	got, err = s.OnVolunteerAction(ctx, v, ActionDeliver, l)
	require.NoError(t, err)
	assert.Equal(t, 80+PointsAchievementUnlock, got)

	got, err = s.OnLocationPing(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	led, err := s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 10+20+80+100+5, led.Points)
	assert.Equal(t, 1, led.Accepted)
	assert.Equal(t, 1, led.Picked)
	assert.Equal(t, 1, led.Badges.Deliveries)
	assert.Equal(t, 15, led.Badges.Meals)
	assert.Equal(t, []string{model.AchievementFirstDelivery}, led.AchievementNames())
}

func TestAchievementsUnlockOnce(t *testing.T) {
	s, _ := newStats(t, 3)
	ctx := context.Background()
	v := volunteer.VolunteerRef()

	var bonuses []int
	for i := 1; i <= 5; i++ {
		l := deliveredCooked(fmt.Sprint(i), 1, v)
		got, err := s.OnVolunteerAction(ctx, v, ActionDeliver, l)
		require.NoError(t, err)
		bonuses = append(bonuses, got-(PointsDeliverBase+PointsPerDeliveredUnit))
	}
	assert.Equal(t, []int{100, 0, 100, 0, 0}, bonuses)

	led, err := s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{model.AchievementFirstDelivery, model.AchievementMealsHero}, led.AchievementNames())
	assert.Equal(t, 5*52+200, led.Points)
}

func TestCommunitiesBadgeCountsDistinctPoints(t *testing.T) {
	s, _ := newStats(t, 10)
	ctx := context.Background()
	v := volunteer.VolunteerRef()
	for i, cp := range []string{"Colaba", "Dadar", "Colaba"} {
		l := deliveredCooked(fmt.Sprint(i), 2, v)
		l.CommunityPoint = cp
		_, err := s.OnVolunteerAction(ctx, v, ActionDeliver, l)
		require.NoError(t, err)
	}
	led, err := s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, led.Badges.Communities)
	assert.Equal(t, 3, led.Badges.Deliveries)
}

func TestFarmDeliveryUsesMealEquivalent(t *testing.T) {
	s, _ := newStats(t, 10)
	ctx := context.Background()
	l := &model.Listing{ID: "f", Kind: model.KindFarm, Quantity: 10, Farm: &model.FarmDetails{}}

	require.NoError(t, s.OnListingCreated(ctx, l))
	require.NoError(t, s.OnListingDelivered(ctx, l))
	snap := s.Snapshot(ctx)
	assert.Equal(t, 10, snap.FarmProduceSavedKg)
	assert.Equal(t, 40, snap.MealsSaved)
	assert.Equal(t, 40, snap.MealsDelivered)
	assert.Equal(t, 0, snap.ActivePosts)
}

func TestRatings(t *testing.T) {
	s, _ := newStats(t, 10)
	ctx := context.Background()
	v := volunteer.VolunteerRef()
	o := other.VolunteerRef()
	a := deliveredCooked("a", 1, v)
	b := deliveredCooked("b", 1, v)
	c := deliveredCooked("c", 1, o)
	pending := &model.Listing{ID: "p", Kind: model.KindCooked, Quantity: 1, Status: model.ListingStatusAccepted, AcceptedBy: &o}
	for _, l := range []*model.Listing{a, b, c} {
		_, err := s.OnVolunteerAction(ctx, *l.AcceptedBy, ActionDeliver, l)
		require.NoError(t, err)
	}

	led, err := s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Zero(t, led.Badges.RatingAverage)

	feedbacks := []model.Feedback{
		{ListingID: "a", Rating: 5},
		{ListingID: "b", Rating: 4},
		{ListingID: "c", Rating: 2},
		{ListingID: "p", Rating: 1},
	}
	require.NoError(t, s.RefreshRatings(ctx, []*model.Listing{a, b, c, pending}, feedbacks))

	led, err = s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, led.Badges.RatingAverage)
	led, err = s.Ledger(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, led.Badges.RatingAverage)
	assert.Equal(t, 3.67, s.Snapshot(ctx).Rating)
}

func TestLedgerUnknownVolunteer(t *testing.T) {
	s, _ := newStats(t, 10)
	_, err := s.Ledger(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRebuildsFromListings(t *testing.T) {
	state := repository.NewStateRepository(repository.NewMemoryBlobStore(), "")
	s := NewStatsService(state, nil, DefaultAchievements(10), newFakeClock().Now)
	v := volunteer.VolunteerRef()
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	delivered := deliveredCooked("1", 25, v)
	delivered.CreatedAt = now
	delivered.PickedAt = &now
	delivered.DeliveredAt = &now
	open := &model.Listing{ID: "2", Kind: model.KindCooked, Quantity: 15, Status: model.ListingStatusAvailable, CreatedAt: now.Add(time.Hour)}

	ctx := context.Background()
	require.NoError(t, s.Load(ctx, []*model.Listing{delivered, open}, []model.Feedback{{ListingID: "1", Rating: 5}}))

	snap := s.Snapshot(ctx)
	assert.Equal(t, 40, snap.MealsSaved)
	assert.Equal(t, 1, snap.ActivePosts)
	assert.Equal(t, 2, snap.TotalPosts)
	assert.Equal(t, 1, snap.Deliveries)
	assert.Equal(t, 25, snap.MealsDelivered)
	assert.Equal(t, 50, snap.SuccessRate)
	assert.Equal(t, 5.0, snap.Rating)

	led, err := s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 10+20+50+50+100, led.Points)
	assert.Equal(t, 5.0, led.Badges.RatingAverage)

	stored, ok, err := state.LoadStats(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, stored.Deliveries)
}

func TestLoadReconcilesActivePosts(t *testing.T) {
	ctx := context.Background()
	state := repository.NewStateRepository(repository.NewMemoryBlobStore(), "")
	require.NoError(t, state.SaveStats(ctx, &model.Stats{MealsSaved: 127, ActivePosts: 9, Deliveries: 47, TotalPosts: 50}))

	listings := []*model.Listing{
		{ID: "1", Status: model.ListingStatusAvailable},
		{ID: "2", Status: model.ListingStatusPicked},
		{ID: "3", Status: model.ListingStatusDelivered},
	}
	s := NewStatsService(state, nil, DefaultAchievements(10), nil)
	require.NoError(t, s.Load(ctx, listings, nil))

	snap := s.Snapshot(ctx)
	assert.Equal(t, 2, snap.ActivePosts)
	assert.Equal(t, 3, snap.TotalPosts)
	assert.Equal(t, 127, snap.MealsSaved)
	assert.Equal(t, 47, snap.Deliveries)
	assert.Equal(t, 100, snap.SuccessRate)
	assert.NotNil(t, snap.Ledgers)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newStats(t, 10)
	ctx := context.Background()
	v := volunteer.VolunteerRef()
	_, err := s.OnLocationPing(ctx, v)
	require.NoError(t, err)

	snap := s.Snapshot(ctx)
	snap.Ledgers[v.ID].Points = 9999
	led, err := s.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, led.Points)
}
