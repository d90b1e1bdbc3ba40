package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("L%03d", n)
	}
}

// toggleStore fails every Put while failing is set.
type toggleStore struct {
	repository.BlobStore
	mu      sync.Mutex
	failing bool
}

func (s *toggleStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *toggleStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("quota exceeded")
	}
	return s.BlobStore.Put(ctx, key, value)
}

type fixture struct {
	svc   *Services
	store *toggleStore
	state repository.StateRepository
	clock *fakeClock
}

// newFixture builds services over an empty store with no seed data loaded.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := &toggleStore{BlobStore: repository.NewMemoryBlobStore()}
	state := repository.NewStateRepository(store, "mealmitra_")
	clock := newFakeClock()
	opts.Now = clock.Now
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	opts.ListingOptions = append(opts.ListingOptions, WithIDGenerator(sequentialIDs()))
	svc := New(state, opts)
	ctx := context.Background()
	require.NoError(t, svc.Listings.Load(ctx))
	require.NoError(t, svc.Community.Load(ctx))
	require.NoError(t, svc.Feedback.Load(ctx))
	require.NoError(t, svc.Stats.Load(ctx, nil, nil))
	return &fixture{svc: svc, store: store, state: state, clock: clock}
}

var (
	donor     = model.Identity{UserID: "MM000001", Name: "taj", Role: model.RoleDonor}
	farmer    = model.Identity{UserID: "MM000002", Name: "ravi", Role: model.RoleFarmer}
	volunteer = model.Identity{UserID: "MM000003", Name: "rahul", Role: model.RoleVolunteer}
	other     = model.Identity{UserID: "MM000004", Name: "priya", Role: model.RoleVolunteer}
)

func cookedInput(qty int) CreateListingInput {
	return CreateListingInput{
		Kind:         model.KindCooked,
		Items:        "Biryani, Raita",
		Quantity:     qty,
		Location:     "Taj Mahal Palace Hotel, Mumbai",
		PickupWindow: "2:00 PM - 3:00 PM",
		Diet:         model.DietVeg,
	}
}

func farmInput(kg int) CreateListingInput {
	return CreateListingInput{
		Kind:         model.KindFarm,
		Items:        "Tomatoes",
		Quantity:     kg,
		Location:     "Nashik",
		PickupWindow: "Morning",
		Category:     model.CategoryVegetables,
	}
}

func (f *fixture) create(t *testing.T, actor model.Identity, in CreateListingInput) *model.Listing {
	t.Helper()
	l, err := f.svc.Listings.Create(context.Background(), actor, in)
	require.NoError(t, err)
	return l
}
