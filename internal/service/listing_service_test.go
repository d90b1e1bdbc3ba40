package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCookedListing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	l := f.create(t, donor, cookedInput(20))
	assert.Equal(t, "L001", l.ID)
	assert.Equal(t, model.ListingStatusAvailable, l.Status)
	assert.Equal(t, "taj", l.DonorName)
	assert.Nil(t, l.AcceptedBy)
	require.NotNil(t, l.Cooked)
	assert.Nil(t, l.Farm)

	snap := f.svc.Stats.Snapshot(ctx)
	assert.Equal(t, 20, snap.MealsSaved)
	assert.Equal(t, 1, snap.ActivePosts)
	assert.Equal(t, 0, snap.FarmProduceSavedKg)
}

func TestCreateFarmListingUsesDefaultFactor(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	l := f.create(t, farmer, farmInput(10))
	require.NotNil(t, l.Farm)
	assert.Equal(t, model.CategoryVegetables, l.Farm.Category)

	snap := f.svc.Stats.Snapshot(ctx)
	assert.Equal(t, 10, snap.FarmProduceSavedKg)
	assert.Equal(t, 10*model.MealsPerKg, snap.MealsSaved)
}

func TestCreateFarmListingUsesEstimatedMeals(t *testing.T) {
	f := newFixture(t, Options{})
	in := farmInput(12)
	meals := 60
	in.EstimatedMeals = &meals
	in.Category = ""

	l := f.create(t, farmer, in)
	assert.Equal(t, model.CategoryOther, l.Farm.Category)
	assert.Equal(t, 60, f.svc.Stats.Snapshot(context.Background()).MealsSaved)
}

func TestCreateAnonymousDonor(t *testing.T) {
	f := newFixture(t, Options{})
	l := f.create(t, model.Identity{}, cookedInput(3))
	assert.Equal(t, AnonymousDonor, l.DonorName)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateListingInput)
		fields []string
		farm   bool
	}{
		{"missing items", func(in *CreateListingInput) { in.Items = "   " }, []string{"items"}, false},
		{"zero quantity", func(in *CreateListingInput) { in.Quantity = 0 }, []string{"quantity"}, false},
		{"negative quantity", func(in *CreateListingInput) { in.Quantity = -4 }, []string{"quantity"}, false},
		{"missing location and window", func(in *CreateListingInput) { in.Location = ""; in.PickupWindow = "" }, []string{"location", "pickupWindow"}, false},
		{"bad kind", func(in *CreateListingInput) { in.Kind = "frozen" }, []string{"kind"}, false},
		{"too many images", func(in *CreateListingInput) { in.Images = []string{"1", "2", "3", "4", "5", "6"} }, []string{"images"}, false},
		{"bad category", func(in *CreateListingInput) { in.Category = "meat" }, []string{"category"}, false},
		{"cooked with category", func(in *CreateListingInput) { in.Category = model.CategoryFruits }, []string{"category"}, false},
		{"cooked with estimated meals", func(in *CreateListingInput) { n := 12; in.EstimatedMeals = &n }, []string{"estimatedMeals"}, false},
		{"farm with diet", func(in *CreateListingInput) { in.Diet = model.DietNonVeg }, []string{"diet"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			in := cookedInput(5)
			if tt.farm {
				in = farmInput(5)
			}
			tt.mutate(&in)

			_, err := f.svc.Listings.Create(context.Background(), donor, in)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.ElementsMatch(t, tt.fields, ve.Fields)
			assert.Empty(t, f.svc.Listings.ListAll(context.Background()))
			assert.Zero(t, f.svc.Stats.Snapshot(context.Background()).ActivePosts)
		})
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(15))

	accepted, err := f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedBy)
	assert.Equal(t, volunteer.UserID, accepted.AcceptedBy.ID)
	assert.NotNil(t, accepted.AcceptedAt)

	picked, err := f.svc.Listings.MarkPicked(ctx, l.ID, volunteer)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusPicked, picked.Status)

	before, err := f.svc.Stats.Ledger(ctx, volunteer.UserID)
	require.NoError(t, err)

	delivered, err := f.svc.Listings.MarkDelivered(ctx, l.ID, volunteer)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)

	snap := f.svc.Stats.Snapshot(ctx)
	assert.Equal(t, 1, snap.Deliveries)
	assert.Equal(t, 15, snap.MealsDelivered)
	assert.Equal(t, 0, snap.ActivePosts)
	assert.Equal(t, 100, snap.SuccessRate)

	after, err := f.svc.Stats.Ledger(ctx, volunteer.UserID)
	require.NoError(t, err)
	// 50 + 2*15 for the delivery plus the first-delivery bonus.
	assert.Equal(t, 80+PointsAchievementUnlock, after.Points-before.Points)
	assert.True(t, after.Unlocked(model.AchievementFirstDelivery))
}

func TestAcceptedCanBeDeliveredDirectly(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(4))

	_, err := f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.NoError(t, err)
	got, err := f.svc.Listings.MarkDelivered(ctx, l.ID, donor)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusDelivered, got.Status)
	assert.Nil(t, got.PickedAt)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture, id string)
		op    func(f *fixture, id string) (*model.Listing, error)
		from  model.ListingStatus
	}{
		{
			name:  "pick while available",
			setup: func(*testing.T, *fixture, string) {},
			op:    func(f *fixture, id string) (*model.Listing, error) { return f.svc.Listings.MarkPicked(ctx, id, volunteer) },
			from:  model.ListingStatusAvailable,
		},
		{
			name:  "deliver while available",
			setup: func(*testing.T, *fixture, string) {},
			op:    func(f *fixture, id string) (*model.Listing, error) { return f.svc.Listings.MarkDelivered(ctx, id, volunteer) },
			from:  model.ListingStatusAvailable,
		},
		{
			name: "second accept",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.Listings.Accept(ctx, id, volunteer)
				require.NoError(t, err)
			},
			op:   func(f *fixture, id string) (*model.Listing, error) { return f.svc.Listings.Accept(ctx, id, other) },
			from: model.ListingStatusAccepted,
		},
		{
			name: "pick twice",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.Listings.Accept(ctx, id, volunteer)
				require.NoError(t, err)
				_, err = f.svc.Listings.MarkPicked(ctx, id, volunteer)
				require.NoError(t, err)
			},
			op:   func(f *fixture, id string) (*model.Listing, error) { return f.svc.Listings.MarkPicked(ctx, id, volunteer) },
			from: model.ListingStatusPicked,
		},
		{
			name: "accept after delivery",
			setup: func(t *testing.T, f *fixture, id string) {
				_, err := f.svc.Listings.Accept(ctx, id, volunteer)
				require.NoError(t, err)
				_, err = f.svc.Listings.MarkDelivered(ctx, id, volunteer)
				require.NoError(t, err)
			},
			op:   func(f *fixture, id string) (*model.Listing, error) { return f.svc.Listings.Accept(ctx, id, other) },
			from: model.ListingStatusDelivered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			l := f.create(t, donor, cookedInput(6))
			tt.setup(t, f, l.ID)
			before, err := f.svc.Listings.Get(ctx, l.ID)
			require.NoError(t, err)

			got, err := tt.op(f, l.ID)
			assert.Nil(t, got)
			require.ErrorIs(t, err, ErrInvalidTransition)
			var ite *InvalidTransitionError
			require.True(t, errors.As(err, &ite))
			assert.Equal(t, tt.from, ite.From)

			after, err := f.svc.Listings.Get(ctx, l.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestDoubleDeliverCountsOnce(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(15))
	_, err := f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.NoError(t, err)
	_, err = f.svc.Listings.MarkDelivered(ctx, l.ID, volunteer)
	require.NoError(t, err)
	ledger, err := f.svc.Stats.Ledger(ctx, volunteer.UserID)
	require.NoError(t, err)

	_, err = f.svc.Listings.MarkDelivered(ctx, l.ID, volunteer)
	require.ErrorIs(t, err, ErrInvalidTransition)

	snap := f.svc.Stats.Snapshot(ctx)
	assert.Equal(t, 1, snap.Deliveries)
	assert.Equal(t, 15, snap.MealsDelivered)
	again, err := f.svc.Stats.Ledger(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Equal(t, ledger.Points, again.Points)
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(8))

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := volunteer
			actor.UserID = actor.UserID + string(rune('a'+i))
			_, err := f.svc.Listings.Accept(ctx, l.ID, actor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidTransition):
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
}

func TestUnknownListing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Listings.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Listings.Accept(ctx, "nope", volunteer)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Listings.MarkPicked(ctx, "nope", volunteer)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Listings.MarkDelivered(ctx, "nope", volunteer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptRequiresVolunteerIdentity(t *testing.T) {
	f := newFixture(t, Options{})
	l := f.create(t, donor, cookedInput(2))
	_, err := f.svc.Listings.Accept(context.Background(), l.ID, model.Identity{})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"volunteer"}, ve.Fields)
}

func TestQueries(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.create(t, donor, cookedInput(1))
	b := f.create(t, farmer, farmInput(2))
	c := f.create(t, donor, cookedInput(3))
	_, err := f.svc.Listings.Accept(ctx, b.ID, volunteer)
	require.NoError(t, err)

	all := f.svc.Listings.ListAll(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	avail, err := f.svc.Listings.ListByStatus(ctx, model.ListingStatusAvailable)
	require.NoError(t, err)
	assert.Len(t, avail, 2)

	_, err = f.svc.Listings.ListByStatus(ctx, "pending")
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	assert.Len(t, f.svc.Listings.ListByDonor(ctx, donor.UserID), 2)
	mine := f.svc.Listings.ListByVolunteer(ctx, volunteer.UserID)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)
}

func TestReturnedListingsAreCopies(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(5))
	l.Status = model.ListingStatusDelivered
	l.Images = append(l.Images, "x")

	got, err := f.svc.Listings.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAvailable, got.Status)
	assert.Empty(t, got.Images)
}

func TestStorageFailureKeepsMutation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(5))

	f.store.setFailing(true)
	got, err := f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.Error(t, err)
	var se *repository.StorageError
	require.True(t, errors.As(err, &se))
	require.NotNil(t, got)
	assert.Equal(t, model.ListingStatusAccepted, got.Status)

	f.store.setFailing(false)
	cur, err := f.svc.Listings.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAccepted, cur.Status)
}

func TestPersistedSnapshotFollowsMutations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	l := f.create(t, donor, cookedInput(9))
	_, err := f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.NoError(t, err)

	stored, ok, err := f.state.LoadListings(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, model.ListingStatusAccepted, stored[0].Status)

	reloaded := NewListingService(f.state, f.svc.Stats, nil, RolePolicy{}, nil)
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.Get(ctx, l.ID)
	require.NoError(t, err)
	cur, err := f.svc.Listings.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, cur.ID, got.ID)
	assert.Equal(t, cur.Status, got.Status)
	assert.Equal(t, cur.Quantity, got.Quantity)
}

func TestEnforcedRoles(t *testing.T) {
	f := newFixture(t, Options{EnforceRoles: true})
	ctx := context.Background()

	_, err := f.svc.Listings.Create(ctx, volunteer, cookedInput(3))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Listings.Create(ctx, donor, farmInput(3))
	assert.ErrorIs(t, err, ErrForbidden)

	l := f.create(t, donor, cookedInput(3))
	_, err = f.svc.Listings.Accept(ctx, l.ID, donor)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.NoError(t, err)
	_, err = f.svc.Listings.MarkPicked(ctx, l.ID, other)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Listings.MarkDelivered(ctx, l.ID, other)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Listings.MarkDelivered(ctx, l.ID, donor)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusDelivered, got.Status)
}

func TestClaimFollowsVolunteerAcrossSessions(t *testing.T) {
	f := newFixture(t, Options{EnforceRoles: true})
	ctx := context.Background()

	alice, err := f.svc.Sessions.Login(ctx, "alice@example.org", "pw", model.RoleVolunteer, "")
	require.NoError(t, err)
	bob, err := f.svc.Sessions.Login(ctx, "bob@example.org", "pw", model.RoleVolunteer, "")
	require.NoError(t, err)
	require.NotEqual(t, alice.Identity.UserID, bob.Identity.UserID)

	l := f.create(t, donor, cookedInput(4))
	_, err = f.svc.Listings.Accept(ctx, l.ID, alice.Identity)
	require.NoError(t, err)

	_, err = f.svc.Listings.MarkPicked(ctx, l.ID, bob.Identity)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Listings.MarkDelivered(ctx, l.ID, bob.Identity)
	assert.ErrorIs(t, err, ErrForbidden)

	again, err := f.svc.Sessions.Login(ctx, "alice@example.org", "pw", model.RoleVolunteer, "")
	require.NoError(t, err)
	got, err := f.svc.Listings.MarkPicked(ctx, l.ID, again.Identity)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusPicked, got.Status)

	led, err := f.svc.Stats.Ledger(ctx, again.Identity.UserID)
	require.NoError(t, err)
	assert.Equal(t, PointsAccept+PointsPick, led.Points)
	assert.Len(t, f.svc.Listings.ListByVolunteer(ctx, again.Identity.UserID), 1)
	assert.Empty(t, f.svc.Listings.ListByVolunteer(ctx, bob.Identity.UserID))
}

func TestCommunityPointCreditedOnDelivery(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.state.SaveCommunityPoints(ctx, []model.CommunityPoint{{ID: "1", Name: "Temple Kitchen - Dadar", MealsServed: 203}}))
	require.NoError(t, f.svc.Community.Load(ctx))

	l := f.create(t, donor, cookedInput(12))
	assert.Equal(t, "Temple Kitchen - Dadar", l.CommunityPoint)
	_, err := f.svc.Listings.Accept(ctx, l.ID, volunteer)
	require.NoError(t, err)
	_, err = f.svc.Listings.MarkDelivered(ctx, l.ID, volunteer)
	require.NoError(t, err)

	points := f.svc.Community.Points(ctx)
	require.Len(t, points, 1)
	assert.Equal(t, 215, points[0].MealsServed)

	led, err := f.svc.Stats.Ledger(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, led.Badges.Communities)
}
