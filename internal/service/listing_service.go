package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/metrics"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
)

const AnonymousDonor = "Anonymous Donor"

type CreateListingInput struct {
	Kind           model.Kind         `json:"kind" validate:"required,oneof=cooked farm"`
	Items          string             `json:"items" validate:"required"`
	Quantity       int                `json:"quantity" validate:"required,gt=0"`
	Location       string             `json:"location" validate:"required"`
	PickupWindow   string             `json:"pickupWindow" validate:"required"`
	Address        string             `json:"address"`
	Coordinates    *model.Coordinates `json:"coordinates"`
	Images         []string           `json:"images" validate:"max=5,dive,required"`
	Diet           model.Diet         `json:"diet" validate:"omitempty,oneof=veg non-veg"`
	Category       model.Category     `json:"category" validate:"omitempty,oneof=vegetables fruits grains other"`
	EstimatedMeals *int               `json:"estimatedMeals" validate:"omitempty,gt=0"`
	Estimate       *model.Estimate    `json:"estimate"`
}

func (in *CreateListingInput) normalize() {
	in.Items = strings.TrimSpace(in.Items)
	in.Location = strings.TrimSpace(in.Location)
	in.PickupWindow = strings.TrimSpace(in.PickupWindow)
	in.Address = strings.TrimSpace(in.Address)
}

// kindFields rejects details that belong to the other listing kind.
func (in *CreateListingInput) kindFields() error {
	var fields []string
	switch in.Kind {
	case model.KindCooked:
		if in.Category != "" {
			fields = append(fields, "category")
		}
		if in.EstimatedMeals != nil {
			fields = append(fields, "estimatedMeals")
		}
	case model.KindFarm:
		if in.Diet != "" {
			fields = append(fields, "diet")
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ListingService is the authoritative listing store. Every mutating call
// persists the full listing snapshot after the in-memory change; when that
// write fails the change is kept and the returned error wraps a
// *repository.StorageError alongside a non-nil listing.
type ListingService interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, actor model.Identity, in CreateListingInput) (*model.Listing, error)
	Accept(ctx context.Context, id string, actor model.Identity) (*model.Listing, error)
	MarkPicked(ctx context.Context, id string, actor model.Identity) (*model.Listing, error)
	MarkDelivered(ctx context.Context, id string, actor model.Identity) (*model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	ListAll(ctx context.Context) []*model.Listing
	ListByStatus(ctx context.Context, status model.ListingStatus) ([]*model.Listing, error)
	ListByDonor(ctx context.Context, donorID string) []*model.Listing
	ListByVolunteer(ctx context.Context, volunteerID string) []*model.Listing
}

type listingService struct {
	mu        sync.Mutex
	state     repository.StateRepository
	stats     StatsService
	community CommunityService
	policy    RolePolicy
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string

	listings map[string]*model.Listing
	order    []string
}

type ListingOption func(*listingService)

func WithClock(now func() time.Time) ListingOption {
	return func(s *listingService) { s.now = now }
}

func WithIDGenerator(fn func() string) ListingOption {
	return func(s *listingService) { s.newID = fn }
}

func NewListingService(state repository.StateRepository, stats StatsService, community CommunityService, policy RolePolicy, m *metrics.Metrics, opts ...ListingOption) ListingService {
	s := &listingService{
		state:     state,
		stats:     stats,
		community: community,
		policy:    policy,
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
		listings:  map[string]*model.Listing{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *listingService) Load(ctx context.Context) error {
	stored, _, err := s.state.LoadListings(ctx)
	if err != nil {
		return err
	}
	listings := map[string]*model.Listing{}
	order := make([]string, 0, len(stored))
	for _, l := range stored {
		if err := l.Check(); err != nil {
			log.Printf("[listing] rid=%s stage=load skip err=%v", logctx.RID(ctx), err)
			continue
		}
		if _, dup := listings[l.ID]; dup {
			log.Printf("[listing] rid=%s stage=load skip duplicate id=%s", logctx.RID(ctx), l.ID)
			continue
		}
		if l.Images == nil {
			l.Images = []string{}
		}
		listings[l.ID] = l
		order = append(order, l.ID)
	}
	s.mu.Lock()
	s.listings = listings
	s.order = order
	s.mu.Unlock()
	return nil
}

func (s *listingService) Create(ctx context.Context, actor model.Identity, in CreateListingInput) (*model.Listing, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		s.metrics.TransitionFailed("create", "validation")
		return nil, err
	}
	if err := in.kindFields(); err != nil {
		s.metrics.TransitionFailed("create", "validation")
		return nil, err
	}
	if err := s.policy.CanCreate(actor, in.Kind); err != nil {
		s.metrics.TransitionFailed("create", "forbidden")
		return nil, err
	}

	l := &model.Listing{
		Kind:         in.Kind,
		Items:        in.Items,
		Quantity:     in.Quantity,
		Estimate:     in.Estimate,
		Location:     in.Location,
		Address:      in.Address,
		Coordinates:  in.Coordinates,
		PickupWindow: in.PickupWindow,
		DonorName:    actor.Name,
		DonorID:      actor.UserID,
		Status:       model.ListingStatusAvailable,
		Images:       append([]string{}, in.Images...),
		CreatedAt:    s.now(),
	}
	if l.DonorName == "" {
		l.DonorName = AnonymousDonor
	}
	switch in.Kind {
	case model.KindFarm:
		category := in.Category
		if category == "" {
			category = model.CategoryOther
		}
		l.Farm = &model.FarmDetails{Category: category, EstimatedMeals: in.EstimatedMeals}
	default:
		l.Cooked = &model.CookedDetails{Diet: in.Diet}
	}
	if s.community != nil {
		l.CommunityPoint = s.community.Assign()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		l.ID = s.newID()
		if _, exists := s.listings[l.ID]; !exists {
			break
		}
	}
	s.listings[l.ID] = l
	s.order = append(s.order, l.ID)
	s.metrics.ListingCreated(string(l.Kind))
	log.Printf("[listing] rid=%s id=%s stage=create kind=%s qty=%d donor=%q", logctx.RID(ctx), l.ID, l.Kind, l.Quantity, l.DonorName)

	err := errors.Join(s.persist(ctx), s.stats.OnListingCreated(ctx, l))
	return l.Clone(), err
}

func (s *listingService) Accept(ctx context.Context, id string, actor model.Identity) (*model.Listing, error) {
	if actor.UserID == "" {
		return nil, &ValidationError{Fields: []string{"volunteer"}}
	}
	if err := s.policy.CanAccept(actor); err != nil {
		s.metrics.TransitionFailed("accept", "forbidden")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.lookup(id, "accept")
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingStatusAvailable {
		return nil, s.reject(l, "accept")
	}
	now := s.now()
	ref := actor.VolunteerRef()
	l.Status = model.ListingStatusAccepted
	l.AcceptedBy = &ref
	l.AcceptedAt = &now
	s.metrics.Transition(string(l.Status))
	log.Printf("[listing] rid=%s id=%s stage=accept volunteer=%s", logctx.RID(ctx), l.ID, ref.ID)

	_, statsErr := s.stats.OnVolunteerAction(ctx, ref, ActionAccept, l)
	return l.Clone(), errors.Join(s.persist(ctx), statsErr)
}

func (s *listingService) MarkPicked(ctx context.Context, id string, actor model.Identity) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.lookup(id, "pick")
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingStatusAccepted {
		return nil, s.reject(l, "pick")
	}
	if err := s.policy.CanPick(actor, l); err != nil {
		s.metrics.TransitionFailed("pick", "forbidden")
		return nil, err
	}
	now := s.now()
	l.Status = model.ListingStatusPicked
	l.PickedAt = &now
	s.metrics.Transition(string(l.Status))
	log.Printf("[listing] rid=%s id=%s stage=pick volunteer=%s", logctx.RID(ctx), l.ID, l.AcceptedBy.ID)

	_, statsErr := s.stats.OnVolunteerAction(ctx, *l.AcceptedBy, ActionPick, l)
	return l.Clone(), errors.Join(s.persist(ctx), statsErr)
}

// MarkDelivered accepts listings that were never marked picked up; donors
// confirm handovers that way.
func (s *listingService) MarkDelivered(ctx context.Context, id string, actor model.Identity) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.lookup(id, "deliver")
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingStatusAccepted && l.Status != model.ListingStatusPicked {
		return nil, s.reject(l, "deliver")
	}
	if err := s.policy.CanDeliver(actor, l); err != nil {
		s.metrics.TransitionFailed("deliver", "forbidden")
		return nil, err
	}
	now := s.now()
	l.Status = model.ListingStatusDelivered
	l.DeliveredAt = &now
	s.metrics.Transition(string(l.Status))
	log.Printf("[listing] rid=%s id=%s stage=deliver volunteer=%s meals=%d", logctx.RID(ctx), l.ID, l.AcceptedBy.ID, l.MealEquivalent())

	errs := []error{s.persist(ctx), s.stats.OnListingDelivered(ctx, l)}
	_, awardErr := s.stats.OnVolunteerAction(ctx, *l.AcceptedBy, ActionDeliver, l)
	errs = append(errs, awardErr)
	if s.community != nil {
		errs = append(errs, s.community.Credit(ctx, l.CommunityPoint, l.MealEquivalent()))
	}
	return l.Clone(), errors.Join(errs...)
}

func (s *listingService) Get(ctx context.Context, id string) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

// ListAll returns every listing, newest first.
func (s *listingService) ListAll(ctx context.Context) []*model.Listing {
	return s.filter(func(*model.Listing) bool { return true })
}

func (s *listingService) ListByStatus(ctx context.Context, status model.ListingStatus) ([]*model.Listing, error) {
	if !status.Valid() {
		return nil, &ValidationError{Fields: []string{"status"}}
	}
	return s.filter(func(l *model.Listing) bool { return l.Status == status }), nil
}

func (s *listingService) ListByDonor(ctx context.Context, donorID string) []*model.Listing {
	return s.filter(func(l *model.Listing) bool { return l.DonorID == donorID })
}

func (s *listingService) ListByVolunteer(ctx context.Context, volunteerID string) []*model.Listing {
	return s.filter(func(l *model.Listing) bool {
		return l.AcceptedBy != nil && l.AcceptedBy.ID == volunteerID
	})
}

func (s *listingService) filter(keep func(*model.Listing) bool) []*model.Listing {
	s.mu.Lock()
	out := make([]*model.Listing, 0, len(s.listings))
	for _, id := range s.order {
		l := s.listings[id]
		if keep(l) {
			out = append(out, l.Clone())
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// lookup must be called with s.mu held.
func (s *listingService) lookup(id, action string) (*model.Listing, error) {
	l, ok := s.listings[id]
	if !ok {
		s.metrics.TransitionFailed(action, "not_found")
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *listingService) reject(l *model.Listing, action string) error {
	s.metrics.TransitionFailed(action, "invalid_transition")
	return &InvalidTransitionError{ListingID: l.ID, From: l.Status, Action: action}
}

// persist must be called with s.mu held so snapshots land in mutation order.
func (s *listingService) persist(ctx context.Context) error {
	snapshot := make([]*model.Listing, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.listings[id])
	}
	if err := s.state.SaveListings(ctx, snapshot); err != nil {
		log.Printf("[listing] rid=%s stage=persist err=%v", logctx.RID(ctx), err)
		s.metrics.StorageFailed(repository.KeyListings)
		return err
	}
	return nil
}
