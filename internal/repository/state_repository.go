package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mealmitra/mealmitra-backend/internal/model"
)

// Collection keys, before the configured prefix is applied.
const (
	KeyListings        = "foodPosts"
	KeyCommunityPoints = "communityPoints"
	KeyVolunteers      = "volunteers"
	KeyFeedbacks       = "feedbacks"
	KeyStats           = "stats"
)

// StorageError wraps any failure to read or write a collection snapshot.
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StateRepository serialises whole collections to and from a BlobStore.
// Every Save writes the full snapshot of its collection.
type StateRepository interface {
	LoadListings(ctx context.Context) ([]*model.Listing, bool, error)
	SaveListings(ctx context.Context, listings []*model.Listing) error
	LoadStats(ctx context.Context) (*model.Stats, bool, error)
	SaveStats(ctx context.Context, stats *model.Stats) error
	LoadCommunityPoints(ctx context.Context) ([]model.CommunityPoint, bool, error)
	SaveCommunityPoints(ctx context.Context, points []model.CommunityPoint) error
	LoadVolunteers(ctx context.Context) ([]model.Volunteer, bool, error)
	SaveVolunteers(ctx context.Context, volunteers []model.Volunteer) error
	LoadFeedbacks(ctx context.Context) ([]model.Feedback, bool, error)
	SaveFeedbacks(ctx context.Context, feedbacks []model.Feedback) error
}

type stateRepository struct {
	store  BlobStore
	prefix string
}

func NewStateRepository(store BlobStore, prefix string) StateRepository {
	return &stateRepository{store: store, prefix: prefix}
}

func load[T any](ctx context.Context, r *stateRepository, key string) (T, bool, error) {
	var out T
	b, ok, err := r.store.Get(ctx, r.prefix+key)
	if err != nil {
		return out, false, &StorageError{Key: key, Op: "read", Err: err}
	}
	if !ok || len(b) == 0 {
		return out, false, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false, &StorageError{Key: key, Op: "decode", Err: err}
	}
	return out, true, nil
}

func save(ctx context.Context, r *stateRepository, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Key: key, Op: "encode", Err: err}
	}
	if err := r.store.Put(ctx, r.prefix+key, b); err != nil {
		return &StorageError{Key: key, Op: "write", Err: err}
	}
	return nil
}

func (r *stateRepository) LoadListings(ctx context.Context) ([]*model.Listing, bool, error) {
	return load[[]*model.Listing](ctx, r, KeyListings)
}

func (r *stateRepository) SaveListings(ctx context.Context, listings []*model.Listing) error {
	if listings == nil {
		listings = []*model.Listing{}
	}
	return save(ctx, r, KeyListings, listings)
}

func (r *stateRepository) LoadStats(ctx context.Context) (*model.Stats, bool, error) {
	return load[*model.Stats](ctx, r, KeyStats)
}

func (r *stateRepository) SaveStats(ctx context.Context, stats *model.Stats) error {
	return save(ctx, r, KeyStats, stats)
}

func (r *stateRepository) LoadCommunityPoints(ctx context.Context) ([]model.CommunityPoint, bool, error) {
	return load[[]model.CommunityPoint](ctx, r, KeyCommunityPoints)
}

func (r *stateRepository) SaveCommunityPoints(ctx context.Context, points []model.CommunityPoint) error {
	if points == nil {
		points = []model.CommunityPoint{}
	}
	return save(ctx, r, KeyCommunityPoints, points)
}

func (r *stateRepository) LoadVolunteers(ctx context.Context) ([]model.Volunteer, bool, error) {
	return load[[]model.Volunteer](ctx, r, KeyVolunteers)
}

func (r *stateRepository) SaveVolunteers(ctx context.Context, volunteers []model.Volunteer) error {
	if volunteers == nil {
		volunteers = []model.Volunteer{}
	}
	return save(ctx, r, KeyVolunteers, volunteers)
}

func (r *stateRepository) LoadFeedbacks(ctx context.Context) ([]model.Feedback, bool, error) {
	return load[[]model.Feedback](ctx, r, KeyFeedbacks)
}

func (r *stateRepository) SaveFeedbacks(ctx context.Context, feedbacks []model.Feedback) error {
	if feedbacks == nil {
		feedbacks = []model.Feedback{}
	}
	return save(ctx, r, KeyFeedbacks, feedbacks)
}
