package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/metrics"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
)

type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type FeedbackService interface {
	Load(ctx context.Context) error
	Submit(ctx context.Context, listingID string, in FeedbackInput) (*model.Feedback, error)
	// List returns the newest entries first; limit <= 0 means all.
	List(ctx context.Context, limit int) []model.Feedback
}

type feedbackService struct {
	mu        sync.Mutex
	state     repository.StateRepository
	listings  ListingService
	stats     StatsService
	metrics   *metrics.Metrics
	now       func() time.Time
	feedbacks []model.Feedback
}

func NewFeedbackService(state repository.StateRepository, listings ListingService, stats StatsService, m *metrics.Metrics, now func() time.Time) FeedbackService {
	if now == nil {
		now = time.Now
	}
	return &feedbackService{state: state, listings: listings, stats: stats, metrics: m, now: now}
}

func (s *feedbackService) Load(ctx context.Context) error {
	stored, _, err := s.state.LoadFeedbacks(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.feedbacks = stored
	s.mu.Unlock()
	return nil
}

// Submit only accepts feedback for delivered listings.
func (s *feedbackService) Submit(ctx context.Context, listingID string, in FeedbackInput) (*model.Feedback, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	l, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingStatusDelivered {
		return nil, &InvalidTransitionError{ListingID: l.ID, From: l.Status, Action: "rate"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := model.Feedback{
		ID:        uuid.NewString(),
		ListingID: l.ID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		Timestamp: s.now(),
	}
	s.feedbacks = append(s.feedbacks, f)
	s.metrics.FeedbackSubmitted()
	log.Printf("[feedback] rid=%s listing=%s rating=%d", logctx.RID(ctx), l.ID, f.Rating)

	var storeErr error
	if err := s.state.SaveFeedbacks(ctx, s.feedbacks); err != nil {
		log.Printf("[feedback] rid=%s stage=persist err=%v", logctx.RID(ctx), err)
		s.metrics.StorageFailed(repository.KeyFeedbacks)
		storeErr = err
	}
	all := append([]model.Feedback(nil), s.feedbacks...)
	if err := s.stats.RefreshRatings(ctx, s.listings.ListAll(ctx), all); err != nil && storeErr == nil {
		storeErr = err
	}
	return &f, storeErr
}

func (s *feedbackService) List(ctx context.Context, limit int) []model.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.feedbacks)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Feedback, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.feedbacks[i])
	}
	return out
}
