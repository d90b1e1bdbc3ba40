package service

import (
	"context"
	"log"
	"math/rand"
	"sync"

	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/metrics"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
)

type CommunityService interface {
	Load(ctx context.Context) error
	Points(ctx context.Context) []model.CommunityPoint
	Volunteers(ctx context.Context) []model.Volunteer
	// Assign picks the destination for a new listing; empty when no points exist.
	Assign() string
	Credit(ctx context.Context, name string, meals int) error
}

type communityService struct {
	mu         sync.Mutex
	state      repository.StateRepository
	metrics    *metrics.Metrics
	rng        *rand.Rand
	points     []model.CommunityPoint
	volunteers []model.Volunteer
}

func NewCommunityService(state repository.StateRepository, m *metrics.Metrics, rng *rand.Rand) CommunityService {
	return &communityService{state: state, metrics: m, rng: rng}
}

func (s *communityService) Load(ctx context.Context) error {
	points, _, err := s.state.LoadCommunityPoints(ctx)
	if err != nil {
		return err
	}
	volunteers, _, err := s.state.LoadVolunteers(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.points = points
	s.volunteers = volunteers
	s.mu.Unlock()
	return nil
}

func (s *communityService) Points(ctx context.Context) []model.CommunityPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CommunityPoint{}, s.points...)
}

func (s *communityService) Volunteers(ctx context.Context) []model.Volunteer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Volunteer{}, s.volunteers...)
}

func (s *communityService) Assign() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.points) == 0 {
		return ""
	}
	return s.points[s.rng.Intn(len(s.points))].Name
}

func (s *communityService) Credit(ctx context.Context, name string, meals int) error {
	if name == "" || meals <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.points {
		if s.points[i].Name != name {
			continue
		}
		s.points[i].MealsServed += meals
		if err := s.state.SaveCommunityPoints(ctx, s.points); err != nil {
			log.Printf("[community] rid=%s stage=persist point=%q err=%v", logctx.RID(ctx), name, err)
			s.metrics.StorageFailed(repository.KeyCommunityPoints)
			return err
		}
		return nil
	}
	log.Printf("[community] rid=%s stage=credit unknown point=%q", logctx.RID(ctx), name)
	return nil
}
