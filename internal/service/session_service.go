package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/model"
)

// LocationProvider supplies a position fix on request.
type LocationProvider interface {
	Locate(ctx context.Context) (model.Location, error)
}

// StaticLocation is a provider for a fix the client already holds.
type StaticLocation model.Location

func (l StaticLocation) Locate(context.Context) (model.Location, error) {
	return model.Location(l), nil
}

type Session struct {
	Token     string          `json:"token"`
	Identity  model.Identity  `json:"identity"`
	Location  *model.Location `json:"location"`
	LocatedAt *time.Time      `json:"locatedAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (s *Session) clone() *Session {
	c := *s
	if s.Location != nil {
		v := *s.Location
		c.Location = &v
	}
	if s.LocatedAt != nil {
		v := *s.LocatedAt
		c.LocatedAt = &v
	}
	return &c
}

type SessionService interface {
	// Login binds the identity to subject when it is set, usually a verified
	// Firebase uid; otherwise the user id is derived from the email.
	Login(ctx context.Context, email, password string, role model.Role, subject string) (*Session, error)
	Current(ctx context.Context, token string) (*Session, error)
	CurrentRole(ctx context.Context, token string) (model.Role, error)
	SwitchRole(ctx context.Context, token string, role model.Role) (*Session, error)
	Logout(ctx context.Context, token string) error
	// RefreshLocation never fails because of the provider; a failed or slow
	// fix leaves the session without a location.
	RefreshLocation(ctx context.Context, token string, provider LocationProvider) (*Session, error)
}

type sessionService struct {
	mu       sync.Mutex
	stats    StatsService
	timeout  time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

func NewSessionService(stats StatsService, locationTimeout time.Duration, now func() time.Time) SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		stats:    stats,
		timeout:  locationTimeout,
		now:      now,
		sessions: map[string]*Session{},
	}
}

type loginInput struct {
	Email    string     `json:"email" validate:"required"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=donor farmer volunteer"`
}

// userNamespace scopes ids derived from login emails.
var userNamespace = uuid.MustParse("6f1c2f5e-8a3b-4d0e-9c61-2b7d4e9a0c15")

// UserIDForEmail is stable across logins and case-insensitive.
func UserIDForEmail(email string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	return uuid.NewSHA1(userNamespace, []byte(key)).String()
}

func (s *sessionService) Login(ctx context.Context, email, password string, role model.Role, subject string) (*Session, error) {
	in := loginInput{Email: strings.TrimSpace(email), Password: password, Role: role}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	now := s.now()
	name := in.Email
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i]
	}
	userID := subject
	if userID == "" {
		userID = UserIDForEmail(in.Email)
	}
	sess := &Session{
		Token: uuid.NewString(),
		Identity: model.Identity{
			UserID: userID,
			Name:   name,
			Email:  in.Email,
			Role:   in.Role,
		},
		CreatedAt: now,
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	log.Printf("[session] rid=%s stage=login user=%s role=%s", logctx.RID(ctx), sess.Identity.UserID, sess.Identity.Role)
	return sess.clone(), nil
}

func (s *sessionService) Current(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return sess.clone(), nil
}

func (s *sessionService) CurrentRole(ctx context.Context, token string) (model.Role, error) {
	sess, err := s.Current(ctx, token)
	if err != nil {
		return "", err
	}
	return sess.Identity.Role, nil
}

func (s *sessionService) SwitchRole(ctx context.Context, token string, role model.Role) (*Session, error) {
	if !role.Valid() {
		return nil, &ValidationError{Fields: []string{"role"}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	sess.Identity.Role = role
	log.Printf("[session] rid=%s stage=switch_role user=%s role=%s", logctx.RID(ctx), sess.Identity.UserID, role)
	return sess.clone(), nil
}

func (s *sessionService) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrUnauthenticated
	}
	delete(s.sessions, token)
	return nil
}

func (s *sessionService) RefreshLocation(ctx context.Context, token string, provider LocationProvider) (*Session, error) {
	if _, err := s.Current(ctx, token); err != nil {
		return nil, err
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	type fix struct {
		loc model.Location
		err error
	}
	ch := make(chan fix, 1)
	go func() {
		loc, err := provider.Locate(lctx)
		ch <- fix{loc, err}
	}()

	var got *model.Location
	select {
	case f := <-ch:
		if f.err != nil {
			log.Printf("[session] rid=%s stage=locate err=%v", logctx.RID(ctx), f.err)
		} else {
			got = &f.loc
		}
	case <-lctx.Done():
		log.Printf("[session] rid=%s stage=locate err=%v", logctx.RID(ctx), lctx.Err())
	}

	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	sess.Location = got
	sess.LocatedAt = nil
	if got != nil {
		at := s.now()
		sess.LocatedAt = &at
	}
	out := sess.clone()
	s.mu.Unlock()

	if got != nil && out.Identity.Role == model.RoleVolunteer && s.stats != nil {
		if _, err := s.stats.OnLocationPing(ctx, out.Identity.VolunteerRef()); err != nil {
			log.Printf("[session] rid=%s stage=location_ping err=%v", logctx.RID(ctx), err)
		}
	}
	return out, nil
}
