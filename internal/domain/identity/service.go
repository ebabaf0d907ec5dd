package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mwork/admin-console/internal/pkg/metrics"
	"github.com/mwork/admin-console/internal/pkg/password"
)

const (
	DefaultMaxFailures   = 5
	DefaultLockoutWindow = 15 * time.Minute

	limiterIdleTTL = 10 * time.Minute
)

// Service handles console sign-in and step-up verification
type Service struct {
	repo    Repository
	counter FailureCounter

	maxFailures int
	window      time.Duration

	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	limiters  map[string]*attemptLimiter
	lastSweep time.Time
	now       func() time.Time
}

type attemptLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Option configures Service
type Option func(*Service)

// WithLockout sets how many failures within window lock step-up for an admin
func WithLockout(maxFailures int, window time.Duration) Option {
	return func(s *Service) {
		if maxFailures > 0 {
			s.maxFailures = maxFailures
		}
		if window > 0 {
			s.window = window
		}
	}
}

// WithRateLimit sets the per-admin step-up attempt rate
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Service) {
		s.limit = limit
		if burst > 0 {
			s.burst = burst
		}
	}
}

// NewService creates identity service. A nil counter falls back to process memory.
func NewService(repo Repository, counter FailureCounter, opts ...Option) *Service {
	if counter == nil {
		counter = NewMemoryCounter()
	}
	s := &Service{
		repo:        repo,
		counter:     counter,
		maxFailures: DefaultMaxFailures,
		window:      DefaultLockoutWindow,
		limit:       rate.Every(2 * time.Second),
		burst:       3,
		limiters:    make(map[string]*attemptLimiter),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates an admin for console sign-in
func (s *Service) Login(ctx context.Context, email, pwd, ip string) (*Admin, error) {
	admin, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil || admin == nil {
		return nil, ErrInvalidCredentials
	}

	if !admin.IsActive {
		return nil, ErrAdminInactive
	}

	if !password.Verify(pwd, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, admin.ID, ip); err != nil {
		log.Warn().Err(err).Str("admin_id", admin.ID.String()).Msg("Failed to record admin login")
	}

	return admin, nil
}

// GetByID returns an active admin
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	admin, err := s.repo.GetByID(ctx, id)
	if err != nil || admin == nil {
		return nil, ErrAdminNotFound
	}
	return admin, nil
}

// Reauthenticate verifies credential against the admin's stored password.
// Every call performs a fresh check; nothing is cached between calls.
func (s *Service) Reauthenticate(ctx context.Context, adminID, credential string) error {
	err := s.reauthenticate(ctx, adminID, credential)
	metrics.ReauthAttempt(reauthResult(err))
	return err
}

func (s *Service) reauthenticate(ctx context.Context, adminID, credential string) error {
	id, err := uuid.Parse(adminID)
	if err != nil {
		return ErrInvalidCredential
	}
	key := id.String()

	if !s.allowAttempt(key) {
		return ErrThrottled
	}

	failures, err := s.counter.Failures(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("admin_id", key).Msg("Failed to read step-up failure counter")
		return ErrVerificationUnavailable
	}
	if failures >= s.maxFailures {
		return ErrLockedOut
	}

	admin, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("admin_id", key).Msg("Failed to load admin for step-up")
		return ErrVerificationUnavailable
	}

	if admin == nil || !admin.IsActive || !password.Verify(credential, admin.PasswordHash) {
		n, err := s.counter.Increment(ctx, key, s.window)
		if err != nil {
			log.Error().Err(err).Str("admin_id", key).Msg("Failed to record step-up failure")
			return ErrInvalidCredential
		}
		if n >= s.maxFailures {
			log.Warn().Str("admin_id", key).Int("failures", n).Msg("Admin step-up locked out")
			return ErrLockedOut
		}
		return ErrInvalidCredential
	}

	if err := s.counter.Reset(ctx, key); err != nil {
		log.Warn().Err(err).Str("admin_id", key).Msg("Failed to reset step-up failure counter")
	}
	return nil
}

func (s *Service) allowAttempt(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	l, ok := s.limiters[key]
	if !ok {
		l = &attemptLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = l
	}
	l.lastSeen = now
	s.sweepLimiters(now)

	return l.limiter.AllowN(now, 1)
}

// sweepLimiters drops limiters idle long enough to have refilled completely,
// so a dropped limiter and a fresh one behave the same.
func (s *Service) sweepLimiters(now time.Time) {
	if s.limit <= 0 || now.Sub(s.lastSweep) < limiterIdleTTL {
		return
	}
	s.lastSweep = now

	ttl := limiterIdleTTL
	if s.limit != rate.Inf {
		if refill := time.Duration(float64(s.burst) / float64(s.limit) * float64(time.Second)); refill > ttl {
			ttl = refill
		}
	}
	for k, l := range s.limiters {
		if now.Sub(l.lastSeen) > ttl {
			delete(s.limiters, k)
		}
	}
}

func reauthResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case errors.Is(err, ErrLockedOut):
		return "locked_out"
	case errors.Is(err, ErrVerificationUnavailable):
		return "unavailable"
	default:
		return "invalid"
	}
}
