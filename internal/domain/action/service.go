package action

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/pkg/optimistic"
)

// DefaultTicketTTL bounds how long an action may wait for confirmation
const DefaultTicketTTL = 10 * time.Minute

// Ticket is the client-facing view of one pipeline instance
type Ticket struct {
	ID          uuid.UUID       `json:"id"`
	AdminID     string          `json:"admin_id"`
	Permission  rbac.Permission `json:"permission"`
	TargetID    string          `json:"target_id,omitempty"`
	TargetType  string          `json:"target_type,omitempty"`
	Snapshot    Snapshot        `json:"snapshot"`
	RecordState string          `json:"record_state,omitempty"`
	Result      any             `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type ticket struct {
	id         uuid.UUID
	adminID    string
	permission rbac.Permission
	targetID   string
	targetType string
	pipeline   *Pipeline
	result     any
	createdAt  time.Time
	expiresAt  time.Time
}

// Service runs many concurrent pipelines, one per ticket
type Service struct {
	policy   *rbac.Policy
	reauth   Reauthenticator
	trail    AuditAppender
	notifier Notifier
	records  *optimistic.Store[string, string]
	ttl      time.Duration
	now      func() time.Time

	background sync.WaitGroup

	mu      sync.Mutex
	tickets map[uuid.UUID]*ticket
}

// NewService creates action service
func NewService(policy *rbac.Policy, reauth Reauthenticator, trail AuditAppender, notifier Notifier, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &Service{
		policy:   policy,
		reauth:   reauth,
		trail:    trail,
		notifier: notifier,
		records:  optimistic.New[string, string](),
		ttl:      ttl,
		now:      time.Now,
		tickets:  make(map[uuid.UUID]*ticket),
	}
}

// Start opens a ticket for req. Denied requests get no ticket.
func (s *Service) Start(ctx context.Context, req Request) (*Ticket, error) {
	s.Sweep()

	opts := []Option{WithRecordStates(s.records), withWaitGroup(&s.background)}
	if s.notifier != nil {
		opts = append(opts, WithNotifier(s.notifier))
	}
	p := NewPipeline(s.policy, s.reauth, s.trail, opts...)
	if _, err := p.Execute(ctx, req); err != nil {
		return nil, err
	}

	now := s.now()
	t := &ticket{
		id:         uuid.New(),
		adminID:    req.AdminID,
		permission: req.Permission,
		targetID:   req.TargetID,
		targetType: req.TargetType,
		pipeline:   p,
		createdAt:  now,
		expiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	s.tickets[t.id] = t
	s.mu.Unlock()

	return s.view(t), nil
}

// Get returns a ticket owned by adminID
func (s *Service) Get(id uuid.UUID, adminID string) (*Ticket, error) {
	t, err := s.lookup(id, adminID)
	if err != nil {
		return nil, err
	}
	return s.view(t), nil
}

// Confirm answers the ticket's prompt
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, adminID string, c Confirmation) (*Ticket, error) {
	t, err := s.lookup(id, adminID)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(t.expiresAt) {
		_ = t.pipeline.Cancel()
		s.remove(id)
		return nil, ErrTicketExpired
	}

	result, err := t.pipeline.Confirm(ctx, c)
	if err != nil {
		return s.view(t), err
	}

	s.mu.Lock()
	t.result = result
	s.mu.Unlock()
	return s.view(t), nil
}

// Cancel abandons the ticket's pending action
func (s *Service) Cancel(id uuid.UUID, adminID string) (*Ticket, error) {
	t, err := s.lookup(id, adminID)
	if err != nil {
		return nil, err
	}
	if err := t.pipeline.Cancel(); err != nil {
		return s.view(t), err
	}
	return s.view(t), nil
}

// RecordState returns the locally known state of a target record
func (s *Service) RecordState(targetType, targetID string) (string, bool) {
	return s.records.Get(RecordKey(targetType, targetID))
}

// Sweep drops expired tickets, cancelling any still awaiting confirmation
func (s *Service) Sweep() int {
	now := s.now()
	s.mu.Lock()
	var expired []*ticket
	for id, t := range s.tickets {
		if now.Before(t.expiresAt) || t.pipeline.Snapshot().Loading {
			continue
		}
		expired = append(expired, t)
		delete(s.tickets, id)
	}
	s.mu.Unlock()

	for _, t := range expired {
		_ = t.pipeline.Cancel()
	}
	return len(expired)
}

// RunSweeper sweeps expired tickets until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Str("component", "action").Int("expired", n).Msg("Swept expired action tickets")
			}
		}
	}
}

// Drain waits for outstanding audit writes and notifications of every pipeline
func (s *Service) Drain() {
	s.background.Wait()
}

func (s *Service) lookup(id uuid.UUID, adminID string) (*ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.adminID != adminID {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (s *Service) remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.tickets, id)
	s.mu.Unlock()
}

func (s *Service) view(t *ticket) *Ticket {
	v := &Ticket{
		ID:         t.id,
		AdminID:    t.adminID,
		Permission: t.permission,
		TargetID:   t.targetID,
		TargetType: t.targetType,
		Snapshot:   t.pipeline.Snapshot(),
		CreatedAt:  t.createdAt,
		ExpiresAt:  t.expiresAt,
	}
	s.mu.Lock()
	v.Result = t.result
	s.mu.Unlock()
	if t.targetID != "" {
		v.RecordState, _ = s.records.Get(RecordKey(t.targetType, t.targetID))
	}
	return v
}
