package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwork/admin-console/internal/domain/audit"
	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/pkg/metrics"
	"github.com/mwork/admin-console/internal/pkg/optimistic"
)

// Input is handed to the operation once the action is confirmed
type Input struct {
	Reason     string
	Credential string
}

// Operation performs the actual mutation
type Operation func(ctx context.Context, in Input) (any, error)

// Request describes one action attempt
type Request struct {
	Permission    rbac.Permission
	Role          rbac.Role
	AdminID       string
	Operation     Operation
	TargetID      string
	TargetType    string
	AuditAction   string
	RequireReason bool
	// NextState, when set, is applied to the target record while the operation runs
	// and reverted for that record alone if it fails.
	NextState string
	Title     string
	Message   string
	Details   map[string]any
	OnSuccess func(result any)
	OnError   func(err error)
}

// Prompt is the confirmation disclosure shown before execution
type Prompt struct {
	Permission        rbac.Permission `json:"permission"`
	Risk              rbac.RiskTier   `json:"risk"`
	Title             string          `json:"title"`
	Message           string          `json:"message"`
	Warning           string          `json:"warning,omitempty"`
	RequireReason     bool            `json:"require_reason"`
	RequireCredential bool            `json:"require_credential"`
}

// Confirmation is the operator's answer to a Prompt
type Confirmation struct {
	Reason     string
	Credential string
}

// Snapshot is the renderable view of a pipeline
type Snapshot struct {
	State   State   `json:"state"`
	Prompt  *Prompt `json:"prompt,omitempty"`
	Loading bool    `json:"loading"`
	Outcome State   `json:"outcome,omitempty"`
	Error   string  `json:"error,omitempty"`
	// History lists the states visited by the current or last attempt
	History []State `json:"history,omitempty"`
}

// Reauthenticator performs step-up verification of a credential
type Reauthenticator interface {
	Reauthenticate(ctx context.Context, adminID, credential string) error
}

// AuditAppender records completed actions
type AuditAppender interface {
	Append(ctx context.Context, in audit.NewEntry) audit.Entry
}

// Notifier fans out action outcomes to connected consoles
type Notifier interface {
	Broadcast(ctx context.Context, kind string, payload any) error
}

// Event is broadcast when an attempt reaches a terminal state
type Event struct {
	AdminID    string          `json:"admin_id"`
	Permission rbac.Permission `json:"permission"`
	TargetID   string          `json:"target_id,omitempty"`
	TargetType string          `json:"target_type,omitempty"`
	Outcome    string          `json:"outcome"`
	Message    string          `json:"message,omitempty"`
	At         time.Time       `json:"at"`
}

// EventKind is the notifier message kind for action outcomes
const EventKind = "action.outcome"

// Option configures Pipeline
type Option func(*Pipeline)

// WithNotifier broadcasts terminal outcomes
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRecordStates tracks optimistic target states for requests declaring NextState
func WithRecordStates(s *optimistic.Store[string, string]) Option {
	return func(p *Pipeline) { p.records = s }
}

func withWaitGroup(wg *sync.WaitGroup) Option {
	return func(p *Pipeline) { p.background = wg }
}

// Pipeline drives one action at a time through permission check, confirmation,
// step-up and execution. Independent pipelines share nothing but their collaborators.
type Pipeline struct {
	policy   *rbac.Policy
	reauth   Reauthenticator
	trail    AuditAppender
	notifier Notifier
	records  *optimistic.Store[string, string]

	background *sync.WaitGroup

	mu      sync.Mutex
	state   State
	pending *Request
	prompt  *Prompt
	loading bool
	outcome State
	lastErr string
	history []State
}

// NewPipeline creates an idle pipeline
func NewPipeline(policy *rbac.Policy, reauth Reauthenticator, trail AuditAppender, opts ...Option) *Pipeline {
	p := &Pipeline{
		policy: policy,
		reauth: reauth,
		trail:  trail,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.background == nil {
		p.background = &sync.WaitGroup{}
	}
	return p
}

// Execute checks the permission and, when granted, parks the pipeline awaiting confirmation
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Prompt, error) {
	if req.Operation == nil || !req.Permission.Valid() {
		return nil, ErrInvalidRequest
	}
	req.Role = rbac.NormalizeRole(string(req.Role))

	p.mu.Lock()
	if p.loading || p.state != StateIdle {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.history = nil
	p.outcome = ""
	p.lastErr = ""
	p.transition(StateCheckingPermission)

	if !p.policy.HasPermission(req.Role, req.Permission) {
		p.transition(StateDenied)
		p.reset(StateError, ErrPermissionDenied)
		p.mu.Unlock()

		log.Warn().
			Str("component", "action").
			Str("admin_id", req.AdminID).
			Str("role", string(req.Role)).
			Str("permission", string(req.Permission)).
			Msg("Admin action denied")
		p.report(ctx, &req, outcomeDenied, ErrPermissionDenied)
		return nil, ErrPermissionDenied
	}

	prompt := p.buildPrompt(&req)
	p.pending = &req
	p.prompt = prompt
	p.transition(StateAwaitingConfirmation)
	p.mu.Unlock()

	cp := *prompt
	return &cp, nil
}

// Cancel abandons the action awaiting confirmation. No callback fires.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	if p.loading || p.state != StateAwaitingConfirmation {
		p.mu.Unlock()
		return ErrNoPendingAction
	}
	req := p.pending
	p.transition(StateCancelled)
	p.reset(StateCancelled, ErrConfirmationCancelled)
	p.mu.Unlock()

	metrics.ActionOutcome(string(req.Permission), outcomeCancelled)
	return nil
}

// Confirm validates the confirmation, performs step-up for critical actions and runs the
// operation exactly once. Reason and credential problems leave the action awaiting confirmation.
func (p *Pipeline) Confirm(ctx context.Context, c Confirmation) (any, error) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	if p.state != StateAwaitingConfirmation || p.pending == nil {
		p.mu.Unlock()
		return nil, ErrNoPendingAction
	}
	req, prompt := p.pending, p.prompt
	reason := strings.TrimSpace(c.Reason)
	if prompt.RequireReason && reason == "" {
		p.mu.Unlock()
		return nil, ErrReasonRequired
	}
	if prompt.RequireCredential && c.Credential == "" {
		p.mu.Unlock()
		return nil, ErrCredentialRequired
	}
	p.loading = true
	p.transition(StateConfirmed)
	p.mu.Unlock()

	if prompt.RequireCredential {
		p.setState(StateAwaitingReauth)
		if err := p.verify(ctx, req.AdminID, c.Credential); err != nil {
			rerr := &ReauthError{Err: err}
			p.finish(StateReauthFailed, StateError, rerr)
			log.Warn().
				Str("component", "action").
				Str("admin_id", req.AdminID).
				Str("permission", string(req.Permission)).
				Err(err).
				Msg("Step-up re-authentication failed")
			p.report(ctx, req, outcomeReauthFailed, rerr)
			return nil, rerr
		}
		p.setState(StateReauthOK)
	}

	p.setState(StateExecuting)
	change, tracked := p.applyNextState(req)
	result, err := p.invoke(ctx, req, Input{Reason: reason, Credential: c.Credential})
	if err != nil {
		if tracked {
			p.records.Rollback(change)
		}
		xerr := newExecutionError(err)
		p.finish(StateExecutionFailed, StateError, xerr)
		log.Warn().
			Str("component", "action").
			Str("admin_id", req.AdminID).
			Str("permission", string(req.Permission)).
			Str("target_id", req.TargetID).
			Err(err).
			Msg("Admin action failed")
		p.report(ctx, req, outcomeFailed, xerr)
		return nil, xerr
	}
	if tracked {
		p.records.Commit(change)
	}

	p.setState(StateExecutionOK)
	p.setState(StateLogging)
	p.record(ctx, req, prompt, reason)
	p.finish(StateSuccess, StateSuccess, nil)
	p.report(ctx, req, outcomeSuccess, nil)
	if req.OnSuccess != nil {
		req.OnSuccess(result)
	}
	return result, nil
}

// Snapshot returns the current renderable state
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		State:   p.state,
		Loading: p.loading,
		Outcome: p.outcome,
		Error:   p.lastErr,
		History: append([]State(nil), p.history...),
	}
	if p.prompt != nil {
		cp := *p.prompt
		s.Prompt = &cp
	}
	return s
}

// Drain waits for outstanding audit writes and notifications
func (p *Pipeline) Drain() {
	p.background.Wait()
}

func (p *Pipeline) buildPrompt(req *Request) *Prompt {
	risk := p.policy.RiskLevelOf(req.Permission)
	prompt := &Prompt{
		Permission:        req.Permission,
		Risk:              risk,
		Title:             req.Title,
		Message:           req.Message,
		RequireReason:     req.RequireReason || risk.RequiresReason(),
		RequireCredential: risk.RequiresReauth(),
	}
	if prompt.Title == "" {
		prompt.Title = "Confirm action"
	}
	if prompt.Message == "" {
		prompt.Message = fmt.Sprintf("You are about to perform %q", req.Permission)
		if req.TargetID != "" {
			prompt.Message += fmt.Sprintf(" on %s %s", req.TargetType, req.TargetID)
		}
		prompt.Message += "."
	}
	switch risk {
	case rbac.RiskCritical:
		prompt.Warning = "This is a critical action. Re-enter your password to continue."
	case rbac.RiskHigh:
		prompt.Warning = "This is a high-risk action and will be recorded with your reason."
	}
	return prompt
}

func (p *Pipeline) verify(ctx context.Context, adminID, credential string) (err error) {
	if p.reauth == nil {
		return ErrReauthFailed
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "action").Interface("panic", r).Msg("Re-authentication panicked")
			err = ErrReauthFailed
		}
	}()
	return p.reauth.Reauthenticate(ctx, adminID, credential)
}

func (p *Pipeline) invoke(ctx context.Context, req *Request, in Input) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("component", "action").
				Str("permission", string(req.Permission)).
				Interface("panic", r).
				Msg("Admin action panicked")
			result, err = nil, errors.New(DefaultFailureMessage)
		}
	}()
	// once started the operation runs to completion
	return req.Operation(context.WithoutCancel(ctx), in)
}

func (p *Pipeline) applyNextState(req *Request) (optimistic.Change[string, string], bool) {
	if p.records == nil || req.NextState == "" || req.TargetID == "" {
		return optimistic.Change[string, string]{}, false
	}
	return p.records.Apply(RecordKey(req.TargetType, req.TargetID), req.NextState), true
}

// record writes the audit entry in the background; its outcome never reaches the caller
func (p *Pipeline) record(ctx context.Context, req *Request, prompt *Prompt, reason string) {
	if p.trail == nil {
		return
	}
	details := make(audit.Details, len(req.Details)+3)
	for k, v := range req.Details {
		details[k] = v
	}
	details["permission"] = string(req.Permission)
	details["risk"] = string(prompt.Risk)
	if reason != "" {
		details["reason"] = reason
	}
	entry := audit.NewEntry{
		Action:     req.AuditAction,
		TargetID:   req.TargetID,
		TargetType: req.TargetType,
		Details:    details,
		AdminID:    req.AdminID,
		AdminRole:  req.Role,
	}
	if entry.Action == "" {
		entry.Action = string(req.Permission)
	}

	bg := context.WithoutCancel(ctx)
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("component", "action").Interface("panic", r).Msg("Audit append panicked")
			}
		}()
		p.trail.Append(bg, entry)
	}()
}

// report counts the outcome, broadcasts it and fires OnError for failures
func (p *Pipeline) report(ctx context.Context, req *Request, outcome string, err error) {
	metrics.ActionOutcome(string(req.Permission), outcome)

	if p.notifier != nil {
		ev := Event{
			AdminID:    req.AdminID,
			Permission: req.Permission,
			TargetID:   req.TargetID,
			TargetType: req.TargetType,
			Outcome:    outcome,
			At:         time.Now().UTC(),
		}
		if err != nil {
			ev.Message = err.Error()
		}
		bg := context.WithoutCancel(ctx)
		p.background.Add(1)
		go func() {
			defer p.background.Done()
			if err := p.notifier.Broadcast(bg, EventKind, ev); err != nil {
				log.Warn().Err(err).Str("component", "action").Msg("Failed to broadcast action outcome")
			}
		}()
	}

	if err != nil && req.OnError != nil {
		req.OnError(err)
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.transition(s)
	p.mu.Unlock()
}

// finish records the failing or succeeding step and the terminal state, then returns to idle
func (p *Pipeline) finish(step, terminal State, err error) {
	p.mu.Lock()
	p.transition(step)
	p.reset(terminal, err)
	p.mu.Unlock()
}

// reset must be called with mu held
func (p *Pipeline) reset(terminal State, err error) {
	if terminal != p.state {
		p.transition(terminal)
	}
	p.outcome = terminal
	p.lastErr = ""
	if err != nil {
		p.lastErr = err.Error()
	}
	p.pending = nil
	p.prompt = nil
	p.loading = false
	p.transition(StateIdle)
}

// transition must be called with mu held
func (p *Pipeline) transition(s State) {
	p.state = s
	p.history = append(p.history, s)
}

// RecordKey identifies a target record in the optimistic state store
func RecordKey(targetType, targetID string) string {
	return targetType + ":" + targetID
}
