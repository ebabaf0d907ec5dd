package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/pkg/password"
)

type fakeRepo struct {
	admins map[uuid.UUID]*Admin
	err    error
	logins int
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Admin, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.admins[id], nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*Admin, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) UpdateLastLogin(context.Context, uuid.UUID, string) error {
	r.logins++
	return nil
}

func newTestAdmin(t *testing.T, role rbac.Role, pwd string) *Admin {
	t.Helper()
	hash, err := password.HashWithCost(pwd, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &Admin{
		ID:           uuid.New(),
		Email:        string(role) + "@mwork.test",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
}

func newTestService(admins ...*Admin) (*Service, *fakeRepo) {
	repo := &fakeRepo{admins: make(map[uuid.UUID]*Admin)}
	for _, a := range admins {
		repo.admins[a.ID] = a
	}
	svc := NewService(repo, NewMemoryCounter(),
		WithLockout(3, time.Minute),
		WithRateLimit(rate.Inf, 1),
	)
	return svc, repo
}

func TestLogin(t *testing.T) {
	admin := newTestAdmin(t, rbac.RoleFinanceAdmin, "s3cret")
	svc, repo := newTestService(admin)

	got, err := svc.Login(context.Background(), admin.Email, "s3cret", "127.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != admin.ID || repo.logins != 1 {
		t.Fatalf("unexpected login result %+v, logins=%d", got, repo.logins)
	}

	if _, err := svc.Login(context.Background(), admin.Email, "nope", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	admin.IsActive = false
	if _, err := svc.Login(context.Background(), admin.Email, "s3cret", ""); !errors.Is(err, ErrAdminInactive) {
		t.Fatalf("expected ErrAdminInactive, got %v", err)
	}
}

func TestReauthenticate(t *testing.T) {
	admin := newTestAdmin(t, rbac.RoleOperationsAdmin, "correct")
	svc, _ := newTestService(admin)
	ctx := context.Background()

	if err := svc.Reauthenticate(ctx, admin.ID.String(), "correct"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := svc.Reauthenticate(ctx, admin.ID.String(), "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if err := svc.Reauthenticate(ctx, "not-a-uuid", "correct"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for bad id, got %v", err)
	}
	if err := svc.Reauthenticate(ctx, uuid.NewString(), "correct"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for unknown admin, got %v", err)
	}
}

func TestReauthenticateLocksOut(t *testing.T) {
	admin := newTestAdmin(t, rbac.RoleOperationsAdmin, "correct")
	svc, _ := newTestService(admin)
	ctx := context.Background()
	id := admin.ID.String()

	_ = svc.Reauthenticate(ctx, id, "bad")
	_ = svc.Reauthenticate(ctx, id, "bad")
	if err := svc.Reauthenticate(ctx, id, "bad"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut on third failure, got %v", err)
	}
	if err := svc.Reauthenticate(ctx, id, "correct"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("correct credential must not bypass lockout, got %v", err)
	}
}

func TestReauthenticateSuccessResetsFailures(t *testing.T) {
	admin := newTestAdmin(t, rbac.RoleOperationsAdmin, "correct")
	svc, _ := newTestService(admin)
	ctx := context.Background()
	id := admin.ID.String()

	_ = svc.Reauthenticate(ctx, id, "bad")
	_ = svc.Reauthenticate(ctx, id, "bad")
	if err := svc.Reauthenticate(ctx, id, "correct"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := svc.Reauthenticate(ctx, id, "bad"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("counter should restart after success, got %v", err)
	}
}

func TestReauthenticateThrottled(t *testing.T) {
	admin := newTestAdmin(t, rbac.RoleOperationsAdmin, "correct")
	repo := &fakeRepo{admins: map[uuid.UUID]*Admin{admin.ID: admin}}
	svc := NewService(repo, nil, WithRateLimit(rate.Every(time.Hour), 1))
	ctx := context.Background()

	if err := svc.Reauthenticate(ctx, admin.ID.String(), "correct"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := svc.Reauthenticate(ctx, admin.ID.String(), "correct"); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestReauthenticateBackendFailure(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("connection refused")

	err := svc.Reauthenticate(context.Background(), uuid.NewString(), "x")
	if !errors.Is(err, ErrVerificationUnavailable) {
		t.Fatalf("expected ErrVerificationUnavailable, got %v", err)
	}
}

func TestMemoryCounterExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := &memoryCounter{entries: make(map[string]memoryEntry), now: func() time.Time { return now }}
	ctx := context.Background()

	if n, _ := c.Increment(ctx, "a", time.Minute); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	if n, _ := c.Increment(ctx, "a", time.Minute); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	now = now.Add(2 * time.Minute)
	if n, _ := c.Failures(ctx, "a"); n != 0 {
		t.Fatalf("expected window to expire, got %d", n)
	}
}

func TestIdleLimitersAreEvicted(t *testing.T) {
	repo := &fakeRepo{admins: make(map[uuid.UUID]*Admin)}
	svc := NewService(repo, nil, WithRateLimit(rate.Every(time.Second), 1))
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = svc.Reauthenticate(ctx, uuid.NewString(), "x")
	}
	if n := len(svc.limiters); n != 5 {
		t.Fatalf("expected 5 limiters, got %d", n)
	}

	now = now.Add(limiterIdleTTL + time.Minute)
	_ = svc.Reauthenticate(ctx, uuid.NewString(), "x")
	if n := len(svc.limiters); n != 1 {
		t.Fatalf("expected idle limiters to be dropped, got %d", n)
	}
}

func TestSlowLimiterSurvivesSweep(t *testing.T) {
	admin := newTestAdmin(t, rbac.RoleOperationsAdmin, "correct")
	repo := &fakeRepo{admins: map[uuid.UUID]*Admin{admin.ID: admin}}
	svc := NewService(repo, nil, WithRateLimit(rate.Every(time.Hour), 1))
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	if err := svc.Reauthenticate(ctx, admin.ID.String(), "correct"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	// sweep runs, but the bucket has not refilled yet
	now = now.Add(limiterIdleTTL + time.Minute)
	_ = svc.Reauthenticate(ctx, uuid.NewString(), "x")
	if err := svc.Reauthenticate(ctx, admin.ID.String(), "correct"); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}
