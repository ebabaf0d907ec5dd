package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/audit"
	"github.com/mwork/admin-console/internal/domain/rbac"
)

func newTestService(reauth Reauthenticator) (*Service, *audit.Trail, *time.Time) {
	trail := audit.NewTrail(nil)
	svc := NewService(rbac.DefaultPolicy(), reauth, trail, nil, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }
	return svc, trail, &now
}

func TestServiceTicketLifecycle(t *testing.T) {
	svc, trail, _ := newTestService(&fakeReauth{password: "correct"})
	op := &countingOp{}

	tk, err := svc.Start(context.Background(), escrowRequest(op))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if tk.Snapshot.State != StateAwaitingConfirmation || tk.Snapshot.Prompt == nil {
		t.Fatalf("unexpected ticket %+v", tk)
	}

	if _, err := svc.Get(tk.ID, "someone-else"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("tickets are private to their admin, got %v", err)
	}

	done, err := svc.Confirm(context.Background(), tk.ID, "admin-2", Confirmation{Reason: "payout verified", Credential: "correct"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if done.Result != "done" || done.Snapshot.Outcome != StateSuccess {
		t.Fatalf("unexpected ticket %+v", done)
	}
	if done.RecordState != "released" {
		t.Fatalf("expected record state released, got %q", done.RecordState)
	}
	if st, ok := svc.RecordState("escrow", "escrow-7"); !ok || st != "released" {
		t.Fatalf("unexpected record state %q %v", st, ok)
	}

	svc.Drain()
	entries, _ := trail.ExportAll(context.Background(), audit.Filter{Action: "escrow.release"})
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
}

func TestServiceDeniedGetsNoTicket(t *testing.T) {
	svc, _, _ := newTestService(&fakeReauth{})
	req := escrowRequest(&countingOp{})
	req.Role = rbac.RoleModerator

	if _, err := svc.Start(context.Background(), req); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if n := len(svc.tickets); n != 0 {
		t.Fatalf("expected no tickets, got %d", n)
	}
}

func TestServiceCancel(t *testing.T) {
	svc, _, _ := newTestService(&fakeReauth{})
	op := &countingOp{}

	tk, err := svc.Start(context.Background(), suspendRequest(op))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := svc.Cancel(tk.ID, "admin-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if view.Snapshot.Outcome != StateCancelled {
		t.Fatalf("expected cancelled, got %+v", view.Snapshot)
	}
	if _, err := svc.Confirm(context.Background(), tk.ID, "admin-1", Confirmation{Reason: "x"}); !errors.Is(err, ErrNoPendingAction) {
		t.Fatalf("expected ErrNoPendingAction, got %v", err)
	}
	if op.calls.Load() != 0 {
		t.Fatal("cancelled action must not run")
	}
}

func TestServiceTicketExpires(t *testing.T) {
	svc, _, now := newTestService(&fakeReauth{})
	op := &countingOp{}

	tk, err := svc.Start(context.Background(), suspendRequest(op))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	*now = now.Add(2 * time.Minute)

	if _, err := svc.Confirm(context.Background(), tk.ID, "admin-1", Confirmation{Reason: "late"}); !errors.Is(err, ErrTicketExpired) {
		t.Fatalf("expected ErrTicketExpired, got %v", err)
	}
	if _, err := svc.Get(tk.ID, "admin-1"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expired ticket should be gone, got %v", err)
	}
	if op.calls.Load() != 0 {
		t.Fatal("expired action must not run")
	}
}

func TestServiceSweep(t *testing.T) {
	svc, _, now := newTestService(&fakeReauth{})

	if _, err := svc.Start(context.Background(), suspendRequest(&countingOp{})); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n := svc.Sweep(); n != 0 {
		t.Fatalf("nothing should expire yet, swept %d", n)
	}
	*now = now.Add(time.Hour)
	if n := svc.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept ticket, got %d", n)
	}
	if _, err := svc.Get(uuid.New(), "admin-1"); !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}
