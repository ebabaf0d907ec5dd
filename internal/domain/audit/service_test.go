package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mwork/admin-console/internal/domain/rbac"
)

var errSinkDown = errors.New("sink unreachable")

// memStore is a durable store double that can be switched off
type memStore struct {
	mu      sync.Mutex
	entries []Entry
	down    bool
	// lostAck stores the entry but still reports a failure
	lostAck bool
}

func (s *memStore) setDown(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = v
}

func (s *memStore) Insert(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errSinkDown
	}
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return nil
		}
	}
	s.entries = append(s.entries, e)
	if s.lostAck {
		return context.DeadlineExceeded
	}
	return nil
}

func (s *memStore) List(_ context.Context, f Filter, limit, offset int) ([]Entry, int, error) {
	all, err := s.ListAll(context.Background(), f)
	if err != nil {
		return nil, 0, err
	}
	return slicePage(all, offset, limit), len(all), nil
}

func (s *memStore) ListAll(_ context.Context, f Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errSinkDown
	}
	out := filterEntries(append([]Entry(nil), s.entries...), f)
	sortNewestFirst(out)
	return out, nil
}

func (s *memStore) ExistingIDs(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errSinkDown
	}
	var found []string
	for _, id := range ids {
		for _, e := range s.entries {
			if e.ID == id {
				found = append(found, id)
				break
			}
		}
	}
	return found, nil
}

// steppingClock returns strictly increasing instants
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func suspendEntry(target string) NewEntry {
	return NewEntry{
		Action:     "user.suspend",
		TargetID:   target,
		TargetType: "user",
		Details:    Details{"reason": "policy violation"},
		AdminID:    "admin-1",
		AdminRole:  rbac.RoleSupportAdmin,
	}
}

func TestAppendThenQueryWhenSinkDown(t *testing.T) {
	store := &memStore{down: true}
	trail := NewTrail(store)

	e := trail.Append(context.Background(), suspendEntry("user-42"))
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("entry not stamped: %+v", e)
	}

	page, err := trail.Query(context.Background(), Filter{Action: "user.suspend"}, 1, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Source != SourceFallback {
		t.Fatalf("expected fallback source, got %s", page.Source)
	}
	if page.Total != 1 || len(page.Entries) != 1 || page.Entries[0].ID != e.ID {
		t.Fatalf("expected just-appended entry, got %+v", page)
	}
}

func TestAppendThenQueryWhenSinkUp(t *testing.T) {
	store := &memStore{}
	trail := NewTrail(store)

	e := trail.Append(context.Background(), suspendEntry("user-42"))

	page, err := trail.Query(context.Background(), Filter{TargetType: "user"}, 1, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Source != SourceDurable || page.Total != 1 || page.Entries[0].ID != e.ID {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestQueryMergesUnsyncedEntriesWithDurable(t *testing.T) {
	store := &memStore{}
	trail := NewTrail(store, WithClock(steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	first := trail.Append(context.Background(), suspendEntry("u1"))
	store.setDown(true)
	second := trail.Append(context.Background(), suspendEntry("u2"))
	store.setDown(false)

	page, err := trail.Query(context.Background(), Filter{}, 1, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Total != 2 || len(page.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", page)
	}
	if page.Entries[0].ID != second.ID || page.Entries[1].ID != first.ID {
		t.Fatal("expected newest first")
	}

	if n := trail.Resync(context.Background()); n != 1 {
		t.Fatalf("expected 1 resynced entry, got %d", n)
	}
	if n := trail.Resync(context.Background()); n != 0 {
		t.Fatalf("expected nothing left to resync, got %d", n)
	}
	all, _ := store.ListAll(context.Background(), Filter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 durable entries after resync, got %d", len(all))
	}
}

func TestQueryTotalCountsLandedEntryOnce(t *testing.T) {
	store := &memStore{}
	trail := NewTrail(store, WithClock(steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	// committed durably, but the write reported a timeout
	store.lostAck = true
	landed := trail.Append(context.Background(), suspendEntry("u0"))
	store.lostAck = false
	for i := 1; i <= 5; i++ {
		trail.Append(context.Background(), suspendEntry(fmt.Sprintf("u%d", i)))
	}

	page, err := trail.Query(context.Background(), Filter{}, 1, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Total != 6 || len(page.Entries) != 2 {
		t.Fatalf("expected total 6 with 2 entries, got total %d (%d entries)", page.Total, len(page.Entries))
	}

	last, _ := trail.Query(context.Background(), Filter{}, 3, 2)
	if last.Total != 6 || len(last.Entries) != 2 || last.Entries[1].ID != landed.ID {
		t.Fatalf("expected landed entry once on the last page, got %+v", last)
	}
	if n := trail.Resync(context.Background()); n != 0 {
		t.Fatalf("landed entry should be marked synced, resync wrote %d", n)
	}
}

func TestQueryFallsBackWhenReconcileFails(t *testing.T) {
	store := &memStore{down: true}
	trail := NewTrail(store)
	e := trail.Append(context.Background(), suspendEntry("u1"))

	page, err := trail.Query(context.Background(), Filter{}, 1, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Source != SourceFallback || page.Total != 1 || page.Entries[0].ID != e.ID {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	trail := NewTrail(nil, WithBufferSize(3), WithClock(steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	for i := 0; i < 5; i++ {
		trail.Append(context.Background(), suspendEntry(fmt.Sprintf("u%d", i)))
	}

	entries, err := trail.ExportAll(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"u4", "u3", "u2"}
	for i, e := range entries {
		if e.TargetID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], e.TargetID)
		}
	}
}

func TestFilterSemanticsMatchAcrossPaths(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{}
	trail := NewTrail(store, WithClock(steppingClock(start)))

	trail.Append(context.Background(), suspendEntry("u1")) // start+1s
	mid := trail.Append(context.Background(), NewEntry{
		Action: "escrow.release", TargetID: "esc-9", TargetType: "escrow",
		AdminID: "admin-2", AdminRole: rbac.RoleOperationsAdmin,
	}) // start+2s
	trail.Append(context.Background(), suspendEntry("u3")) // start+3s

	from := start.Add(2 * time.Second)
	to := start.Add(3 * time.Second)
	filters := []Filter{
		{Action: "user.suspend"},
		{AdminID: "admin-2"},
		{TargetType: "escrow"},
		{From: &from, To: &to},
		{From: &from, To: &from},
		{Action: "user.suspend", From: &from},
	}

	for i, f := range filters {
		store.setDown(false)
		durable, err := trail.ExportAll(context.Background(), f)
		if err != nil {
			t.Fatalf("filter %d durable: %v", i, err)
		}
		store.setDown(true)
		local, err := trail.ExportAll(context.Background(), f)
		if err != nil {
			t.Fatalf("filter %d fallback: %v", i, err)
		}
		if len(durable) != len(local) {
			t.Fatalf("filter %d: durable %d entries, fallback %d", i, len(durable), len(local))
		}
		for j := range durable {
			if durable[j].ID != local[j].ID {
				t.Fatalf("filter %d: order differs at %d", i, j)
			}
		}
	}

	store.setDown(true)
	got, _ := trail.ExportAll(context.Background(), Filter{From: &from, To: &from})
	if len(got) != 1 || got[0].ID != mid.ID {
		t.Fatalf("inclusive single-instant range failed: %+v", got)
	}
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	trail := NewTrail(&memStore{down: true}, WithBufferSize(500))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				trail.Append(context.Background(), suspendEntry(fmt.Sprintf("u%d-%d", i, j)))
			}
		}(i)
	}
	wg.Wait()

	entries, _ := trail.ExportAll(context.Background(), Filter{})
	if len(entries) != 250 {
		t.Fatalf("expected 250 entries, got %d", len(entries))
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestQueryPagination(t *testing.T) {
	trail := NewTrail(nil, WithClock(steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	for i := 0; i < 7; i++ {
		trail.Append(context.Background(), suspendEntry(fmt.Sprintf("u%d", i)))
	}

	page, _ := trail.Query(context.Background(), Filter{}, 2, 3)
	if page.Total != 7 || len(page.Entries) != 3 || page.Entries[0].TargetID != "u3" {
		t.Fatalf("unexpected page 2: %+v", page)
	}
	page, _ = trail.Query(context.Background(), Filter{}, 5, 3)
	if len(page.Entries) != 0 {
		t.Fatalf("expected empty page, got %d", len(page.Entries))
	}
	page, _ = trail.Query(context.Background(), Filter{}, 0, 1000)
	if page.Page != 1 || page.PageSize != MaxPageSize {
		t.Fatalf("page bounds not normalised: %+v", page)
	}
}

func TestAppendCopiesDetails(t *testing.T) {
	trail := NewTrail(nil)
	in := suspendEntry("u1")
	trail.Append(context.Background(), in)
	in.Details["reason"] = "tampered"

	entries, _ := trail.ExportAll(context.Background(), Filter{})
	if entries[0].Details["reason"] != "policy violation" {
		t.Fatalf("stored entry was mutated: %v", entries[0].Details)
	}
}
