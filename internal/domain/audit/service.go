package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwork/admin-console/internal/pkg/ids"
	"github.com/mwork/admin-console/internal/pkg/metrics"
)

const (
	DefaultBufferSize   = 200
	DefaultWriteTimeout = 5 * time.Second
	DefaultPageSize     = 20
	MaxPageSize         = 100
)

// Trail is the append-only audit log: a durable store backed by a bounded local buffer
type Trail struct {
	store        Store
	buffer       *ringBuffer
	writeTimeout time.Duration
	now          func() time.Time
}

// Option configures a Trail
type Option func(*Trail)

// WithBufferSize sets the local fallback capacity
func WithBufferSize(n int) Option {
	return func(t *Trail) {
		t.buffer = newRingBuffer(n)
	}
}

// WithWriteTimeout bounds each durable write
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Trail) {
		if d > 0 {
			t.writeTimeout = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		t.now = now
	}
}

// NewTrail creates an audit trail. A nil store runs on the local buffer alone.
func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{
		store:        store,
		buffer:       newRingBuffer(DefaultBufferSize),
		writeTimeout: DefaultWriteTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append records an entry. It never fails from the caller's point of view:
// the entry always lands in the local buffer, and durable write errors are only logged.
func (t *Trail) Append(ctx context.Context, in NewEntry) Entry {
	// Postgres keeps microseconds; truncating keeps both read paths identical.
	ts := t.now().UTC().Truncate(time.Microsecond)
	e := Entry{
		ID:         ids.NewAt(ts),
		Action:     in.Action,
		TargetID:   in.TargetID,
		TargetType: in.TargetType,
		Details:    in.Details.clone(),
		AdminID:    in.AdminID,
		AdminRole:  in.AdminRole,
		Timestamp:  ts,
	}

	if evicted, ok := t.buffer.push(e); ok && !evicted.synced {
		log.Error().
			Str("component", "audit").
			Str("audit_id", evicted.entry.ID).
			Str("action", evicted.entry.Action).
			Msg("Audit entry evicted from fallback buffer before durable write")
	}
	metrics.AuditBufferSize(t.buffer.len())

	if t.store == nil {
		metrics.AuditAppended(SourceFallback)
		return e
	}

	if err := t.insert(ctx, e); err != nil {
		metrics.AuditAppended(SourceFallback)
		log.Warn().
			Err(err).
			Str("component", "audit").
			Str("audit_id", e.ID).
			Str("action", e.Action).
			Msg("Durable audit write failed, kept in local buffer")
		return e
	}

	t.buffer.markSynced(e.ID)
	metrics.AuditAppended(SourceDurable)
	return e
}

func (t *Trail) insert(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.writeTimeout)
	defer cancel()
	return t.store.Insert(ctx, e)
}

// Query returns one page of entries matching f, newest first
func (t *Trail) Query(ctx context.Context, f Filter, page, pageSize int) (*Page, error) {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	if t.store == nil {
		return t.pageFromBuffer(f, page, pageSize), nil
	}

	pending, err := t.reconcile(ctx, filterEntries(t.buffer.entries(true), f))
	if err != nil {
		t.logFallback(err, "query")
		return t.pageFromBuffer(f, page, pageSize), nil
	}
	if len(pending) == 0 {
		entries, total, err := t.store.List(ctx, f, pageSize, offset)
		if err != nil {
			t.logFallback(err, "query")
			return t.pageFromBuffer(f, page, pageSize), nil
		}
		return &Page{Entries: nonNil(entries), Total: total, Page: page, PageSize: pageSize, Source: SourceDurable}, nil
	}

	// Unsynced local entries must interleave with durable ones, so read everything up to this page.
	entries, total, err := t.store.List(ctx, f, offset+pageSize, 0)
	if err != nil {
		t.logFallback(err, "query")
		return t.pageFromBuffer(f, page, pageSize), nil
	}

	merged, dupes := mergeEntries(entries, pending)
	return &Page{
		Entries:  slicePage(merged, offset, pageSize),
		Total:    total + len(pending) - dupes,
		Page:     page,
		PageSize: pageSize,
		Source:   SourceDurable,
	}, nil
}

// reconcile marks entries that already landed durably (a write that timed out
// after commit, say) as synced and returns only those still missing from the store.
func (t *Trail) reconcile(ctx context.Context, pending []Entry) ([]Entry, error) {
	if len(pending) == 0 {
		return pending, nil
	}
	ids := make([]string, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}
	found, err := t.store.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return pending, nil
	}

	landed := make(map[string]bool, len(found))
	for _, id := range found {
		landed[id] = true
		t.buffer.markSynced(id)
	}
	out := pending[:0]
	for _, e := range pending {
		if !landed[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// ExportAll returns every entry matching f, newest first
func (t *Trail) ExportAll(ctx context.Context, f Filter) ([]Entry, error) {
	if t.store == nil {
		return t.fromBuffer(f), nil
	}

	entries, err := t.store.ListAll(ctx, f)
	if err != nil {
		t.logFallback(err, "export")
		return t.fromBuffer(f), nil
	}

	merged, _ := mergeEntries(entries, filterEntries(t.buffer.entries(true), f))
	return merged, nil
}

// Resync retries durable writes for buffered entries that have not landed yet.
// It returns the number of entries written.
func (t *Trail) Resync(ctx context.Context) int {
	if t.store == nil {
		return 0
	}

	written := 0
	for _, e := range t.buffer.entries(true) {
		if ctx.Err() != nil {
			break
		}
		if err := t.insert(ctx, e); err != nil {
			log.Debug().Err(err).Str("component", "audit").Msg("Audit resync stopped, sink still unavailable")
			break
		}
		t.buffer.markSynced(e.ID)
		written++
	}
	if written > 0 {
		log.Info().Str("component", "audit").Int("entries", written).Msg("Audit entries resynced to durable store")
	}
	return written
}

// RunResync calls Resync every interval until ctx is done
func (t *Trail) RunResync(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Resync(ctx)
		}
	}
}

func (t *Trail) pageFromBuffer(f Filter, page, pageSize int) *Page {
	all := t.fromBuffer(f)
	return &Page{
		Entries:  slicePage(all, (page-1)*pageSize, pageSize),
		Total:    len(all),
		Page:     page,
		PageSize: pageSize,
		Source:   SourceFallback,
	}
}

func (t *Trail) fromBuffer(f Filter) []Entry {
	out := filterEntries(t.buffer.entries(false), f)
	sortNewestFirst(out)
	return out
}

func (t *Trail) logFallback(err error, op string) {
	log.Warn().
		Err(err).
		Str("component", "audit").
		Str("operation", op).
		Msg("Durable audit store unavailable, serving from local buffer")
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func filterEntries(entries []Entry, f Filter) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// mergeEntries combines durable and local entries, dropping local ones already present.
// It returns the sorted result and how many local entries were duplicates.
func mergeEntries(durable, local []Entry) ([]Entry, int) {
	seen := make(map[string]bool, len(durable))
	out := make([]Entry, 0, len(durable)+len(local))
	for _, e := range durable {
		seen[e.ID] = true
		out = append(out, e)
	}
	dupes := 0
	for _, e := range local {
		if seen[e.ID] {
			dupes++
			continue
		}
		out = append(out, e)
	}
	sortNewestFirst(out)
	return out, dupes
}

func slicePage(entries []Entry, offset, size int) []Entry {
	if offset >= len(entries) {
		return []Entry{}
	}
	end := offset + size
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}

func nonNil(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}
