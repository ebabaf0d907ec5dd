package audit

import "sync"

type bufferedEntry struct {
	entry  Entry
	synced bool
}

// ringBuffer is the bounded local fallback. When full, the oldest entry is evicted.
type ringBuffer struct {
	mu       sync.Mutex
	items    []bufferedEntry
	head     int // next write position
	count    int
	capacity int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &ringBuffer{
		items:    make([]bufferedEntry, capacity),
		capacity: capacity,
	}
}

// push stores e and returns the evicted item, if any
func (b *ringBuffer) push(e Entry) (evicted bufferedEntry, didEvict bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		evicted = b.items[b.head]
		didEvict = true
	} else {
		b.count++
	}
	b.items[b.head] = bufferedEntry{entry: e}
	b.head = (b.head + 1) % b.capacity
	return evicted, didEvict
}

func (b *ringBuffer) markSynced(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < b.count; i++ {
		idx := b.index(i)
		if b.items[idx].entry.ID == id {
			b.items[idx].synced = true
			return
		}
	}
}

// entries returns copies oldest-first; when onlyUnsynced is set, synced items are skipped
func (b *ringBuffer) entries(onlyUnsynced bool) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, b.count)
	for i := 0; i < b.count; i++ {
		item := b.items[b.index(i)]
		if onlyUnsynced && item.synced {
			continue
		}
		e := item.entry
		e.Details = e.Details.clone()
		out = append(out, e)
	}
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// index maps the i-th oldest item to its slot. Caller holds mu.
func (b *ringBuffer) index(i int) int {
	start := (b.head - b.count + b.capacity) % b.capacity
	return (start + i) % b.capacity
}
