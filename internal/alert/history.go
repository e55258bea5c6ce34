package alert

import (
	"sync"
	"time"

	"ipguard/internal/model"
)

// Entry is one published batch with the time it went out.
type Entry struct {
	PublishedAt time.Time        `json:"published_at"`
	Batch       model.AlertBatch `json:"batch"`
}

// History keeps a bounded in-memory trail of published batches for the
// operational API. Oldest entries fall off when the limit is reached.
type History struct {
	mu    sync.RWMutex
	buf   []Entry
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1000
	}
	return &History{limit: limit}
}

func (h *History) Add(batch model.AlertBatch) {
	entry := Entry{PublishedAt: time.Now().UTC(), Batch: batch}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) < h.limit {
		h.buf = append(h.buf, entry)
		return
	}
	copy(h.buf, h.buf[1:])
	h.buf[len(h.buf)-1] = entry
}

func (h *History) List(limit int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.buf) {
		limit = len(h.buf)
	}
	out := make([]Entry, 0, limit)
	for i := len(h.buf) - limit; i < len(h.buf); i++ {
		out = append(out, h.buf[i])
	}
	return out
}

func (h *History) Since(ts time.Time) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range h.buf {
		if !e.PublishedAt.Before(ts) {
			out = append(out, e)
		}
	}
	return out
}
