package usage

import (
	"sync"
	"time"

	"github.com/qrforge/qrforge/internal/models"
)

// Tracker keeps per-identity request counters for the usage endpoint.
// Counters are additive only and never feed back into admission decisions.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*models.UsageRecord
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*models.UsageRecord),
		now:     time.Now,
	}
}

// Record counts one admitted request. Callers only invoke this after the
// limiter allowed the request.
func (t *Tracker) Record(identity, style string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[identity]
	if !ok {
		rec = &models.UsageRecord{
			Identity:  identity,
			ByStyle:   make(map[string]int64),
			FirstSeen: now,
		}
		t.records[identity] = rec
	}

	rec.TotalRequests++
	if style != "" {
		rec.ByStyle[style]++
	}
	rec.LastSeen = now
}

// Get returns a copy of the identity's record.
func (t *Tracker) Get(identity string) (models.UsageRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[identity]
	if !ok {
		return models.UsageRecord{}, false
	}

	out := *rec
	out.ByStyle = make(map[string]int64, len(rec.ByStyle))
	for k, v := range rec.ByStyle {
		out.ByStyle[k] = v
	}
	return out, true
}

// Totals reports aggregate counters for the admin status endpoint.
func (t *Tracker) Totals() (identities int, requests int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rec := range t.records {
		requests += rec.TotalRequests
	}
	return len(t.records), requests
}
