package ratelimit

import (
	"sync"
	"time"

	"github.com/qrforge/qrforge/internal/models"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// idleWindows is the number of window lengths an identity may stay
// inactive before its window is eligible for eviction.
const idleWindows = 3

type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
	evicted  bool
}

// SlidingWindow is an in-process sliding-window-log limiter. Each identity
// owns a timestamp log guarded by its own mutex, so concurrent requests for
// the same identity serialize while unrelated identities never contend.
type SlidingWindow struct {
	mu      sync.RWMutex
	windows map[string]*window

	maxWindow time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewSlidingWindow creates a limiter. maxWindow must be the longest window
// configured across all tiers; it bounds the eviction horizon.
func NewSlidingWindow(maxWindow time.Duration) *SlidingWindow {
	if maxWindow <= 0 {
		maxWindow = time.Minute
	}
	return &SlidingWindow{
		windows:   make(map[string]*window),
		maxWindow: maxWindow,
		now:       time.Now,
	}
}

// Admit charges cost slots against the identity's window and decides
// admit/reject. Batch admission is atomic: either every slot fits or none
// is consumed. Any bookkeeping failure rejects rather than admits.
func (s *SlidingWindow) Admit(identity string, limits models.TierLimits, cost int) (decision Decision) {
	windowLen := limits.Window()
	limit := limits.RequestsPerWindow

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("identity", identity).
				Msg("rate limiter bookkeeping failure, rejecting")
			decision = Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: s.now().Add(windowLen)}
		}
	}()

	now := s.now()

	// A non-positive limit hard-disables the tier; a non-positive cost is a
	// caller bug. Both fail closed.
	if limit <= 0 || cost <= 0 || windowLen <= 0 {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: now.Add(windowLen)}
	}

	// A sweep or reset may remove the window from the map between the
	// lookup and the lock. Such a window is marked evicted under its own
	// mutex; charging it would orphan the admission, so re-resolve until
	// the locked window is the live one.
	w := s.entry(identity)
	w.mu.Lock()
	for w.evicted {
		w.mu.Unlock()
		w = s.entry(identity)
		w.mu.Lock()
	}
	defer w.mu.Unlock()

	w.lastSeen = now
	w.trim(now.Add(-windowLen))

	if len(w.stamps)+cost > limit {
		resetAt := now.Add(windowLen)
		if len(w.stamps) > 0 {
			resetAt = w.stamps[0].Add(windowLen)
		}
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	for i := 0; i < cost; i++ {
		w.stamps = append(w.stamps, now)
	}

	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.stamps),
		ResetAt:   w.stamps[0].Add(windowLen),
	}
}

// Reset discards the identity's window entirely.
func (s *SlidingWindow) Reset(identity string) {
	s.mu.Lock()
	w, ok := s.windows[identity]
	if ok {
		delete(s.windows, identity)
	}
	s.mu.Unlock()

	if ok {
		w.mu.Lock()
		w.evicted = true
		w.mu.Unlock()
	}
}

// ActiveIdentities reports how many windows are currently tracked.
func (s *SlidingWindow) ActiveIdentities() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

func (s *SlidingWindow) entry(identity string) *window {
	s.mu.RLock()
	w, ok := s.windows[identity]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.windows[identity]; ok {
		return w
	}
	w = &window{lastSeen: s.now()}
	s.windows[identity] = w

	s.maybeSweepLocked()
	return w
}

// trim drops timestamps that have aged out of the window. Caller holds w.mu.
func (w *window) trim(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// maybeSweepLocked evicts windows idle for several multiples of the longest
// configured window. Caller holds s.mu exclusively. Staleness is judged and
// the evicted flag set under the entry's own lock, so an admission that
// already resolved the pointer either refreshes lastSeen first (the sweep
// keeps the window) or observes the flag and re-resolves.
func (s *SlidingWindow) maybeSweepLocked() {
	now := s.now()
	horizon := s.maxWindow * idleWindows
	if now.Sub(s.lastSweep) < horizon {
		return
	}
	s.lastSweep = now

	evicted := 0
	for identity, w := range s.windows {
		w.mu.Lock()
		stale := now.Sub(w.lastSeen) > horizon
		if stale {
			w.evicted = true
		}
		w.mu.Unlock()
		if stale {
			delete(s.windows, identity)
			evicted++
		}
	}

	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("swept stale rate windows")
	}
}
