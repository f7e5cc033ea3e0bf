// Package rolling keeps a client-side agenda that grows forward a page at a
// time as the reader scrolls.
package rolling

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

// ErrBusy is returned by Load while another continuation is in flight.
var ErrBusy = errors.New("continuation already in flight")

// Filter scopes the feed. Changing it restarts the feed.
type Filter struct {
	MemberID mo.Option[int64]
	Start    time.Time
}

// Entry is one occurrence as the feed keeps it.
type Entry struct {
	Key          string    `json:"key"`
	EventID      int64     `json:"event_id"`
	Date         string    `json:"date"`
	Start        time.Time `json:"start"`
	AllDay       bool      `json:"all_day"`
	Title        string    `json:"title"`
	IsTask       bool      `json:"is_task"`
	RewardPoints int       `json:"reward_points"`
	Completed    bool      `json:"completed"`
	Status       string    `json:"status,omitempty"`
}

// Source loads the occurrences in [from, to] for a filter.
type Source interface {
	Fetch(ctx context.Context, f Filter, from, to time.Time) ([]Entry, error)
}

// Feed is safe for concurrent use. Continue may be called as often as the
// view likes; triggers within the debounce interval collapse into one
// request, at most one request runs at a time, and a response that arrives
// after the filter changed is dropped.
type Feed struct {
	source   Source
	pageDays int
	debounce time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	filter     Filter
	generation uint64
	loadedTo   time.Time // first date not yet loaded
	entries    map[string]Entry
	inFlight   bool
	timer      *time.Timer
	lastErr    error
	closed     bool

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan struct{}
}

func NewFeed(source Source, pageDays int, debounce time.Duration, logger *slog.Logger) *Feed {
	if pageDays < 1 {
		pageDays = 14
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		source:   source,
		pageDays: pageDays,
		debounce: debounce,
		logger:   logger.With("component", "rolling"),
		entries:  make(map[string]Entry),
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan struct{}, 1),
	}
}

// SetFilter replaces the filter and empties the feed. Any response still in
// flight for the old filter will be discarded.
func (f *Feed) SetFilter(filter Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	filter.Start = recurrence.DateOf(filter.Start, time.UTC)
	f.filter = filter
	f.generation++
	f.loadedTo = filter.Start
	f.entries = make(map[string]Entry)
	f.lastErr = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.notify()
}

// Continue asks for the next page after the debounce interval.
func (f *Feed) Continue() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.timer != nil {
		return
	}
	f.timer = time.AfterFunc(f.debounce, func() {
		f.mu.Lock()
		f.timer = nil
		f.mu.Unlock()
		if err := f.Load(f.ctx); err != nil && !errors.Is(err, ErrBusy) {
			f.logger.Warn("continuation failed", "error", err)
		}
	})
}

// Load fetches the next page now. It returns ErrBusy if a fetch is already
// running.
func (f *Feed) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrBusy
	}
	f.inFlight = true
	gen := f.generation
	filter := f.filter
	from := f.loadedTo
	to := recurrence.AddDays(from, f.pageDays-1)
	f.mu.Unlock()

	entries, err := f.source.Fetch(ctx, filter, from, to)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if gen != f.generation {
		f.logger.Debug("discarding stale page", "from", recurrence.FormatDate(from))
		return nil
	}
	if err != nil {
		f.lastErr = err
		return err
	}
	for _, e := range entries {
		f.entries[e.Key] = e
	}
	f.loadedTo = recurrence.AddDays(to, 1)
	f.lastErr = nil
	f.notify()
	return nil
}

// Entries returns the loaded occurrences ordered by start.
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// LoadedThrough returns the last date covered by the feed, or false before
// the first page arrives.
func (f *Feed) LoadedThrough() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loadedTo.After(f.filter.Start) {
		return time.Time{}, false
	}
	return recurrence.AddDays(f.loadedTo, -1), true
}

// Err returns the error of the last failed page, if any.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Updates signals after every change to the feed contents.
func (f *Feed) Updates() <-chan struct{} {
	return f.updates
}

// Close stops pending triggers and cancels a running fetch.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()
	f.cancel()
}

// notify must be called with mu held.
func (f *Feed) notify() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}
