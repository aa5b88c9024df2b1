package session

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pubomax/website-navigator/internal/logger"
	"github.com/pubomax/website-navigator/rules"
)

// FailureFunc observes a swallowed persistence failure. op is "load" or "save".
type FailureFunc func(op string, err error)

// Adapter reads and writes one scope's session history.
// Load never fails: absent, unreadable or malformed state is a first visit.
// Save is best-effort: failures are reported to the FailureFunc and dropped.
type Adapter struct {
	keys      KeySpace
	scope     string
	now       func() time.Time
	onFailure FailureFunc
}

// AdapterOption configures an Adapter
type AdapterOption func(*Adapter)

// WithClock overrides the time source
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// WithFailureFunc sets the observer for swallowed failures
func WithFailureFunc(fn FailureFunc) AdapterOption {
	return func(a *Adapter) { a.onFailure = fn }
}

// NewAdapter creates an adapter for scope (typically "site|visitor")
func NewAdapter(keys KeySpace, scope string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		keys:  keys,
		scope: scope,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.onFailure == nil {
		a.onFailure = func(op string, err error) {
			logger.PersistenceFailure(op, err, "scope", a.scope)
		}
	}
	return a
}

// Scope builds the key scope for a visitor of a site. Both parts are
// query-escaped so the "|" and ":" separators cannot appear inside them.
func Scope(siteID, visitorID string) string {
	return url.QueryEscape(siteID) + "|" + url.QueryEscape(visitorID)
}

func (a *Adapter) key(name string) string {
	return a.scope + ":" + name
}

// Load returns the history for the current visit: the stored visit count
// plus one with the timestamp refreshed, or a first visit when nothing
// usable is stored. An unknown stored segment is dropped on its own.
// When the visit count cannot be read the first visit is marked Degraded.
func (a *Adapter) Load(ctx context.Context) History {
	now := a.now().UTC()

	raw, err := a.keys.Get(ctx, a.key(KeyVisits))
	if errors.Is(err, ErrKeyNotFound) {
		return FirstVisit(now)
	}
	if err != nil {
		a.onFailure("load", err)
		h := FirstVisit(now)
		h.loadFailed = true
		return h
	}

	visits, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || visits < 1 {
		return FirstVisit(now)
	}

	h := History{
		VisitCount:    visits + 1,
		LastVisitDate: now,
	}

	if rawDate, err := a.keys.Get(ctx, a.key(KeyLastVisit)); err == nil {
		if prev, err := time.Parse(time.RFC3339Nano, rawDate); err == nil {
			h.PreviousVisit = prev.UTC()
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		a.onFailure("load", err)
	}

	if rawSeg, err := a.keys.Get(ctx, a.key(KeySegment)); err == nil {
		if seg, err := rules.ParseSegment(rawSeg); err == nil {
			h.AssignedSegment = seg
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		a.onFailure("load", err)
	}

	return h
}

// SaveSegment persists only the assigned segment, leaving the visit count
// untouched. Best-effort like Save.
func (a *Adapter) SaveSegment(ctx context.Context, seg rules.Segment) {
	if !seg.Valid() {
		return
	}
	if err := a.keys.Set(ctx, a.key(KeySegment), string(seg)); err != nil {
		a.onFailure("save", err)
	}
}

// Save persists h. The first failing write stops the save. A Degraded
// history only writes its segment so the stored visit count is kept.
func (a *Adapter) Save(ctx context.Context, h History) {
	if h.loadFailed {
		if h.HasSegment() {
			a.SaveSegment(ctx, h.AssignedSegment)
		}
		return
	}
	if h.VisitCount < 1 {
		h.VisitCount = 1
	}
	if h.LastVisitDate.IsZero() {
		h.LastVisitDate = a.now()
	}

	writes := [][2]string{
		{KeyVisits, strconv.Itoa(h.VisitCount)},
		{KeyLastVisit, h.LastVisitDate.UTC().Format(time.RFC3339Nano)},
	}
	if h.HasSegment() {
		writes = append(writes, [2]string{KeySegment, string(h.AssignedSegment)})
	}

	for _, w := range writes {
		if err := a.keys.Set(ctx, a.key(w[0]), w[1]); err != nil {
			a.onFailure("save", err)
			return
		}
	}
}
