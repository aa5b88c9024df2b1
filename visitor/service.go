// Package visitor ties scoring, segment selection, session persistence and
// the engagement promotion together for one site visitor at a time.
package visitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pubomax/website-navigator/internal/logger"
	"github.com/pubomax/website-navigator/internal/metrics"
	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/scoring"
	"github.com/pubomax/website-navigator/segment"
	"github.com/pubomax/website-navigator/session"
	"github.com/pubomax/website-navigator/signals"
	"github.com/pubomax/website-navigator/sites"
)

var (
	// ErrSessionNotFound is returned for interactions on a session that was
	// never evaluated or has ended
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInteraction is returned for interaction kinds other than scroll and click
	ErrInvalidInteraction = errors.New("invalid interaction")
)

// Result is the outcome of evaluating one page view
type Result struct {
	VisitorID string          `json:"visitorId"`
	Segment   rules.Segment   `json:"segment"`
	Source    segment.Source  `json:"source"`
	RuleID    string          `json:"ruleId,omitempty"`
	History   session.History `json:"history"`
	Content   segment.Content `json:"content"`
}

// Option configures a Service
type Option func(*Service)

// WithDwell sets the session length after which an engaged general visitor is promoted
func WithDwell(d time.Duration) Option {
	return func(s *Service) { s.dwell = d }
}

// WithScheduler replaces the promotion timer source
func WithScheduler(sched segment.Scheduler) Option {
	return func(s *Service) { s.scheduler = sched }
}

// WithClock overrides the time source for history and promotion
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSessionTTL sets how long a session may sit idle before it is dropped.
// Values not longer than the dwell are raised to dwell plus DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithMetrics records service activity on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// DefaultSessionTTL is the idle time after which a session is forgotten
const DefaultSessionTTL = 30 * time.Minute

// sweepInterval bounds how often idle sessions are looked for
const sweepInterval = time.Minute

type activeSession struct {
	adapter   *session.Adapter
	promotion *segment.Promotion
	lastSeen  time.Time
}

// expired reports whether the session can be dropped at now
func (a *activeSession) expired(now time.Time, ttl, dwell time.Duration) bool {
	if a.promotion.Fired() {
		return true
	}
	idle := now.Sub(a.lastSeen)
	if a.promotion.Armed() {
		return idle > ttl+dwell
	}
	return idle > ttl
}

// Service evaluates visitors against their site's rule table.
// Reads and writes of stored history are not synchronized across concurrent
// requests for the same visitor; the last writer wins.
type Service struct {
	sites     *sites.Manager
	keys      session.KeySpace
	metrics   *metrics.Metrics
	dwell      time.Duration
	sessionTTL time.Duration
	scheduler  segment.Scheduler
	now        func() time.Time

	sessions  map[string]*activeSession
	lastSweep time.Time
	mu        sync.Mutex
}

// NewService creates a service reading tables from manager and history from keys
func NewService(manager *sites.Manager, keys session.KeySpace, opts ...Option) *Service {
	s := &Service{
		sites:     manager,
		keys:      keys,
		dwell:     segment.DefaultDwell,
		scheduler: segment.SystemScheduler,
		now:       time.Now,
		sessions:  make(map[string]*activeSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.sessionTTL <= s.dwell {
		s.sessionTTL = s.dwell + DefaultSessionTTL
	}
	return s
}

// Score computes the conversion potential of record using the site's table
func (s *Service) Score(siteID string, record signals.AttributeRecord) scoring.Score {
	site := s.sites.Site(siteID)
	score := scoring.ComputeScore(record, site.Table)

	s.metrics.ScoresComputed.Inc()
	s.metrics.ScorePercentage.Observe(float64(score.Percentage))
	logger.Debug("score computed", "site", siteID, "tableVersion", site.Table.Version,
		"percentage", score.Percentage, "factors", len(score.Factors))
	return score
}

// Evaluate handles one page view: it loads the visitor's history, selects a
// segment, persists what should be remembered and (re)starts the session's
// promotion tracking. An empty visitorID is assigned a new one.
// Persistence failures never surface here.
func (s *Service) Evaluate(ctx context.Context, siteID, visitorID string, env signals.Environment) Result {
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	site := s.sites.Site(siteID)
	adapter := s.adapter(siteID, visitorID)

	history := adapter.Load(ctx)
	decision, next := site.Selector.Decide(env, history)
	adapter.Save(ctx, next)

	s.metrics.SegmentsSelected.WithLabelValues(string(decision.Segment), string(decision.Source)).Inc()
	s.track(siteID, visitorID, decision.Segment, adapter)

	logger.Debug("segment selected", "site", siteID, "visitor", visitorID,
		"segment", decision.Segment, "source", decision.Source, "rule", decision.RuleID,
		"visitCount", next.VisitCount)

	return Result{
		VisitorID: visitorID,
		Segment:   decision.Segment,
		Source:    decision.Source,
		RuleID:    decision.RuleID,
		History:   next,
		Content:   segment.ContentFor(decision.Segment),
	}
}

// RecordInteraction registers a scroll or click in an evaluated session and
// reports whether it started the promotion timer
func (s *Service) RecordInteraction(_ context.Context, siteID, visitorID string, kind segment.Interaction) (bool, error) {
	if !kind.Valid() {
		return false, ErrInvalidInteraction
	}

	s.mu.Lock()
	active, ok := s.sessions[session.Scope(siteID, visitorID)]
	if ok {
		active.lastSeen = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return false, ErrSessionNotFound
	}

	armed := active.promotion.RecordInteraction(kind)
	if armed {
		s.metrics.PromotionsArmed.Inc()
		logger.Debug("promotion armed", "site", siteID, "visitor", visitorID, "interaction", kind)
	}
	return armed, nil
}

// CurrentSegment returns the live segment of an evaluated session
func (s *Service) CurrentSegment(siteID, visitorID string) (rules.Segment, bool) {
	s.mu.Lock()
	active, ok := s.sessions[session.Scope(siteID, visitorID)]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return active.promotion.Segment(), true
}

// EndSession tears a session down, cancelling a pending promotion.
// It reports whether the session existed.
func (s *Service) EndSession(siteID, visitorID string) bool {
	scope := session.Scope(siteID, visitorID)

	s.mu.Lock()
	active, ok := s.sessions[scope]
	delete(s.sessions, scope)
	s.mu.Unlock()

	if ok {
		active.promotion.Cancel()
	}
	return ok
}

// ActiveSessions returns the number of sessions currently tracked
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close cancels every pending promotion
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*activeSession)
	s.mu.Unlock()

	for _, active := range sessions {
		active.promotion.Cancel()
	}
	logger.Info("visitor sessions closed", "count", len(sessions))
}

func (s *Service) adapter(siteID, visitorID string) *session.Adapter {
	scope := session.Scope(siteID, visitorID)
	return session.NewAdapter(s.keys, scope,
		session.WithClock(s.now),
		session.WithFailureFunc(func(op string, err error) {
			s.metrics.PersistenceFailures.WithLabelValues(op).Inc()
			logger.PersistenceFailure(op, err, "scope", scope)
		}),
	)
}

// track starts promotion tracking for a new session or reports the newly
// selected segment to an existing one
func (s *Service) track(siteID, visitorID string, seg rules.Segment, adapter *session.Adapter) {
	scope := session.Scope(siteID, visitorID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	if active, ok := s.sessions[scope]; ok {
		active.lastSeen = now
		active.promotion.Update(seg)
		return
	}

	active := &activeSession{adapter: adapter, lastSeen: now}
	active.promotion = segment.NewPromotion(seg, segment.PromotionOptions{
		Dwell:     s.dwell,
		Scheduler: s.scheduler,
		Now:       s.now,
		OnPromote: func(to rules.Segment) {
			s.promote(siteID, visitorID, to)
		},
	})
	s.sessions[scope] = active
}

// sweepLocked drops fired and idle sessions, at most once per sweepInterval.
// Callers hold s.mu.
func (s *Service) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	evicted := 0
	for scope, active := range s.sessions {
		if !active.expired(now, s.sessionTTL, s.dwell) {
			continue
		}
		active.promotion.Cancel()
		delete(s.sessions, scope)
		evicted++
	}
	if evicted > 0 {
		logger.Debug("idle sessions dropped", "count", evicted, "remaining", len(s.sessions))
	}
}

func (s *Service) promote(siteID, visitorID string, to rules.Segment) {
	s.mu.Lock()
	active, ok := s.sessions[session.Scope(siteID, visitorID)]
	s.mu.Unlock()
	if !ok {
		return
	}

	// Only the segment is written; a promotion is not a new visit
	active.adapter.SaveSegment(context.Background(), to)
	s.metrics.PromotionsFired.Inc()
	s.metrics.SegmentsSelected.WithLabelValues(string(to), string(segment.SourcePromotion)).Inc()
	logger.Info("visitor promoted", "site", siteID, "visitor", visitorID, "segment", to)
}
