package segment

import (
	"sync"
	"time"

	"github.com/pubomax/website-navigator/rules"
)

// DefaultDwell is the session dwell time after which an engaged general
// visitor is promoted to highIntent
const DefaultDwell = 120 * time.Second

// Interaction is a qualifying engagement event
type Interaction string

const (
	InteractionScroll Interaction = "scroll"
	InteractionClick  Interaction = "click"
)

// Valid reports whether i qualifies for promotion
func (i Interaction) Valid() bool {
	return i == InteractionScroll || i == InteractionClick
}

// Timer is a cancellable scheduled callback
type Timer interface {
	Stop() bool
}

// Scheduler schedules deferred callbacks
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler schedules on the runtime timer
var SystemScheduler Scheduler = systemScheduler{}

// PromotionOptions configures a Promotion
type PromotionOptions struct {
	Dwell     time.Duration
	Scheduler Scheduler
	Now       func() time.Time
	// OnPromote runs once, on the scheduler's goroutine, when the promotion fires
	OnPromote func(to rules.Segment)
}

// Promotion is the owning handle of one session's promotion timer.
//
// While the session's segment is general, the first qualifying interaction
// schedules a timer that fires once the session has lasted Dwell. Firing
// moves the session to highIntent. It fires at most once and Cancel stops it
// for good.
type Promotion struct {
	mu        sync.Mutex
	current   rules.Segment
	startedAt time.Time
	opts      PromotionOptions
	timer     Timer
	fired     bool
	cancelled bool
}

// NewPromotion starts tracking a session whose segment is current
func NewPromotion(current rules.Segment, opts PromotionOptions) *Promotion {
	if opts.Dwell <= 0 {
		opts.Dwell = DefaultDwell
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Promotion{
		current:   current,
		startedAt: opts.Now(),
		opts:      opts,
	}
}

// RecordInteraction registers an engagement event and reports whether it
// armed the timer. Later interactions, non-general sessions, and cancelled
// or fired sessions are ignored.
func (p *Promotion) RecordInteraction(kind Interaction) bool {
	if !kind.Valid() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != rules.SegmentGeneral || p.timer != nil || p.fired || p.cancelled {
		return false
	}

	remaining := p.opts.Dwell - p.opts.Now().Sub(p.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	p.timer = p.opts.Scheduler.AfterFunc(remaining, p.fire)
	return true
}

// Update records a segment change made outside the promotion. A session
// that leaves general before the timer fires is not promoted.
func (p *Promotion) Update(seg rules.Segment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = seg
}

// Cancel stops a pending timer. Safe to call more than once.
func (p *Promotion) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelled = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Segment returns the session's current segment
func (p *Promotion) Segment() rules.Segment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Armed reports whether the timer is pending
func (p *Promotion) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil && !p.fired && !p.cancelled
}

// Fired reports whether the promotion has happened
func (p *Promotion) Fired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fired
}

func (p *Promotion) fire() {
	p.mu.Lock()
	if p.fired || p.cancelled || p.current != rules.SegmentGeneral {
		p.mu.Unlock()
		return
	}
	p.fired = true
	p.current = rules.SegmentHighIntent
	onPromote := p.opts.OnPromote
	p.mu.Unlock()

	if onPromote != nil {
		onPromote(rules.SegmentHighIntent)
	}
}
