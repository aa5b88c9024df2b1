package segment

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubomax/website-navigator/rules"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// Fire runs the callback unless the timer was stopped
func (t *fakeTimer) Fire() {
	if !t.stopped {
		t.fn()
	}
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	timer := &fakeTimer{delay: d, fn: f}
	s.timers = append(s.timers, timer)
	return timer
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newPromotion(current rules.Segment) (*Promotion, *fakeScheduler, *clock, *[]rules.Segment) {
	sched := &fakeScheduler{}
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	var promoted []rules.Segment
	p := NewPromotion(current, PromotionOptions{
		Dwell:     2 * time.Minute,
		Scheduler: sched,
		Now:       clk.Now,
		OnPromote: func(to rules.Segment) { promoted = append(promoted, to) },
	})
	return p, sched, clk, &promoted
}

func TestPromotionFiresAfterRemainingDwell(t *testing.T) {
	p, sched, clk, promoted := newPromotion(rules.SegmentGeneral)

	clk.Advance(45 * time.Second)
	require.True(t, p.RecordInteraction(InteractionScroll))
	require.Len(t, sched.timers, 1)
	assert.Equal(t, 75*time.Second, sched.timers[0].delay)
	assert.True(t, p.Armed())

	sched.timers[0].Fire()

	assert.True(t, p.Fired())
	assert.False(t, p.Armed())
	assert.Equal(t, rules.SegmentHighIntent, p.Segment())
	assert.Equal(t, []rules.Segment{rules.SegmentHighIntent}, *promoted)
}

func TestPromotionArmsOnce(t *testing.T) {
	p, sched, _, _ := newPromotion(rules.SegmentGeneral)

	assert.True(t, p.RecordInteraction(InteractionClick))
	assert.False(t, p.RecordInteraction(InteractionScroll))
	assert.False(t, p.RecordInteraction(InteractionClick))
	assert.Len(t, sched.timers, 1)
}

func TestPromotionPastDwellFiresImmediately(t *testing.T) {
	p, sched, clk, _ := newPromotion(rules.SegmentGeneral)

	clk.Advance(10 * time.Minute)
	require.True(t, p.RecordInteraction(InteractionScroll))
	assert.Equal(t, time.Duration(0), sched.timers[0].delay)
}

func TestPromotionIgnoresNonGeneral(t *testing.T) {
	for _, seg := range []rules.Segment{rules.SegmentEnterprise, rules.SegmentReturning, rules.SegmentHighIntent} {
		p, sched, _, _ := newPromotion(seg)
		assert.False(t, p.RecordInteraction(InteractionScroll), seg)
		assert.Empty(t, sched.timers, seg)
	}
}

func TestPromotionIgnoresUnknownInteraction(t *testing.T) {
	p, sched, _, _ := newPromotion(rules.SegmentGeneral)

	assert.False(t, p.RecordInteraction(Interaction("hover")))
	assert.Empty(t, sched.timers)
}

func TestPromotionCancel(t *testing.T) {
	p, sched, _, promoted := newPromotion(rules.SegmentGeneral)
	require.True(t, p.RecordInteraction(InteractionScroll))

	p.Cancel()
	p.Cancel()
	sched.timers[0].Fire()

	assert.True(t, sched.timers[0].stopped)
	assert.False(t, p.Fired())
	assert.Empty(t, *promoted)
	assert.False(t, p.RecordInteraction(InteractionClick))
}

func TestPromotionSkipsSessionThatLeftGeneral(t *testing.T) {
	p, sched, _, promoted := newPromotion(rules.SegmentGeneral)
	require.True(t, p.RecordInteraction(InteractionScroll))

	p.Update(rules.SegmentEnterprise)
	sched.timers[0].fn()

	assert.False(t, p.Fired())
	assert.Equal(t, rules.SegmentEnterprise, p.Segment())
	assert.Empty(t, *promoted)
}

func TestPromotionFiresAtMostOnce(t *testing.T) {
	p, sched, _, promoted := newPromotion(rules.SegmentGeneral)
	require.True(t, p.RecordInteraction(InteractionScroll))

	sched.timers[0].fn()
	p.Update(rules.SegmentGeneral)
	sched.timers[0].fn()

	assert.Len(t, *promoted, 1)
}

func TestPromotionSystemScheduler(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	p := NewPromotion(rules.SegmentGeneral, PromotionOptions{
		Dwell:     time.Millisecond,
		OnPromote: func(rules.Segment) { wg.Done() },
	})

	require.True(t, p.RecordInteraction(InteractionScroll))
	wg.Wait()

	assert.True(t, p.Fired())
}
