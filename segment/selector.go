// Package segment classifies a visitor into one content segment and owns the
// one-way engagement promotion from general to highIntent.
package segment

import (
	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/session"
	"github.com/pubomax/website-navigator/signals"
)

// Source records why a segment was chosen
type Source string

const (
	SourceHistory   Source = "history"
	SourceRule      Source = "rule"
	SourceDefault   Source = "default"
	SourcePromotion Source = "promotion"
)

// Decision is a selected segment with its provenance
type Decision struct {
	Segment rules.Segment `json:"segment"`
	Source  Source        `json:"source"`
	RuleID  string        `json:"ruleId,omitempty"`
}

// Selector evaluates segment rules compiled by a rules.Engine
type Selector struct {
	engine *rules.Engine
}

// NewSelector creates a selector over engine
func NewSelector(engine *rules.Engine) *Selector {
	return &Selector{engine: engine}
}

// Select returns the visitor's segment and the history to persist.
// A stored segment always wins. Otherwise rules are tried in priority order
// and the first match wins; with no match the visitor is general. Only
// sticky rule matches are written back to the history.
func (s *Selector) Select(env signals.Environment, h session.History) (rules.Segment, session.History) {
	d, next := s.Decide(env, h)
	return d.Segment, next
}

// Decide is Select with provenance
func (s *Selector) Decide(env signals.Environment, h session.History) (Decision, session.History) {
	if h.HasSegment() {
		return Decision{Segment: h.AssignedSegment, Source: SourceHistory}, h
	}

	rule, ok := s.engine.Match(env.Vars(h.VisitCount))
	if !ok {
		return Decision{Segment: rules.SegmentGeneral, Source: SourceDefault}, h
	}

	if rule.Sticky {
		h = h.WithSegment(rule.Segment)
	}
	return Decision{Segment: rule.Segment, Source: SourceRule, RuleID: rule.ID}, h
}
