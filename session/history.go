// Package session persists per-visitor session history in a key space
// scoped to the site origin. Every failure degrades to "no memory of past
// visits"; nothing here is fatal to scoring or segmentation.
package session

import (
	"time"

	"github.com/pubomax/website-navigator/rules"
)

// Persisted key names, relative to a scope
const (
	KeyVisits    = "user_visits"
	KeyLastVisit = "last_visit_date"
	KeySegment   = "user_segment"
)

// History is the session history of one visitor for the current visit
type History struct {
	// VisitCount counts visits including the current one; always >= 1
	VisitCount int `json:"visitCount"`
	// LastVisitDate is the timestamp of the current visit
	LastVisitDate time.Time `json:"lastVisitDate"`
	// PreviousVisit is the stored timestamp of the prior visit, zero on first visit
	PreviousVisit time.Time `json:"previousVisit,omitempty"`
	// AssignedSegment is empty when no segment has been persisted
	AssignedSegment rules.Segment `json:"assignedSegment,omitempty"`

	// loadFailed marks a history built while the store could not be read;
	// the stored visit count is unknown and must not be overwritten
	loadFailed bool
}

// FirstVisit returns the history of a visitor with no stored state
func FirstVisit(now time.Time) History {
	return History{
		VisitCount:    1,
		LastVisitDate: now.UTC(),
	}
}

// Degraded reports whether the stored history could not be read and this
// is a stand-in first visit
func (h History) Degraded() bool {
	return h.loadFailed
}

// HasSegment reports whether a segment has been persisted
func (h History) HasSegment() bool {
	return h.AssignedSegment != ""
}

// WithSegment returns a copy of h with seg assigned
func (h History) WithSegment(seg rules.Segment) History {
	h.AssignedSegment = seg
	return h
}
