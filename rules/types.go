package rules

import (
	"fmt"
	"time"
)

// Segment is a visitor classification bucket used to pick personalized content
type Segment string

const (
	SegmentGeneral       Segment = "general"
	SegmentSmallBusiness Segment = "smallBusiness"
	SegmentEnterprise    Segment = "enterprise"
	SegmentMarketing     Segment = "marketing"
	SegmentReturning     Segment = "returning"
	SegmentHighIntent    Segment = "highIntent"
)

// Segments lists every known segment in declaration order
var Segments = []Segment{
	SegmentGeneral,
	SegmentSmallBusiness,
	SegmentEnterprise,
	SegmentMarketing,
	SegmentReturning,
	SegmentHighIntent,
}

// Valid reports whether s belongs to the closed segment enumeration
func (s Segment) Valid() bool {
	for _, known := range Segments {
		if s == known {
			return true
		}
	}
	return false
}

func (s Segment) String() string {
	return string(s)
}

// ParseSegment converts a stored string into a Segment
func ParseSegment(v string) (Segment, error) {
	s := Segment(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown segment %q", v)
	}
	return s, nil
}

// Impact is the polarity of a factor's contribution
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Valid reports whether i is one of the three permitted polarities
func (i Impact) Valid() bool {
	switch i {
	case ImpactPositive, ImpactNegative, ImpactNeutral:
		return true
	}
	return false
}

// Weight bounds for a single factor
const (
	MinWeight = 1
	MaxWeight = 5
)

// FactorRule is the weight and polarity a table assigns to one attribute value
type FactorRule struct {
	Weight int    `json:"weight" yaml:"weight" validate:"min=1,max=5"`
	Impact Impact `json:"impact" yaml:"impact" validate:"required,oneof=positive negative neutral"`
}

// DefaultFactor is used for values a table does not recognize
var DefaultFactor = FactorRule{Weight: 3, Impact: ImpactNeutral}

// AttributeRules maps the values of one attribute to factor rules
type AttributeRules struct {
	Default FactorRule            `json:"default" yaml:"default"`
	Values  map[string]FactorRule `json:"values" yaml:"values" validate:"dive"`
}

// RuleKind groups segment rules into priority bands
type RuleKind string

const (
	KindUTM      RuleKind = "utm"
	KindReferrer RuleKind = "referrer"
	KindVisits   RuleKind = "visits"
)

// rank orders kinds: UTM rules before referrer rules before visit-count rules
func (k RuleKind) rank() int {
	switch k {
	case KindUTM:
		return 0
	case KindReferrer:
		return 1
	case KindVisits:
		return 2
	}
	return -1
}

// SegmentRule is a single segment-matching rule.
// Expression is a CEL boolean over utmSource, utmMedium, utmCampaign,
// referrer and visitCount.
type SegmentRule struct {
	ID         string   `json:"id" yaml:"id" validate:"required"`
	Name       string   `json:"name" yaml:"name"`
	Kind       RuleKind `json:"kind" yaml:"kind" validate:"required,oneof=utm referrer visits"`
	Priority   int      `json:"priority" yaml:"priority" validate:"min=0"`
	Expression string   `json:"expression" yaml:"expression" validate:"required"`
	Segment    Segment  `json:"segment" yaml:"segment" validate:"required"`
	// Sticky segments are written to session history once matched
	Sticky bool `json:"sticky" yaml:"sticky"`
}

// Table is a versioned rule table: attribute weights plus segment rules.
// A table must not be mutated once it has been handed to an Engine.
type Table struct {
	Version    string                    `json:"version" yaml:"version" validate:"required"`
	Attributes map[string]AttributeRules `json:"attributes" yaml:"attributes" validate:"dive"`
	Segments   []SegmentRule             `json:"segments" yaml:"segments" validate:"dive"`
}

// StoredTable is a table version as persisted for one site
type StoredTable struct {
	SiteID    string
	Version   int
	Table     *Table
	Active    bool
	CreatedAt time.Time
}

// EvaluationResult contains the outcome of evaluating a segment rule
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Segment  Segment
	Priority int
	Matched  bool
	Error    error
	Cost     uint64 // CEL runtime cost of the evaluation
}

// Vars are the inputs available to segment rule expressions
type Vars struct {
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	Referrer    string
	VisitCount  int
}

func (v Vars) activation() map[string]any {
	return map[string]any{
		"utmSource":   v.UTMSource,
		"utmMedium":   v.UTMMedium,
		"utmCampaign": v.UTMCampaign,
		"referrer":    v.Referrer,
		"visitCount":  int64(v.VisitCount),
	}
}
