// Package scoring converts a visitor's attribute record into an explainable
// 0-100 conversion potential score.
package scoring

import (
	"math"

	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/signals"
)

// pointsPerWeight scales a 1-5 weight to at most 25 points per factor
const pointsPerWeight = 5

// maxFactorPoints is the most a single evaluated factor can contribute
const maxFactorPoints = rules.MaxWeight * pointsPerWeight

// FactorResult justifies one evaluated attribute
type FactorResult struct {
	Name   string       `json:"factorName"`
	Value  string       `json:"value"`
	Impact rules.Impact `json:"impact"`
	Weight int          `json:"weight"`
}

// Score is a normalized percentage plus the factors it was derived from
type Score struct {
	Percentage int            `json:"percentage"`
	Factors    []FactorResult `json:"factors"`
}

// ComputeScore scores record against table. It is pure: absent attributes
// are excluded from both the total and the maximum, unknown values use the
// attribute default, and an empty record scores 0.
func ComputeScore(record signals.AttributeRecord, table *rules.Table) Score {
	if table == nil {
		table = rules.DefaultTable()
	}

	fields := record.Fields()
	factors := make([]FactorResult, 0, len(fields))
	total, maxPossible := 0, 0

	for _, f := range fields {
		rule := table.Lookup(f.Name, f.Value)
		total += rule.Weight * pointsPerWeight
		maxPossible += maxFactorPoints
		factors = append(factors, FactorResult{
			Name:   f.Name,
			Value:  f.Value,
			Impact: rule.Impact,
			Weight: rule.Weight,
		})
	}

	return Score{
		Percentage: percentage(total, maxPossible),
		Factors:    factors,
	}
}

func percentage(total, maxPossible int) int {
	if maxPossible == 0 {
		return 0
	}
	p := int(math.Round(float64(total) / float64(maxPossible) * 100))
	return max(0, min(100, p))
}
