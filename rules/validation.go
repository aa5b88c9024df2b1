package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	maxAttributes   = 50
	maxValues       = 200
	maxSegmentRules = 100
)

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	ruleIDPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

	validateOnce sync.Once
	structs      *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		structs = validator.New(validator.WithRequiredStructEnabled())
	})
	return structs
}

// ValidateTable checks a rule table before it is compiled or stored.
// Returns nil if the table is valid.
func ValidateTable(table *Table) error {
	if table == nil {
		return fmt.Errorf("rule table is nil")
	}

	if err := structValidator().Struct(table); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if len(table.Attributes) > maxAttributes {
		return fmt.Errorf("table contains %d attributes, maximum allowed is %d", len(table.Attributes), maxAttributes)
	}

	for name, attr := range table.Attributes {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("invalid attribute name %q: must match %s", name, identifierPattern)
		}
		if len(attr.Values) > maxValues {
			return fmt.Errorf("attribute %q contains %d values, maximum allowed is %d", name, len(attr.Values), maxValues)
		}
		if err := validateFactor(attr.Default); err != nil {
			return fmt.Errorf("attribute %q default: %w", name, err)
		}
		for value, rule := range attr.Values {
			if value == "" {
				return fmt.Errorf("attribute %q has an empty value key", name)
			}
			if err := validateFactor(rule); err != nil {
				return fmt.Errorf("attribute %q value %q: %w", name, value, err)
			}
		}
	}

	if err := validateSegmentRules(table.Segments); err != nil {
		return err
	}

	// Expressions must compile against the segment environment
	if _, err := NewEngine(table); err != nil {
		return err
	}

	return nil
}

// validateFactor enforces the weight range and the weight band of each polarity:
// positive is weight 5, neutral 3-4, negative 1-2.
func validateFactor(rule FactorRule) error {
	if rule.Weight < MinWeight || rule.Weight > MaxWeight {
		return fmt.Errorf("weight %d outside [%d,%d]", rule.Weight, MinWeight, MaxWeight)
	}
	if !rule.Impact.Valid() {
		return fmt.Errorf("invalid impact %q (must be one of: positive, negative, neutral)", rule.Impact)
	}

	switch rule.Impact {
	case ImpactPositive:
		if rule.Weight != MaxWeight {
			return fmt.Errorf("positive impact requires weight %d, got %d", MaxWeight, rule.Weight)
		}
	case ImpactNeutral:
		if rule.Weight < 3 || rule.Weight > 4 {
			return fmt.Errorf("neutral impact requires weight 3 or 4, got %d", rule.Weight)
		}
	case ImpactNegative:
		if rule.Weight > 2 {
			return fmt.Errorf("negative impact requires weight 1 or 2, got %d", rule.Weight)
		}
	}
	return nil
}

// validateSegmentRules checks IDs, segments and the kind priority bands:
// every utm rule must outrank every referrer rule, which must outrank every
// visits rule.
func validateSegmentRules(segments []SegmentRule) error {
	if len(segments) > maxSegmentRules {
		return fmt.Errorf("table contains %d segment rules, maximum allowed is %d", len(segments), maxSegmentRules)
	}

	seen := make(map[string]bool, len(segments))
	for _, rule := range segments {
		if !ruleIDPattern.MatchString(rule.ID) {
			return fmt.Errorf("invalid rule ID %q: must match %s", rule.ID, ruleIDPattern)
		}
		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule ID %q", rule.ID)
		}
		seen[rule.ID] = true

		if !rule.Segment.Valid() {
			return fmt.Errorf("rule %q targets unknown segment %q", rule.ID, rule.Segment)
		}
		if rule.Kind.rank() < 0 {
			return fmt.Errorf("rule %q has unknown kind %q", rule.ID, rule.Kind)
		}
	}

	for _, a := range segments {
		for _, b := range segments {
			if a.Kind.rank() < b.Kind.rank() && a.Priority >= b.Priority {
				return fmt.Errorf("rule %q (%s, priority %d) must have a lower priority than rule %q (%s, priority %d)",
					a.ID, a.Kind, a.Priority, b.ID, b.Kind, b.Priority)
			}
		}
	}

	return nil
}
