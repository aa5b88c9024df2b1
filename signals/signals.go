// Package signals gathers the raw visitor signals the scoring and segmentation
// engine consumes: the explicit attribute record and the navigation
// environment (campaign parameters and referrer).
package signals

import (
	"github.com/pubomax/website-navigator/rules"
)

// AttributeRecord is the explicit visitor profile. Every field is optional;
// an empty string means the attribute is absent, not zero.
type AttributeRecord struct {
	Industry           string `json:"industry,omitempty"`
	BusinessSize       string `json:"businessSize,omitempty"`
	AcquisitionChannel string `json:"acquisitionChannel,omitempty"`
	ServiceInterest    string `json:"serviceInterest,omitempty"`
	BudgetTier         string `json:"budgetTier,omitempty"`
	Timeline           string `json:"timeline,omitempty"`
}

// Field is one present attribute of a record
type Field struct {
	Name  string
	Value string
}

// Fields returns the present attributes in declaration order
func (r AttributeRecord) Fields() []Field {
	all := [...]Field{
		{rules.AttrIndustry, r.Industry},
		{rules.AttrBusinessSize, r.BusinessSize},
		{rules.AttrAcquisitionChannel, r.AcquisitionChannel},
		{rules.AttrServiceInterest, r.ServiceInterest},
		{rules.AttrBudgetTier, r.BudgetTier},
		{rules.AttrTimeline, r.Timeline},
	}

	present := make([]Field, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			present = append(present, f)
		}
	}
	return present
}

// Environment holds the navigation signals of the current page view
type Environment struct {
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
}

// Vars converts the environment plus a visit count into rule inputs
func (e Environment) Vars(visitCount int) rules.Vars {
	return rules.Vars{
		UTMSource:   e.UTMSource,
		UTMMedium:   e.UTMMedium,
		UTMCampaign: e.UTMCampaign,
		Referrer:    e.Referrer,
		VisitCount:  visitCount,
	}
}
