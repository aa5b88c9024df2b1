package rules

// Attribute names, in the order they are evaluated
const (
	AttrIndustry           = "industry"
	AttrBusinessSize       = "businessSize"
	AttrAcquisitionChannel = "acquisitionChannel"
	AttrServiceInterest    = "serviceInterest"
	AttrBudgetTier         = "budgetTier"
	AttrTimeline           = "timeline"
)

// AttributeOrder is the declaration order of scored attributes
var AttributeOrder = []string{
	AttrIndustry,
	AttrBusinessSize,
	AttrAcquisitionChannel,
	AttrServiceInterest,
	AttrBudgetTier,
	AttrTimeline,
}

// DefaultTableVersion identifies the built-in table
const DefaultTableVersion = "2024.1"

func positive() FactorRule { return FactorRule{Weight: 5, Impact: ImpactPositive} }
func neutral(w int) FactorRule { return FactorRule{Weight: w, Impact: ImpactNeutral} }
func negative(w int) FactorRule { return FactorRule{Weight: w, Impact: ImpactNegative} }

// DefaultTable returns a fresh copy of the built-in rule table
func DefaultTable() *Table {
	return &Table{
		Version: DefaultTableVersion,
		Attributes: map[string]AttributeRules{
			AttrIndustry: {
				Default: DefaultFactor,
				Values: map[string]FactorRule{
					"technology":    positive(),
					"finance":       positive(),
					"healthcare":    neutral(4),
					"professional":  neutral(4),
					"retail":        neutral(3),
					"manufacturing": neutral(3),
					"nonprofit":     negative(2),
					"other":         negative(2),
				},
			},
			AttrBusinessSize: {
				Default: DefaultFactor,
				Values: map[string]FactorRule{
					"startup":        negative(2),
					"small_business": neutral(3),
					"mid_market":     neutral(4),
					"enterprise":     positive(),
				},
			},
			AttrAcquisitionChannel: {
				Default: DefaultFactor,
				Values: map[string]FactorRule{
					"email":          neutral(3),
					"referral":       positive(),
					"paid_search":    neutral(4),
					"organic_search": neutral(4),
					"social_media":   neutral(3),
					"direct":         neutral(3),
				},
			},
			AttrServiceInterest: {
				Default: DefaultFactor,
				Values: map[string]FactorRule{
					"ai_automation":   positive(),
					"crm":             positive(),
					"web_development": neutral(4),
					"marketing":       neutral(3),
					"consulting":      neutral(3),
					"other":           negative(2),
				},
			},
			AttrBudgetTier: {
				Default: DefaultFactor,
				Values: map[string]FactorRule{
					"small":      negative(2),
					"medium":     neutral(3),
					"large":      neutral(4),
					"enterprise": positive(),
				},
			},
			AttrTimeline: {
				Default: DefaultFactor,
				Values: map[string]FactorRule{
					"urgent": positive(),
					"short":  neutral(4),
					"medium": neutral(3),
					"long":   negative(1),
				},
			},
		},
		Segments: []SegmentRule{
			{
				ID:         "utm-enterprise",
				Name:       "LinkedIn enterprise campaign",
				Kind:       KindUTM,
				Priority:   10,
				Expression: `utmSource == "linkedin" && utmCampaign.contains("enterprise")`,
				Segment:    SegmentEnterprise,
				Sticky:     true,
			},
			{
				ID:         "utm-small-business",
				Name:       "Small business campaign",
				Kind:       KindUTM,
				Priority:   11,
				Expression: `utmCampaign.contains("small-business") || utmCampaign.contains("smb") || (utmSource == "facebook" && utmMedium == "cpc")`,
				Segment:    SegmentSmallBusiness,
				Sticky:     true,
			},
			{
				ID:         "utm-marketing",
				Name:       "Marketing campaign",
				Kind:       KindUTM,
				Priority:   12,
				Expression: `utmMedium == "email" || utmCampaign.contains("marketing")`,
				Segment:    SegmentMarketing,
				Sticky:     true,
			},
			{
				ID:         "referrer-linkedin",
				Name:       "LinkedIn referrer",
				Kind:       KindReferrer,
				Priority:   20,
				Expression: `referrer.contains("linkedin.com")`,
				Segment:    SegmentEnterprise,
				Sticky:     true,
			},
			{
				ID:         "referrer-social",
				Name:       "Social referrer",
				Kind:       KindReferrer,
				Priority:   20,
				Expression: `referrer.contains("facebook.com") || referrer.contains("instagram.com")`,
				Segment:    SegmentSmallBusiness,
				Sticky:     true,
			},
			{
				ID:         "referrer-marketing-tools",
				Name:       "Marketing tool referrer",
				Kind:       KindReferrer,
				Priority:   20,
				Expression: `referrer.contains("hubspot.com") || referrer.contains("mailchimp.com")`,
				Segment:    SegmentMarketing,
				Sticky:     true,
			},
			{
				ID:         "visits-high-intent",
				Name:       "Frequent visitor",
				Kind:       KindVisits,
				Priority:   30,
				Expression: `visitCount > 3`,
				Segment:    SegmentHighIntent,
			},
			{
				ID:         "visits-returning",
				Name:       "Returning visitor",
				Kind:       KindVisits,
				Priority:   30,
				Expression: `visitCount > 1`,
				Segment:    SegmentReturning,
			},
		},
	}
}

// Lookup returns the factor rule for an attribute value.
// Unknown attributes and unknown values resolve to the attribute default.
func (t *Table) Lookup(attribute, value string) FactorRule {
	attr, ok := t.Attributes[attribute]
	if !ok {
		return DefaultFactor
	}
	if rule, ok := attr.Values[value]; ok && rule.valid() {
		return rule
	}
	if !attr.Default.valid() {
		return DefaultFactor
	}
	return attr.Default
}

func (r FactorRule) valid() bool {
	return r.Weight >= MinWeight && r.Weight <= MaxWeight && r.Impact.Valid()
}
