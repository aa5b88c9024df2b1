package segment

import "github.com/pubomax/website-navigator/rules"

// Content is the display payload a content-variant renderer shows for a segment
type Content struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	CTA         string `json:"cta"`
	Testimonial string `json:"testimonial,omitempty"`
}

var contents = map[rules.Segment]Content{
	rules.SegmentGeneral: {
		Headline:    "Automate the work that slows your business down",
		Subheadline: "AI assistants, CRM and web solutions built around how you already work.",
		CTA:         "Book a free consultation",
	},
	rules.SegmentSmallBusiness: {
		Headline:    "Big-company tools at a small-business price",
		Subheadline: "Get a website and CRM that run themselves so you can focus on customers.",
		CTA:         "See small business plans",
		Testimonial: "We doubled our inbound leads in three months.",
	},
	rules.SegmentEnterprise: {
		Headline:    "Enterprise automation without the integration headache",
		Subheadline: "Secure AI workflows that plug into the systems you already run.",
		CTA:         "Talk to a solutions architect",
		Testimonial: "Rollout across four regions took six weeks.",
	},
	rules.SegmentMarketing: {
		Headline:    "Turn every campaign into a pipeline",
		Subheadline: "Lead capture, scoring and follow-up that never drops a contact.",
		CTA:         "Get the marketing playbook",
	},
	rules.SegmentReturning: {
		Headline:    "Welcome back",
		Subheadline: "Pick up where you left off and see what's new since your last visit.",
		CTA:         "Continue exploring",
	},
	rules.SegmentHighIntent: {
		Headline:    "Ready when you are",
		Subheadline: "Tell us about your project and get a tailored proposal within 48 hours.",
		CTA:         "Request a proposal",
		Testimonial: "The proposal matched exactly what we needed.",
	},
}

// ContentFor returns the display payload for seg; unknown segments get general's
func ContentFor(seg rules.Segment) Content {
	if c, ok := contents[seg]; ok {
		return c
	}
	return contents[rules.SegmentGeneral]
}
