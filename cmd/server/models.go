package main

import (
	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/segment"
	"github.com/pubomax/website-navigator/signals"
)

// API request and response models

// ScoreRequest is the body of POST /api/v1/score
type ScoreRequest struct {
	SiteID     string                  `json:"siteId" example:"acme.example"`
	Attributes signals.AttributeRecord `json:"attributes"`
} // @name ScoreRequest

// SegmentRequest is the body of POST /api/v1/segment.
// Absent fields fall back to the siteId, visitorId and utm_* query
// parameters and the Referer header.
type SegmentRequest struct {
	SiteID    string `json:"siteId" example:"acme.example"`
	VisitorID string `json:"visitorId,omitempty" example:"0f8fad5b-d9cb-469f-a165-70867728950e"`
	PageURL   string `json:"pageUrl,omitempty" example:"https://acme.example/?utm_source=linkedin&utm_campaign=enterprise-push"`
	Referrer  string `json:"referrer,omitempty" example:"https://www.linkedin.com/"`
} // @name SegmentRequest

// InteractionRequest is the body of POST /api/v1/visitors/{visitorId}/interactions
type InteractionRequest struct {
	SiteID string              `json:"siteId" example:"acme.example"`
	Kind   segment.Interaction `json:"kind" example:"scroll"`
} // @name InteractionRequest

// InteractionResponse reports the effect of an interaction
type InteractionResponse struct {
	Armed   bool          `json:"armed" example:"true"`
	Segment rules.Segment `json:"segment" example:"general"`
} // @name InteractionResponse

// SiteTableResponse is the active rule table of a site
type SiteTableResponse struct {
	SiteID  string       `json:"siteId" example:"acme.example"`
	Version int          `json:"version" example:"3"`
	Table   *rules.Table `json:"table"`
} // @name SiteTableResponse

// SitesListResponse lists sites with their own rule table
type SitesListResponse struct {
	Sites []string `json:"sites"`
} // @name SitesListResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid rule table"`
	Details string `json:"details,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status" example:"healthy"`
	SitesLoaded int    `json:"sitesLoaded" example:"2"`
	Error       string `json:"error,omitempty"`
} // @name HealthResponse
