package model

import (
	"time"
)

// AnalysisStatus represents the lifecycle stage of a record's presence scoring.
type AnalysisStatus string

const (
	StatusPending       AnalysisStatus = "pending"
	StatusBasicComplete AnalysisStatus = "basic_complete"
	StatusAnalyzing     AnalysisStatus = "analyzing"
	StatusComplete      AnalysisStatus = "complete"
	StatusFailed        AnalysisStatus = "failed"
)

// Score bounds for each sub-score.
const (
	MaxWebsiteQuality  = 40
	MaxDigitalPresence = 30
	MaxSEO             = 30
	MaxOverall         = 100
)

// EligibleStatuses lists the statuses a batch may claim.
var EligibleStatuses = []AnalysisStatus{StatusPending, StatusBasicComplete}

// Valid reports whether s is a known status.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusBasicComplete, StatusAnalyzing, StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

// Eligible reports whether a record in this status may be claimed for analysis.
func (s AnalysisStatus) Eligible() bool {
	return s == StatusPending || s == StatusBasicComplete
}

// Terminal reports whether the status ends a single analysis attempt.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// BusinessRecord is one discovered business tied to a search.
type BusinessRecord struct {
	ID            string `json:"id"`
	SearchID      string `json:"search_id"`
	Position      int    `json:"position"`
	Name          string `json:"business_name"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Website       string `json:"website,omitempty"`
	GooglePlaceID string `json:"google_place_id,omitempty"`

	WebsiteQualityScore  int  `json:"website_quality_score"`
	DigitalPresenceScore int  `json:"digital_presence_score"`
	SEOScore             int  `json:"seo_score"`
	OverallScore         *int `json:"overall_score"`

	AnalysisStatus AnalysisStatus `json:"analysis_status"`
	LastAnalyzedAt *time.Time     `json:"last_analyzed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasWebsite reports whether the record carries a website URL.
func (r BusinessRecord) HasWebsite() bool {
	return r.Website != ""
}

// Scores returns the record's current scores. Overall is 0 when unscored.
func (r BusinessRecord) Scores() Scores {
	s := Scores{
		WebsiteQuality:  r.WebsiteQualityScore,
		DigitalPresence: r.DigitalPresenceScore,
		SEO:             r.SEOScore,
	}
	if r.OverallScore != nil {
		s.Overall = *r.OverallScore
	}
	return s
}

// ApplyScores copies s onto the record's scoring fields.
func (r *BusinessRecord) ApplyScores(s Scores) {
	r.WebsiteQualityScore = s.WebsiteQuality
	r.DigitalPresenceScore = s.DigitalPresence
	r.SEOScore = s.SEO
	overall := s.Overall
	r.OverallScore = &overall
}

// Scores is the sub-score breakdown for one business.
type Scores struct {
	WebsiteQuality  int `json:"websiteQuality"`
	DigitalPresence int `json:"digitalPresence"`
	SEO             int `json:"seo"`
	Overall         int `json:"overall"`
}

// ScoreResult is the outcome of scoring one business.
type ScoreResult struct {
	Success bool    `json:"success"`
	Scores  *Scores `json:"scores,omitempty"`
	Error   string  `json:"error,omitempty"`
}
