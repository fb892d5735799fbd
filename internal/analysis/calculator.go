// Package analysis drives web-presence scoring of business records: scoring
// one record, running batches over a search or a results page, and reporting
// progress to polling clients.
package analysis

import "github.com/sells-group/leadscore/internal/model"

// CalculateOverall combines the three sub-scores into the 0-100 overall score.
func CalculateOverall(websiteQuality, digitalPresence, seo int) int {
	return max(0, min(websiteQuality+digitalPresence+seo, model.MaxOverall))
}

// NewScores builds a Scores with the overall computed from the sub-scores.
func NewScores(websiteQuality, digitalPresence, seo int) model.Scores {
	return model.Scores{
		WebsiteQuality:  websiteQuality,
		DigitalPresence: digitalPresence,
		SEO:             seo,
		Overall:         CalculateOverall(websiteQuality, digitalPresence, seo),
	}
}
