// Package presence scores a business's web presence: digital presence from
// web search results, website quality and SEO from a language-model rating of
// the landing page. Every scorer degrades to a deterministic fallback, so a
// score is always produced.
package presence

import (
	"context"
)

// Fallback scores used when a capability is missing or fails.
const (
	baseDigitalPresence       = 5
	fallbackPresenceNoSite    = 5
	fallbackPresenceWithSite  = 15
	fallbackQualityWithSite   = 20
	fallbackSEOWithSite       = 10
	fallbackSEOUnparsedRating = 15
)

// DigitalPresenceScorer rates how visible a business is on the web, 0-30.
// Score never fails.
type DigitalPresenceScorer interface {
	Score(ctx context.Context, name, address, website string) int
}

// WebsiteScorer rates a business website, quality 0-40 and SEO 0-30. Score
// never fails.
type WebsiteScorer interface {
	Score(ctx context.Context, name, website string) WebsiteScores
}

// WebsiteScores is the website half of a business's scores.
type WebsiteScores struct {
	Quality int `json:"websiteQuality"`
	SEO     int `json:"seo"`
}

// FallbackPresence is the digital presence score used without search results.
func FallbackPresence(website string) int {
	if website != "" {
		return fallbackPresenceWithSite
	}
	return fallbackPresenceNoSite
}

// FallbackWebsite is the website score used without a rating.
func FallbackWebsite(website string) WebsiteScores {
	if website == "" {
		return WebsiteScores{}
	}
	return WebsiteScores{Quality: fallbackQualityWithSite, SEO: fallbackSEOWithSite}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
