package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   AnalysisStatus
		want     string
		eligible bool
		terminal bool
	}{
		{StatusPending, "pending", true, false},
		{StatusBasicComplete, "basic_complete", true, false},
		{StatusAnalyzing, "analyzing", false, false},
		{StatusComplete, "complete", false, true},
		{StatusFailed, "failed", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.Valid())
			assert.Equal(t, tt.eligible, tt.status.Eligible())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestAnalysisStatusInvalid(t *testing.T) {
	t.Parallel()
	assert.False(t, AnalysisStatus("queued").Valid())
	assert.False(t, AnalysisStatus("").Eligible())
}

func TestBusinessRecordScores(t *testing.T) {
	t.Parallel()

	r := BusinessRecord{WebsiteQualityScore: 10, DigitalPresenceScore: 5, SEOScore: 3}
	assert.Equal(t, Scores{WebsiteQuality: 10, DigitalPresence: 5, SEO: 3}, r.Scores())

	r.ApplyScores(Scores{WebsiteQuality: 30, DigitalPresence: 20, SEO: 25, Overall: 75})
	assert.Equal(t, 30, r.WebsiteQualityScore)
	assert.Equal(t, 20, r.DigitalPresenceScore)
	assert.Equal(t, 25, r.SEOScore)
	if assert.NotNil(t, r.OverallScore) {
		assert.Equal(t, 75, *r.OverallScore)
	}
	assert.Equal(t, 75, r.Scores().Overall)
}

func TestBusinessRecordHasWebsite(t *testing.T) {
	t.Parallel()
	assert.False(t, BusinessRecord{}.HasWebsite())
	assert.True(t, BusinessRecord{Website: "https://example.com"}.HasWebsite())
}
