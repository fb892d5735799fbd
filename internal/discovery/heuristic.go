package discovery

import (
	"github.com/sells-group/leadscore/internal/analysis"
	"github.com/sells-group/leadscore/internal/model"
)

// ApplyBasicScores gives a new record a quick score from the fields
// discovery found. Records with no website, phone or email stay pending and
// unscored.
func ApplyBasicScores(r *model.BusinessRecord) {
	if r.Website == "" && r.Phone == "" && r.Email == "" {
		r.AnalysisStatus = model.StatusPending
		return
	}

	quality, seo := 0, 0
	if r.Website != "" {
		quality, seo = 10, 5
	}
	presence := 5
	if r.Phone != "" {
		presence += 3
	}
	if r.Email != "" {
		presence += 2
	}

	r.ApplyScores(analysis.NewScores(quality, presence, seo))
	r.AnalysisStatus = model.StatusBasicComplete
}
