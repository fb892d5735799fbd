package model

// PageStatus is the single rollup state of a results page.
type PageStatus string

const (
	PagePending   PageStatus = "pending"
	PageAnalyzing PageStatus = "analyzing"
	PageComplete  PageStatus = "complete"
	PageFailed    PageStatus = "failed"
)

// StatusCounts maps each analysis status to the number of records in it.
type StatusCounts map[AnalysisStatus]int

// AnalysisProgress is the aggregate analysis state of a scope. It is derived
// from current record states and never stored.
type AnalysisProgress struct {
	Total     int        `json:"total"`
	Pending   int        `json:"pending"`
	Analyzing int        `json:"analyzing"`
	Complete  int        `json:"complete"`
	Failed    int        `json:"failed"`
	Page      int        `json:"page,omitempty"`
	Status    PageStatus `json:"status,omitempty"`
}

