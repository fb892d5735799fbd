// Package export writes a search's scored leads to a spreadsheet, a Notion
// lead database or Salesforce.
package export

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/store"
)

// Sink receives the exported records of one search.
type Sink interface {
	Name() string
	Export(ctx context.Context, search *model.Search, records []model.BusinessRecord) (Result, error)
}

// Result tallies one export.
type Result struct {
	Sink    string   `json:"sink"`
	Records int      `json:"records"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Source loads searches and their records. store.Store satisfies it.
type Source interface {
	GetSearch(ctx context.Context, id string) (*model.Search, error)
	ListRecords(ctx context.Context, searchID string, opts store.ListOpts) ([]model.BusinessRecord, error)
}

// Exporter selects a search's records and hands them to a sink.
type Exporter struct {
	source Source
}

// NewExporter creates an Exporter.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Export writes the records of searchID matching opts to sink. Offset and
// Limit in opts are ignored; an export always covers the whole search.
func (e *Exporter) Export(ctx context.Context, searchID string, opts store.ListOpts, sink Sink) (Result, error) {
	search, err := e.source.GetSearch(ctx, searchID)
	if err != nil {
		return Result{}, eris.Wrapf(err, "export: load search %s", searchID)
	}

	opts.Offset, opts.Limit = 0, 0
	records, err := e.source.ListRecords(ctx, searchID, opts)
	if err != nil {
		return Result{}, eris.Wrapf(err, "export: list records for %s", searchID)
	}

	res, err := sink.Export(ctx, search, records)
	res.Sink = sink.Name()
	res.Records = len(records)
	if err != nil {
		return res, eris.Wrapf(err, "export: %s", sink.Name())
	}

	zap.L().Info("export: complete",
		zap.String("search_id", searchID),
		zap.String("sink", res.Sink),
		zap.Int("records", res.Records),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func overallString(r model.BusinessRecord) string {
	if r.OverallScore == nil {
		return ""
	}
	return strconv.Itoa(*r.OverallScore)
}
