package export

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscore/internal/model"
)

// Columns is the spreadsheet header row.
var Columns = []string{
	"Business Name",
	"Address",
	"Phone",
	"Email",
	"Website",
	"Overall Score",
	"Website Quality",
	"Digital Presence",
	"SEO Score",
	"Analysis Status",
}

const sheetName = "Leads"

// XLSXWriter writes records as a single-sheet workbook.
type XLSXWriter struct {
	w io.Writer
}

// NewXLSXWriter creates an XLSXWriter that writes to w.
func NewXLSXWriter(w io.Writer) *XLSXWriter {
	return &XLSXWriter{w: w}
}

// Name implements Sink.
func (x *XLSXWriter) Name() string { return "xlsx" }

// Export implements Sink.
func (x *XLSXWriter) Export(_ context.Context, _ *model.Search, records []model.BusinessRecord) (Result, error) {
	if err := WriteXLSX(x.w, records); err != nil {
		return Result{}, err
	}
	return Result{Created: len(records)}, nil
}

// WriteXLSX writes records to w, header first. Unscored records leave the
// Overall Score cell blank.
func WriteXLSX(w io.Writer, records []model.BusinessRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		cell := header.AddCell()
		cell.SetString(col)
		cell.GetStyle().Font.Bold = true
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.Address)
		row.AddCell().SetString(r.Phone)
		row.AddCell().SetString(r.Email)
		row.AddCell().SetString(r.Website)
		overall := row.AddCell()
		if r.OverallScore != nil {
			overall.SetInt(*r.OverallScore)
		}
		row.AddCell().SetInt(r.WebsiteQualityScore)
		row.AddCell().SetInt(r.DigitalPresenceScore)
		row.AddCell().SetInt(r.SEOScore)
		row.AddCell().SetString(string(r.AnalysisStatus))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}
