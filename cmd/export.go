package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscore/internal/export"
	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/server"
	"github.com/sells-group/leadscore/internal/store"
)

var (
	exportSearch   string
	exportFormat   string
	exportOut      string
	exportMinScore int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a search's leads to XLSX, Notion or Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		_, exportLimiter, _, err := initLimiters(st)
		if err != nil {
			return err
		}
		d, err := exportLimiter.Check(ctx, ratelimit.Key(server.OpExport, cliUser))
		if err != nil {
			return err
		}
		if !d.Allowed {
			return eris.Errorf("export rate limit exceeded, retry in %s", d.RetryAfter(exportLimiter.Now()).Round(time.Second))
		}

		minScore := exportMinScore
		if !cmd.Flags().Changed("min-score") {
			minScore = cfg.Export.MinScore
		}

		sink, closeSink, err := buildSink(exportFormat, exportSearch, exportOut)
		if err != nil {
			return err
		}
		res, err := export.NewExporter(st).Export(ctx, exportSearch, store.ListOpts{MinScore: minScore}, sink)
		if cerr := closeSink(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Exported %d records to %s (created %d, updated %d, failed %d)\n",
			res.Records, res.Sink, res.Created, res.Updated, res.Failed)
		for _, e := range res.Errors {
			fmt.Fprintln(os.Stderr, "  "+e)
		}
		return nil
	},
}

// buildSink returns the sink for format and a func that releases it.
func buildSink(format, searchID, out string) (export.Sink, func() error, error) {
	noop := func() error { return nil }
	switch format {
	case "xlsx":
		if out == "" {
			out = fmt.Sprintf("leads-%s.xlsx", searchID)
		}
		f, err := os.Create(out)
		if err != nil {
			return nil, noop, eris.Wrapf(err, "create %s", out)
		}
		return export.NewXLSXWriter(f), f.Close, nil
	case "notion":
		client, err := initNotion()
		if err != nil {
			return nil, noop, err
		}
		return export.NewNotionSink(client, cfg.Export.Notion.LeadDB), noop, nil
	case "salesforce":
		client, err := initSalesforce()
		if err != nil {
			return nil, noop, err
		}
		return export.NewSalesforceSink(client), noop, nil
	default:
		return nil, noop, eris.Errorf("unsupported export format %q (want xlsx, notion or salesforce)", format)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "search id")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "xlsx, notion or salesforce")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "xlsx output path (default leads-<search>.xlsx)")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "only export leads scoring at least this (default from config)")
	_ = exportCmd.MarkFlagRequired("search")
	rootCmd.AddCommand(exportCmd)
}
