package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscore/internal/discovery"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/server"
)

var (
	searchLocation string
	searchIndustry string
	searchRadius   float64
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Discover local businesses and store them as a new search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("search"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		searchLimiter, _, _, err := initLimiters(st)
		if err != nil {
			return err
		}
		d, err := searchLimiter.Check(ctx, ratelimit.Key(server.OpSearch, cliUser))
		if err != nil {
			return err
		}
		if !d.Allowed {
			return eris.Errorf("search rate limit exceeded, retry in %s", d.RetryAfter(searchLimiter.Now()).Round(time.Second))
		}

		disc, err := initDiscoverer(st)
		if err != nil {
			return err
		}
		search, records, err := disc.Discover(ctx, discovery.SearchParams{
			UserID:      cliUser,
			Location:    searchLocation,
			Industry:    searchIndustry,
			RadiusMiles: searchRadius,
		})
		if err != nil {
			return eris.Wrap(err, "search")
		}

		fmt.Fprintf(os.Stdout, "Search %s: %d businesses in %s (%s)\n\n", search.ID, search.ResultsCount, search.Location, search.Industry)
		formatRecords(os.Stdout, records)
		return nil
	},
}

// formatRecords writes records as an aligned table.
func formatRecords(w io.Writer, records []model.BusinessRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tWEBSITE\tOVERALL\tSTATUS")
	for _, r := range records {
		overall := "-"
		if r.OverallScore != nil {
			overall = fmt.Sprintf("%d", *r.OverallScore)
		}
		website := r.Website
		if website == "" {
			website = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Position, r.ID, truncate(r.Name, 40), truncate(website, 40), overall, r.AnalysisStatus)
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "city, address or ZIP to search around")
	searchCmd.Flags().StringVar(&searchIndustry, "industry", "", "industry slug (default all)")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 10, "search radius in miles")
	_ = searchCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(searchCmd)
}
