package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscore/internal/model"
)

var (
	analyzeSearch   string
	analyzePage     int
	analyzePageSize int
	analyzeOffline  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score the eligible businesses of a search or one results page",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "analyze", analyzeOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.Store.GetSearch(ctx, analyzeSearch); err != nil {
			return err
		}

		scope := analysisScope(analyzeSearch, analyzePage, analyzePageSize)
		res := env.Analysis.RunBatch(ctx, scope)
		fmt.Fprintf(os.Stdout, "Selected %d, completed %d, failed %d\n", res.Selected, res.Completed, res.Failed)
		if res.Err != nil {
			return res.Err
		}

		p, err := env.Analysis.Progress(ctx, scope)
		if err != nil {
			return err
		}
		formatProgress(os.Stdout, p)
		return nil
	},
}

var (
	progressSearch   string
	progressPage     int
	progressPageSize int
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show analysis progress for a search or one results page",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "analyze", true)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Analysis.Progress(ctx, analysisScope(progressSearch, progressPage, progressPageSize))
		if err != nil {
			return err
		}
		formatProgress(os.Stdout, p)
		return nil
	},
}

// analysisScope is the whole search when page is 0.
func analysisScope(searchID string, page, pageSize int) model.Scope {
	if page <= 0 {
		return model.SearchScope(searchID)
	}
	if pageSize <= 0 {
		pageSize = cfg.Analysis.PageSize
	}
	return model.PageScope(searchID, page, pageSize)
}

func formatProgress(w io.Writer, p model.AnalysisProgress) {
	fmt.Fprintf(w, "Total: %d  Pending: %d  Analyzing: %d  Complete: %d  Failed: %d\n",
		p.Total, p.Pending, p.Analyzing, p.Complete, p.Failed)
	if p.Page > 0 {
		fmt.Fprintf(w, "Page %d: %s\n", p.Page, p.Status)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSearch, "search", "", "search id")
	analyzeCmd.Flags().IntVar(&analyzePage, "page", 0, "results page to analyze (default whole search)")
	analyzeCmd.Flags().IntVar(&analyzePageSize, "page-size", 0, "results page size (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeOffline, "offline", false, "use fallback scores without calling providers")
	_ = analyzeCmd.MarkFlagRequired("search")
	rootCmd.AddCommand(analyzeCmd)

	progressCmd.Flags().StringVar(&progressSearch, "search", "", "search id")
	progressCmd.Flags().IntVar(&progressPage, "page", 0, "results page (default whole search)")
	progressCmd.Flags().IntVar(&progressPageSize, "page-size", 0, "results page size (default from config)")
	_ = progressCmd.MarkFlagRequired("search")
	rootCmd.AddCommand(progressCmd)
}
