package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	scoreResult  string
	scoreOffline bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Re-score a single business result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "analyze", scoreOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Analysis.ScoreOne(ctx, scoreResult)
		if err != nil {
			return err
		}
		if !res.Success {
			return eris.Errorf("score %s: %s", scoreResult, res.Error)
		}
		s := res.Scores
		fmt.Fprintf(os.Stdout, "Overall %d/100  website %d/40  presence %d/30  SEO %d/30\n",
			s.Overall, s.WebsiteQuality, s.DigitalPresence, s.SEO)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreResult, "result", "", "business result id")
	scoreCmd.Flags().BoolVar(&scoreOffline, "offline", false, "use fallback scores without calling providers")
	_ = scoreCmd.MarkFlagRequired("result")
	rootCmd.AddCommand(scoreCmd)
}
