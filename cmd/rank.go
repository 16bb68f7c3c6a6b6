package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plutoskio/BDD-grandir2.0/internal/match"
)

var (
	rankTop         int
	rankMinScore    float64
	rankMaxDistance float64
	rankSave        bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score and rank every candidate against every open posting",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rules, err := initRuleset()
		if err != nil {
			return err
		}
		ranker, err := initRanker()
		if err != nil {
			return err
		}

		in, err := loadInputs(ctx, st, rules)
		if err != nil {
			return err
		}

		req := match.Request{
			Candidates:   in.Candidates,
			Postings:     in.Postings,
			Requirements: in.Requirements,
			Top:          rankTop,
		}
		if cmd.Flags().Changed("min-score") {
			req.MinScore = &rankMinScore
		}
		if cmd.Flags().Changed("max-distance") {
			req.MaxDistanceKM = &rankMaxDistance
		}

		res, err := ranker.Rank(ctx, req)
		if err != nil {
			return err
		}

		if rankSave {
			if err := st.SaveMatches(ctx, res.ID, res.Matches); err != nil {
				return err
			}
			zap.L().Info("matches saved",
				zap.String("result_id", res.ID),
				zap.Int("matches", len(res.Matches)),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rankCmd.Flags().IntVar(&rankTop, "top", 0, "keep only the N best matches (0 = all)")
	rankCmd.Flags().Float64Var(&rankMinScore, "min-score", 0, "drop matches scoring below this")
	rankCmd.Flags().Float64Var(&rankMaxDistance, "max-distance", 0, "drop matches farther than this many km")
	rankCmd.Flags().BoolVar(&rankSave, "save", false, "persist the ranking snapshot to the store")
	rootCmd.AddCommand(rankCmd)
}
