package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

var redirectsCmd = &cobra.Command{
	Use:   "redirects",
	Short: "Propose moving far, low-urgency matches to nearby red postings",
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

		res, err := ranker.Rank(ctx, match.Request{
			Candidates:   in.Candidates,
			Postings:     in.Postings,
			Requirements: in.Requirements,
		})
		if err != nil {
			return err
		}

		byID := make(map[string]model.Candidate, len(in.Candidates))
		for _, c := range in.Candidates {
			byID[c.ID] = c
		}

		redirects := match.FindRedirects(res.Matches, byID, in.Postings, in.Requirements, cfg.Redirect)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(redirects)
	},
}

func init() {
	rootCmd.AddCommand(redirectsCmd)
}
