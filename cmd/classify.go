package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [label]...",
	Short: "Show how raw diploma labels map to categories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := initRuleset()
		if err != nil {
			return err
		}

		out := make([]map[string]model.Category, 0, len(args))
		for _, label := range args {
			out = append(out, map[string]model.Category{label: rules.Classify(label)})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
