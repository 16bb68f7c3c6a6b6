package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plutoskio/BDD-grandir2.0/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "grandir-match",
	Short: "Candidate-to-nursery matching and scoring engine",
	Long:  "Classifies diplomas, evaluates role requirements, computes distances and composite scores, and emits ranked candidate-posting matches.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
