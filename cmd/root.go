package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "qa-bench",
	Short: "Parser QA benchmarking and scoring engine",
	Long:  "Scores parser output against ground-truth corpora per document type: field agreement metrics, schema validation, duplicate detection, determinism verification, and a unified benchmark report.",
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
