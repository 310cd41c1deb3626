package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/audit"
	"github.com/caldarium/qa-bench/internal/report"
)

var benchOutputDir string

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the full benchmark over every configured document type",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if benchOutputDir != "" {
			cfg.OutputDir = benchOutputDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return eris.Wrapf(err, "bench: create output dir %s", cfg.OutputDir)
		}

		runID := audit.NewRunID(time.Now())
		auditLog, err := audit.Open(filepath.Join(cfg.OutputDir, report.AuditFile), runID)
		if err != nil {
			return err
		}
		defer auditLog.Close()

		zap.L().Info("bench: starting run", zap.String("run_id", runID))

		rep, drift, err := runPipeline(ctx, cfg, runID, auditLog)
		if err != nil {
			return err
		}
		if err := auditLog.Flush(); err != nil {
			return err
		}
		if err := report.WriteAll(cfg.OutputDir, rep, drift); err != nil {
			return err
		}

		zap.L().Info("bench: run complete",
			zap.String("run_id", runID),
			zap.Int("types_evaluated", rep.Rollup.TypesEvaluated),
			zap.Strings("types_skipped", rep.Rollup.Skipped),
		)
		return nil
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchOutputDir, "output-dir", "", "override the configured output directory")
	rootCmd.AddCommand(benchCmd)
}
