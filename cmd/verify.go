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
	"github.com/caldarium/qa-bench/internal/determinism"
	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
	"github.com/caldarium/qa-bench/internal/report"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify pipeline determinism with a double run",
	Long:  "Runs the full evaluation twice under the same seed and configuration and compares canonical output hashes. A divergence is reported as a finding, not a failure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return eris.Wrapf(err, "verify: create output dir %s", cfg.OutputDir)
		}

		auditLog, err := audit.Open(filepath.Join(cfg.OutputDir, report.AuditFile), audit.NewRunID(time.Now()))
		if err != nil {
			return err
		}
		defer auditLog.Close()

		auditLog.StageStart(model.StageDeterminism)
		var lastDrift *normalize.DriftLog
		check, rep, err := determinism.Verify(func() (*model.Report, error) {
			r, drift, err := runPipeline(ctx, cfg, audit.NewRunID(time.Now()), auditLog)
			if err != nil {
				return nil, err
			}
			lastDrift = drift
			return r, nil
		})
		auditLog.StageEnd(model.StageDeterminism)
		if err != nil {
			return err
		}
		if err := auditLog.Flush(); err != nil {
			return err
		}

		for _, sec := range rep.Types {
			c := check
			sec.Determinism = &c
		}
		if err := report.WriteAll(cfg.OutputDir, rep, lastDrift); err != nil {
			return err
		}

		if check.Deterministic {
			zap.L().Info("verify: deterministic", zap.String("hash", check.Hash1))
		} else {
			zap.L().Warn("verify: runs diverged",
				zap.String("hash_1", check.Hash1),
				zap.String("hash_2", check.Hash2),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
