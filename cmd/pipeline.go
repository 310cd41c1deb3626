package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/audit"
	"github.com/caldarium/qa-bench/internal/bench"
	"github.com/caldarium/qa-bench/internal/classify"
	"github.com/caldarium/qa-bench/internal/config"
	"github.com/caldarium/qa-bench/internal/dedupe"
	"github.com/caldarium/qa-bench/internal/metrics"
	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
	"github.com/caldarium/qa-bench/internal/report"
	"github.com/caldarium/qa-bench/internal/schema"
)

// loadDedupeWeights resolves the duplicate-key weights from the configured
// file or falls back to the built-in defaults.
func loadDedupeWeights(cfg *config.Config) (dedupe.Weights, error) {
	if cfg.Dedupe.WeightsFile == "" {
		return dedupe.DefaultWeights(), nil
	}
	return dedupe.LoadWeights(cfg.Dedupe.WeightsFile)
}

// runPipeline executes one full evaluation over every configured document
// type and assembles the report. The drift log accumulates across types.
// Configuration problems are fatal; one document type failing to load is
// reported as a skipped section instead.
func runPipeline(ctx context.Context, cfg *config.Config, runID string, auditLog *audit.Logger) (*model.Report, *normalize.DriftLog, error) {
	drift := normalize.NewDriftLog()
	norm := normalize.New(drift)
	classifier := classify.New(cfg.Legibility)

	weights, err := loadDedupeWeights(cfg)
	if err != nil {
		return nil, nil, err
	}
	detector := dedupe.New(weights, cfg.Dedupe.MergeThreshold, cfg.Dedupe.ReviewFloor)

	metricOpts := metrics.Options{
		KappaThreshold:      cfg.Thresholds.HybridKappa,
		CriticalF1Threshold: cfg.Thresholds.CriticalF1,
		CriticalFields:      cfg.Thresholds.CriticalFields,
	}

	sections := map[string]*model.TypeSection{}
	corpusHashes := map[string]string{}

	for _, tc := range cfg.DocumentTypes {
		validator, err := schema.Load(tc.SchemaPath, tc.Fields, drift)
		if err != nil {
			return nil, nil, err
		}

		auditLog.StageStart(model.StageLoad)
		corpus, err := bench.LoadCorpus(tc.Name, tc.PayloadDir, tc.GroundTruthDir)
		auditLog.StageEnd(model.StageLoad)
		if err != nil {
			zap.L().Error("pipeline: corpus load failed, type skipped",
				zap.String("document_type", tc.Name),
				zap.Error(err),
			)
			sections[tc.Name] = &model.TypeSection{DocumentType: tc.Name, ErrorCounts: map[string]int{}}
			continue
		}
		corpusHashes[tc.Name+"/payload"] = corpus.PayloadHash
		corpusHashes[tc.Name+"/ground_truth"] = corpus.GroundTruthHash

		runner := bench.NewRunner(norm, validator, classifier, auditLog, bench.Options{
			Workers:    cfg.Workers,
			DocTimeout: time.Duration(cfg.DocTimeoutSecs) * time.Second,
		})

		auditLog.StageStart(model.StageMatch)
		out, err := runner.RunType(ctx, corpus)
		auditLog.StageEnd(model.StageMatch)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "pipeline: evaluate %s", tc.Name)
		}

		auditLog.StageStart(model.StageMetrics)
		ms := metrics.Compute(out.Results, out.Coverage)
		th := metrics.Thresholds(ms, metricOpts)
		auditLog.StageEnd(model.StageMetrics)

		auditLog.StageStart(model.StageDedupe)
		pairs, err := detector.Detect(ctx, out.Records, cfg.Workers)
		auditLog.StageEnd(model.StageDedupe)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "pipeline: dedupe %s", tc.Name)
		}
		dup := dedupe.Summarize(len(out.Records), pairs)

		sections[tc.Name] = report.BuildTypeSection(out, ms, th, dup, nil)
	}

	run := model.RunInfo{
		RunID:        runID,
		Seed:         cfg.Seed,
		Engines:      cfg.Engines,
		StartedAt:    time.Now().UTC(),
		ConfigDigest: cfg.Digest(),
		CorpusHashes: corpusHashes,
	}

	auditLog.StageStart(model.StageReport)
	rep := report.Build(run, sections)
	auditLog.StageEnd(model.StageReport)
	return rep, drift, nil
}
