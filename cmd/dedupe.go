package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/bench"
	"github.com/caldarium/qa-bench/internal/dedupe"
	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
)

var dedupeShowPairs bool

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Run only the duplicate detection pass",
	Long:  "Scores every candidate document pair per type against the merge threshold and review floor, without running the metric pipeline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}
		weights, err := loadDedupeWeights(cfg)
		if err != nil {
			return err
		}
		detector := dedupe.New(weights, cfg.Dedupe.MergeThreshold, cfg.Dedupe.ReviewFloor)
		norm := normalize.New(nil)

		type typeResult struct {
			Summary model.DuplicateSummary `json:"summary"`
			Pairs   []model.DuplicatePair  `json:"pairs,omitempty"`
		}
		results := map[string]typeResult{}

		for _, tc := range cfg.DocumentTypes {
			corpus, err := bench.LoadCorpus(tc.Name, tc.PayloadDir, tc.GroundTruthDir)
			if err != nil {
				zap.L().Error("dedupe: corpus load failed, type skipped",
					zap.String("document_type", tc.Name),
					zap.Error(err),
				)
				continue
			}

			var records []dedupe.Record
			for _, doc := range corpus.Docs {
				if doc.Payload == nil {
					continue
				}
				values := map[string]model.FieldValue{}
				for _, spec := range tc.Fields {
					values[spec.Name] = norm.Field(doc.DocID, spec, doc.Payload[spec.Name])
				}
				records = append(records, dedupe.Record{DocID: doc.DocID, Values: values})
			}

			pairs, err := detector.Detect(ctx, records, cfg.Workers)
			if err != nil {
				return eris.Wrapf(err, "dedupe: %s", tc.Name)
			}

			res := typeResult{Summary: dedupe.Summarize(len(records), pairs)}
			if dedupeShowPairs {
				res.Pairs = pairs
			}
			results[tc.Name] = res

			zap.L().Info("dedupe: type complete",
				zap.String("document_type", tc.Name),
				zap.Int("records", res.Summary.Records),
				zap.Int("merge", res.Summary.Merge),
				zap.Int("review", res.Summary.Review),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeShowPairs, "pairs", false, "include every scored pair in the output")
	rootCmd.AddCommand(dedupeCmd)
}
