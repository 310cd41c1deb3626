package bench

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caldarium/qa-bench/internal/audit"
	"github.com/caldarium/qa-bench/internal/classify"
	"github.com/caldarium/qa-bench/internal/dedupe"
	"github.com/caldarium/qa-bench/internal/match"
	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
	"github.com/caldarium/qa-bench/internal/schema"
)

// Options are the runner knobs shared across document types.
type Options struct {
	Workers    int
	DocTimeout time.Duration
}

// TypeOutcome is the raw per-type evaluation output before report
// aggregation. Slices are ordered by doc ID.
type TypeOutcome struct {
	DocumentType string
	Documents    int
	Results      []model.MatchResult
	Coverage     model.Coverage
	Validation   []model.ValidationResult
	Events       []model.ErrorEvent
	Records      []dedupe.Record

	StandardizedFields int
	PresentFields      int
	BlankFields        int
	TotalFields        int
}

// Runner evaluates one document type's corpus document by document.
type Runner struct {
	norm       *normalize.Normalizer
	validator  *schema.Validator
	classifier *classify.Classifier
	auditLog   *audit.Logger
	opts       Options
}

// NewRunner wires a runner from its stage components.
func NewRunner(norm *normalize.Normalizer, validator *schema.Validator, classifier *classify.Classifier, auditLog *audit.Logger, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DocTimeout <= 0 {
		opts.DocTimeout = 30 * time.Second
	}
	return &Runner{
		norm:       norm,
		validator:  validator,
		classifier: classifier,
		auditLog:   auditLog,
		opts:       opts,
	}
}

// docOutcome is one document's evaluation result, reduced after the barrier.
type docOutcome struct {
	results    []model.MatchResult
	coverage   model.Coverage
	validation []model.ValidationResult
	event      model.ErrorEvent
	record     dedupe.Record
	drift      []model.DriftRecord

	standardized int
	present      int
	blank        int
	total        int
}

// RunType fans the corpus out over the worker pool and reduces the
// per-document outcomes after the barrier. A single document failing or
// timing out is classified and logged, never fatal to the batch.
func (r *Runner) RunType(ctx context.Context, corpus *Corpus) (*TypeOutcome, error) {
	zap.L().Info("bench: evaluating document type",
		zap.String("document_type", corpus.DocumentType),
		zap.Int("documents", len(corpus.Docs)),
		zap.Int("workers", r.opts.Workers),
	)

	outcomes := make([]docOutcome, len(corpus.Docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, doc := range corpus.Docs {
		i, doc := i, doc
		g.Go(func() error {
			outcomes[i] = r.evaluateWithTimeout(gctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "bench: run type")
	}

	out := &TypeOutcome{
		DocumentType: corpus.DocumentType,
		Documents:    len(corpus.Docs),
	}
	for _, o := range outcomes {
		out.Results = append(out.Results, o.results...)
		out.Coverage.TotalFields += o.coverage.TotalFields
		out.Coverage.Scored += o.coverage.Scored
		out.Coverage.ExcludedNull += o.coverage.ExcludedNull
		out.Validation = append(out.Validation, o.validation...)
		out.Events = append(out.Events, o.event)
		if o.record.DocID != "" {
			out.Records = append(out.Records, o.record)
		}
		out.StandardizedFields += o.standardized
		out.PresentFields += o.present
		out.BlankFields += o.blank
		out.TotalFields += o.total
		r.auditLog.Classification(o.event)
	}
	return out, nil
}

// evaluateWithTimeout bounds one document's evaluation. A document that
// exceeds the budget is classified as an extraction failure and its buffered
// drift records are discarded along with the rest of its outcome.
func (r *Runner) evaluateWithTimeout(ctx context.Context, doc DocPair) docOutcome {
	dctx, cancel := context.WithTimeout(ctx, r.opts.DocTimeout)
	defer cancel()

	done := make(chan docOutcome, 1)
	go func() { done <- r.evaluate(doc) }()

	select {
	case o := <-done:
		r.commitDrift(o.drift)
		return o
	case <-dctx.Done():
		zap.L().Warn("bench: document evaluation timed out",
			zap.String("doc_id", doc.DocID),
			zap.Duration("timeout", r.opts.DocTimeout),
		)
		return docOutcome{
			event: model.ErrorEvent{
				DocID:     doc.DocID,
				Stage:     model.StageClassify,
				ErrorCode: model.CodeExtractionFail,
				Timestamp: time.Now().UTC(),
				Details:   map[string]any{"timeout": r.opts.DocTimeout.String()},
			},
		}
	}
}

// commitDrift copies a completed document's buffered drift records into the
// shared log. Timed-out documents never reach here, so the artifact only
// carries records from documents the report accounts for.
func (r *Runner) commitDrift(recs []model.DriftRecord) {
	if shared := r.norm.Drift(); shared != nil {
		shared.AppendAll(recs)
	}
}

func (r *Runner) evaluate(doc DocPair) docOutcome {
	local := normalize.NewDriftLog()
	norm := r.norm.WithDrift(local)
	validator := r.validator.WithDrift(local)
	specs := validator.Specs()

	pred := map[string]model.FieldValue{}
	gt := map[string]model.FieldValue{}
	for _, spec := range specs {
		var rawPred any
		if doc.Payload != nil {
			rawPred = doc.Payload[spec.Name]
		}
		pred[spec.Name] = norm.Field(doc.DocID, spec, rawPred)
		gt[spec.Name] = norm.Field(doc.DocID, spec, doc.GroundTruth[spec.Name])
	}

	var o docOutcome
	o.results, o.coverage = match.Document(doc.DocID, specs, pred, gt)

	if doc.Payload != nil {
		o.validation = validator.Document(doc.DocID, doc.Payload, pred)
	}

	for _, spec := range specs {
		v := pred[spec.Name]
		o.total++
		switch {
		case v.Blank:
			o.blank++
		case v.Present():
			o.present++
			if v.Standardized {
				o.standardized++
			}
		}
	}

	obs := r.observe(doc, specs, pred, o.validation)
	o.event = r.classifier.Event(obs, model.StageClassify, time.Now().UTC())
	if o.event.ErrorCode != model.CodeSuccess {
		if o.event.Details == nil {
			o.event.Details = map[string]any{}
		}
		o.event.Details["source_identifier"] = doc.Info.SourceIdentifier
		o.event.Details["content_checksum"] = doc.Info.ContentChecksum
	}
	o.record = dedupe.Record{DocID: doc.DocID, Values: pred}
	o.drift = local.Records()
	return o
}

// observe assembles the classifier's evidence from the stage outputs.
func (r *Runner) observe(doc DocPair, specs []model.FieldSpec, pred map[string]model.FieldValue, validation []model.ValidationResult) classify.Observation {
	obs := classify.Observation{
		DocID:          doc.DocID,
		PayloadPresent: doc.Payload != nil,
		RawText:        doc.RawText,
	}

	missing := map[string]bool{}
	for _, vr := range validation {
		if vr.Passed {
			continue
		}
		switch vr.Rule {
		case schema.RuleRequired:
			missing[vr.FieldName] = true
		case schema.RuleFormat:
			obs.PatternFailures = append(obs.PatternFailures, vr.FieldName)
		default:
			obs.SchemaViolation = true
		}
	}
	for name := range missing {
		obs.MissingRequired = append(obs.MissingRequired, name)
	}
	sort.Strings(obs.MissingRequired)
	sort.Strings(obs.PatternFailures)

	for _, spec := range specs {
		if spec.Type != model.ValueList {
			continue
		}
		obs.HasTableField = true
		obs.TableCells += len(pred[spec.Name].Items)
	}
	return obs
}
