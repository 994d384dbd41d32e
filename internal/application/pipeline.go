// Package application orchestrates KYC processing: it fans document
// extraction out to the extraction service, joins on the results, assembles
// the dossier and runs the consistency checks on it.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-kyc/infrastructure/extraction"
	"github.com/ahrav/go-kyc/infrastructure/middleware"
	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

const tracerName = "github.com/ahrav/go-kyc/internal/application"

// LowConfidence is the classification confidence under which a warning is
// attached to the document result.
const LowConfidence = 0.5

// ErrRoleMismatch indicates that a document supplied for a role turned out
// to be of another kind.
var ErrRoleMismatch = errors.New("document does not match its role")

// Pipeline runs documents through the extraction service and validates the
// resulting dossier. It is safe for concurrent use.
type Pipeline struct {
	extractor   ports.DocumentExtractor
	validator   *ConsistencyValidator
	metrics     ports.MetricsCollector
	logger      *zap.Logger
	tracer      trace.Tracer
	concurrency int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics ports.MetricsCollector) PipelineOption {
	return func(p *Pipeline) { p.metrics = metrics }
}

// WithConcurrency bounds the number of documents processed at once.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithTracerProvider sets the tracer provider. The default is the global one.
func WithTracerProvider(tp trace.TracerProvider) PipelineOption {
	return func(p *Pipeline) { p.tracer = tp.Tracer(tracerName) }
}

// NewPipeline creates a pipeline over extractor and validator.
func NewPipeline(extractor ports.DocumentExtractor, validator *ConsistencyValidator, opts ...PipelineOption) (*Pipeline, error) {
	if extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if validator == nil {
		return nil, errors.New("pipeline: validator is required")
	}

	p := &Pipeline{
		extractor:   extractor,
		validator:   validator,
		logger:      zap.NewNop(),
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		return nil, fmt.Errorf("pipeline: concurrency must be positive, got %d", p.concurrency)
	}
	return p, nil
}

// DossierReport is the outcome of processing a set of documents.
type DossierReport struct {
	// RequestID identifies the run in logs and traces.
	RequestID string

	// Results holds one entry per submitted document, in submission order.
	Results []*domain.ExtractionResult

	// Dossier is nil when assembly failed.
	Dossier *domain.Dossier

	// Usage is the total model usage of the run.
	Usage domain.Usage

	// Warnings are run-level notes such as ignored duplicates.
	Warnings []string

	// Err is the assembly error, if any.
	Err error

	Duration time.Duration
}

// Outcome returns the validation outcome, if the dossier was validated.
func (r *DossierReport) Outcome() (domain.Outcome, bool) {
	if r == nil || r.Dossier == nil {
		return domain.Outcome{}, false
	}
	return r.Dossier.Outcome()
}

// DecisionIncomplete is the decision of a run whose dossier could not be
// assembled.
const DecisionIncomplete = "INCOMPLETE"

// Decision returns the dossier status, or DecisionIncomplete when there is
// no dossier.
func (r *DossierReport) Decision() string {
	if r == nil || r.Dossier == nil {
		return DecisionIncomplete
	}
	return string(r.Dossier.Status())
}

// ProcessDocument classifies src and extracts the fields of the detected
// kind. Failures are recorded on the returned result; it is never nil.
func (p *Pipeline) ProcessDocument(ctx context.Context, src ports.Source) *domain.ExtractionResult {
	return p.process(ctx, src, "")
}

// ProcessFile loads the file at path and processes it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) *domain.ExtractionResult {
	src, err := extraction.LoadSource(path)
	if err != nil {
		return &domain.ExtractionResult{Source: path, Err: domain.NewExtractionError(path, "load", err)}
	}
	return p.ProcessDocument(ctx, src)
}

// process extracts src. When kind is set the classification step is
// skipped.
func (p *Pipeline) process(ctx context.Context, src ports.Source, kind domain.Kind) *domain.ExtractionResult {
	start := time.Now()
	result := &domain.ExtractionResult{Source: src.Name}

	ctx, span := p.tracer.Start(ctx, "kyc.process_document",
		trace.WithAttributes(attribute.String("document.source", src.Name)))
	defer span.End()

	logger := p.logger.With(zap.String("source", src.Name))

	defer func() {
		result.Duration = time.Since(start)
		p.observeDocument(span, logger, result)
	}()

	if kind == "" {
		classification, usage, err := p.extractor.Classify(ctx, src)
		result.Usage = result.Usage.Add(usage)
		if err != nil {
			result.Err = domain.NewExtractionError(src.Name, "classify", err)
			return result
		}
		result.Classification = classification
		kind = classification.Kind

		if classification.Confidence < LowConfidence {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("low classification confidence %.2f for %s", classification.Confidence, kind))
		}
	} else {
		result.Classification = &domain.Classification{Kind: kind, Confidence: 1, Reason: "supplied by caller"}
	}

	doc, usage, err := p.extractor.Extract(ctx, kind, src)
	result.Usage = result.Usage.Add(usage)
	if err != nil {
		result.Err = domain.NewExtractionError(src.Name, "extract", err)
		return result
	}
	result.Document = doc
	return result
}

func (p *Pipeline) observeDocument(span trace.Span, logger *zap.Logger, result *domain.ExtractionResult) {
	kind := string(result.Kind())
	status := "success"
	if !result.Succeeded() {
		status = "error"
	}

	span.SetAttributes(
		attribute.String("document.kind", kind),
		attribute.String("document.status", status),
		attribute.Int("document.tokens", result.Usage.TotalTokens()),
	)

	fields := []zap.Field{
		zap.String("kind", kind),
		zap.Duration("duration", result.Duration),
		zap.Int("input_tokens", result.Usage.InputTokens),
		zap.Int("output_tokens", result.Usage.OutputTokens),
		zap.String("cost", result.Usage.Cost.String()),
	}
	if result.Classification != nil {
		fields = append(fields, zap.Float64("confidence", result.Classification.Confidence))
	}

	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		logger.Warn("document extraction failed", append(fields, zap.Error(result.Err))...)
	} else {
		span.SetStatus(codes.Ok, "")
		logger.Info("document extracted", fields...)
	}
	for _, w := range result.Warnings {
		logger.Warn("document warning", zap.String("warning", w))
	}

	if p.metrics == nil {
		return
	}
	labels := map[string]string{"kind": kind, "status": status}
	p.metrics.RecordCounter(middleware.MetricDocuments, 1, labels)
	p.metrics.RecordLatency("process_document", result.Duration, map[string]string{"kind": kind})
	if cost, _ := result.Usage.Cost.Float64(); cost > 0 {
		p.metrics.RecordCounter(middleware.MetricCost, cost, map[string]string{"model": result.Usage.Model})
	}
}

// extractAll processes every source concurrently and waits for all of
// them. A failed document never cancels its siblings.
func (p *Pipeline) extractAll(ctx context.Context, sources []ports.Source, kinds []domain.Kind) []*domain.ExtractionResult {
	results := make([]*domain.ExtractionResult, len(sources))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, src := range sources {
		var kind domain.Kind
		if kinds != nil {
			kind = kinds[i]
		}
		g.Go(func() error {
			results[i] = p.process(ctx, src, kind)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProcessSources extracts every source concurrently, keeps one result per
// kind, assembles the dossier and validates it. An incomplete dossier is
// reported both on the report and as the returned error; the report is
// always populated.
func (p *Pipeline) ProcessSources(ctx context.Context, sources []ports.Source) (*DossierReport, error) {
	return p.run(ctx, "kyc.process_sources", func(ctx context.Context, report *DossierReport) (map[domain.Kind]*domain.ExtractionResult, error) {
		report.Results = p.extractAll(ctx, sources, nil)
		byKind, warnings := Collect(report.Results)
		report.Warnings = append(report.Warnings, warnings...)
		return byKind, nil
	})
}

// ProcessFolder processes every supported document (jpg, jpeg, png, pdf)
// in dir. Unreadable files become failed results.
func (p *Pipeline) ProcessFolder(ctx context.Context, dir string) (*DossierReport, error) {
	paths, err := extraction.ListDocuments(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported documents in %s", dir)
	}

	p.logger.Info("processing folder", zap.String("dir", dir), zap.Int("documents", len(paths)))

	var (
		sources []ports.Source
		failed  []*domain.ExtractionResult
	)
	for _, path := range paths {
		src, err := extraction.LoadSource(path)
		if err != nil {
			failed = append(failed, &domain.ExtractionResult{Source: path, Err: domain.NewExtractionError(path, "load", err)})
			continue
		}
		sources = append(sources, src)
	}

	report, err := p.ProcessSources(ctx, sources)
	if report != nil {
		report.Results = append(report.Results, failed...)
	}
	return report, err
}

// DossierPaths names the file supplied for each role. License is optional.
type DossierPaths struct {
	Identity       string
	ProofOfAddress string
	BankAccount    string
	DrivingLicense string
}

// ProcessDocuments processes one file per role. The identity file is
// classified to tell a card from a passport; the other files are extracted
// as the kind of their role. A file whose kind does not fit its role fails
// with ErrRoleMismatch; a failed extraction leaves its role missing.
func (p *Pipeline) ProcessDocuments(ctx context.Context, paths DossierPaths) (*DossierReport, error) {
	type job struct {
		role domain.Role
		path string
		kind domain.Kind
	}
	jobs := []job{
		{role: domain.RoleIdentity, path: paths.Identity},
		{role: domain.RoleProofOfAddress, path: paths.ProofOfAddress, kind: domain.KindProofOfAddress},
		{role: domain.RoleBankAccount, path: paths.BankAccount, kind: domain.KindBankAccount},
	}
	if paths.DrivingLicense != "" {
		jobs = append(jobs, job{role: domain.RoleDrivingLicense, path: paths.DrivingLicense, kind: domain.KindDrivingLicense})
	}

	return p.run(ctx, "kyc.process_documents", func(ctx context.Context, report *DossierReport) (map[domain.Kind]*domain.ExtractionResult, error) {
		var (
			sources []ports.Source
			kinds   []domain.Kind
			roles   []domain.Role
		)
		for _, j := range jobs {
			if j.path == "" {
				continue
			}
			src, err := extraction.LoadSource(j.path)
			if err != nil {
				return nil, fmt.Errorf("%s document: %w", j.role, err)
			}
			sources = append(sources, src)
			kinds = append(kinds, j.kind)
			roles = append(roles, j.role)
		}

		report.Results = p.extractAll(ctx, sources, kinds)

		byKind := make(map[domain.Kind]*domain.ExtractionResult, len(report.Results))
		for i, result := range report.Results {
			if !result.Succeeded() {
				continue
			}
			kind := result.Kind()
			if roles[i] == domain.RoleIdentity && !(kind == domain.KindIdentityCard || kind == domain.KindPassport) {
				return nil, fmt.Errorf("%w: %s is a %s, expected an identity card or a passport",
					ErrRoleMismatch, result.Source, kind)
			}
			byKind[kind] = result
		}
		return byKind, nil
	})
}

// run wraps a collection step with assembly, validation, usage accounting,
// logging and tracing.
func (p *Pipeline) run(
	ctx context.Context,
	operation string,
	collect func(context.Context, *DossierReport) (map[domain.Kind]*domain.ExtractionResult, error),
) (*DossierReport, error) {
	start := time.Now()
	report := &DossierReport{RequestID: uuid.NewString()}

	ctx, span := p.tracer.Start(ctx, operation,
		trace.WithAttributes(attribute.String("kyc.request_id", report.RequestID)))
	defer span.End()

	logger := p.logger.With(zap.String("request_id", report.RequestID))
	defer func() {
		report.Duration = time.Since(start)
		for _, r := range report.Results {
			report.Usage = report.Usage.Add(r.Usage)
		}
		if p.metrics != nil {
			p.metrics.RecordLatency(operation, report.Duration, map[string]string{})
		}
	}()

	byKind, err := collect(ctx, report)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		report.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("dossier processing failed", zap.Error(err))
		return report, err
	}

	dossier, err := Assemble(byKind)
	if err != nil {
		report.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("dossier incomplete", zap.Error(err))
		p.recordDecision(DecisionIncomplete)
		return report, err
	}

	outcome := p.validator.Validate(dossier)
	report.Dossier = dossier

	span.SetAttributes(
		attribute.String("kyc.dossier_id", dossier.ID),
		attribute.String("kyc.status", string(outcome.Status)),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("dossier validated",
		zap.String("dossier_id", dossier.ID),
		zap.String("status", string(outcome.Status)),
		zap.Bool("name_match", outcome.NameMatch),
		zap.Bool("address_match", outcome.AddressMatch),
		zap.Bool("all_documents_valid", outcome.AllDocumentsValid),
		zap.Strings("rejection_reasons", dossier.RejectionReasons()),
		zap.Strings("warnings", dossier.Warnings()),
		zap.String("iban", dossier.BankAccount.MaskedIBAN()),
	)
	p.recordDecision(string(outcome.Status))

	return report, nil
}

func (p *Pipeline) recordDecision(status string) {
	if p.metrics != nil {
		p.metrics.RecordCounter(middleware.MetricDecisions, 1, map[string]string{"status": status})
	}
}
