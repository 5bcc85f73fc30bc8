// Package pipeline runs a batch of invoices through text extraction,
// structured extraction and indexing, and serves questions over the result.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/export"
	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/progress"
	"github.com/ziadkadry99/invoicer/internal/qa"
)

// TextExtractor turns files into raw text.
type TextExtractor interface {
	ProcessFiles(ctx context.Context, docs []invoice.Document, onProgress invoice.ProgressFunc) []invoice.ProcessedDocument
}

// FieldExtractor turns raw text into structured records.
type FieldExtractor interface {
	ExtractBatch(ctx context.Context, docs []invoice.ProcessedDocument, onProgress invoice.ProgressFunc) []invoice.Record
}

// Answerer answers questions about the indexed batch.
type Answerer interface {
	Answer(ctx context.Context, question string) qa.Answer
}

// Analyst writes a narrative over a record batch.
type Analyst interface {
	Analyze(ctx context.Context, records []invoice.Record) (*analytics.Insights, error)
}

// Options selects the stages of a run.
type Options struct {
	ExtractData bool `json:"extract_data"`
	CreateKB    bool `json:"create_kb"`
}

// DefaultOptions enables every stage.
func DefaultOptions() Options {
	return Options{ExtractData: true, CreateKB: true}
}

// Result describes a finished run.
type Result struct {
	RunID     string                      `json:"run_id"`
	Documents []invoice.ProcessedDocument `json:"documents"`
	Records   []invoice.Record            `json:"records"`
	Summary   analytics.Summary           `json:"summary"`
	Index     IndexOutcome                `json:"index"`
	Duration  time.Duration               `json:"duration"`
}

// IndexOutcome reports what happened to the semantic index during a run.
type IndexOutcome struct {
	Attempted bool   `json:"attempted"`
	Built     bool   `json:"built"`
	Chunks    int    `json:"chunks"`
	Error     string `json:"error,omitempty"`
}

// FailedDocuments counts documents whose text could not be extracted.
func (r *Result) FailedDocuments() int {
	n := 0
	for _, d := range r.Documents {
		if !d.OK() {
			n++
		}
	}
	return n
}

// Deps are the collaborators of an Orchestrator. Analyst and Reporter are optional.
type Deps struct {
	Text     TextExtractor
	Fields   FieldExtractor
	Answerer Answerer
	Analyst  Analyst
	Reporter progress.Reporter
}

// Orchestrator sequences the stages of a run over a Session.
type Orchestrator struct {
	deps    Deps
	session *Session
	logger  *slog.Logger

	// runMu admits one run at a time; questions are served concurrently.
	runMu sync.Mutex
}

// New creates an Orchestrator.
func New(deps Deps, session *Session, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = progress.Nop{}
	}
	return &Orchestrator{deps: deps, session: session, logger: logger}
}

// Session returns the session the orchestrator works on.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Process runs docs through the enabled stages and replaces the session's
// batch. Per-document failures are carried in the result. The only error
// returned is an index build rejecting structurally invalid documents;
// other index failures are reported in Result.Index and leave the previous
// index in service.
func (o *Orchestrator) Process(ctx context.Context, docs []invoice.Document, opts Options) (*Result, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := time.Now()
	res := &Result{RunID: uuid.New().String()}
	log := o.logger.With("run", res.RunID)
	rep := o.deps.Reporter

	rep.Start("Extracting text", len(docs))
	res.Documents = o.deps.Text.ProcessFiles(ctx, docs, progress.Func(rep))
	rep.Finish()
	log.Info("text extraction done", "documents", len(docs), "failed", res.FailedDocuments())

	if opts.ExtractData {
		ok := len(res.Documents) - res.FailedDocuments()
		rep.Start("Extracting fields", ok)
		res.Records = o.deps.Fields.ExtractBatch(ctx, res.Documents, progress.Func(rep))
		rep.Finish()
		log.Info("structured extraction done", "records", len(res.Records), "failed", analytics.Failed(res.Records))
	}

	if opts.CreateKB {
		res.Index.Attempted = true
		idx := o.session.Index()
		if err := idx.Build(ctx, res.Documents); err != nil {
			if errors.Is(err, invoice.ErrInvalidDocument) {
				return nil, err
			}
			log.Warn("index build failed", "error", err)
			res.Index.Error = err.Error()
		}
		stats := idx.Stats()
		res.Index.Built = stats.Built
		res.Index.Chunks = stats.Chunks
	}

	res.Summary = analytics.Aggregate(res.Records)
	o.session.replace(res.RunID, res.Documents, res.Records)
	res.Duration = time.Since(start)
	log.Info("run complete", "duration", res.Duration)
	return res, nil
}

// Ask answers question and appends the exchange to the transcript.
func (o *Orchestrator) Ask(ctx context.Context, question string) qa.Answer {
	a := o.deps.Answerer.Answer(ctx, question)
	o.session.Transcript().Record(question, a)
	return a
}

// Summary aggregates the session's current records.
func (o *Orchestrator) Summary() analytics.Summary {
	return analytics.Aggregate(o.session.Records())
}

// ErrNoAnalyst is returned by Insights when no analyst is configured.
var ErrNoAnalyst = errors.New("insights are not configured")

// Insights asks the analyst about the session's current records.
func (o *Orchestrator) Insights(ctx context.Context) (*analytics.Insights, error) {
	if o.deps.Analyst == nil {
		return nil, ErrNoAnalyst
	}
	return o.deps.Analyst.Analyze(ctx, o.session.Records())
}

// Batch returns the session's current batch for export.
func (o *Orchestrator) Batch() export.Batch {
	records := o.session.Records()
	return export.Batch{
		RunID:     o.session.RunID(),
		Documents: o.session.Documents(),
		Records:   records,
		Summary:   analytics.Aggregate(records),
	}
}
