package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"profitcalc/internal/archive"
	"profitcalc/internal/classify"
	"profitcalc/internal/core"
	"profitcalc/internal/ingest"
	applog "profitcalc/internal/log"
	"profitcalc/internal/observability"
	"profitcalc/internal/storage"
)

var ErrNoFiles = errors.New("no files uploaded")

const (
	debugColumns   = 20
	debugFields    = 10
	debugValueLen  = 50
	maxParallelism = 4
)

// Upload is one CSV posted under a file key.
type Upload struct {
	Key      core.FileKey
	Filename string
	Data     []byte
}

type ProcessRequest struct {
	TargetMonth core.Period
	Uploads     []Upload
}

// DebugInfo previews an expense or ad file so column naming problems can be
// diagnosed from the upload response.
type DebugInfo struct {
	Columns   []string              `json:"columns"`
	SampleRow map[string]string     `json:"sample_row"`
	Notes     []classify.ColumnNote `json:"notes,omitempty"`
}

// SourceReport summarises how one uploaded file was handled.
type SourceReport struct {
	Key       core.FileKey    `json:"key"`
	Source    core.Source     `json:"source"`
	Account   core.Account    `json:"account"`
	Encoding  ingest.Encoding `json:"encoding,omitempty"`
	Rows      int             `json:"rows"`
	Processed int             `json:"processed"`
	Undated   int             `json:"undated"`
	Failed    int             `json:"failed"`
	Periods   int             `json:"periods"`
	Truncated bool            `json:"truncated,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Result is the outcome of one upload batch.
type Result struct {
	BatchID       string
	TargetMonth   core.Period
	Results       core.Aggregate
	Spreadsheet   []core.ReportRow
	Summary       core.Summary
	UploadedFiles map[string]string
	Saved         bool
	Debug         map[string]DebugInfo
	Sources       []SourceReport
	Archived      map[string]string
}

// SyncPublisher announces a saved month to the sync worker.
type SyncPublisher interface {
	PublishReportSync(ctx context.Context, month, batchID string) error
}

// UploadRecorder counts processed uploads.
type UploadRecorder interface {
	UploadProcessed(saved bool)
}

// ProfitService turns uploaded vendor CSVs into a saved monthly report.
type ProfitService struct {
	engine    *classify.Engine
	store     storage.MonthStore
	archiver  archive.Archiver
	publisher SyncPublisher
	recorder  UploadRecorder
	limits    ingest.Limits
	logger    *applog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

type ServiceOption func(*ProfitService)

func WithArchiver(a archive.Archiver) ServiceOption {
	return func(s *ProfitService) {
		if a != nil {
			s.archiver = a
		}
	}
}

func WithPublisher(p SyncPublisher) ServiceOption {
	return func(s *ProfitService) { s.publisher = p }
}

func WithUploadRecorder(r UploadRecorder) ServiceOption {
	return func(s *ProfitService) { s.recorder = r }
}

func WithLimits(l ingest.Limits) ServiceOption {
	return func(s *ProfitService) { s.limits = l }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *ProfitService) { s.now = now }
}

// NewProfitService wires the classification engine to a month store. store
// may be nil, in which case results are returned but never saved.
func NewProfitService(engine *classify.Engine, store storage.MonthStore, logger *applog.Logger, opts ...ServiceOption) *ProfitService {
	if logger == nil {
		logger = applog.Nop()
	}
	s := &ProfitService{
		engine:   engine,
		store:    store,
		archiver: archive.Nop{},
		limits:   ingest.DefaultLimits(),
		logger:   logger.WithComponent(applog.ComponentPipeline),
		tracer:   observability.Tracer(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sourceOutcome struct {
	agg    core.Aggregate
	report SourceReport
	debug  *DebugInfo
}

// Process classifies every upload, merges and projects the result, archives
// the raw files and saves the month. A file that cannot be read or
// classified contributes nothing; a failed save is reported through
// Result.Saved rather than an error.
func (s *ProfitService) Process(ctx context.Context, req ProcessRequest) (*Result, error) {
	if !req.TargetMonth.Valid() {
		return nil, fmt.Errorf("target month: %w: %q", core.ErrInvalidPeriod, req.TargetMonth)
	}
	if len(req.Uploads) == 0 {
		return nil, ErrNoFiles
	}

	batchID := s.newID()
	ctx, span := s.tracer.Start(ctx, "profit.process", trace.WithAttributes(
		attribute.String("month", string(req.TargetMonth)),
		attribute.String("batch_id", batchID),
		attribute.Int("files", len(req.Uploads)),
	))
	defer span.End()

	logger := s.logger.With(applog.FieldMonth, string(req.TargetMonth), applog.FieldBatchID, batchID)

	outcomes := make([]sourceOutcome, len(req.Uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism)
	for i, up := range req.Uploads {
		g.Go(func() error {
			outcomes[i] = s.processUpload(gctx, logger, up)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("process uploads: %w", err)
	}

	res := &Result{
		BatchID:       batchID,
		TargetMonth:   req.TargetMonth,
		UploadedFiles: map[string]string{},
		Debug:         map[string]DebugInfo{},
		Archived:      map[string]string{},
	}
	aggs := make([]core.Aggregate, 0, len(outcomes))
	for i, o := range outcomes {
		aggs = append(aggs, o.agg)
		res.Sources = append(res.Sources, o.report)
		res.UploadedFiles[string(req.Uploads[i].Key)] = req.Uploads[i].Filename
		if o.debug != nil {
			res.Debug[string(req.Uploads[i].Key)] = *o.debug
		}
	}

	res.Results = classify.Merge(aggs...)
	res.Spreadsheet = classify.Project(res.Results)
	res.Summary = core.Summarize(res.Results)

	for _, up := range req.Uploads {
		loc, err := s.archiver.Store(ctx, req.TargetMonth, up.Key, up.Data)
		if err != nil {
			logger.WarnContext(ctx, "Failed to archive upload", applog.FieldFileKey, string(up.Key), applog.FieldError, err)
			continue
		}
		if loc != "" {
			res.Archived[string(up.Key)] = loc
		}
	}

	res.Saved = s.save(ctx, logger, res)
	if res.Saved {
		s.publish(ctx, logger, res)
	}
	if s.recorder != nil {
		s.recorder.UploadProcessed(res.Saved)
	}

	span.SetAttributes(attribute.Int("periods", len(res.Results)), attribute.Bool("saved", res.Saved))
	applog.NewStructuredLogger(logger).
		LogUploadProcessed(ctx, string(req.TargetMonth), batchID, len(req.Uploads), len(res.Results), res.Saved)
	return res, nil
}

func (s *ProfitService) processUpload(ctx context.Context, logger *applog.Logger, up Upload) sourceOutcome {
	out := sourceOutcome{agg: core.Aggregate{}, report: SourceReport{Key: up.Key}}
	source, account, err := core.ParseFileKey(string(up.Key))
	if err != nil {
		out.report.Error = err.Error()
		logger.WarnContext(ctx, "Skipping unknown upload", applog.FieldFileKey, string(up.Key))
		return out
	}
	out.report.Source, out.report.Account = source, account

	ctx, span := s.tracer.Start(ctx, "classify."+string(source), trace.WithAttributes(
		attribute.String("file_key", string(up.Key)),
		attribute.String("account", string(account)),
	))
	defer span.End()

	table, err := s.readTable(ctx, up.Data)
	if err != nil {
		out.report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		logger.ErrorContext(ctx, "Failed to read upload",
			applog.FieldFileKey, string(up.Key), applog.FieldSource, string(source), applog.FieldError, err)
		return out
	}
	out.report.Encoding = table.Encoding
	out.report.Truncated = table.Truncated
	if table.Truncated {
		logger.WarnContext(ctx, "Upload truncated", applog.FieldFileKey, string(up.Key), "max_rows", s.limits.MaxRows)
	}

	agg, stats := s.engine.Classify(ctx, source, account, table.Records)
	out.agg = agg
	out.report.Rows = stats.Rows
	out.report.Processed = stats.Processed
	out.report.Undated = stats.Undated
	out.report.Failed = stats.Failed
	out.report.Periods = stats.Periods
	if stats.Err != nil {
		out.report.Error = stats.Err.Error()
		span.RecordError(stats.Err)
		span.SetStatus(codes.Error, "classify failed")
	}
	span.SetAttributes(attribute.Int("rows", stats.Rows), attribute.Int("periods", stats.Periods))

	if wantsDebug(source) && len(table.Records) > 0 {
		d := debugInfo(table.Records[0])
		d.Notes = stats.Notes
		out.debug = &d
	}
	return out
}

func (s *ProfitService) readTable(ctx context.Context, data []byte) (ingest.Table, error) {
	if s.limits.MaxBytes > 0 && int64(len(data)) > s.limits.MaxBytes {
		return ingest.Table{}, fmt.Errorf("%w: %d bytes", ingest.ErrFileTooLarge, len(data))
	}
	return ingest.Parse(ctx, data, s.limits.MaxRows)
}

func (s *ProfitService) save(ctx context.Context, logger *applog.Logger, res *Result) bool {
	if s.store == nil {
		return false
	}
	rec := storage.MonthRecord{
		Metadata: storage.MonthMeta{
			Month:         res.TargetMonth,
			Timestamp:     s.now().UTC(),
			UploadedFiles: res.UploadedFiles,
			BatchID:       res.BatchID,
		},
		Results:     res.Results,
		Spreadsheet: res.Spreadsheet,
		Summary:     res.Summary,
	}
	if err := s.store.SaveMonth(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "Failed to save month", applog.FieldError, err)
		return false
	}
	return true
}

func (s *ProfitService) publish(ctx context.Context, logger *applog.Logger, res *Result) {
	if s.publisher == nil {
		logger.DebugContext(ctx, "No sync publisher, skipping sync message")
		return
	}
	if err := s.publisher.PublishReportSync(ctx, string(res.TargetMonth), res.BatchID); err != nil {
		logger.ErrorContext(ctx, "Failed to publish sync message", applog.FieldError, err)
	}
}

// Validate reads each upload without classifying it.
func (s *ProfitService) Validate(ctx context.Context, uploads []Upload) (map[string]ValidationResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	out := make(map[string]ValidationResult, len(uploads))
	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := s.readTable(ctx, up.Data)
		if err != nil {
			out[string(up.Key)] = ValidationResult{Valid: false, Error: err.Error(), Message: "invalid file format"}
			continue
		}
		out[string(up.Key)] = ValidationResult{
			Valid:    true,
			Rows:     len(table.Records),
			Columns:  table.Columns(),
			Encoding: table.Encoding,
			Message:  "file format is valid",
		}
	}
	return out, nil
}

// ValidationResult reports whether one upload is readable.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Rows     int             `json:"rows,omitempty"`
	Columns  []string        `json:"columns,omitempty"`
	Encoding ingest.Encoding `json:"encoding,omitempty"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message"`
}

// wantsDebug limits upload previews to the expense and ad sources.
func wantsDebug(source core.Source) bool {
	return source == core.SourceExpense || source == core.SourceAd
}

func debugInfo(first core.Record) DebugInfo {
	cols := first.Columns()
	d := DebugInfo{
		Columns:   cols[:min(len(cols), debugColumns)],
		SampleRow: map[string]string{},
	}
	for i := 0; i < first.Len() && i < debugFields; i++ {
		name, value := first.Field(i)
		d.SampleRow[name] = truncateRunes(value, debugValueLen)
	}
	return d
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
