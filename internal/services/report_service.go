package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"careanalytics/internal/amqp"
	"careanalytics/internal/analytics"
	"careanalytics/internal/core"
	"careanalytics/internal/deprivation"
	applog "careanalytics/internal/log"
	"careanalytics/internal/metrics"
	"careanalytics/internal/sheets"
	"careanalytics/internal/storage"
)

const (
	// KindAttendanceAllowance names the attendance allowance report.
	KindAttendanceAllowance = "attendance-allowance"
	kindSnapshot            = "snapshot"
)

var (
	ErrExportDisabled  = errors.New("report export is not configured")
	ErrImportsDisabled = errors.New("import queue is not configured")
	ErrUnknownReport   = errors.New("unknown report kind")
)

// PostcodeClassifier resolves postcodes to deprivation flags.
type PostcodeClassifier interface {
	Classify(ctx context.Context, postcode string) (core.Classification, error)
	ClassifyAll(ctx context.Context, commitments []core.Commitment) ([]core.Commitment, error)
}

// ImportPublisher queues deprivation imports for a worker.
type ImportPublisher interface {
	PublishImport(ctx context.Context, msg *amqp.ImportMessage) error
}

// ReportQuery selects the window and breakdown of an hours report.
type ReportQuery struct {
	StartYear int
	Dimension core.Dimension
	// InfoOnly restricts request reports to information-and-advice requests.
	InfoOnly bool
}

// Dashboard is the set of live counters shown on the landing page.
type Dashboard struct {
	AsOf                        core.Date
	ActiveRequests              int
	ActivePackages              int
	RequestWeeklyHours          core.Hours
	PackageWeeklyHours          core.Hours
	AllowanceInReceipt          int
	AllowanceConfirmedThisMonth int
}

// ExportResult describes a completed spreadsheet export.
type ExportResult struct {
	Sheet string
	Rows  int
}

// ReportConfig holds report service settings.
type ReportConfig struct {
	// EarliestYear is the lowest accepted report start year.
	EarliestYear int
	// ImportDir confines queued imports; defaults to the working directory.
	ImportDir string
	// Now supplies the current time; defaults to time.Now.
	Now func() time.Time
}

// ReportService builds reports from the stored commitments. It keeps no
// state between calls, so every report reflects the current records.
type ReportService struct {
	commitments storage.CommitmentReader
	clients     storage.ClientReader
	classifier  PostcodeClassifier
	exporter    sheets.ReportExporter
	publisher   ImportPublisher
	metrics     *metrics.Metrics
	log         *applog.StructuredLogger
	cfg         ReportConfig
}

// NewReportService creates a report service. exporter and publisher may be
// nil, which disables exports and queued imports.
func NewReportService(
	commitments storage.CommitmentReader,
	clients storage.ClientReader,
	classifier PostcodeClassifier,
	exporter sheets.ReportExporter,
	publisher ImportPublisher,
	m *metrics.Metrics,
	logger *applog.Logger,
	cfg ReportConfig,
) *ReportService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ImportDir == "" {
		cfg.ImportDir = "."
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReportService{
		commitments: commitments,
		clients:     clients,
		classifier:  classifier,
		exporter:    exporter,
		publisher:   publisher,
		metrics:     m,
		log:         applog.NewStructuredLogger(logger),
		cfg:         cfg,
	}
}

// Today returns the current calendar date.
func (s *ReportService) Today() core.Date {
	return core.DateOf(s.cfg.Now())
}

// ClampStartYear limits year to [EarliestYear, current year].
func (s *ReportService) ClampStartYear(year int) int {
	current := s.Today().Year()
	earliest := min(s.cfg.EarliestYear, current)
	return max(earliest, min(year, current))
}

// CommitmentReport builds the Year→Month→Dimension→Service hours report.
func (s *ReportService) CommitmentReport(ctx context.Context, kind core.CommitmentKind, q ReportQuery) (core.Report, error) {
	started := time.Now()
	opts := s.options(q)
	if kind == core.Request && q.InfoOnly {
		opts.Include = analytics.InfoOnly
	}

	commitments, err := s.load(ctx, kind, storage.ListOptions{}, opts.Dimension)
	if err != nil {
		return core.Report{}, err
	}

	report := analytics.BuildReport(kind, commitments, opts)
	s.observe(ctx, string(kind)+"s", report.Dimension, report.StartYear, report.EndYear, len(commitments), started)
	return report, nil
}

// AttendanceAllowanceReport counts attendance allowance confirmations.
func (s *ReportService) AttendanceAllowanceReport(ctx context.Context, startYear int) (core.AttendanceAllowanceReport, error) {
	started := time.Now()
	states, err := s.clients.ListAttendanceAllowance(ctx)
	if err != nil {
		return core.AttendanceAllowanceReport{}, fmt.Errorf("list attendance allowance: %w", err)
	}

	report := analytics.AnalyzeAttendanceAllowance(states, s.ClampStartYear(startYear), s.Today())
	s.observe(ctx, KindAttendanceAllowance, "", report.StartYear, report.EndYear, len(states), started)
	return report, nil
}

// Snapshot returns the live cross-section of commitments active today.
func (s *ReportService) Snapshot(ctx context.Context, kind core.CommitmentKind, dim core.Dimension) (core.Snapshot, error) {
	started := time.Now()
	today := s.Today()
	opts := analytics.Options{Today: today, Dimension: normalizeDimension(dim)}

	commitments, err := s.load(ctx, kind, storage.ListOptions{ActiveOn: today}, opts.Dimension)
	if err != nil {
		return core.Snapshot{}, err
	}

	snap := analytics.Snapshot(kind, commitments, opts)
	s.observe(ctx, kindSnapshot, snap.Dimension, today.Year(), today.Year(), len(commitments), started)
	return snap, nil
}

// Dashboard gathers the live counters concurrently.
func (s *ReportService) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		requests, packages core.Snapshot
		states             []core.AttendanceAllowanceState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requests, err = s.Snapshot(gctx, core.Request, core.DimensionLocality)
		return err
	})
	g.Go(func() error {
		var err error
		packages, err = s.Snapshot(gctx, core.Package, core.DimensionLocality)
		return err
	})
	g.Go(func() error {
		var err error
		states, err = s.clients.ListAttendanceAllowance(gctx)
		if err != nil {
			return fmt.Errorf("list attendance allowance: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	today := s.Today()
	return Dashboard{
		AsOf:                        today,
		ActiveRequests:              requests.Active,
		ActivePackages:              packages.Active,
		RequestWeeklyHours:          requests.WeeklyHours,
		PackageWeeklyHours:          packages.WeeklyHours,
		AllowanceInReceipt:          analytics.InReceipt(states),
		AllowanceConfirmedThisMonth: analytics.ConfirmedInMonth(states, today),
	}, nil
}

// ClassifyPostcode classifies a single postcode.
func (s *ReportService) ClassifyPostcode(ctx context.Context, postcode string) (core.Classification, error) {
	cls, err := s.classifier.Classify(ctx, postcode)
	if err != nil {
		s.log.LogError(ctx, "Postcode classification failed", err, applog.ComponentClassifier, applog.OpClassify, nil)
		return core.Classification{}, err
	}
	return cls, nil
}

// Export writes a report to the configured spreadsheet. kind is "requests",
// "packages" or KindAttendanceAllowance.
func (s *ReportService) Export(ctx context.Context, kind string, q ReportQuery) (ExportResult, error) {
	if s.exporter == nil {
		return ExportResult{}, ErrExportDisabled
	}

	var (
		sheet string
		rows  [][]any
	)
	if kind == KindAttendanceAllowance {
		report, err := s.AttendanceAllowanceReport(ctx, q.StartYear)
		if err != nil {
			return ExportResult{}, err
		}
		sheet = sheets.SheetName(kind, "", report.StartYear)
		rows = sheets.AllowanceRows(report)
	} else {
		ck, err := core.ParseKind(kind)
		if err != nil {
			return ExportResult{}, fmt.Errorf("%w: %q", ErrUnknownReport, kind)
		}
		report, err := s.CommitmentReport(ctx, ck, q)
		if err != nil {
			return ExportResult{}, err
		}
		sheet = sheets.SheetName(kind, report.Dimension, report.StartYear)
		rows = sheets.ReportRows(report)
	}

	if err := s.exporter.ExportRows(ctx, sheet, rows); err != nil {
		s.log.LogError(ctx, "Report export failed", err, applog.ComponentSheets, applog.OpExport,
			applog.NewFields().WithReport(kind, string(q.Dimension), q.StartYear, s.Today().Year()))
		return ExportResult{}, fmt.Errorf("export %s: %w", sheet, err)
	}
	return ExportResult{Sheet: sheet, Rows: len(rows)}, nil
}

// RequestImport queues a deprivation CSV import and returns the job message.
// The path is resolved inside the import directory before it is queued.
func (s *ReportService) RequestImport(ctx context.Context, path string, createTable bool) (*amqp.ImportMessage, error) {
	if s.publisher == nil {
		return nil, ErrImportsDisabled
	}
	msg := amqp.NewImportMessage(path, createTable)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	resolved, err := deprivation.ResolveImportPath(s.cfg.ImportDir, path)
	if err != nil {
		return nil, err
	}
	msg.Path = resolved
	if err := s.publisher.PublishImport(ctx, msg); err != nil {
		s.log.LogError(ctx, "Import publish failed", err, applog.ComponentAMQP, applog.OpPublish, nil)
		return nil, fmt.Errorf("publish import: %w", err)
	}
	return msg, nil
}

func (s *ReportService) options(q ReportQuery) analytics.Options {
	return analytics.Options{
		StartYear: s.ClampStartYear(q.StartYear),
		Today:     s.Today(),
		Dimension: normalizeDimension(q.Dimension),
	}
}

// load lists commitments and classifies them when the deprivation breakdown needs it.
func (s *ReportService) load(ctx context.Context, kind core.CommitmentKind, opts storage.ListOptions, dim core.Dimension) ([]core.Commitment, error) {
	commitments, err := s.commitments.ListCommitments(ctx, kind, opts)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}
	if dim != core.DimensionDeprivation {
		return commitments, nil
	}
	classified, err := s.classifier.ClassifyAll(ctx, commitments)
	if err != nil {
		return nil, fmt.Errorf("classify %ss: %w", kind, err)
	}
	return classified, nil
}

func (s *ReportService) observe(ctx context.Context, kind string, dim core.Dimension, startYear, endYear, records int, started time.Time) {
	elapsed := time.Since(started)
	s.metrics.ObserveReport(kind, elapsed)
	s.log.LogReportBuilt(ctx, kind, string(dim), startYear, endYear, records, elapsed.Milliseconds())
}

func normalizeDimension(d core.Dimension) core.Dimension {
	if d.Valid() {
		return d
	}
	return core.DimensionLocality
}
