package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careanalytics/internal/amqp"
	"careanalytics/internal/core"
	"careanalytics/internal/deprivation"
	"careanalytics/internal/metrics"
	sheetsmem "careanalytics/internal/sheets/memory"
	"careanalytics/internal/storage"
	"careanalytics/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	msgs []*amqp.ImportMessage
	err  error
}

func (p *recordingPublisher) PublishImport(_ context.Context, msg *amqp.ImportMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type failingReader struct{ err error }

func (f failingReader) ListCommitments(context.Context, core.CommitmentKind, storage.ListOptions) ([]core.Commitment, error) {
	return nil, f.err
}

func (f failingReader) ListAttendanceAllowance(context.Context) ([]core.AttendanceAllowanceState, error) {
	return nil, f.err
}

type fixture struct {
	store     *memory.Store
	exporter  *sheetsmem.Exporter
	publisher *recordingPublisher
	svc       *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	_, err := store.BatchPut(context.Background(), []core.DeprivationRecord{
		{Postcode: "AB12CD", IncomeDecile: 1, HealthDecile: 9},
		{Postcode: "EF34GH", IncomeDecile: 7, HealthDecile: 7},
	})
	require.NoError(t, err)

	store.AddCommitments(
		core.Commitment{
			ID: "r-1", Kind: core.Request, StartDate: core.NewDate(2024, 1, 1), EndDate: core.OpenEnd(),
			WeeklyHours: core.HoursFromInt(7), Services: []string{"Sitting"}, Locality: "North", Postcode: "AB1 2CD",
		},
		core.Commitment{
			ID: "r-2", Kind: core.Request, StartDate: core.NewDate(2024, 2, 1), EndDate: core.EndsOn(core.NewDate(2024, 2, 29)),
			WeeklyHours: core.HoursFromInt(7), Services: []string{"Respite"}, Locality: "South", Postcode: "EF3 4GH", InfoOnly: true,
		},
		core.Commitment{
			ID: "r-3", Kind: core.Request, StartDate: core.NewDate(2023, 6, 1), EndDate: core.OpenEnd(),
			WeeklyHours: core.HoursFromInt(14), Services: []string{"Sitting"}, Locality: "North", Postcode: "ZZ99 9ZZ",
		},
		core.Commitment{
			ID: "p-1", Kind: core.Package, StartDate: core.NewDate(2024, 3, 1), EndDate: core.OpenEnd(),
			WeeklyHours: core.HoursFromInt(7), Services: []string{"Sitting"}, Locality: "North",
		},
	)
	store.AddAttendanceAllowance(
		core.AttendanceAllowanceState{ClientID: "c-1", RequestedLevel: core.LevelHigh, Status: core.LevelHigh, ConfirmationDate: core.NewDate(2024, 3, 2)},
		core.AttendanceAllowanceState{ClientID: "c-2", RequestedLevel: core.LevelLow, Status: core.LevelLow, ConfirmationDate: core.NewDate(2023, 11, 20)},
		core.AttendanceAllowanceState{ClientID: "c-3", RequestedLevel: core.LevelHigh},
	)

	f := &fixture{store: store, exporter: sheetsmem.New(), publisher: &recordingPublisher{}}
	classifier := deprivation.NewClassifier(store, 64, time.Minute, nil, nil)
	f.svc = NewReportService(store, store, classifier, f.exporter, f.publisher,
		metrics.New(prometheus.NewRegistry()), nil,
		ReportConfig{EarliestYear: 2019, ImportDir: "/data", Now: func() time.Time { return fixedNow }})
	return f
}

func TestReportService_ClampStartYear(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 2019, f.svc.ClampStartYear(1990))
	assert.Equal(t, 2022, f.svc.ClampStartYear(2022))
	assert.Equal(t, 2024, f.svc.ClampStartYear(2030))
}

func TestReportService_CommitmentReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.svc.CommitmentReport(ctx, core.Request, ReportQuery{StartYear: 2024})
	require.NoError(t, err)

	assert.Equal(t, core.DimensionLocality, report.Dimension)
	require.Len(t, report.Years, 1)
	y := report.Years[0]
	// Jan: r-1 31 + r-3 62; Feb: r-1 29 + r-2 29 + r-3 58; Mar 1-15: r-1 15 + r-3 30
	assert.True(t, y.Months[0].TotalHours.Equal(core.HoursFromInt(93)), y.Months[0].TotalHours.String())
	assert.True(t, y.Months[1].TotalHours.Equal(core.HoursFromInt(116)), y.Months[1].TotalHours.String())
	assert.True(t, y.Months[2].TotalHours.Equal(core.HoursFromInt(45)), y.Months[2].TotalHours.String())
	assert.True(t, y.Months[3].TotalHours.IsZero())

	south, ok := y.Node("South")
	require.True(t, ok)
	assert.True(t, south.TotalHours.Equal(core.HoursFromInt(29)))
}

func TestReportService_InfoOnlyRequests(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.CommitmentReport(context.Background(), core.Request, ReportQuery{StartYear: 2024, InfoOnly: true})
	require.NoError(t, err)
	y := report.Years[0]
	assert.True(t, y.TotalHours.Equal(core.HoursFromInt(29)), y.TotalHours.String())

	// The filter only applies to requests.
	pkgs, err := f.svc.CommitmentReport(context.Background(), core.Package, ReportQuery{StartYear: 2024, InfoOnly: true})
	require.NoError(t, err)
	assert.True(t, pkgs.Years[0].TotalHours.Equal(core.HoursFromInt(15)), pkgs.Years[0].TotalHours.String())
}

func TestReportService_DeprivationBreakdown(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.CommitmentReport(context.Background(), core.Request, ReportQuery{StartYear: 2024, Dimension: core.DimensionDeprivation})
	require.NoError(t, err)
	y := report.Years[0]

	names := make([]string, 0, len(y.Breakdown))
	for _, n := range y.Breakdown {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"Income-Deprived", "Health-Deprived", "Both", "Neither", "Unmatched"}, names)

	income, _ := y.Node(string(core.CategoryIncomeDeprived))
	assert.True(t, income.TotalHours.Equal(core.HoursFromInt(31+29+15)), income.TotalHours.String())
	neither, _ := y.Node(string(core.CategoryNeither))
	assert.True(t, neither.TotalHours.Equal(core.HoursFromInt(29)))
	unmatched, _ := y.Node(string(core.CategoryUnmatched))
	assert.True(t, unmatched.TotalHours.Equal(core.HoursFromInt(62+58+30)))
}

func TestReportService_StorageFailurePropagates(t *testing.T) {
	boom := errors.New("database is gone")
	svc := NewReportService(failingReader{boom}, failingReader{boom}, nil, nil, nil, nil, nil,
		ReportConfig{EarliestYear: 2019, Now: func() time.Time { return fixedNow }})

	_, err := svc.CommitmentReport(context.Background(), core.Request, ReportQuery{StartYear: 2024})
	require.ErrorIs(t, err, boom)
	_, err = svc.AttendanceAllowanceReport(context.Background(), 2024)
	require.ErrorIs(t, err, boom)
	_, err = svc.Dashboard(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestReportService_AttendanceAllowanceReport(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.AttendanceAllowanceReport(context.Background(), 2023)
	require.NoError(t, err)
	require.Len(t, report.Years, 2)
	assert.Equal(t, 1, report.Years[0].Months[10].Total)
	assert.Equal(t, 1, report.Years[1].Months[2].TotalHighRequestedHigh)
}

func TestReportService_SnapshotAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Snapshot(ctx, core.Request, core.DimensionLocality)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Active)
	assert.True(t, snap.WeeklyHours.Equal(core.HoursFromInt(21)))
	assert.Equal(t, "2024-03-15", snap.AsOf.String())

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.ActiveRequests)
	assert.Equal(t, 1, d.ActivePackages)
	assert.True(t, d.PackageWeeklyHours.Equal(core.HoursFromInt(7)))
	assert.Equal(t, 2, d.AllowanceInReceipt)
	assert.Equal(t, 1, d.AllowanceConfirmedThisMonth)
}

func TestReportService_ClassifyPostcode(t *testing.T) {
	f := newFixture(t)

	cls, err := f.svc.ClassifyPostcode(context.Background(), "ab1 2cd")
	require.NoError(t, err)
	assert.True(t, cls.Matched)
	assert.True(t, cls.IncomeDeprived)

	boom := errors.New("lookup down")
	f.store.SetGetError(boom)
	_, err = f.svc.ClassifyPostcode(context.Background(), "NEW1 1AA")
	require.ErrorIs(t, err, boom)
}

func TestReportService_Export(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Export(ctx, "requests", ReportQuery{StartYear: 2024})
	require.NoError(t, err)
	assert.Equal(t, "2024 requests by locality", res.Sheet)
	rows, ok := f.exporter.Rows(res.Sheet)
	require.True(t, ok)
	assert.Equal(t, res.Rows, len(rows))

	res, err = f.svc.Export(ctx, KindAttendanceAllowance, ReportQuery{StartYear: 2024})
	require.NoError(t, err)
	assert.Equal(t, "2024 attendance-allowance", res.Sheet)
	assert.Equal(t, 13, res.Rows)

	_, err = f.svc.Export(ctx, "carers", ReportQuery{})
	require.ErrorIs(t, err, ErrUnknownReport)

	disabled := NewReportService(f.store, f.store, nil, nil, nil, nil, nil, ReportConfig{})
	_, err = disabled.Export(ctx, "requests", ReportQuery{})
	require.ErrorIs(t, err, ErrExportDisabled)
}

func TestReportService_RequestImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.RequestImport(ctx, "/data/imd.csv", true)
	require.NoError(t, err)
	require.Len(t, f.publisher.msgs, 1)
	assert.Equal(t, msg.JobID, f.publisher.msgs[0].JobID)
	assert.True(t, msg.CreateTable)

	_, err = f.svc.RequestImport(ctx, "", false)
	require.ErrorIs(t, err, amqp.ErrMissingPath)

	msg, err = f.svc.RequestImport(ctx, "2024/imd.csv", false)
	require.NoError(t, err)
	assert.Equal(t, "/data/2024/imd.csv", msg.Path)

	for _, path := range []string{"/etc/passwd", "/dev/zero", "../etc/passwd", "/data/../etc/passwd", "/data"} {
		_, err = f.svc.RequestImport(ctx, path, false)
		require.ErrorIs(t, err, deprivation.ErrOutsideImportDir, path)
	}
	require.Len(t, f.publisher.msgs, 2)

	f.publisher.err = errors.New("broker down")
	_, err = f.svc.RequestImport(ctx, "/data/imd.csv", false)
	require.Error(t, err)

	disabled := NewReportService(f.store, f.store, nil, nil, nil, nil, nil, ReportConfig{})
	_, err = disabled.RequestImport(ctx, "/data/imd.csv", false)
	require.ErrorIs(t, err, ErrImportsDisabled)
}
