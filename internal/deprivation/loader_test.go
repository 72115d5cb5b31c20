package deprivation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"careanalytics/internal/deprivation"
	"careanalytics/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type countingMetrics struct {
	rows    map[string]int
	retries int
}

func (m *countingMetrics) AddRows(outcome string, n int) {
	if m.rows == nil {
		m.rows = make(map[string]int)
	}
	m.rows[outcome] += n
}

func (m *countingMetrics) IncRetries() { m.retries++ }

func testConfig() deprivation.LoaderConfig {
	cfg := deprivation.DefaultLoaderConfig()
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.BackoffMax = 40 * time.Millisecond
	cfg.ReadyInterval = 5 * time.Millisecond
	return cfg
}

func newTestLoader(t *testing.T, table deprivation.Table, cfg deprivation.LoaderConfig, metrics deprivation.LoaderMetrics) (*deprivation.Loader, *recordedSleeps) {
	t.Helper()
	sleeps := &recordedSleeps{}
	l := deprivation.NewLoader(table, cfg, nil, metrics)
	l.SetSleep(sleeps.sleep)
	return l, sleeps
}

func csvRows(n int) string {
	var b strings.Builder
	b.WriteString("postcode,income_decile,health_decile\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "AB%d %dCD,%d,%d\n", i/10, i%10, i%10+1, (i+3)%10+1)
	}
	return b.String()
}

func TestLoader_LoadWritesInBatches(t *testing.T) {
	store := memory.New()
	metrics := &countingMetrics{}
	l, _ := newTestLoader(t, store, testConfig(), metrics)

	res, err := l.Load(context.Background(), strings.NewReader(csvRows(60)))
	require.NoError(t, err)

	assert.Equal(t, 60, res.RowsRead)
	assert.Equal(t, 0, res.RowsSkipped)
	assert.Equal(t, 60, res.RowsWritten)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, []int{25, 25, 10}, store.BatchSizes())
	assert.Equal(t, 60, metrics.rows["written"])

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, n)
}

func TestLoader_SkipsBadRows(t *testing.T) {
	store := memory.New()
	metrics := &countingMetrics{}
	l, _ := newTestLoader(t, store, testConfig(), metrics)

	in := "postcode,income,health\nAB1 2CD,1,1\nnot-a-row\nEF3 4GH,0,5\nGH5 6IJ,3,4\n"
	res, err := l.Load(context.Background(), strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, 4, res.RowsRead)
	assert.Equal(t, 2, res.RowsSkipped)
	assert.Equal(t, 2, res.RowsWritten)
	assert.Equal(t, 2, metrics.rows["skipped"])

	rec, found, err := store.Get(context.Background(), "AB12CD")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, rec.Classify().IncomeDeprived)
}

func TestLoader_Idempotent(t *testing.T) {
	store := memory.New()
	l, _ := newTestLoader(t, store, testConfig(), nil)
	in := csvRows(40)

	_, err := l.Load(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	first := store.Records()

	_, err = l.Load(context.Background(), strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, first, store.Records())
}

func TestLoader_RetriesOnlyUnprocessed(t *testing.T) {
	store := memory.New()
	store.FailPuts(5, 2)
	metrics := &countingMetrics{}
	l, sleeps := newTestLoader(t, store, testConfig(), metrics)

	res, err := l.Load(context.Background(), strings.NewReader(csvRows(25)))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, 25, res.RowsWritten)
	assert.Equal(t, []int{25, 5, 2}, store.BatchSizes())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, sleeps.delays)
	assert.Equal(t, 2, metrics.retries)
	assert.Len(t, store.Records(), 25)
}

func TestLoader_RetriesExhausted(t *testing.T) {
	store := memory.New()
	store.FailPuts(3, 3, 3, 3)
	cfg := testConfig()
	cfg.MaxRetries = 2
	l, _ := newTestLoader(t, store, cfg, nil)

	res, err := l.Load(context.Background(), strings.NewReader(csvRows(10)))
	require.ErrorIs(t, err, deprivation.ErrRetriesExhausted)
	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, 0, res.RowsWritten)
}

func TestLoader_NoRetriesWhenDisabled(t *testing.T) {
	store := memory.New()
	store.FailPuts(1)
	cfg := testConfig()
	cfg.MaxRetries = 0
	l, sleeps := newTestLoader(t, store, cfg, nil)

	_, err := l.Load(context.Background(), strings.NewReader(csvRows(3)))
	require.ErrorIs(t, err, deprivation.ErrRetriesExhausted)
	assert.Empty(t, sleeps.delays)
}

func TestLoader_StorageErrorAborts(t *testing.T) {
	store := memory.New()
	boom := errors.New("disk full")
	store.SetPutError(boom)
	l, _ := newTestLoader(t, store, testConfig(), nil)

	_, err := l.Load(context.Background(), strings.NewReader(csvRows(3)))
	require.ErrorIs(t, err, boom)
}

func TestLoader_TableMissing(t *testing.T) {
	store := memory.New().WithoutTable(0)
	l, _ := newTestLoader(t, store, testConfig(), nil)

	_, err := l.Load(context.Background(), strings.NewReader(csvRows(3)))
	require.ErrorIs(t, err, deprivation.ErrTableMissing)
	assert.Empty(t, store.BatchSizes())
}

func TestLoader_CreatesTableAndWaits(t *testing.T) {
	store := memory.New().WithoutTable(2)
	cfg := testConfig()
	cfg.CreateTable = true
	l, sleeps := newTestLoader(t, store, cfg, nil)

	res, err := l.Load(context.Background(), strings.NewReader(csvRows(3)))
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowsWritten)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, sleeps.delays)
}

func TestLoader_TableNeverReady(t *testing.T) {
	store := memory.New().WithoutTable(10)
	cfg := testConfig()
	cfg.CreateTable = true
	cfg.ReadyAttempts = 3
	l, sleeps := newTestLoader(t, store, cfg, nil)

	_, err := l.Load(context.Background(), strings.NewReader(csvRows(3)))
	require.ErrorIs(t, err, deprivation.ErrTableNotReady)
	assert.Len(t, sleeps.delays, 2)
	assert.Empty(t, store.BatchSizes())
}

func TestLoader_CanceledContext(t *testing.T) {
	store := memory.New()
	store.FailPuts(1)
	l, _ := newTestLoader(t, store, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx, strings.NewReader(csvRows(2)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_CanceledBetweenBatches(t *testing.T) {
	store := memory.New()
	l, _ := newTestLoader(t, store, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := l.Load(ctx, strings.NewReader(csvRows(100)))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.RowsWritten)
	assert.Empty(t, store.BatchSizes())
}

func TestLoader_NoValidRows(t *testing.T) {
	store := memory.New()
	l, _ := newTestLoader(t, store, testConfig(), nil)

	in := "root:x:0:0:root:/root:/bin/bash\ndaemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin\nbin:x:2:2:bin:/bin:/usr/sbin/nologin\n"
	res, err := l.Load(context.Background(), strings.NewReader(in))
	require.ErrorIs(t, err, deprivation.ErrNoValidRows)
	assert.Equal(t, 2, res.RowsSkipped)
	assert.Zero(t, res.RowsWritten)
}

func TestLoader_HeaderOnlyIsNotAFailure(t *testing.T) {
	l, _ := newTestLoader(t, memory.New(), testConfig(), nil)
	res, err := l.Load(context.Background(), strings.NewReader("postcode,income,health\n"))
	require.NoError(t, err)
	assert.Zero(t, res.RowsRead)
}

func TestLoader_LineTooLong(t *testing.T) {
	store := memory.New()
	l, _ := newTestLoader(t, store, testConfig(), nil)

	in := io.LimitReader(zeroReader{}, 1<<20)
	_, err := l.Load(context.Background(), in)
	require.ErrorIs(t, err, deprivation.ErrLineTooLong)
	assert.Empty(t, store.BatchSizes())
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestLoader_LoadFileMissing(t *testing.T) {
	l, _ := newTestLoader(t, memory.New(), testConfig(), nil)
	_, err := l.LoadFile(context.Background(), "/nonexistent/deprivation.csv")
	require.Error(t, err)
}

func TestLoader_BackoffCapped(t *testing.T) {
	l, _ := newTestLoader(t, memory.New(), testConfig(), nil)
	assert.Equal(t, 10*time.Millisecond, l.Backoff(0))
	assert.Equal(t, 20*time.Millisecond, l.Backoff(1))
	assert.Equal(t, 40*time.Millisecond, l.Backoff(2))
	assert.Equal(t, 40*time.Millisecond, l.Backoff(6))
}
