package deprivation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"careanalytics/internal/core"
	"careanalytics/internal/deprivation"
	"careanalytics/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	deprivation.Lookup
	calls int
}

func (c *countingLookup) Get(ctx context.Context, postcode string) (core.DeprivationRecord, bool, error) {
	c.calls++
	return c.Lookup.Get(ctx, postcode)
}

type outcomeMetrics map[string]int

func (m outcomeMetrics) IncClassification(outcome string) { m[outcome]++ }

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	_, err := store.BatchPut(context.Background(), []core.DeprivationRecord{
		{Postcode: "AB12CD", IncomeDecile: 1, HealthDecile: 2},
		{Postcode: "EF34GH", IncomeDecile: 2, HealthDecile: 7},
		{Postcode: "GH56IJ", IncomeDecile: 8, HealthDecile: 3},
	})
	require.NoError(t, err)
	return store
}

func TestClassifier_Classify(t *testing.T) {
	c := deprivation.NewClassifier(seededStore(t), 16, time.Minute, nil, nil)

	tests := []struct {
		postcode string
		want     core.Classification
		category core.DeprivationCategory
	}{
		{"ab1 2cd", core.Classification{Matched: true, IncomeDeprived: true, HealthDeprived: true}, core.CategoryBoth},
		{"EF3 4GH", core.Classification{Matched: true, IncomeDeprived: true}, core.CategoryIncomeDeprived},
		{"GH5  6IJ", core.Classification{Matched: true}, core.CategoryNeither},
		{"ZZ99 9ZZ", core.Classification{}, core.CategoryUnmatched},
		{"", core.Classification{}, core.CategoryUnmatched},
	}
	for _, tt := range tests {
		t.Run(tt.postcode, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.postcode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.category, got.Category())
		})
	}
}

func TestClassifier_UnknownNeedsVerification(t *testing.T) {
	c := deprivation.NewClassifier(seededStore(t), 0, 0, nil, nil)

	got, err := c.Classify(context.Background(), "ZZ99 9ZZ")
	require.NoError(t, err)
	assert.False(t, got.IncomeDeprived)
	assert.False(t, got.HealthDeprived)
	assert.True(t, got.NeedsVerification())
}

func TestClassifier_CachesLookups(t *testing.T) {
	lookup := &countingLookup{Lookup: seededStore(t)}
	metrics := outcomeMetrics{}
	c := deprivation.NewClassifier(lookup, 16, time.Minute, nil, metrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Classify(ctx, "AB1 2CD")
		require.NoError(t, err)
		_, err = c.Classify(ctx, "ZZ99 9ZZ")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, lookup.calls)
	assert.Equal(t, 3, metrics["matched"])
	assert.Equal(t, 3, metrics["unmatched"])

	c.Invalidate()
	_, err := c.Classify(ctx, "AB1 2CD")
	require.NoError(t, err)
	assert.Equal(t, 3, lookup.calls)
}

func TestClassifier_LookupFailure(t *testing.T) {
	store := seededStore(t)
	boom := errors.New("table unavailable")
	store.SetGetError(boom)
	c := deprivation.NewClassifier(store, 16, time.Minute, nil, nil)

	_, err := c.Classify(context.Background(), "AB1 2CD")
	require.ErrorIs(t, err, boom)

	// Failures are not cached.
	store.SetGetError(nil)
	got, err := c.Classify(context.Background(), "AB1 2CD")
	require.NoError(t, err)
	assert.True(t, got.Matched)
}

func TestClassifier_ClassifyAll(t *testing.T) {
	c := deprivation.NewClassifier(seededStore(t), 16, time.Minute, nil, nil)
	in := []core.Commitment{
		{ID: "a", Postcode: "AB1 2CD"},
		{ID: "b", Postcode: "unknown"},
	}

	out, err := c.ClassifyAll(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, core.CategoryBoth, out[0].Deprivation.Category())
	assert.Equal(t, core.CategoryUnmatched, out[1].Deprivation.Category())
	assert.False(t, in[0].Deprivation.Matched, "input must not be modified")
}

func TestClassifier_CacheCleaner(t *testing.T) {
	assert.Nil(t, deprivation.NewClassifier(memory.New(), 0, 0, nil, nil).CacheCleaner())
	assert.NotNil(t, deprivation.NewClassifier(memory.New(), 4, time.Second, nil, nil).CacheCleaner())
}
