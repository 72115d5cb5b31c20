// Package memory is an in-process store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"careanalytics/internal/core"
	"careanalytics/internal/deprivation"
	"careanalytics/internal/storage"
)

// Store keeps commitments, attendance allowance states and a deprivation
// table in memory.
type Store struct {
	mu          sync.RWMutex
	commitments map[string]core.Commitment
	allowances  map[string]core.AttendanceAllowanceState

	tableExists bool
	readyAfter  int // TableReady polls remaining before the table reports ready
	records     map[string]core.DeprivationRecord
	// unprocessed holds, per BatchPut call, how many trailing records to
	// leave unprocessed; consumed front to back.
	unprocessed []int
	putErr      error
	getErr      error
	batchSizes  []int
}

var (
	_ storage.CommitmentReader = (*Store)(nil)
	_ storage.ClientReader     = (*Store)(nil)
	_ storage.Pinger           = (*Store)(nil)
	_ deprivation.Table        = (*Store)(nil)
)

// New creates an empty store whose deprivation table already exists.
func New() *Store {
	return &Store{
		commitments: make(map[string]core.Commitment),
		allowances:  make(map[string]core.AttendanceAllowanceState),
		records:     make(map[string]core.DeprivationRecord),
		tableExists: true,
	}
}

// WithoutTable makes the deprivation table absent; once created it becomes
// ready after readyAfter polls.
func (s *Store) WithoutTable(readyAfter int) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tableExists = false
	s.readyAfter = readyAfter
	return s
}

// FailPuts makes the next BatchPut calls leave the given number of records unprocessed.
func (s *Store) FailPuts(unprocessed ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unprocessed = append(s.unprocessed, unprocessed...)
}

// SetPutError makes every BatchPut fail with err (nil clears it).
func (s *Store) SetPutError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

// SetGetError makes every Get fail with err (nil clears it).
func (s *Store) SetGetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// BatchSizes returns the size of every BatchPut call so far.
func (s *Store) BatchSizes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.batchSizes...)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddCommitments stores commitments, replacing any with the same ID.
func (s *Store) AddCommitments(cs ...core.Commitment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		s.commitments[c.ID] = c
	}
}

// AddAttendanceAllowance stores client states, replacing any with the same client ID.
func (s *Store) AddAttendanceAllowance(states ...core.AttendanceAllowanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.allowances[st.ClientID] = st
	}
}

func (s *Store) ListCommitments(ctx context.Context, kind core.CommitmentKind, opts storage.ListOptions) ([]core.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Commitment
	for _, c := range s.commitments {
		if c.Kind != kind {
			continue
		}
		if !opts.ActiveOn.IsEmpty() && c.EndDate.EndedBefore(opts.ActiveOn) {
			continue
		}
		c.Services = append([]string(nil), c.Services...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAttendanceAllowance(ctx context.Context) ([]core.AttendanceAllowanceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.AttendanceAllowanceState, 0, len(s.allowances))
	for _, st := range s.allowances {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (s *Store) TableExists(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tableExists, nil
}

func (s *Store) CreateTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tableExists = true
	return nil
}

func (s *Store) TableReady(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tableExists {
		return false, nil
	}
	if s.readyAfter > 0 {
		s.readyAfter--
		return false, nil
	}
	return true, nil
}

func (s *Store) BatchPut(ctx context.Context, records []core.DeprivationRecord) ([]core.DeprivationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batchSizes = append(s.batchSizes, len(records))
	if s.putErr != nil {
		return nil, s.putErr
	}

	keep := len(records)
	if len(s.unprocessed) > 0 {
		skip := min(s.unprocessed[0], len(records))
		s.unprocessed = s.unprocessed[1:]
		keep -= skip
	}
	for _, rec := range records[:keep] {
		s.records[rec.Postcode] = rec
	}
	if keep == len(records) {
		return nil, nil
	}
	return append([]core.DeprivationRecord(nil), records[keep:]...), nil
}

func (s *Store) Get(ctx context.Context, postcode string) (core.DeprivationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.getErr != nil {
		return core.DeprivationRecord{}, false, s.getErr
	}
	rec, ok := s.records[postcode]
	return rec, ok, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Records returns a copy of the deprivation table ordered by postcode.
func (s *Store) Records() []core.DeprivationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.DeprivationRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Postcode < out[j].Postcode })
	return out
}
