package storage

import (
	"context"

	"careanalytics/internal/core"
)

// ListOptions narrows a commitment listing.
type ListOptions struct {
	// ActiveOn, when set, keeps only commitments not ended before that date.
	ActiveOn core.Date
}

// Ports for the records owned by the surrounding CRUD system.
type (
	CommitmentReader interface {
		ListCommitments(ctx context.Context, kind core.CommitmentKind, opts ListOptions) ([]core.Commitment, error)
	}

	ClientReader interface {
		ListAttendanceAllowance(ctx context.Context) ([]core.AttendanceAllowanceState, error)
	}

	// Pinger reports store health for readiness checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
