package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"careanalytics/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository reads commitments and attendance allowance records and
// hosts the deprivation lookup table.
type SQLiteRepository struct {
	db          *sql.DB
	deprivation *DeprivationTable
}

var (
	_ CommitmentReader = (*SQLiteRepository)(nil)
	_ ClientReader     = (*SQLiteRepository)(nil)
	_ Pinger           = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations. deprivationTable names the postcode lookup table.
func NewSQLiteRepository(dbPath, deprivationTable string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	table, err := newDeprivationTable(db, deprivationTable)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, deprivation: table}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Deprivation returns the postcode lookup table.
func (r *SQLiteRepository) Deprivation() *DeprivationTable {
	return r.deprivation
}

// ListCommitments implements CommitmentReader
func (r *SQLiteRepository) ListCommitments(ctx context.Context, kind core.CommitmentKind, opts ListOptions) ([]core.Commitment, error) {
	query := `SELECT id, kind, subject_id, carer_id, start_date, end_date, weekly_hours,
		one_off_hours, locality, postcode, info_only
		FROM commitments WHERE kind = ?`
	args := []any{string(kind)}
	if !opts.ActiveOn.IsEmpty() {
		query += ` AND (end_date IS NULL OR end_date >= ?)`
		args = append(args, opts.ActiveOn.String())
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var out []core.Commitment
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitments: %w", err)
	}

	if err := r.attachServices(ctx, kind, out, index); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Listed commitments", "kind", kind, "count", len(out))
	return out, nil
}

func scanCommitment(rows *sql.Rows) (core.Commitment, error) {
	var (
		c              core.Commitment
		kind, start    string
		end            sql.NullString
		weekly, oneOff string
		infoOnly       int64
	)
	if err := rows.Scan(&c.ID, &kind, &c.SubjectID, &c.CarerID, &start, &end, &weekly,
		&oneOff, &c.Locality, &c.Postcode, &infoOnly); err != nil {
		return core.Commitment{}, fmt.Errorf("scan commitment: %w", err)
	}

	c.Kind = core.CommitmentKind(kind)
	c.InfoOnly = infoOnly != 0

	var err error
	if c.StartDate, err = core.ParseDate(start); err != nil {
		return core.Commitment{}, fmt.Errorf("commitment %s start date: %w", c.ID, err)
	}
	c.EndDate = core.OpenEnd()
	if end.Valid && strings.TrimSpace(end.String) != "" {
		d, err := core.ParseDate(end.String)
		if err != nil {
			return core.Commitment{}, fmt.Errorf("commitment %s end date: %w", c.ID, err)
		}
		c.EndDate = core.EndsOn(d)
	}
	if c.WeeklyHours, err = core.ParseHours(weekly); err != nil {
		return core.Commitment{}, fmt.Errorf("commitment %s weekly hours: %w", c.ID, err)
	}
	if c.OneOffHours, err = core.ParseHours(oneOff); err != nil {
		return core.Commitment{}, fmt.Errorf("commitment %s one-off hours: %w", c.ID, err)
	}
	return c, nil
}

func (r *SQLiteRepository) attachServices(ctx context.Context, kind core.CommitmentKind, commitments []core.Commitment, index map[string]int) error {
	if len(commitments) == 0 {
		return nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT s.commitment_id, s.service
		FROM commitment_services s JOIN commitments c ON c.id = s.commitment_id
		WHERE c.kind = ? ORDER BY s.commitment_id, s.service`, string(kind))
	if err != nil {
		return fmt.Errorf("query commitment services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, service string
		if err := rows.Scan(&id, &service); err != nil {
			return fmt.Errorf("scan commitment service: %w", err)
		}
		if i, ok := index[id]; ok {
			commitments[i].Services = append(commitments[i].Services, service)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate commitment services: %w", err)
	}
	return nil
}

// SaveCommitment inserts or replaces a commitment and its services.
func (r *SQLiteRepository) SaveCommitment(ctx context.Context, c core.Commitment) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var end any
	if d, ok := c.EndDate.Date(); ok {
		end = d.String()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO commitments
		(id, kind, subject_id, carer_id, start_date, end_date, weekly_hours, one_off_hours, locality, postcode, info_only)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind, subject_id = excluded.subject_id, carer_id = excluded.carer_id,
			start_date = excluded.start_date, end_date = excluded.end_date,
			weekly_hours = excluded.weekly_hours, one_off_hours = excluded.one_off_hours,
			locality = excluded.locality, postcode = excluded.postcode, info_only = excluded.info_only`,
		c.ID, string(c.Kind), c.SubjectID, c.CarerID, c.StartDate.String(), end,
		c.WeeklyHours.Decimal().String(), c.OneOffHours.Decimal().String(),
		c.Locality, c.Postcode, boolToInt(c.InfoOnly))
	if err != nil {
		return fmt.Errorf("upsert commitment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM commitment_services WHERE commitment_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear commitment services: %w", err)
	}
	for _, s := range c.UniqueServices() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO commitment_services (commitment_id, service) VALUES (?, ?)`, c.ID, s); err != nil {
			return fmt.Errorf("insert commitment service: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit commitment: %w", err)
	}
	return nil
}

// ListAttendanceAllowance implements ClientReader
func (r *SQLiteRepository) ListAttendanceAllowance(ctx context.Context) ([]core.AttendanceAllowanceState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT client_id, requested_level, requested_date, status,
		confirmation_date, time_spent_hours FROM attendance_allowance ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("query attendance allowance: %w", err)
	}
	defer rows.Close()

	var out []core.AttendanceAllowanceState
	for rows.Next() {
		var (
			s                          core.AttendanceAllowanceState
			requested, status, spent   string
			requestedDate, confirmedOn sql.NullString
		)
		if err := rows.Scan(&s.ClientID, &requested, &requestedDate, &status, &confirmedOn, &spent); err != nil {
			return nil, fmt.Errorf("scan attendance allowance: %w", err)
		}
		if s.RequestedLevel, err = core.ParseAllowanceLevel(requested); err != nil {
			return nil, fmt.Errorf("client %s: %w", s.ClientID, err)
		}
		if s.Status, err = core.ParseAllowanceLevel(status); err != nil {
			return nil, fmt.Errorf("client %s: %w", s.ClientID, err)
		}
		if s.RequestedDate, err = parseOptionalDate(requestedDate); err != nil {
			return nil, fmt.Errorf("client %s requested date: %w", s.ClientID, err)
		}
		if s.ConfirmationDate, err = parseOptionalDate(confirmedOn); err != nil {
			return nil, fmt.Errorf("client %s confirmation date: %w", s.ClientID, err)
		}
		if s.TimeSpentHours, err = core.ParseHours(spent); err != nil {
			return nil, fmt.Errorf("client %s time spent: %w", s.ClientID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance allowance: %w", err)
	}
	return out, nil
}

// SaveAttendanceAllowance inserts or replaces a client's attendance allowance state.
func (r *SQLiteRepository) SaveAttendanceAllowance(ctx context.Context, s core.AttendanceAllowanceState) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO attendance_allowance
		(client_id, requested_level, requested_date, status, confirmation_date, time_spent_hours)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			requested_level = excluded.requested_level, requested_date = excluded.requested_date,
			status = excluded.status, confirmation_date = excluded.confirmation_date,
			time_spent_hours = excluded.time_spent_hours`,
		s.ClientID, levelOrNone(s.RequestedLevel), optionalDate(s.RequestedDate), levelOrNone(s.Status),
		optionalDate(s.ConfirmationDate), s.TimeSpentHours.Decimal().String())
	if err != nil {
		return fmt.Errorf("upsert attendance allowance: %w", err)
	}
	return nil
}

func parseOptionalDate(s sql.NullString) (core.Date, error) {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s.String)
}

func optionalDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func levelOrNone(l core.AllowanceLevel) string {
	if l == "" {
		return string(core.LevelNone)
	}
	return string(l)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
