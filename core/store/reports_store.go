package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrConflict means an optimistic version check failed; the caller
	// holds a stale view and must re-fetch before retrying.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means no record matches the identifier.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePublicID means the UNIQUE constraint on public_id
	// fired at insert; the caller regenerates and retries.
	ErrDuplicatePublicID = errors.New("duplicate public id")
)

type Report struct {
	ID          int64     `json:"id"`
	PublicID    string    `json:"public_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Department  string    `json:"department,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

// ReportEvent is one append-only timeline entry. Seq equals the report
// version that produced it, so the timeline length always matches the
// version counter.
type ReportEvent struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"report_id"`
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Event kinds.
const (
	EventCreated         = "created"
	EventStatusChanged   = "status_changed"
	EventAnalysisUpdated = "analysis_updated"
)

// ActorReporter is the actor recorded for anonymous submissions.
const ActorReporter = "reporter"

type ReportFilter struct {
	Status string
	Type   string
}

// ReportMutation describes the change an ApplyMutation callback wants
// persisted. Zero-valued fields keep their current value; the event is
// always appended.
type ReportMutation struct {
	Status     string
	Priority   string
	Department string
	Event      ReportEvent
}

// MutationFn inspects the current row (read inside the transaction) and
// either returns the mutation to apply or an error, in which case
// nothing is written.
type MutationFn func(current *Report) (*ReportMutation, error)

type ReportsStore interface {
	CreateReport(ctx context.Context, report *Report) (int64, error)
	GetReport(ctx context.Context, id int64) (*Report, error)
	GetReportByPublicID(ctx context.Context, publicID string) (*Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, error)
	ApplyMutation(ctx context.Context, id int64, expectedVersion int, fn MutationFn) (*Report, error)
	ListReportEvents(ctx context.Context, reportID int64) ([]ReportEvent, error)
}

type reportsStore struct {
	db *sql.DB
}

func NewReportsStore(db *sql.DB) ReportsStore {
	return &reportsStore{db: db}
}

// CreateReport persists a new report with version 1 and its creation
// event in one transaction. The caller supplies public_id; a UNIQUE
// collision surfaces as ErrDuplicatePublicID.
func (s *reportsStore) CreateReport(ctx context.Context, report *Report) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if report.Version <= 0 {
		report.Version = 1
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reports(public_id, title, description, type, status, location, latitude, longitude, attachments, priority, department, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		report.PublicID, report.Title, report.Description, report.Type, report.Status, report.Location,
		nullableFloat(report.Latitude), nullableFloat(report.Longitude), attachmentsToJSON(report.Attachments),
		report.Priority, report.Department, now, now, report.Version)
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return 0, ErrDuplicatePublicID
		}
		return 0, err
	}
	reportID, _ := res.LastInsertId()
	report.ID = reportID
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO report_events(report_id, seq, kind, actor, message, created_at)
		VALUES(?,?,?,?,?,?)`,
		reportID, 1, EventCreated, ActorReporter, "report submitted", now); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return reportID, nil
}

func (s *reportsStore) GetReport(ctx context.Context, id int64) (*Report, error) {
	row := s.db.QueryRowContext(ctx, selectReport+` WHERE id=?`, id)
	return scanReport(row)
}

// GetReportByPublicID is an exact-match lookup, the only read path an
// unauthenticated caller can reach. It never lists or prefix-matches.
func (s *reportsStore) GetReportByPublicID(ctx context.Context, publicID string) (*Report, error) {
	if strings.TrimSpace(publicID) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, selectReport+` WHERE public_id=?`, publicID)
	return scanReport(row)
}

func (s *reportsStore) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, filter.Type)
	}
	query := selectReport
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	// id breaks created_at ties so repeated calls stay deterministic.
	query += " ORDER BY created_at DESC, id DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Report
	for rows.Next() {
		r, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// ApplyMutation runs one atomic read-modify-write against a single
// report: re-read the row, check the version, let fn decide the change,
// persist it with a guarded UPDATE, and append exactly one timeline
// event with seq = version+1. Any failure leaves the record untouched.
func (s *reportsStore) ApplyMutation(ctx context.Context, id int64, expectedVersion int, fn MutationFn) (*Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx, selectReport+` WHERE id=?`, id)
	current, err := scanReport(row)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if current == nil {
		tx.Rollback()
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		tx.Rollback()
		return nil, ErrConflict
	}
	m, err := fn(current)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	next := *current
	if m.Status != "" {
		next.Status = m.Status
	}
	if m.Priority != "" {
		next.Priority = m.Priority
	}
	if m.Department != "" {
		next.Department = m.Department
	}
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE reports SET status=?, priority=?, department=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`,
		next.Status, next.Priority, next.Department, now, id, expectedVersion)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback()
		return nil, ErrConflict
	}
	seq := expectedVersion + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO report_events(report_id, seq, kind, actor, message, created_at)
		VALUES(?,?,?,?,?,?)`,
		id, seq, m.Event.Kind, m.Event.Actor, m.Event.Message, now); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	next.Version = seq
	next.UpdatedAt = now
	return &next, nil
}

func (s *reportsStore) ListReportEvents(ctx context.Context, reportID int64) ([]ReportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, seq, kind, actor, message, created_at
		FROM report_events WHERE report_id=? ORDER BY seq ASC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReportEvent
	for rows.Next() {
		var ev ReportEvent
		if err := rows.Scan(&ev.ID, &ev.ReportID, &ev.Seq, &ev.Kind, &ev.Actor, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

const selectReport = `
	SELECT id, public_id, title, description, type, status, location, latitude, longitude, attachments, priority, department, created_at, updated_at, version
	FROM reports`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row *sql.Row) (*Report, error) {
	r, err := scanReportFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func scanReportRow(rows *sql.Rows) (Report, error) {
	return scanReportFrom(rows)
}

func scanReportFrom(sc rowScanner) (Report, error) {
	var r Report
	var lat, lng sql.NullFloat64
	var attachmentsRaw string
	if err := sc.Scan(&r.ID, &r.PublicID, &r.Title, &r.Description, &r.Type, &r.Status, &r.Location,
		&lat, &lng, &attachmentsRaw, &r.Priority, &r.Department, &r.CreatedAt, &r.UpdatedAt, &r.Version); err != nil {
		return Report{}, err
	}
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lng.Valid {
		r.Longitude = &lng.Float64
	}
	_ = json.Unmarshal([]byte(attachmentsRaw), &r.Attachments)
	return r, nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func attachmentsToJSON(refs []string) string {
	if len(refs) == 0 {
		return "[]"
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// modernc sqlite and postgres word it differently.
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
