package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"truthlink/core/publicid"
	"truthlink/core/store"
	"truthlink/core/utils"
)

var (
	// ErrInvalidTransition means the requested status change is not an
	// edge of the lifecycle graph, including any move out of a terminal
	// status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReportClosed means the report is in a terminal status and no
	// longer accepts analysis updates.
	ErrReportClosed = errors.New("report is closed")
)

// ValidationError rejects a submission or update before anything is
// persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// GeoPoint is a resolved coordinate pair.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves a free-text location. Implementations must treat
// failure as a soft condition; the service degrades to an ungeocoded
// report rather than rejecting the submission.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (*GeoPoint, error)
}

// Submission is the anonymous intake payload. It deliberately has no
// identity fields.
type Submission struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Location    string   `json:"location"`
	Attachments []string `json:"attachments"`
}

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
	maxLocationLen    = 300
	maxAttachments    = 5
)

type Service struct {
	store    store.ReportsStore
	ids      *publicid.Generator
	geocoder Geocoder
	logger   *utils.Logger
}

func NewService(st store.ReportsStore, ids *publicid.Generator, geocoder Geocoder, logger *utils.Logger) *Service {
	if ids == nil {
		ids = publicid.NewGenerator()
	}
	return &Service{store: st, ids: ids, geocoder: geocoder, logger: logger}
}

// Submit validates and persists a new anonymous report. The returned
// report carries the tracking id the reporter must save; it is the only
// handle anyone ever gets back to this record.
func (s *Service) Submit(ctx context.Context, sub Submission) (*store.Report, error) {
	if err := validateSubmission(&sub); err != nil {
		return nil, err
	}
	report := &store.Report{
		Title:       sub.Title,
		Description: sub.Description,
		Type:        sub.Type,
		Status:      StatusPending,
		Location:    sub.Location,
		Attachments: sub.Attachments,
	}
	if s.geocoder != nil && sub.Location != "" {
		pt, err := s.geocoder.Resolve(ctx, sub.Location)
		if err != nil {
			s.logger.Errorf("geocode %q: %v", sub.Location, err)
		} else if pt != nil {
			report.Latitude = &pt.Latitude
			report.Longitude = &pt.Longitude
		}
	}
	for attempt := 0; attempt < publicid.MaxAttempts; attempt++ {
		pid, err := s.ids.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate tracking id: %w", err)
		}
		report.PublicID = pid
		if _, err := s.store.CreateReport(ctx, report); err != nil {
			if errors.Is(err, store.ErrDuplicatePublicID) {
				continue
			}
			return nil, err
		}
		return report, nil
	}
	s.logger.Errorf("tracking id space exhausted after %d collisions, check the entropy source", publicid.MaxAttempts)
	return nil, publicid.ErrExhausted
}

// Track is the anonymous read path: exact tracking id lookup plus the
// full timeline. Unknown ids come back as ErrNotFound with no hint of
// whether the id was ever issued.
func (s *Service) Track(ctx context.Context, publicID string) (*store.Report, []store.ReportEvent, error) {
	report, err := s.store.GetReportByPublicID(ctx, strings.TrimSpace(publicID))
	if err != nil {
		return nil, nil, err
	}
	if report == nil {
		return nil, nil, store.ErrNotFound
	}
	events, err := s.store.ListReportEvents(ctx, report.ID)
	if err != nil {
		return nil, nil, err
	}
	return report, events, nil
}

// Get loads one report with its timeline by internal id.
func (s *Service) Get(ctx context.Context, id int64) (*store.Report, []store.ReportEvent, error) {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if report == nil {
		return nil, nil, store.ErrNotFound
	}
	events, err := s.store.ListReportEvents(ctx, report.ID)
	if err != nil {
		return nil, nil, err
	}
	return report, events, nil
}

// ListEvents returns a report's timeline in seq order.
func (s *Service) ListEvents(ctx context.Context, reportID int64) ([]store.ReportEvent, error) {
	return s.store.ListReportEvents(ctx, reportID)
}

// List returns reports matching the filter, newest first. Unknown
// filter values are rejected rather than silently matching nothing.
func (s *Service) List(ctx context.Context, filter store.ReportFilter) ([]store.Report, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, invalid("status", "unknown status")
	}
	if filter.Type != "" && !ValidType(filter.Type) {
		return nil, invalid("type", "unknown report type")
	}
	return s.store.ListReports(ctx, filter)
}

// Transition moves a report along the lifecycle graph under optimistic
// concurrency. A stale expectedVersion surfaces as store.ErrConflict; a
// move the graph forbids as ErrInvalidTransition. Either way nothing is
// written.
func (s *Service) Transition(ctx context.Context, id int64, expectedVersion int, to, note, actor string) (*store.Report, error) {
	if !ValidStatus(to) {
		return nil, invalid("status", "unknown status")
	}
	return s.store.ApplyMutation(ctx, id, expectedVersion, func(current *store.Report) (*store.ReportMutation, error) {
		if !CanTransition(current.Status, to) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
		}
		msg := "status changed to " + to
		if note != "" {
			msg += ": " + note
		}
		return &store.ReportMutation{
			Status: to,
			Event: store.ReportEvent{
				Kind:    store.EventStatusChanged,
				Actor:   actor,
				Message: msg,
			},
		}, nil
	})
}

// SetAnalysis updates investigator-only triage fields. Closed reports
// reject the update.
func (s *Service) SetAnalysis(ctx context.Context, id int64, expectedVersion int, priority, department, actor string) (*store.Report, error) {
	if priority != "" && !ValidPriority(priority) {
		return nil, invalid("priority", "unknown priority")
	}
	if priority == "" && strings.TrimSpace(department) == "" {
		return nil, invalid("analysis", "nothing to update")
	}
	if len(department) > maxLocationLen {
		return nil, invalid("department", "too long")
	}
	return s.store.ApplyMutation(ctx, id, expectedVersion, func(current *store.Report) (*store.ReportMutation, error) {
		if IsTerminal(current.Status) {
			return nil, ErrReportClosed
		}
		return &store.ReportMutation{
			Priority:   priority,
			Department: department,
			Event: store.ReportEvent{
				Kind:    store.EventAnalysisUpdated,
				Actor:   actor,
				Message: "analysis updated",
			},
		}, nil
	})
}

func validateSubmission(sub *Submission) error {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Description = strings.TrimSpace(sub.Description)
	sub.Location = strings.TrimSpace(sub.Location)
	if sub.Title == "" {
		return invalid("title", "required")
	}
	if len(sub.Title) > maxTitleLen {
		return invalid("title", "too long")
	}
	if sub.Description == "" {
		return invalid("description", "required")
	}
	if len(sub.Description) > maxDescriptionLen {
		return invalid("description", "too long")
	}
	if !ValidType(sub.Type) {
		return invalid("type", "unknown report type")
	}
	if len(sub.Location) > maxLocationLen {
		return invalid("location", "too long")
	}
	if len(sub.Attachments) > maxAttachments {
		return invalid("attachments", "too many attachments")
	}
	for _, ref := range sub.Attachments {
		if strings.TrimSpace(ref) == "" {
			return invalid("attachments", "empty attachment reference")
		}
	}
	return nil
}
