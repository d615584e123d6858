package reports

import (
	"time"

	"truthlink/core/store"
)

// Role selects which projection of a report a caller may see.
type Role string

const (
	RoleAnonymous    Role = "anonymous"
	RoleInvestigator Role = "investigator"
)

// ReportView is the serialized shape handed to clients. Fields absent
// from the anonymous projection are omitted from the JSON entirely, not
// zeroed, so the tracker response never even names them.
type ReportView struct {
	ID          int64       `json:"id,omitempty"`
	TrackingID  string      `json:"tracking_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        string      `json:"type,omitempty"`
	Status      string      `json:"status"`
	Location    string      `json:"location,omitempty"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	Attachments []string    `json:"attachments,omitempty"`
	Priority    string      `json:"priority,omitempty"`
	Department  string      `json:"department,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
	Version     int         `json:"version,omitempty"`
	Timeline    []EventView `json:"timeline,omitempty"`
}

type EventView struct {
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// redactedActor replaces investigator usernames in the anonymous
// timeline. The reporter sees that staff acted, never who.
const redactedActor = "investigator"

// Project maps a report and its timeline to the view a role is allowed
// to see. Any role other than RoleInvestigator gets the anonymous
// projection; unknown roles fail closed.
func Project(report *store.Report, events []store.ReportEvent, role Role) ReportView {
	v := ReportView{
		TrackingID:  report.PublicID,
		Title:       report.Title,
		Description: report.Description,
		Status:      report.Status,
		Location:    report.Location,
		CreatedAt:   report.CreatedAt,
	}
	if role == RoleInvestigator {
		v.ID = report.ID
		v.Type = report.Type
		v.Latitude = report.Latitude
		v.Longitude = report.Longitude
		v.Attachments = report.Attachments
		v.Priority = report.Priority
		v.Department = report.Department
		updatedAt := report.UpdatedAt
		v.UpdatedAt = &updatedAt
		v.Version = report.Version
	}
	v.Timeline = make([]EventView, 0, len(events))
	for _, ev := range events {
		ev2 := EventView{
			Seq:       ev.Seq,
			Kind:      ev.Kind,
			Actor:     ev.Actor,
			Message:   ev.Message,
			CreatedAt: ev.CreatedAt,
		}
		if role != RoleInvestigator && ev.Actor != store.ActorReporter {
			ev2.Actor = redactedActor
		}
		v.Timeline = append(v.Timeline, ev2)
	}
	return v
}

// ProjectList maps a result page for the investigator console. The
// list view skips timelines; they load on demand.
func ProjectList(reportsList []store.Report, role Role) []ReportView {
	views := make([]ReportView, 0, len(reportsList))
	for i := range reportsList {
		views = append(views, Project(&reportsList[i], nil, role))
	}
	return views
}
