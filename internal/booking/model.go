package booking

import (
	"fmt"
	"strings"
	"time"
)

// Role is the caller's role as issued by the identity provider. The raw
// token string is parsed exactly once at the transport boundary; the core
// only ever sees one of the three constants below.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleClient           Role = "client"
	RoleHealthcareWorker Role = "healthcare_worker"
)

// ParseRole normalizes the role string carried in auth tokens. "Worker" is
// accepted as a legacy alias for HealthcareWorker.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "client":
		return RoleClient, nil
	case "healthcareworker", "healthcare_worker", "worker":
		return RoleHealthcareWorker, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = time.Hour

const (
	MaxNotesLen             = 1000
	MaxTaskDescriptionLen   = 200
	MaxChangeDescriptionLen = 500
)

type Client struct {
	ID        int64
	SubjectID string
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type HealthcareWorker struct {
	ID        int64
	SubjectID string
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailableSlot is a fixed one-hour window owned by a healthcare worker,
// bookable at most once.
type AvailableSlot struct {
	ID                 int64
	HealthcareWorkerID int64
	Start              time.Time
	End                time.Time
	IsBooked           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the fixed-duration invariant.
func (s *AvailableSlot) Validate() error {
	if !s.End.After(s.Start) {
		return fmt.Errorf("slot end must be after start")
	}
	if s.End.Sub(s.Start) != SlotDuration {
		return fmt.Errorf("slot must be exactly %s long", SlotDuration)
	}
	return nil
}

// Appointment is a confirmed booking of a slot by a client. Start/End mirror
// the bound slot; AvailableSlotID is one-to-one with the slot that produced
// the appointment.
type Appointment struct {
	ID                 int64
	ClientID           int64
	HealthcareWorkerID int64
	Start              time.Time
	End                time.Time
	Notes              string
	AvailableSlotID    int64
	Tasks              []AppointmentTask
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AppointmentTask is owned exclusively by its appointment and is only ever
// created or updated through the appointment's update path.
type AppointmentTask struct {
	ID            int64
	AppointmentID int64
	Description   string
	IsCompleted   bool
}

// ChangeLog is an append-only audit record of a mutation to an appointment.
// AppointmentID is nulled when the appointment row is deleted;
// AppointmentIDSnapshot is retained permanently so the audit trail survives
// the appointment.
type ChangeLog struct {
	ID                    int64
	AppointmentID         *int64
	AppointmentIDSnapshot int64
	ChangeDate            time.Time
	ChangedByUserID       string
	ChangeDescription     string
}

// AppointmentSummary is the light row shape returned by listing operations.
type AppointmentSummary struct {
	ID                 int64
	ClientID           int64
	HealthcareWorkerID int64
	Start              time.Time
	End                time.Time
	Notes              string
}

// Owned is implemented by resources the authorization resolver can guard.
// A zero owner id means "no owner of that kind" and never matches.
type Owned interface {
	OwnerClientID() int64
	OwnerWorkerID() int64
}

func (a *Appointment) OwnerClientID() int64 { return a.ClientID }
func (a *Appointment) OwnerWorkerID() int64 { return a.HealthcareWorkerID }

func (s *AvailableSlot) OwnerClientID() int64 { return 0 }
func (s *AvailableSlot) OwnerWorkerID() int64 { return s.HealthcareWorkerID }

// Summary maps an appointment to its listing shape.
func (a *Appointment) Summary() AppointmentSummary {
	return AppointmentSummary{
		ID:                 a.ID,
		ClientID:           a.ClientID,
		HealthcareWorkerID: a.HealthcareWorkerID,
		Start:              a.Start,
		End:                a.End,
		Notes:              a.Notes,
	}
}
