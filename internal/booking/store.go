package booking

import (
	"context"
	"errors"
	"time"
)

// Store-level sentinels. These never escape the engine: absent resources are
// reported to callers as nil/false results instead.
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrWorkerNotFound      = errors.New("healthcare worker not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrTaskNotFound        = errors.New("appointment task not found")

	// ErrSlotConflict is returned by SetSlotBooked when the slot's booked
	// flag did not have the expected value, i.e. another caller got there
	// first.
	ErrSlotConflict = errors.New("slot booked state changed concurrently")
)

// SlotStore persists available slots.
type SlotStore interface {
	GetSlotByID(ctx context.Context, id int64) (*AvailableSlot, error)
	CreateSlot(ctx context.Context, slot *AvailableSlot) (*AvailableSlot, error)

	// SetSlotBooked flips the booked flag conditionally: the update only
	// applies while the current value equals expect, otherwise
	// ErrSlotConflict.
	SetSlotBooked(ctx context.Context, id int64, booked, expect bool) error

	DeleteSlot(ctx context.Context, id int64) error
	ListOpenSlots(ctx context.Context, after time.Time) ([]AvailableSlot, error)
	ListSlotsByWorker(ctx context.Context, workerID int64) ([]AvailableSlot, error)

	// DeleteStaleOpenSlots removes unbooked slots that ended before the
	// given cutoff and reports how many were removed.
	DeleteStaleOpenSlots(ctx context.Context, before time.Time) (int64, error)
}

// AppointmentStore persists appointments. GetAppointmentByID hydrates tasks;
// the listing methods return bare rows.
type AppointmentStore interface {
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)
	ListAppointmentsByClient(ctx context.Context, clientID int64) ([]Appointment, error)
	ListAppointmentsByWorker(ctx context.Context, workerID int64) ([]Appointment, error)
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, appt *Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
}

type TaskStore interface {
	CreateTask(ctx context.Context, task *AppointmentTask) (*AppointmentTask, error)
	UpdateTask(ctx context.Context, task *AppointmentTask) error
}

// ChangeLogStore is append-only; rows are never updated or deleted.
type ChangeLogStore interface {
	AppendChangeLog(ctx context.Context, entry *ChangeLog) error
	ListChangeLogsByAppointment(ctx context.Context, appointmentID int64) ([]ChangeLog, error)
}

// IdentityStore resolves the identity provider's subject ids to domain
// records.
type IdentityStore interface {
	GetClientBySubjectID(ctx context.Context, subjectID string) (*Client, error)
	GetClientByID(ctx context.Context, id int64) (*Client, error)
	GetWorkerBySubjectID(ctx context.Context, subjectID string) (*HealthcareWorker, error)
	GetWorkerByID(ctx context.Context, id int64) (*HealthcareWorker, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	SlotStore
	AppointmentStore
	TaskStore
	ChangeLogStore
	IdentityStore
}
