package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/medshift/appointment-booking/internal/redis"
)

// Service is the booking engine. It is stateless between calls; all state
// lives in the repository, and each public operation is one request-scoped
// sequence of store calls.
type Service struct {
	repo   Repository
	authz  *Authorizer
	locker redisclient.Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		authz:  NewAuthorizer(repo),
		locker: locker,
		log:    log.With().Str("component", "booking").Logger(),
	}
}

// CreateParams carries everything needed to book a slot. ClientID is only
// consulted for admin callers, who book on behalf of an explicit client.
type CreateParams struct {
	SlotID           int64
	Notes            string
	TaskDescriptions []string
	Role             Role
	SubjectID        string
	ClientID         int64
}

// Create books a slot for a client and builds the appointment with its
// tasks. The free-check and the booked-flag flip run under a per-slot
// distributed lock, and the flip itself is conditional on the flag still
// being false, so two racing callers cannot both win the slot.
//
// Compensation: any failure after the slot has been booked attempts to
// unbook it before the error propagates, so a failed creation never leaves
// a slot permanently locked. The unbooking is best-effort.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Appointment, error) {
	clientID, err := s.resolveClientID(ctx, p)
	if err != nil {
		return nil, err
	}

	if len(p.Notes) > MaxNotesLen {
		return nil, fmt.Errorf("%w: notes must be at most %d characters", ErrInvalidInput, MaxNotesLen)
	}
	for _, desc := range p.TaskDescriptions {
		if len(desc) > MaxTaskDescriptionLen {
			return nil, fmt.Errorf("%w: task description must be at most %d characters", ErrInvalidInput, MaxTaskDescriptionLen)
		}
	}

	slot, err := s.repo.GetSlotByID(ctx, p.SlotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, fmt.Errorf("%w: slot no longer available", ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: load slot: %v", ErrOperationFailed, err)
	}
	if slot.IsBooked || !slot.Start.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: slot no longer available", ErrInvalidInput)
	}

	var result *Appointment

	err = s.locker.WithSlotLock(ctx, slot.ID, func(lockCtx context.Context) error {
		// Inside the critical section the booked flip is still conditional,
		// in case a competing writer slipped in before the lock existed.
		if err := s.repo.SetSlotBooked(lockCtx, slot.ID, true, false); err != nil {
			if errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrSlotNotFound) {
				return fmt.Errorf("%w: slot no longer available", ErrInvalidInput)
			}
			s.log.Warn().Err(err).Int64("slot_id", slot.ID).Msg("booking slot failed")
			return fmt.Errorf("%w: could not book slot", ErrOperationFailed)
		}

		appt := &Appointment{
			ClientID:           clientID,
			HealthcareWorkerID: slot.HealthcareWorkerID,
			Start:              slot.Start,
			End:                slot.End,
			Notes:              p.Notes,
			AvailableSlotID:    slot.ID,
		}

		created, err := s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			s.log.Warn().Err(err).Int64("slot_id", slot.ID).Msg("appointment insert failed, releasing slot")
			s.unbookSlot(lockCtx, slot.ID)
			return fmt.Errorf("%w: could not create appointment", ErrOperationFailed)
		}

		for _, desc := range p.TaskDescriptions {
			if strings.TrimSpace(desc) == "" {
				continue
			}
			task := &AppointmentTask{AppointmentID: created.ID, Description: desc}
			if _, err := s.repo.CreateTask(lockCtx, task); err != nil {
				// The appointment row and tasks created so far stay in
				// place; only the slot booking is reverted.
				s.log.Warn().Err(err).
					Int64("appointment_id", created.ID).
					Int64("slot_id", slot.ID).
					Msg("task insert failed, releasing slot")
				s.unbookSlot(lockCtx, slot.ID)
				return fmt.Errorf("%w: could not create appointment task", ErrOperationFailed)
			}
		}

		// Re-read to pick up generated ids and children; fall back to the
		// in-memory appointment if the read fails.
		full, err := s.repo.GetAppointmentByID(lockCtx, created.ID)
		if err != nil {
			s.log.Warn().Err(err).Int64("appointment_id", created.ID).Msg("re-read after create failed")
			result = created
			return nil
		}
		result = full
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return result, nil
}

func (s *Service) resolveClientID(ctx context.Context, p CreateParams) (int64, error) {
	switch p.Role {
	case RoleClient:
		if p.SubjectID == "" {
			return 0, fmt.Errorf("%w: missing caller identity", ErrUnauthorized)
		}
		c, err := s.repo.GetClientBySubjectID(ctx, p.SubjectID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				return 0, fmt.Errorf("%w: no client profile for caller", ErrUnauthorized)
			}
			return 0, fmt.Errorf("%w: resolve client: %v", ErrOperationFailed, err)
		}
		return c.ID, nil

	case RoleAdmin:
		if p.ClientID == 0 {
			return 0, fmt.Errorf("%w: client id is required", ErrInvalidInput)
		}
		c, err := s.repo.GetClientByID(ctx, p.ClientID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				return 0, fmt.Errorf("%w: unknown client %d", ErrInvalidInput, p.ClientID)
			}
			return 0, fmt.Errorf("%w: resolve client: %v", ErrOperationFailed, err)
		}
		return c.ID, nil

	default:
		return 0, fmt.Errorf("%w: role %q cannot book appointments", ErrUnauthorized, p.Role)
	}
}

// unbookSlot reverts a slot booking after a failed creation. Best-effort: a
// failure here is logged and left for operational reconciliation.
func (s *Service) unbookSlot(ctx context.Context, slotID int64) {
	if err := s.repo.SetSlotBooked(ctx, slotID, false, true); err != nil {
		s.log.Warn().Err(err).Int64("slot_id", slotID).Msg("failed to release slot after aborted booking")
	}
}

// UpdateParams carries an appointment update. Tasks with a non-zero ID
// overwrite the matching existing task; tasks without one are created.
// Tasks omitted from the list are left untouched, never deleted.
type UpdateParams struct {
	AppointmentID int64
	Notes         string
	Tasks         []TaskUpdate
	Role          Role
	SubjectID     string
}

// Update applies a diffed update to an appointment and records the diff in
// the change log. Returns (false, nil) when the appointment does not exist.
// An update identical to current state is a no-op: nothing is written and
// no change log row is produced.
func (s *Service) Update(ctx context.Context, p UpdateParams) (bool, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, p.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: load appointment: %v", ErrOperationFailed, err)
	}

	if err := s.authz.Authorize(ctx, appt, p.Role, p.SubjectID); err != nil {
		return false, err
	}

	// All input is validated before the diff/persist pass so a rejected
	// update never leaves a partially applied, unaudited mutation behind.
	if len(p.Notes) > MaxNotesLen {
		return false, fmt.Errorf("%w: notes must be at most %d characters", ErrInvalidInput, MaxNotesLen)
	}
	for _, in := range p.Tasks {
		if len(in.Description) > MaxTaskDescriptionLen {
			return false, fmt.Errorf("%w: task description must be at most %d characters", ErrInvalidInput, MaxTaskDescriptionLen)
		}
	}

	var changes []string

	if p.Notes != appt.Notes {
		changes = append(changes, notesChangeEntry(appt.Notes, p.Notes))
		appt.Notes = p.Notes
	}

	existing := make(map[int64]*AppointmentTask, len(appt.Tasks))
	for i := range appt.Tasks {
		existing[appt.Tasks[i].ID] = &appt.Tasks[i]
	}

	for _, in := range p.Tasks {
		if cur, ok := existing[in.ID]; in.ID != 0 && ok {
			if cur.Description == in.Description && cur.IsCompleted == in.IsCompleted {
				continue
			}
			changes = append(changes, taskChangeEntry(*cur, in))
			cur.Description = in.Description
			cur.IsCompleted = in.IsCompleted
			if err := s.repo.UpdateTask(ctx, cur); err != nil {
				s.log.Warn().Err(err).Int64("task_id", cur.ID).Msg("task update failed")
				return false, fmt.Errorf("%w: internal error updating the appointment", ErrOperationFailed)
			}
			continue
		}

		if strings.TrimSpace(in.Description) == "" {
			continue
		}
		task := &AppointmentTask{
			AppointmentID: appt.ID,
			Description:   in.Description,
			IsCompleted:   in.IsCompleted,
		}
		if _, err := s.repo.CreateTask(ctx, task); err != nil {
			s.log.Warn().Err(err).Int64("appointment_id", appt.ID).Msg("task insert failed")
			return false, fmt.Errorf("%w: internal error updating the appointment", ErrOperationFailed)
		}
		changes = append(changes, taskAddedEntry(in.Description))
	}

	if len(changes) == 0 {
		return true, nil
	}

	if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		s.log.Warn().Err(err).Int64("appointment_id", appt.ID).Msg("appointment update failed")
		return false, fmt.Errorf("%w: internal error updating the appointment", ErrOperationFailed)
	}

	s.appendChangeLog(ctx, appt.ID, p.SubjectID, joinChanges(changes))
	return true, nil
}

// Delete removes an appointment, freeing its slot and writing a terminal
// change log first. Returns (false, nil) when the appointment does not
// exist. Slot release and log write are best-effort; only a failure of the
// final delete itself is fatal, since by then the side effects have already
// been applied and the caller must know the terminal step did not complete.
func (s *Service) Delete(ctx context.Context, id int64, role Role, subjectID string) (bool, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: load appointment: %v", ErrOperationFailed, err)
	}

	if err := s.authz.Authorize(ctx, appt, role, subjectID); err != nil {
		return false, err
	}

	if appt.AvailableSlotID != 0 {
		if err := s.repo.SetSlotBooked(ctx, appt.AvailableSlotID, false, true); err != nil {
			s.log.Warn().Err(err).
				Int64("slot_id", appt.AvailableSlotID).
				Int64("appointment_id", appt.ID).
				Msg("could not release slot for deleted appointment")
		}
	}

	s.appendChangeLog(ctx, appt.ID, subjectID, "Appointment deleted.")

	if err := s.repo.DeleteAppointment(ctx, appt.ID); err != nil {
		s.log.Error().Err(err).Int64("appointment_id", appt.ID).Msg("appointment delete failed")
		return false, fmt.Errorf("%w: appointment deletion failed", ErrOperationFailed)
	}

	return true, nil
}

// GetByID returns the appointment with its tasks, or (nil, nil) when it
// does not exist, so callers can tell "absent" apart from "forbidden".
func (s *Service) GetByID(ctx context.Context, id int64, role Role, subjectID string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load appointment: %v", ErrOperationFailed, err)
	}
	if err := s.authz.Authorize(ctx, appt, role, subjectID); err != nil {
		return nil, err
	}
	return appt, nil
}

// GetAll lists every appointment. Admin-only by caller convention; no
// per-row authorization happens here. An upstream failure degrades to an
// empty result rather than an error.
func (s *Service) GetAll(ctx context.Context) []AppointmentSummary {
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("list appointments failed")
		return []AppointmentSummary{}
	}
	return summarize(appts)
}

// GetByClientSubject lists the appointments of the client resolved from the
// subject id. The filter itself is the authorization boundary.
func (s *Service) GetByClientSubject(ctx context.Context, subjectID string) []AppointmentSummary {
	c, err := s.repo.GetClientBySubjectID(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, ErrClientNotFound) {
			s.log.Warn().Err(err).Msg("resolve client for listing failed")
		}
		return []AppointmentSummary{}
	}
	appts, err := s.repo.ListAppointmentsByClient(ctx, c.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("client_id", c.ID).Msg("list client appointments failed")
		return []AppointmentSummary{}
	}
	return summarize(appts)
}

// GetByWorkerSubject is the worker-side counterpart of GetByClientSubject.
func (s *Service) GetByWorkerSubject(ctx context.Context, subjectID string) []AppointmentSummary {
	w, err := s.repo.GetWorkerBySubjectID(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, ErrWorkerNotFound) {
			s.log.Warn().Err(err).Msg("resolve worker for listing failed")
		}
		return []AppointmentSummary{}
	}
	appts, err := s.repo.ListAppointmentsByWorker(ctx, w.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("worker_id", w.ID).Msg("list worker appointments failed")
		return []AppointmentSummary{}
	}
	return summarize(appts)
}

// GetChangeLog returns the audit trail of an appointment. An absent
// appointment yields an empty list, not an error.
func (s *Service) GetChangeLog(ctx context.Context, id int64, role Role, subjectID string) ([]ChangeLog, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return []ChangeLog{}, nil
		}
		return nil, fmt.Errorf("%w: load appointment: %v", ErrOperationFailed, err)
	}
	if err := s.authz.Authorize(ctx, appt, role, subjectID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListChangeLogsByAppointment(ctx, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load change log: %v", ErrOperationFailed, err)
	}
	return entries, nil
}

// appendChangeLog writes an audit row. Best-effort: a failure here must
// never mask the success of the mutation it annotates.
func (s *Service) appendChangeLog(ctx context.Context, appointmentID int64, subjectID, description string) {
	id := appointmentID
	entry := &ChangeLog{
		AppointmentID:         &id,
		AppointmentIDSnapshot: appointmentID,
		ChangeDate:            time.Now().UTC(),
		ChangedByUserID:       subjectID,
		ChangeDescription:     truncateDescription(description),
	}
	if err := s.repo.AppendChangeLog(ctx, entry); err != nil {
		s.log.Warn().Err(err).Int64("appointment_id", appointmentID).Msg("change log write failed")
	}
}

func summarize(appts []Appointment) []AppointmentSummary {
	out := make([]AppointmentSummary, 0, len(appts))
	for i := range appts {
		out = append(out, appts[i].Summary())
	}
	return out
}
