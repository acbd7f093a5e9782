package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CreateSlotParams carries a new slot. WorkerID is only consulted for admin
// callers; workers always create slots for themselves.
type CreateSlotParams struct {
	WorkerID  int64
	Start     time.Time
	Role      Role
	SubjectID string
}

// CreateSlot opens a new one-hour slot. Workers open slots on their own
// calendar; admins open them for any worker.
func (s *Service) CreateSlot(ctx context.Context, p CreateSlotParams) (*AvailableSlot, error) {
	workerID, err := s.resolveWorkerID(ctx, p)
	if err != nil {
		return nil, err
	}

	start := p.Start.UTC()
	if !start.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: slot start must be in the future", ErrInvalidInput)
	}

	slot := &AvailableSlot{
		HealthcareWorkerID: workerID,
		Start:              start,
		End:                start.Add(SlotDuration),
	}
	if err := slot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	created, err := s.repo.CreateSlot(ctx, slot)
	if err != nil {
		s.log.Warn().Err(err).Int64("worker_id", workerID).Msg("slot insert failed")
		return nil, fmt.Errorf("%w: could not create slot", ErrOperationFailed)
	}
	return created, nil
}

func (s *Service) resolveWorkerID(ctx context.Context, p CreateSlotParams) (int64, error) {
	switch p.Role {
	case RoleHealthcareWorker:
		if p.SubjectID == "" {
			return 0, fmt.Errorf("%w: missing caller identity", ErrUnauthorized)
		}
		w, err := s.repo.GetWorkerBySubjectID(ctx, p.SubjectID)
		if err != nil {
			if errors.Is(err, ErrWorkerNotFound) {
				return 0, fmt.Errorf("%w: no worker profile for caller", ErrUnauthorized)
			}
			return 0, fmt.Errorf("%w: resolve worker: %v", ErrOperationFailed, err)
		}
		return w.ID, nil

	case RoleAdmin:
		if p.WorkerID == 0 {
			return 0, fmt.Errorf("%w: worker id is required", ErrInvalidInput)
		}
		w, err := s.repo.GetWorkerByID(ctx, p.WorkerID)
		if err != nil {
			if errors.Is(err, ErrWorkerNotFound) {
				return 0, fmt.Errorf("%w: unknown worker %d", ErrInvalidInput, p.WorkerID)
			}
			return 0, fmt.Errorf("%w: resolve worker: %v", ErrOperationFailed, err)
		}
		return w.ID, nil

	default:
		return 0, fmt.Errorf("%w: role %q cannot create slots", ErrUnauthorized, p.Role)
	}
}

// DeleteSlot removes an unbooked slot. Returns (false, nil) when the slot
// does not exist. A booked slot cannot be deleted; the appointment must be
// deleted first, which frees the slot.
func (s *Service) DeleteSlot(ctx context.Context, id int64, role Role, subjectID string) (bool, error) {
	slot, err := s.repo.GetSlotByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: load slot: %v", ErrOperationFailed, err)
	}

	if err := s.authz.Authorize(ctx, slot, role, subjectID); err != nil {
		return false, err
	}
	if slot.IsBooked {
		return false, fmt.Errorf("%w: slot is booked and cannot be deleted", ErrInvalidInput)
	}

	if err := s.repo.DeleteSlot(ctx, slot.ID); err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return false, nil
		}
		s.log.Warn().Err(err).Int64("slot_id", slot.ID).Msg("slot delete failed")
		return false, fmt.Errorf("%w: could not delete slot", ErrOperationFailed)
	}
	return true, nil
}

// ListOpenSlots returns unbooked slots starting in the future.
func (s *Service) ListOpenSlots(ctx context.Context) ([]AvailableSlot, error) {
	slots, err := s.repo.ListOpenSlots(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: list open slots: %v", ErrOperationFailed, err)
	}
	return slots, nil
}

// ListWorkerSlots returns every slot owned by a worker, booked or not.
func (s *Service) ListWorkerSlots(ctx context.Context, workerID int64) ([]AvailableSlot, error) {
	slots, err := s.repo.ListSlotsByWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list worker slots: %v", ErrOperationFailed, err)
	}
	return slots, nil
}

// PruneStaleSlots deletes unbooked slots that ended before the retention
// cutoff. Intended to be called periodically by the slot-pruner worker.
func (s *Service) PruneStaleSlots(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	n, err := s.repo.DeleteStaleOpenSlots(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stale slots: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned stale open slots")
	}
	return n, nil
}
