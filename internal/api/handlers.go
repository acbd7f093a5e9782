package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medshift/appointment-booking/internal/booking"
)

// BookingService is the slice of the booking engine the transport layer
// depends on.
type BookingService interface {
	Create(ctx context.Context, p booking.CreateParams) (*booking.Appointment, error)
	Update(ctx context.Context, p booking.UpdateParams) (bool, error)
	Delete(ctx context.Context, id int64, role booking.Role, subjectID string) (bool, error)
	GetByID(ctx context.Context, id int64, role booking.Role, subjectID string) (*booking.Appointment, error)
	GetAll(ctx context.Context) []booking.AppointmentSummary
	GetByClientSubject(ctx context.Context, subjectID string) []booking.AppointmentSummary
	GetByWorkerSubject(ctx context.Context, subjectID string) []booking.AppointmentSummary
	GetChangeLog(ctx context.Context, id int64, role booking.Role, subjectID string) ([]booking.ChangeLog, error)

	CreateSlot(ctx context.Context, p booking.CreateSlotParams) (*booking.AvailableSlot, error)
	DeleteSlot(ctx context.Context, id int64, role booking.Role, subjectID string) (bool, error)
	ListOpenSlots(ctx context.Context) ([]booking.AvailableSlot, error)
	ListWorkerSlots(ctx context.Context, workerID int64) ([]booking.AvailableSlot, error)
}

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id := GetIdentity(r.Context())
		appt, err := svc.Create(r.Context(), booking.CreateParams{
			SlotID:           req.SlotID,
			Notes:            req.Notes,
			TaskDescriptions: req.Tasks,
			Role:             id.Role,
			SubjectID:        id.SubjectID,
			ClientID:         req.ClientID,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The full listing is the admin surface; everyone else uses /mine.
		if GetIdentity(r.Context()).Role != booking.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		writeJSON(w, http.StatusOK, toSummaryResponses(svc.GetAll(r.Context())))
	}
}

func listMyAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := GetIdentity(r.Context())

		var summaries []booking.AppointmentSummary
		switch id.Role {
		case booking.RoleClient:
			summaries = svc.GetByClientSubject(r.Context(), id.SubjectID)
		case booking.RoleHealthcareWorker:
			summaries = svc.GetByWorkerSubject(r.Context(), id.SubjectID)
		case booking.RoleAdmin:
			summaries = svc.GetAll(r.Context())
		}

		writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		id := GetIdentity(r.Context())
		appt, err := svc.GetByID(r.Context(), apptID, id.Role, id.SubjectID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if appt == nil {
			writeError(w, http.StatusNotFound, "appointment_not_found", "no such appointment")
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		tasks := make([]booking.TaskUpdate, 0, len(req.Tasks))
		for _, t := range req.Tasks {
			tasks = append(tasks, booking.TaskUpdate{
				ID:          t.ID,
				Description: t.Description,
				IsCompleted: t.IsCompleted,
			})
		}

		id := GetIdentity(r.Context())
		found, err := svc.Update(r.Context(), booking.UpdateParams{
			AppointmentID: apptID,
			Notes:         req.Notes,
			Tasks:         tasks,
			Role:          id.Role,
			SubjectID:     id.SubjectID,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "appointment_not_found", "no such appointment")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		id := GetIdentity(r.Context())
		found, err := svc.Delete(r.Context(), apptID, id.Role, id.SubjectID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "appointment_not_found", "no such appointment")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getChangeLogHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		id := GetIdentity(r.Context())
		entries, err := svc.GetChangeLog(r.Context(), apptID, id.Role, id.SubjectID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toChangeLogResponses(entries))
	}
}

func createSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id := GetIdentity(r.Context())
		slot, err := svc.CreateSlot(r.Context(), booking.CreateSlotParams{
			WorkerID:  req.WorkerID,
			Start:     req.Start,
			Role:      id.Role,
			SubjectID: id.SubjectID,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func deleteSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		id := GetIdentity(r.Context())
		found, err := svc.DeleteSlot(r.Context(), slotID, id.Role, id.SubjectID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "slot_not_found", "no such slot")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listOpenSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListOpenSlots(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func listWorkerSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, ok := pathID(w, r, "workerID")
		if !ok {
			return
		}

		slots, err := svc.ListWorkerSlots(r.Context(), workerID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, booking.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, booking.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "forbidden", "you do not have access to this resource")
	case errors.Is(err, booking.ErrSlotContended):
		writeError(w, http.StatusConflict, "slot_contended", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
