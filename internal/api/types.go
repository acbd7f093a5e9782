package api

import (
	"time"

	"github.com/medshift/appointment-booking/internal/booking"
)

type CreateAppointmentRequest struct {
	SlotID   int64    `json:"slot_id"`
	Notes    string   `json:"notes"`
	Tasks    []string `json:"tasks"`
	ClientID int64    `json:"client_id,omitempty"` // admin bookings only
}

type TaskPayload struct {
	ID          int64  `json:"id,omitempty"`
	Description string `json:"description"`
	IsCompleted bool   `json:"is_completed"`
}

type UpdateAppointmentRequest struct {
	Notes string        `json:"notes"`
	Tasks []TaskPayload `json:"tasks"`
}

type CreateSlotRequest struct {
	WorkerID int64     `json:"worker_id,omitempty"` // admin only
	Start    time.Time `json:"start"`
}

type TaskResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	IsCompleted bool   `json:"is_completed"`
}

type AppointmentResponse struct {
	ID                 int64          `json:"id"`
	ClientID           int64          `json:"client_id"`
	HealthcareWorkerID int64          `json:"healthcare_worker_id"`
	Start              time.Time      `json:"start"`
	End                time.Time      `json:"end"`
	Notes              string         `json:"notes"`
	AvailableSlotID    int64          `json:"available_slot_id"`
	Tasks              []TaskResponse `json:"tasks"`
}

type AppointmentSummaryResponse struct {
	ID                 int64     `json:"id"`
	ClientID           int64     `json:"client_id"`
	HealthcareWorkerID int64     `json:"healthcare_worker_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Notes              string    `json:"notes"`
}

type SlotResponse struct {
	ID                 int64     `json:"id"`
	HealthcareWorkerID int64     `json:"healthcare_worker_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	IsBooked           bool      `json:"is_booked"`
}

type ChangeLogResponse struct {
	ID                    int64     `json:"id"`
	AppointmentID         *int64    `json:"appointment_id"`
	AppointmentIDSnapshot int64     `json:"appointment_id_snapshot"`
	ChangeDate            time.Time `json:"change_date"`
	ChangedByUserID       string    `json:"changed_by_user_id"`
	ChangeDescription     string    `json:"change_description"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	tasks := make([]TaskResponse, 0, len(a.Tasks))
	for _, t := range a.Tasks {
		tasks = append(tasks, TaskResponse{ID: t.ID, Description: t.Description, IsCompleted: t.IsCompleted})
	}
	return AppointmentResponse{
		ID:                 a.ID,
		ClientID:           a.ClientID,
		HealthcareWorkerID: a.HealthcareWorkerID,
		Start:              a.Start,
		End:                a.End,
		Notes:              a.Notes,
		AvailableSlotID:    a.AvailableSlotID,
		Tasks:              tasks,
	}
}

func toSummaryResponses(in []booking.AppointmentSummary) []AppointmentSummaryResponse {
	out := make([]AppointmentSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, AppointmentSummaryResponse{
			ID:                 s.ID,
			ClientID:           s.ClientID,
			HealthcareWorkerID: s.HealthcareWorkerID,
			Start:              s.Start,
			End:                s.End,
			Notes:              s.Notes,
		})
	}
	return out
}

func toSlotResponse(s *booking.AvailableSlot) SlotResponse {
	return SlotResponse{
		ID:                 s.ID,
		HealthcareWorkerID: s.HealthcareWorkerID,
		Start:              s.Start,
		End:                s.End,
		IsBooked:           s.IsBooked,
	}
}

func toSlotResponses(in []booking.AvailableSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(in))
	for i := range in {
		out = append(out, toSlotResponse(&in[i]))
	}
	return out
}

func toChangeLogResponses(in []booking.ChangeLog) []ChangeLogResponse {
	out := make([]ChangeLogResponse, 0, len(in))
	for _, e := range in {
		out = append(out, ChangeLogResponse{
			ID:                    e.ID,
			AppointmentID:         e.AppointmentID,
			AppointmentIDSnapshot: e.AppointmentIDSnapshot,
			ChangeDate:            e.ChangeDate,
			ChangedByUserID:       e.ChangedByUserID,
			ChangeDescription:     e.ChangeDescription,
		})
	}
	return out
}
