package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements Repository on top of a pgx connection pool.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var email *string

	err := row.Scan(
		&c.ID,
		&c.SubjectID,
		&c.Name,
		&email,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	c.Email = email
	return &c, nil
}

func scanWorker(row pgx.Row) (*HealthcareWorker, error) {
	var w HealthcareWorker
	var specialty *string

	err := row.Scan(
		&w.ID,
		&w.SubjectID,
		&w.Name,
		&specialty,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}

	w.Specialty = specialty
	return &w, nil
}

func scanSlot(row pgx.Row) (*AvailableSlot, error) {
	var s AvailableSlot

	err := row.Scan(
		&s.ID,
		&s.HealthcareWorkerID,
		&s.Start,
		&s.End,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.HealthcareWorkerID,
		&a.Start,
		&a.End,
		&a.Notes,
		&a.AvailableSlotID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// Identity lookups

func (r *PgStore) GetClientBySubjectID(ctx context.Context, subjectID string) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, subject_id, name, email, created_at, updated_at
		FROM clients
		WHERE subject_id = $1
	`, subjectID)
	return scanClient(row)
}

func (r *PgStore) GetClientByID(ctx context.Context, id int64) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, subject_id, name, email, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (r *PgStore) GetWorkerBySubjectID(ctx context.Context, subjectID string) (*HealthcareWorker, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, subject_id, name, specialty, created_at, updated_at
		FROM healthcare_workers
		WHERE subject_id = $1
	`, subjectID)
	return scanWorker(row)
}

func (r *PgStore) GetWorkerByID(ctx context.Context, id int64) (*HealthcareWorker, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, subject_id, name, specialty, created_at, updated_at
		FROM healthcare_workers
		WHERE id = $1
	`, id)
	return scanWorker(row)
}

// Slots

func (r *PgStore) GetSlotByID(ctx context.Context, id int64) (*AvailableSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, healthcare_worker_id, start_time, end_time, is_booked, created_at, updated_at
		FROM available_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgStore) CreateSlot(ctx context.Context, slot *AvailableSlot) (*AvailableSlot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO available_slots (healthcare_worker_id, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, now(), now())
		RETURNING id, healthcare_worker_id, start_time, end_time, is_booked, created_at, updated_at
	`, slot.HealthcareWorkerID, slot.Start, slot.End)
	return scanSlot(row)
}

func (r *PgStore) SetSlotBooked(ctx context.Context, id int64, booked, expect bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE available_slots
		SET is_booked = $2,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = $3
	`, id, booked, expect)
	if err != nil {
		return fmt.Errorf("set slot booked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing slot from a lost race.
		if _, err := r.GetSlotByID(ctx, id); errors.Is(err, ErrSlotNotFound) {
			return ErrSlotNotFound
		}
		return ErrSlotConflict
	}
	return nil
}

func (r *PgStore) DeleteSlot(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM available_slots
		WHERE id = $1
		  AND is_booked = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetSlotByID(ctx, id); errors.Is(err, ErrSlotNotFound) {
			return ErrSlotNotFound
		}
		return ErrSlotConflict
	}
	return nil
}

func (r *PgStore) ListOpenSlots(ctx context.Context, after time.Time) ([]AvailableSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, healthcare_worker_id, start_time, end_time, is_booked, created_at, updated_at
		FROM available_slots
		WHERE is_booked = FALSE
		  AND start_time > $1
		ORDER BY start_time, id
	`, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgStore) ListSlotsByWorker(ctx context.Context, workerID int64) ([]AvailableSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, healthcare_worker_id, start_time, end_time, is_booked, created_at, updated_at
		FROM available_slots
		WHERE healthcare_worker_id = $1
		ORDER BY start_time, id
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgStore) DeleteStaleOpenSlots(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM available_slots
		WHERE is_booked = FALSE
		  AND end_time < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectSlots(rows pgx.Rows) ([]AvailableSlot, error) {
	var result []AvailableSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Appointments

func (r *PgStore) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, client_id, healthcare_worker_id, start_time, end_time, notes, available_slot_id, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	tasks, err := r.listTasks(ctx, appt.ID)
	if err != nil {
		return nil, err
	}
	appt.Tasks = tasks
	return appt, nil
}

func (r *PgStore) ListAppointments(ctx context.Context) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT id, client_id, healthcare_worker_id, start_time, end_time, notes, available_slot_id, created_at, updated_at
		FROM appointments
		ORDER BY start_time, id
	`)
}

func (r *PgStore) ListAppointmentsByClient(ctx context.Context, clientID int64) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT id, client_id, healthcare_worker_id, start_time, end_time, notes, available_slot_id, created_at, updated_at
		FROM appointments
		WHERE client_id = $1
		ORDER BY start_time, id
	`, clientID)
}

func (r *PgStore) ListAppointmentsByWorker(ctx context.Context, workerID int64) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT id, client_id, healthcare_worker_id, start_time, end_time, notes, available_slot_id, created_at, updated_at
		FROM appointments
		WHERE healthcare_worker_id = $1
		ORDER BY start_time, id
	`, workerID)
}

func (r *PgStore) listAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgStore) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (client_id, healthcare_worker_id, start_time, end_time, notes, available_slot_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, client_id, healthcare_worker_id, start_time, end_time, notes, available_slot_id, created_at, updated_at
	`, appt.ClientID, appt.HealthcareWorkerID, appt.Start, appt.End, appt.Notes, appt.AvailableSlotID)
	return scanAppointment(row)
}

func (r *PgStore) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET notes = $2,
		    updated_at = now()
		WHERE id = $1
	`, appt.ID, appt.Notes)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgStore) DeleteAppointment(ctx context.Context, id int64) error {
	// change_logs.appointment_id is ON DELETE SET NULL; the snapshot column
	// keeps the audit trail addressable.
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Tasks

func (r *PgStore) listTasks(ctx context.Context, appointmentID int64) ([]AppointmentTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, description, is_completed
		FROM appointment_tasks
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentTask
	for rows.Next() {
		var t AppointmentTask
		if err := rows.Scan(&t.ID, &t.AppointmentID, &t.Description, &t.IsCompleted); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgStore) CreateTask(ctx context.Context, task *AppointmentTask) (*AppointmentTask, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointment_tasks (appointment_id, description, is_completed)
		VALUES ($1, $2, $3)
		RETURNING id, appointment_id, description, is_completed
	`, task.AppointmentID, task.Description, task.IsCompleted)

	var t AppointmentTask
	if err := row.Scan(&t.ID, &t.AppointmentID, &t.Description, &t.IsCompleted); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgStore) UpdateTask(ctx context.Context, task *AppointmentTask) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_tasks
		SET description = $2,
		    is_completed = $3
		WHERE id = $1
	`, task.ID, task.Description, task.IsCompleted)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Change log

func (r *PgStore) AppendChangeLog(ctx context.Context, entry *ChangeLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO change_logs (appointment_id, appointment_id_snapshot, change_date, changed_by_user_id, change_description)
		VALUES ($1, $2, COALESCE($3, now()), $4, $5)
	`, entry.AppointmentID, entry.AppointmentIDSnapshot, nullableTime(entry.ChangeDate), entry.ChangedByUserID, entry.ChangeDescription)
	if err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

func (r *PgStore) ListChangeLogsByAppointment(ctx context.Context, appointmentID int64) ([]ChangeLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, appointment_id_snapshot, change_date, changed_by_user_id, change_description
		FROM change_logs
		WHERE appointment_id_snapshot = $1
		ORDER BY change_date, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ChangeLog
	for rows.Next() {
		var e ChangeLog
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.AppointmentIDSnapshot, &e.ChangeDate, &e.ChangedByUserID, &e.ChangeDescription); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
