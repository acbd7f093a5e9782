package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medshift/appointment-booking/internal/booking"
	"github.com/medshift/appointment-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := applySchema(context.Background(), pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedWorkers(context.Background(), pool, 50); err != nil {
		log.Fatalf("seed workers: %v", err)
	}
	if err := seedClients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, 14); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id          BIGSERIAL PRIMARY KEY,
	subject_id  TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	email       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS healthcare_workers (
	id          BIGSERIAL PRIMARY KEY,
	subject_id  TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	specialty   TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS available_slots (
	id                    BIGSERIAL PRIMARY KEY,
	healthcare_worker_id  BIGINT NOT NULL REFERENCES healthcare_workers(id),
	start_time            TIMESTAMPTZ NOT NULL,
	end_time              TIMESTAMPTZ NOT NULL,
	is_booked             BOOLEAN NOT NULL DEFAULT FALSE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT slot_one_hour CHECK (end_time = start_time + INTERVAL '1 hour')
);

CREATE TABLE IF NOT EXISTS appointments (
	id                    BIGSERIAL PRIMARY KEY,
	client_id             BIGINT NOT NULL REFERENCES clients(id),
	healthcare_worker_id  BIGINT NOT NULL REFERENCES healthcare_workers(id),
	start_time            TIMESTAMPTZ NOT NULL,
	end_time              TIMESTAMPTZ NOT NULL,
	notes                 TEXT NOT NULL DEFAULT '',
	available_slot_id     BIGINT NOT NULL UNIQUE REFERENCES available_slots(id),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointment_tasks (
	id              BIGSERIAL PRIMARY KEY,
	appointment_id  BIGINT NOT NULL REFERENCES appointments(id) ON DELETE CASCADE,
	description     TEXT NOT NULL CHECK (length(description) <= 200),
	is_completed    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS change_logs (
	id                       BIGSERIAL PRIMARY KEY,
	appointment_id           BIGINT REFERENCES appointments(id) ON DELETE SET NULL,
	appointment_id_snapshot  BIGINT NOT NULL,
	change_date              TIMESTAMPTZ NOT NULL DEFAULT now(),
	changed_by_user_id       TEXT NOT NULL,
	change_description       TEXT NOT NULL CHECK (length(change_description) <= 500)
);

CREATE INDEX IF NOT EXISTS idx_slots_worker ON available_slots (healthcare_worker_id, start_time);
CREATE INDEX IF NOT EXISTS idx_appointments_client ON appointments (client_id, start_time);
CREATE INDEX IF NOT EXISTS idx_appointments_worker ON appointments (healthcare_worker_id, start_time);
CREATE INDEX IF NOT EXISTS idx_change_logs_snapshot ON change_logs (appointment_id_snapshot, change_date);
`

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("applying schema")
	_, err := pool.Exec(ctx, schema)
	return err
}

func seedWorkers(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d healthcare workers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		subject := fmt.Sprintf("worker|%s", gofakeit.UUID())

		_, err := tx.Exec(ctx, `
			INSERT INTO healthcare_workers (subject_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, subject, name, spec)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := gofakeit.Name()
		email := gofakeit.Email()
		subject := fmt.Sprintf("client|%s", gofakeit.UUID())

		_, err := tx.Exec(ctx, `
			INSERT INTO clients (subject_id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, subject, name, email)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// seedSlots opens an 09:00-17:00 grid of one-hour slots per worker for the
// next `days` days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, days int) error {
	log.Printf("seeding slots for the next %d days", days)

	rows, err := pool.Query(ctx, `SELECT id FROM healthcare_workers`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var workerIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		workerIDs = append(workerIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	base := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	for _, workerID := range workerIDs {
		for d := 0; d < days; d++ {
			day := base.AddDate(0, 0, d)
			for hour := 9; hour < 17; hour++ {
				start := day.Add(time.Duration(hour) * time.Hour)
				_, err := tx.Exec(ctx, `
					INSERT INTO available_slots (healthcare_worker_id, start_time, end_time, is_booked, created_at, updated_at)
					VALUES ($1, $2, $3, FALSE, now(), now())
				`, workerID, start, start.Add(booking.SlotDuration))
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}
