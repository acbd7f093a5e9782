// Command simulate fires concurrent booking requests at a running
// api-server and verifies that every slot ends up with at most one winner.
// It talks to the database directly only to pick targets and to check the
// final state.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medshift/appointment-booking/internal/config"
	"github.com/medshift/appointment-booking/internal/db"
)

type simConfig struct {
	APIBaseURL string
	Workers    int
	Attempts   int
	SlotLimit  int
	JWTSecret  string
}

type counters struct {
	total     int64
	created   int64
	rejected  int64
	contended int64
	errored   int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	sim := simConfig{
		APIBaseURL: getenv("SIM_API_URL", "http://127.0.0.1:8080"),
		Workers:    getenvInt("SIM_WORKERS", 32),
		Attempts:   getenvInt("SIM_ATTEMPTS", 500),
		SlotLimit:  getenvInt("SIM_SLOT_LIMIT", 20),
		JWTSecret:  cfg.JWTSecret,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	slotIDs, err := pickOpenSlots(context.Background(), pool, sim.SlotLimit)
	if err != nil {
		log.Fatalf("pick slots: %v", err)
	}
	clientIDs, err := pickClients(context.Background(), pool, 100)
	if err != nil {
		log.Fatalf("pick clients: %v", err)
	}
	if len(slotIDs) == 0 || len(clientIDs) == 0 {
		log.Fatal("no open slots or clients to simulate with, run the seed first")
	}

	log.Printf("simulating %d attempts across %d workers against %d slots",
		sim.Attempts, sim.Workers, len(slotIDs))

	token, err := adminToken(sim.JWTSecret)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	var c counters
	attempts := make(chan struct{}, sim.Attempts)
	for i := 0; i < sim.Attempts; i++ {
		attempts <- struct{}{}
	}
	close(attempts)

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range attempts {
				slotID := slotIDs[rand.Intn(len(slotIDs))]
				clientID := clientIDs[rand.Intn(len(clientIDs))]
				book(client, sim.APIBaseURL, token, slotID, clientID, &c)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	log.Printf("done in %s: total=%d created=%d rejected=%d contended=%d errors=%d",
		elapsed, c.total, c.created, c.rejected, c.contended, c.errored)

	winners, err := countWinners(context.Background(), pool, slotIDs)
	if err != nil {
		log.Fatalf("verify winners: %v", err)
	}
	for slotID, n := range winners {
		if n > 1 {
			log.Fatalf("DOUBLE BOOKING: slot %d has %d appointments", slotID, n)
		}
	}
	log.Printf("verified: no slot has more than one appointment")
}

func book(client *http.Client, baseURL, token string, slotID, clientID int64, c *counters) {
	atomic.AddInt64(&c.total, 1)

	body, _ := json.Marshal(map[string]any{
		"slot_id":   slotID,
		"client_id": clientID,
		"notes":     "load simulation booking",
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&c.errored, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&c.errored, 1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&c.created, 1)
	case http.StatusBadRequest:
		atomic.AddInt64(&c.rejected, 1)
	case http.StatusConflict:
		atomic.AddInt64(&c.contended, 1)
	default:
		atomic.AddInt64(&c.errored, 1)
	}
}

func adminToken(secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  "simulate|admin",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func pickOpenSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]int64, error) {
	rows, err := pool.Query(ctx, `
		SELECT id FROM available_slots
		WHERE is_booked = FALSE AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows.Next, rows.Scan, rows.Err)
}

func pickClients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]int64, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM clients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows.Next, rows.Scan, rows.Err)
}

func collectIDs(next func() bool, scan func(...any) error, rowsErr func() error) ([]int64, error) {
	var ids []int64
	for next() {
		var id int64
		if err := scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rowsErr()
}

func countWinners(ctx context.Context, pool *pgxpool.Pool, slotIDs []int64) (map[int64]int, error) {
	winners := make(map[int64]int, len(slotIDs))
	for _, slotID := range slotIDs {
		var n int
		err := pool.QueryRow(ctx, `
			SELECT count(*) FROM appointments WHERE available_slot_id = $1
		`, slotID).Scan(&n)
		if err != nil {
			return nil, err
		}
		winners[slotID] = n
	}
	return winners, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid integer for %s=%q, using default %d\n", key, v, fallback)
	}
	return fallback
}
