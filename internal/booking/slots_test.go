package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medshift/appointment-booking/internal/booking"
)

func TestCreateSlot(t *testing.T) {
	ctx := context.Background()
	start := time.Now().UTC().Add(24 * time.Hour)

	t.Run("worker opens a slot on their own calendar", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		slot, err := svc.CreateSlot(ctx, booking.CreateSlotParams{
			Start:     start,
			Role:      booking.RoleHealthcareWorker,
			SubjectID: workerSubject,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), slot.HealthcareWorkerID)
		assert.Equal(t, start, slot.Start)
		assert.Equal(t, start.Add(time.Hour), slot.End)
		assert.False(t, slot.IsBooked)
	})

	t.Run("admin opens a slot for an explicit worker", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		slot, err := svc.CreateSlot(ctx, booking.CreateSlotParams{
			WorkerID:  7,
			Start:     start,
			Role:      booking.RoleAdmin,
			SubjectID: "auth0|admin-1",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), slot.HealthcareWorkerID)
	})

	t.Run("admin without a worker id is rejected", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		_, err := svc.CreateSlot(ctx, booking.CreateSlotParams{
			Start:     start,
			Role:      booking.RoleAdmin,
			SubjectID: "auth0|admin-1",
		})
		require.ErrorIs(t, err, booking.ErrInvalidInput)
	})

	t.Run("admin with an unknown worker id is rejected", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		_, err := svc.CreateSlot(ctx, booking.CreateSlotParams{
			WorkerID:  424242,
			Start:     start,
			Role:      booking.RoleAdmin,
			SubjectID: "auth0|admin-1",
		})
		require.ErrorIs(t, err, booking.ErrInvalidInput)
	})

	t.Run("client role cannot open slots", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		_, err := svc.CreateSlot(ctx, booking.CreateSlotParams{
			Start:     start,
			Role:      booking.RoleClient,
			SubjectID: clientSubject,
		})
		require.ErrorIs(t, err, booking.ErrUnauthorized)
	})

	t.Run("past start is rejected", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		_, err := svc.CreateSlot(ctx, booking.CreateSlotParams{
			Start:     time.Now().UTC().Add(-time.Hour),
			Role:      booking.RoleHealthcareWorker,
			SubjectID: workerSubject,
		})
		require.ErrorIs(t, err, booking.ErrInvalidInput)
		assert.Contains(t, err.Error(), "future")
	})
}

func TestDeleteSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes an open slot", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		found, err := svc.DeleteSlot(ctx, 10, booking.RoleHealthcareWorker, workerSubject)
		require.NoError(t, err)
		assert.True(t, found)

		_, err = repo.GetSlotByID(ctx, 10)
		require.ErrorIs(t, err, booking.ErrSlotNotFound)
	})

	t.Run("missing slot reports not found", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		svc := newTestService(repo)

		found, err := svc.DeleteSlot(ctx, 999, booking.RoleAdmin, "auth0|admin-1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("non-owning worker is denied", func(t *testing.T) {
		repo, _ := newBookingFixture(t)
		repo.addWorker(8, "auth0|worker-8")
		svc := newTestService(repo)

		_, err := svc.DeleteSlot(ctx, 10, booking.RoleHealthcareWorker, "auth0|worker-8")
		require.ErrorIs(t, err, booking.ErrPermissionDenied)
	})

	t.Run("booked slot cannot be deleted", func(t *testing.T) {
		repo := bookedFixture(t)
		svc := newTestService(repo)

		_, err := svc.DeleteSlot(ctx, 10, booking.RoleHealthcareWorker, workerSubject)
		require.ErrorIs(t, err, booking.ErrInvalidInput)
		assert.Contains(t, err.Error(), "booked")

		_, err = repo.GetSlotByID(ctx, 10)
		require.NoError(t, err)
	})
}

func TestListSlots(t *testing.T) {
	ctx := context.Background()
	repo, start := newBookingFixture(t)
	svc := newTestService(repo)

	repo.addSlot(booking.AvailableSlot{
		ID: 11, HealthcareWorkerID: 7,
		Start: start.Add(time.Hour), End: start.Add(2 * time.Hour),
		IsBooked: true,
	})
	repo.addWorker(8, "auth0|worker-8")
	repo.addSlot(booking.AvailableSlot{
		ID: 12, HealthcareWorkerID: 8,
		Start: start, End: start.Add(time.Hour),
	})
	past := time.Now().UTC().Add(-2 * time.Hour)
	repo.addSlot(booking.AvailableSlot{
		ID: 13, HealthcareWorkerID: 7,
		Start: past, End: past.Add(time.Hour),
	})

	open, err := svc.ListOpenSlots(ctx)
	require.NoError(t, err)
	ids := make([]int64, 0, len(open))
	for _, s := range open {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{10, 12}, ids, "booked and past slots are excluded")

	mine, err := svc.ListWorkerSlots(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 3, "worker listing includes booked and past slots")
}

func TestPruneStaleSlots(t *testing.T) {
	ctx := context.Background()
	repo, _ := newBookingFixture(t)
	svc := newTestService(repo)

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	repo.addSlot(booking.AvailableSlot{
		ID: 20, HealthcareWorkerID: 7, Start: old, End: old.Add(time.Hour),
	})
	repo.addSlot(booking.AvailableSlot{
		ID: 21, HealthcareWorkerID: 7, Start: old, End: old.Add(time.Hour),
		IsBooked: true,
	})

	n, err := svc.PruneStaleSlots(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetSlotByID(ctx, 20)
	require.ErrorIs(t, err, booking.ErrSlotNotFound, "stale open slot is gone")
	_, err = repo.GetSlotByID(ctx, 21)
	require.NoError(t, err, "booked slots are never pruned")
	_, err = repo.GetSlotByID(ctx, 10)
	require.NoError(t, err, "future slots are kept")
}
