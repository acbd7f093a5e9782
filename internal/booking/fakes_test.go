package booking_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/medshift/appointment-booking/internal/booking"
	redisclient "github.com/medshift/appointment-booking/internal/redis"
)

var errStoreDown = errors.New("store unavailable")

// fakeRepo is an in-memory Repository with per-call failure switches so the
// engine's compensation paths can be exercised.
type fakeRepo struct {
	mu sync.Mutex

	clients map[int64]booking.Client
	workers map[int64]booking.HealthcareWorker
	slots   map[int64]booking.AvailableSlot
	appts   map[int64]booking.Appointment
	tasks   map[int64]booking.AppointmentTask
	logs    []booking.ChangeLog

	nextID int64

	failCreateAppointment bool
	failUpdateAppointment bool
	failDeleteAppointment bool
	failAppendChangeLog   bool
	failCreateTaskAt      int // fail the nth CreateTask call (1-based), 0 = never
	taskCreates           int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients: make(map[int64]booking.Client),
		workers: make(map[int64]booking.HealthcareWorker),
		slots:   make(map[int64]booking.AvailableSlot),
		appts:   make(map[int64]booking.Appointment),
		tasks:   make(map[int64]booking.AppointmentTask),
		nextID:  1000,
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) addClient(id int64, subject string) {
	f.clients[id] = booking.Client{ID: id, SubjectID: subject, Name: "client"}
}

func (f *fakeRepo) addWorker(id int64, subject string) {
	f.workers[id] = booking.HealthcareWorker{ID: id, SubjectID: subject, Name: "worker"}
}

func (f *fakeRepo) addSlot(s booking.AvailableSlot) {
	f.slots[s.ID] = s
}

func (f *fakeRepo) addAppointment(a booking.Appointment) {
	tasks := a.Tasks
	a.Tasks = nil
	f.appts[a.ID] = a
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
}

// Identity lookups

func (f *fakeRepo) GetClientBySubjectID(_ context.Context, subjectID string) (*booking.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.SubjectID == subjectID {
			c := c
			return &c, nil
		}
	}
	return nil, booking.ErrClientNotFound
}

func (f *fakeRepo) GetClientByID(_ context.Context, id int64) (*booking.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[id]; ok {
		return &c, nil
	}
	return nil, booking.ErrClientNotFound
}

func (f *fakeRepo) GetWorkerBySubjectID(_ context.Context, subjectID string) (*booking.HealthcareWorker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.workers {
		if w.SubjectID == subjectID {
			w := w
			return &w, nil
		}
	}
	return nil, booking.ErrWorkerNotFound
}

func (f *fakeRepo) GetWorkerByID(_ context.Context, id int64) (*booking.HealthcareWorker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.workers[id]; ok {
		return &w, nil
	}
	return nil, booking.ErrWorkerNotFound
}

// Slots

func (f *fakeRepo) GetSlotByID(_ context.Context, id int64) (*booking.AvailableSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[id]; ok {
		return &s, nil
	}
	return nil, booking.ErrSlotNotFound
}

func (f *fakeRepo) CreateSlot(_ context.Context, slot *booking.AvailableSlot) (*booking.AvailableSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *slot
	s.ID = f.id()
	f.slots[s.ID] = s
	return &s, nil
}

func (f *fakeRepo) SetSlotBooked(_ context.Context, id int64, booked, expect bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return booking.ErrSlotNotFound
	}
	if s.IsBooked != expect {
		return booking.ErrSlotConflict
	}
	s.IsBooked = booked
	f.slots[id] = s
	return nil
}

func (f *fakeRepo) DeleteSlot(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.slots[id]; !ok {
		return booking.ErrSlotNotFound
	}
	delete(f.slots, id)
	return nil
}

func (f *fakeRepo) ListOpenSlots(_ context.Context, after time.Time) ([]booking.AvailableSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.AvailableSlot
	for _, s := range f.slots {
		if !s.IsBooked && s.Start.After(after) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (f *fakeRepo) ListSlotsByWorker(_ context.Context, workerID int64) ([]booking.AvailableSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.AvailableSlot
	for _, s := range f.slots {
		if s.HealthcareWorkerID == workerID {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (f *fakeRepo) DeleteStaleOpenSlots(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.slots {
		if !s.IsBooked && s.End.Before(before) {
			delete(f.slots, id)
			n++
		}
	}
	return n, nil
}

func sortSlots(slots []booking.AvailableSlot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
}

// Appointments

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id int64) (*booking.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Tasks = f.tasksFor(id)
	return &a, nil
}

func (f *fakeRepo) tasksFor(appointmentID int64) []booking.AppointmentTask {
	var out []booking.AppointmentTask
	for _, t := range f.tasks {
		if t.AppointmentID == appointmentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRepo) ListAppointments(_ context.Context) ([]booking.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.Appointment
	for _, a := range f.appts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListAppointmentsByClient(_ context.Context, clientID int64) ([]booking.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.Appointment
	for _, a := range f.appts {
		if a.ClientID == clientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListAppointmentsByWorker(_ context.Context, workerID int64) ([]booking.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.Appointment
	for _, a := range f.appts {
		if a.HealthcareWorkerID == workerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) CreateAppointment(_ context.Context, appt *booking.Appointment) (*booking.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateAppointment {
		return nil, errStoreDown
	}
	a := *appt
	a.ID = f.id()
	a.Tasks = nil
	f.appts[a.ID] = a
	return &a, nil
}

func (f *fakeRepo) UpdateAppointment(_ context.Context, appt *booking.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateAppointment {
		return errStoreDown
	}
	a, ok := f.appts[appt.ID]
	if !ok {
		return booking.ErrAppointmentNotFound
	}
	a.Notes = appt.Notes
	f.appts[appt.ID] = a
	return nil
}

func (f *fakeRepo) DeleteAppointment(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeleteAppointment {
		return errStoreDown
	}
	if _, ok := f.appts[id]; !ok {
		return booking.ErrAppointmentNotFound
	}
	delete(f.appts, id)
	for tid, t := range f.tasks {
		if t.AppointmentID == id {
			delete(f.tasks, tid)
		}
	}
	for i := range f.logs {
		if f.logs[i].AppointmentID != nil && *f.logs[i].AppointmentID == id {
			f.logs[i].AppointmentID = nil
		}
	}
	return nil
}

// Tasks

func (f *fakeRepo) CreateTask(_ context.Context, task *booking.AppointmentTask) (*booking.AppointmentTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskCreates++
	if f.failCreateTaskAt > 0 && f.taskCreates >= f.failCreateTaskAt {
		return nil, errStoreDown
	}
	t := *task
	t.ID = f.id()
	f.tasks[t.ID] = t
	return &t, nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, task *booking.AppointmentTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return booking.ErrTaskNotFound
	}
	f.tasks[task.ID] = *task
	return nil
}

// Change log

func (f *fakeRepo) AppendChangeLog(_ context.Context, entry *booking.ChangeLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppendChangeLog {
		return errStoreDown
	}
	e := *entry
	e.ID = f.id()
	f.logs = append(f.logs, e)
	return nil
}

func (f *fakeRepo) ListChangeLogsByAppointment(_ context.Context, appointmentID int64) ([]booking.ChangeLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []booking.ChangeLog
	for _, e := range f.logs {
		if e.AppointmentIDSnapshot == appointmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeLocker runs the critical section inline. contended simulates a lock
// held by another caller.
type fakeLocker struct {
	contended bool
}

func (l *fakeLocker) WithSlotLock(ctx context.Context, _ int64, fn func(ctx context.Context) error) error {
	if l.contended {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

// stealingLocker books the slot just before granting the lock, simulating a
// writer that slipped in between the caller's free-check and the lock.
type stealingLocker struct {
	repo   *fakeRepo
	slotID int64
}

func (l *stealingLocker) WithSlotLock(ctx context.Context, _ int64, fn func(ctx context.Context) error) error {
	_ = l.repo.SetSlotBooked(ctx, l.slotID, true, false)
	return fn(ctx)
}
