package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medshift/appointment-booking/internal/booking"
)

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepo()
	repo.addClient(100, clientSubject)
	repo.addClient(200, "auth0|client-200")
	repo.addWorker(7, workerSubject)
	repo.addWorker(8, "auth0|worker-8")
	authz := booking.NewAuthorizer(repo)

	appt := &booking.Appointment{ID: 500, ClientID: 100, HealthcareWorkerID: 7}
	slot := &booking.AvailableSlot{ID: 10, HealthcareWorkerID: 7}

	cases := []struct {
		name      string
		res       booking.Owned
		role      booking.Role
		subjectID string
		wantErr   error
	}{
		{"empty subject fails closed", appt, booking.RoleAdmin, "", booking.ErrPermissionDenied},
		{"admin may act on any appointment", appt, booking.RoleAdmin, "auth0|admin-1", nil},
		{"owning client is allowed", appt, booking.RoleClient, clientSubject, nil},
		{"other client is denied", appt, booking.RoleClient, "auth0|client-200", booking.ErrPermissionDenied},
		{"client with no profile is denied", appt, booking.RoleClient, "auth0|stranger", booking.ErrPermissionDenied},
		{"owning worker is allowed", appt, booking.RoleHealthcareWorker, workerSubject, nil},
		{"other worker is denied", appt, booking.RoleHealthcareWorker, "auth0|worker-8", booking.ErrPermissionDenied},
		{"unknown role is denied", appt, booking.Role("auditor"), "auth0|someone", booking.ErrPermissionDenied},
		{"worker owns their slot", slot, booking.RoleHealthcareWorker, workerSubject, nil},
		{"other worker does not own the slot", slot, booking.RoleHealthcareWorker, "auth0|worker-8", booking.ErrPermissionDenied},
		{"client never owns a slot", slot, booking.RoleClient, clientSubject, booking.ErrPermissionDenied},
		{"admin may act on any slot", slot, booking.RoleAdmin, "auth0|admin-1", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := authz.Authorize(ctx, tc.res, tc.role, tc.subjectID)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want booking.Role
	}{
		{"admin", booking.RoleAdmin},
		{"Admin", booking.RoleAdmin},
		{"client", booking.RoleClient},
		{"healthcare_worker", booking.RoleHealthcareWorker},
		{"HealthcareWorker", booking.RoleHealthcareWorker},
		{"Worker", booking.RoleHealthcareWorker},
		{" worker ", booking.RoleHealthcareWorker},
	} {
		got, err := booking.ParseRole(tc.in)
		require.NoError(t, err, "ParseRole(%q)", tc.in)
		assert.Equal(t, tc.want, got, "ParseRole(%q)", tc.in)
	}

	_, err := booking.ParseRole("superuser")
	assert.Error(t, err)
	_, err = booking.ParseRole("")
	assert.Error(t, err)
}
