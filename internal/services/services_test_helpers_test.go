package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/database/testutil"
	"github.com/tripbill/tripbill/internal/models"
	"github.com/tripbill/tripbill/internal/permissions"
)

// testClock is a mutable clock shared by every service in a test fixture.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	db          *gorm.DB
	clock       *testClock
	trips       *TripService
	invitations *InvitationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

	access, err := permissions.NewTripAccess(db, permissions.WithClock(clock.Now))
	require.NoError(t, err)

	trips, err := NewTripService(db, access, WithTripClock(clock.Now))
	require.NoError(t, err)

	invitations, err := NewInvitationService(db, access,
		WithInvitationClock(clock.Now),
		WithInvitationBaseURL("https://trips.example.com/"),
		WithInvitationQRSize(128),
	)
	require.NoError(t, err)

	return &fixture{db: db, clock: clock, trips: trips, invitations: invitations}
}

// date returns the calendar date offset days from the fixture's current day.
func (f *fixture) date(days int) time.Time {
	y, m, d := f.clock.now.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) user(t *testing.T, username string) models.User {
	t.Helper()
	return testutil.MustCreateUser(t, f.db, username)
}

func (f *fixture) createTrip(t *testing.T, creatorID string, startIn, endIn int) *TripView {
	t.Helper()
	trip, err := f.trips.Create(context.Background(), CreateTripInput{
		CreatorID: creatorID,
		Name:      "Lisbon",
		StartDate: f.date(startIn),
		EndDate:   f.date(endIn),
	})
	require.NoError(t, err)
	return trip
}

// addMember joins userID to the trip through a fresh invitation.
func (f *fixture) addMember(t *testing.T, inviterID, tripID, userID string, role models.TripRole) {
	t.Helper()
	invitation, err := f.invitations.Create(context.Background(), inviterID, tripID, CreateInvitationInput{RoleToAssign: &role})
	require.NoError(t, err)
	_, err = f.invitations.Redeem(context.Background(), userID, invitation.InviteToken)
	require.NoError(t, err)
}

func (f *fixture) storedTrip(t *testing.T, tripID string) models.Trip {
	t.Helper()
	var trip models.Trip
	require.NoError(t, f.db.Where("id = ?", tripID).Take(&trip).Error)
	return trip
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

var errInjected = errors.New("injected write failure")

// failWrites makes every create and update against table fail until the
// returned func is called.
func failWrites(t *testing.T, db *gorm.DB, table string) (restore func()) {
	t.Helper()

	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errInjected)
		}
	}
	createName := "test:fail_create_" + table
	updateName := "test:fail_update_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(createName, fail))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(updateName, fail))

	return func() {
		require.NoError(t, db.Callback().Create().Remove(createName))
		require.NoError(t, db.Callback().Update().Remove(updateName))
	}
}

// countUpdates counts successful update statements against table.
func countUpdates(t *testing.T, db *gorm.DB, table string) *int {
	t.Helper()

	var count int
	err := db.Callback().Update().After("gorm:update").Register("test:count_update_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table && tx.Error == nil {
			count++
		}
	})
	require.NoError(t, err)
	return &count
}
