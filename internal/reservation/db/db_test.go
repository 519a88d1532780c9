package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"boxoffice/internal/errs"
	"boxoffice/internal/models"
	"boxoffice/internal/reservation/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.Showing)(nil),
		(*models.TicketType)(nil),
		(*models.Booking)(nil),
		(*models.Ticket)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func seedShowing(t *testing.T, bunDB *bun.DB, numTickets int) (showingID, ticketTypeID string) {
	ctx := context.Background()

	event := models.Event{ID: uuid.NewString(), Name: "Hamlet"}
	_, err := bunDB.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)

	showing := models.Showing{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		Date:       time.Now().Add(7 * 24 * time.Hour),
		NumTickets: numTickets,
	}
	_, err = bunDB.NewInsert().Model(&showing).Exec(ctx)
	require.NoError(t, err)

	ticketType := models.TicketType{
		ID:        uuid.NewString(),
		ShowingID: showing.ID,
		Name:      "Adult",
		Price:     12.50,
	}
	_, err = bunDB.NewInsert().Model(&ticketType).Exec(ctx)
	require.NoError(t, err)

	return showing.ID, ticketType.ID
}

func TestAvailability(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 10)

	// Fresh showing: full capacity.
	available, err := resDB.Availability(ctx, showingID)
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	// A live reservation consumes capacity.
	held := models.Ticket{
		ID:           uuid.NewString(),
		ShowingID:    showingID,
		TicketTypeID: typeID,
		Expiry:       time.Now().Add(15 * time.Minute),
	}
	_, err = bunDB.NewInsert().Model(&held).Exec(ctx)
	require.NoError(t, err)

	// An expired reservation does not.
	expired := models.Ticket{
		ID:           uuid.NewString(),
		ShowingID:    showingID,
		TicketTypeID: typeID,
		Expiry:       time.Now().Add(-time.Minute),
	}
	_, err = bunDB.NewInsert().Model(&expired).Exec(ctx)
	require.NoError(t, err)

	// A booked ticket consumes capacity regardless of its expiry.
	booking := models.Booking{
		ID:          uuid.NewString(),
		Email:       "alice@example.com",
		Name:        "Alice",
		DateCreated: time.Now(),
		BookingRef:  uuid.NewString(),
	}
	_, err = bunDB.NewInsert().Model(&booking).Exec(ctx)
	require.NoError(t, err)
	booked := models.Ticket{
		ID:           uuid.NewString(),
		ShowingID:    showingID,
		TicketTypeID: typeID,
		Expiry:       time.Now().Add(-time.Hour),
		BookingID:    &booking.ID,
	}
	_, err = bunDB.NewInsert().Model(&booked).Exec(ctx)
	require.NoError(t, err)

	available, err = resDB.Availability(ctx, showingID)
	require.NoError(t, err)
	assert.Equal(t, 8, available)
}

func TestAvailability_UnknownShowing(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := resDB.Availability(context.Background(), "non-existent")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReserveTickets_ExactFit(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 10)
	expiry := time.Now().Add(15 * time.Minute)

	ids, err := resDB.ReserveTickets(ctx, showingID, map[string]int{typeID: 10}, expiry)
	require.NoError(t, err)
	assert.Len(t, ids, 10)

	available, err := resDB.Availability(ctx, showingID)
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	// Every returned id is a real unbooked row with the same expiry.
	var tickets []models.Ticket
	err = bunDB.NewSelect().Model(&tickets).Where("id IN (?)", bun.In(ids)).Scan(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 10)
	for _, ticket := range tickets {
		assert.Nil(t, ticket.BookingID)
		assert.False(t, ticket.Paid)
		assert.WithinDuration(t, expiry, ticket.Expiry, time.Second)
	}
}

func TestReserveTickets_OverCapacity(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 10)

	ids, err := resDB.ReserveTickets(ctx, showingID, map[string]int{typeID: 11}, time.Now().Add(15*time.Minute))
	assert.ErrorIs(t, err, errs.ErrCapacity)
	assert.Nil(t, ids)

	// Rejection creates nothing.
	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReserveTickets_LastSeatOnce(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 1)
	expiry := time.Now().Add(15 * time.Minute)

	ids, err := resDB.ReserveTickets(ctx, showingID, map[string]int{typeID: 1}, expiry)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	// Second reservation for the same last seat must fail.
	_, err = resDB.ReserveTickets(ctx, showingID, map[string]int{typeID: 1}, expiry)
	assert.ErrorIs(t, err, errs.ErrCapacity)

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReserveTickets_UnknownShowing(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, typeID := seedShowing(t, bunDB, 10)

	// A nonexistent showing id is a not-found, whatever the ticket types.
	_, err := resDB.ReserveTickets(ctx, "no-such-showing", map[string]int{typeID: 1}, time.Now().Add(15*time.Minute))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReserveTickets_ZeroTotal(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	showingID, typeID := seedShowing(t, bunDB, 10)

	_, err := resDB.ReserveTickets(context.Background(), showingID, map[string]int{typeID: 0}, time.Now().Add(15*time.Minute))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestReserveTickets_NegativeQuantity(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	showingID, typeID := seedShowing(t, bunDB, 10)

	_, err := resDB.ReserveTickets(context.Background(), showingID, map[string]int{typeID: -1}, time.Now().Add(15*time.Minute))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestReserveTickets_ForeignTicketType(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	showingID, _ := seedShowing(t, bunDB, 10)
	otherShowingID, otherTypeID := seedShowing(t, bunDB, 10)

	// A ticket type belonging to another showing is rejected outright.
	_, err := resDB.ReserveTickets(context.Background(), showingID, map[string]int{otherTypeID: 1}, time.Now().Add(15*time.Minute))
	assert.ErrorIs(t, err, errs.ErrValidation)

	available, err := resDB.Availability(context.Background(), otherShowingID)
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestExpiryReleasesCapacity(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 10)

	ids, err := resDB.ReserveTickets(ctx, showingID, map[string]int{typeID: 3}, time.Now().Add(15*time.Minute))
	require.NoError(t, err)

	available, err := resDB.Availability(ctx, showingID)
	require.NoError(t, err)
	assert.Equal(t, 7, available)

	// Simulate the hold lapsing.
	_, err = bunDB.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("expiry = ?", time.Now().Add(-time.Minute)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	require.NoError(t, err)

	available, err = resDB.Availability(ctx, showingID)
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestExpiredCartTicketsAndDelete(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 10)
	now := time.Now()

	live := models.Ticket{ID: uuid.NewString(), ShowingID: showingID, TicketTypeID: typeID, Expiry: now.Add(10 * time.Minute)}
	stale := models.Ticket{ID: uuid.NewString(), ShowingID: showingID, TicketTypeID: typeID, Expiry: now.Add(-time.Minute)}
	for _, ticket := range []models.Ticket{live, stale} {
		ticket := ticket
		_, err := bunDB.NewInsert().Model(&ticket).Exec(ctx)
		require.NoError(t, err)
	}

	expired, err := resDB.ExpiredCartTickets(ctx, []string{live.ID, stale.ID, "vanished"}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, expired)

	require.NoError(t, resDB.DeleteTickets(ctx, expired))

	count, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Empty input is a no-op.
	expired, err = resDB.ExpiredCartTickets(ctx, nil, now)
	require.NoError(t, err)
	assert.Empty(t, expired)
	require.NoError(t, resDB.DeleteTickets(ctx, nil))
}

func TestCartTickets(t *testing.T) {
	resDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	showingID, typeID := seedShowing(t, bunDB, 10)

	ids, err := resDB.ReserveTickets(ctx, showingID, map[string]int{typeID: 2}, time.Now().Add(15*time.Minute))
	require.NoError(t, err)

	tickets, err := resDB.CartTickets(ctx, ids)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		require.NotNil(t, ticket.TicketType)
		assert.Equal(t, "Adult", ticket.TicketType.Name)
		require.NotNil(t, ticket.Showing)
		assert.Equal(t, showingID, ticket.Showing.ID)
	}

	tickets, err = resDB.CartTickets(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
