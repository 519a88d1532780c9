package reservation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"boxoffice/internal/cart"
	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
	"boxoffice/internal/reservation"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) Availability(ctx context.Context, showingID string) (int, error) {
	args := m.Called(ctx, showingID)
	return args.Int(0), args.Error(1)
}

func (m *MockDBLayer) ReserveTickets(ctx context.Context, showingID string, quantities map[string]int, expiry time.Time) ([]string, error) {
	args := m.Called(ctx, showingID, quantities, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDBLayer) ExpiredCartTickets(ctx context.Context, ticketIDs []string, now time.Time) ([]string, error) {
	args := m.Called(ctx, ticketIDs, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDBLayer) DeleteTickets(ctx context.Context, ticketIDs []string) error {
	args := m.Called(ctx, ticketIDs)
	return args.Error(0)
}

func (m *MockDBLayer) CartTickets(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	args := m.Called(ctx, ticketIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) LockShowing(ctx context.Context, showingID string) (string, error) {
	args := m.Called(ctx, showingID)
	return args.String(0), args.Error(1)
}

func (m *MockLocker) UnlockShowing(ctx context.Context, showingID, token string) error {
	args := m.Called(ctx, showingID, token)
	return args.Error(0)
}

func newTestService(db *MockDBLayer, lock *MockLocker) *reservation.Service {
	return reservation.NewService(db, lock, logger.NewLogger(), 15*time.Minute)
}

func TestReserve_LocksAroundReservation(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	service := newTestService(db, lock)
	ctx := context.Background()

	lock.On("LockShowing", ctx, "showing-1").Return("lock-token", nil)
	lock.On("UnlockShowing", ctx, "showing-1", "lock-token").Return(nil)
	db.On("ReserveTickets", ctx, "showing-1", map[string]int{"tt-1": 2}, mock.AnythingOfType("time.Time")).
		Return([]string{"t-1", "t-2"}, nil)

	ids, err := service.Reserve(ctx, "showing-1", map[string]int{"tt-1": 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-2"}, ids)

	lock.AssertExpectations(t)
	db.AssertExpectations(t)
}

func TestReserve_HoldDurationStampsExpiry(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	service := newTestService(db, lock)
	ctx := context.Background()

	lock.On("LockShowing", ctx, "showing-1").Return("lock-token", nil)
	lock.On("UnlockShowing", ctx, "showing-1", "lock-token").Return(nil)

	var stamped time.Time
	db.On("ReserveTickets", ctx, "showing-1", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			stamped = args.Get(3).(time.Time)
		}).
		Return([]string{"t-1"}, nil)

	_, err := service.Reserve(ctx, "showing-1", map[string]int{"tt-1": 1})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), stamped, 2*time.Second)
}

func TestReserve_UnlocksOnCapacityError(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	service := newTestService(db, lock)
	ctx := context.Background()

	lock.On("LockShowing", ctx, "showing-1").Return("lock-token", nil)
	lock.On("UnlockShowing", ctx, "showing-1", "lock-token").Return(nil)
	db.On("ReserveTickets", ctx, "showing-1", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(nil, errs.ErrCapacity)

	_, err := service.Reserve(ctx, "showing-1", map[string]int{"tt-1": 5})
	assert.ErrorIs(t, err, errs.ErrCapacity)

	lock.AssertCalled(t, "UnlockShowing", ctx, "showing-1", "lock-token")
}

func TestReserve_LockFailure(t *testing.T) {
	db := new(MockDBLayer)
	lock := new(MockLocker)
	service := newTestService(db, lock)
	ctx := context.Background()

	lock.On("LockShowing", ctx, "showing-1").Return("", context.DeadlineExceeded)

	_, err := service.Reserve(ctx, "showing-1", map[string]int{"tt-1": 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	db.AssertNotCalled(t, "ReserveTickets", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_EmptyCart(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))

	expired, err := service.Sweep(context.Background(), cart.New("visitor-1", nil))
	require.NoError(t, err)
	assert.Empty(t, expired)

	db.AssertNotCalled(t, "ExpiredCartTickets", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_CleanCart(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))
	ctx := context.Background()

	db.On("ExpiredCartTickets", ctx, []string{"t-1", "t-2"}, mock.AnythingOfType("time.Time")).
		Return([]string{}, nil)

	expired, err := service.Sweep(ctx, cart.New("visitor-1", []string{"t-1", "t-2"}))
	require.NoError(t, err)
	assert.Empty(t, expired)

	db.AssertNotCalled(t, "DeleteTickets", mock.Anything, mock.Anything)
}

func TestSweep_ReapsExpiredTickets(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))
	ctx := context.Background()

	db.On("ExpiredCartTickets", ctx, []string{"t-1", "t-2"}, mock.AnythingOfType("time.Time")).
		Return([]string{"t-2"}, nil)
	db.On("DeleteTickets", ctx, []string{"t-2"}).Return(nil)

	expired, err := service.Sweep(ctx, cart.New("visitor-1", []string{"t-1", "t-2"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"t-2"}, expired)

	db.AssertExpectations(t)
}

func TestSweep_DeleteFailure(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))
	ctx := context.Background()

	dbErr := errors.New("connection reset")
	db.On("ExpiredCartTickets", ctx, mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]string{"t-1"}, nil)
	db.On("DeleteTickets", ctx, []string{"t-1"}).Return(dbErr)

	_, err := service.Sweep(ctx, cart.New("visitor-1", []string{"t-1"}))
	assert.ErrorIs(t, err, dbErr)
}

func TestRelease(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))
	ctx := context.Background()

	db.On("DeleteTickets", ctx, []string{"t-2"}).Return(nil)

	err := service.Release(ctx, cart.New("visitor-1", []string{"t-1", "t-2"}), "t-2")
	require.NoError(t, err)

	db.AssertExpectations(t)
}

func TestRelease_NotInCart(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))

	// A ticket id outside the cart cannot be released through it.
	err := service.Release(context.Background(), cart.New("visitor-1", []string{"t-1"}), "t-other")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	db.AssertNotCalled(t, "DeleteTickets", mock.Anything, mock.Anything)
}

func TestCartTickets_PreservesCartOrder(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))
	ctx := context.Background()

	// The db layer returns rows in storage order; the service restores
	// the order the visitor reserved them in.
	db.On("CartTickets", ctx, []string{"t-3", "t-1", "t-2"}).Return([]models.Ticket{
		{ID: "t-1"},
		{ID: "t-2"},
		{ID: "t-3"},
	}, nil)

	tickets, err := service.CartTickets(ctx, cart.New("visitor-1", []string{"t-3", "t-1", "t-2"}))
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, "t-3", tickets[0].ID)
	assert.Equal(t, "t-1", tickets[1].ID)
	assert.Equal(t, "t-2", tickets[2].ID)
}

func TestCartTickets_DropsVanishedIDs(t *testing.T) {
	db := new(MockDBLayer)
	service := newTestService(db, new(MockLocker))
	ctx := context.Background()

	db.On("CartTickets", ctx, []string{"t-1", "t-gone"}).Return([]models.Ticket{
		{ID: "t-1"},
	}, nil)

	tickets, err := service.CartTickets(ctx, cart.New("visitor-1", []string{"t-1", "t-gone"}))
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "t-1", tickets[0].ID)
}
