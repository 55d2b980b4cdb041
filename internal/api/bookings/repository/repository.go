package bookingRepository

import (
	"VoiceBooking/internal/entity"
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type SQLExecutor interface {
	sqlx.ExtContext
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Bookings: &bookingRepository{q: sqlExecutor, log: r.log},
		Calls:    &callRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type BookingStore interface {
	// LockCalendar serializes allocation on the shared calendar until the transaction ends.
	LockCalendar(ctx context.Context) error
	CreateBooking(ctx context.Context, booking entity.Booking) error
	GetConfirmedByCall(ctx context.Context, callID string) (entity.Booking, error)
	ListConfirmedOverlapping(ctx context.Context, start, end time.Time) ([]entity.Booking, error)
}

type CallStore interface {
	GetCallByID(ctx context.Context, id string) (entity.Call, error)
	// FinishCall moves the call to its terminal stage with the given status.
	FinishCall(ctx context.Context, id string, status entity.CallStatus) error
}

type Client struct {
	Bookings BookingStore
	Calls    CallStore

	Commit   func() error
	Rollback func() error
}

type bookingRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

type callRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
