package callRepository

import (
	"VoiceBooking/internal/entity"
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type SQLExecutor interface {
	sqlx.ExtContext
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
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
		Calls:    &callRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type CallStore interface {
	// UpsertOnStart inserts the call or, for a known external id, applies the start event. With
	// reset set the dialog fields are re-initialised. The bool reports whether a row was inserted.
	UpsertOnStart(ctx context.Context, call entity.Call, reset bool) (entity.Call, bool, error)
	CreateCall(ctx context.Context, call entity.Call) error
	// EnsureCall inserts the call unless one with the same external id exists.
	EnsureCall(ctx context.Context, call entity.Call) error
	GetCallByIDForUpdate(ctx context.Context, id string) (entity.Call, error)
	GetCallByExternalIDForUpdate(ctx context.Context, externalID string) (entity.Call, error)
	UpdateCall(ctx context.Context, call entity.Call) error
	// MarkBooking moves a dialog into booking. It returns false when the call was already booking
	// or finished.
	MarkBooking(ctx context.Context, id string) (bool, error)
}

type Client struct {
	Calls CallStore

	Commit   func() error
	Rollback func() error
}

type callRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
