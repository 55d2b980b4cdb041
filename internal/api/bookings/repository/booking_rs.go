package bookingRepository

import (
	"VoiceBooking/internal/api/bookings"
	"VoiceBooking/internal/entity"
	contextPkg "VoiceBooking/pkg/context"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

type BookingDB struct {
	ID        sql.NullString `db:"id"`
	CallID    sql.NullString `db:"call_id"`
	StartTS   sql.NullTime   `db:"start_ts"`
	EndTS     sql.NullTime   `db:"end_ts"`
	Status    sql.NullString `db:"status"`
	Provider  sql.NullString `db:"provider"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *bookingRepository) LockCalendar(ctx context.Context) error {
	query, args, err := sqlx.Named(queryLockCalendar, map[string]interface{}{"key": calendarLockKey})
	if err != nil {
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("LockCalendar execution err")
		return err
	}

	return nil
}

func (r *bookingRepository) CreateBooking(ctx context.Context, booking entity.Booking) error {
	requestID := contextPkg.GetRequestID(ctx)

	metadata, err := json.Marshal(booking.Metadata)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal booking metadata")
		return err
	}

	argsKV := map[string]interface{}{
		"id":         booking.ID,
		"call_id":    booking.CallID,
		"start_ts":   nullTime(booking.StartTime),
		"end_ts":     nullTime(booking.EndTime),
		"status":     string(booking.Status),
		"provider":   booking.Provider,
		"metadata":   string(metadata),
		"created_at": booking.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateBooking, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CreateBooking named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqExclusionViolation:
				r.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"call_id":    booking.CallID,
				}).Warn("CreateBooking overlaps a confirmed booking")
				return bookings.ErrSlotTaken
			case pqUniqueViolation:
				return bookings.ErrAlreadyBooked
			}
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    booking.CallID,
			"error":      err.Error(),
		}).Error("CreateBooking execution err")
		return err
	}

	return nil
}

func (r *bookingRepository) GetConfirmedByCall(ctx context.Context, callID string) (entity.Booking, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var bookingDB BookingDB

	query, args, err := sqlx.Named(queryGetConfirmedByCall, map[string]interface{}{"call_id": callID})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetConfirmedByCall named query preparation err")
		return entity.Booking{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&bookingDB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Booking{}, bookings.ErrBookingNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetConfirmedByCall execution err")
		return entity.Booking{}, err
	}

	return r.makeBooking(bookingDB), nil
}

func (r *bookingRepository) ListConfirmedOverlapping(ctx context.Context, start, end time.Time) ([]entity.Booking, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []BookingDB

	query, args, err := sqlx.Named(queryListConfirmedOverlapping, map[string]interface{}{
		"start_ts": start.UTC(),
		"end_ts":   end.UTC(),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListConfirmedOverlapping named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListConfirmedOverlapping execution err")
		return nil, err
	}

	result := make([]entity.Booking, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.makeBooking(row))
	}

	return result, nil
}

func (r *bookingRepository) makeBooking(bookingDB BookingDB) entity.Booking {
	metadata := map[string]interface{}{}
	if bookingDB.Metadata.Valid && bookingDB.Metadata.String != "" {
		if err := json.Unmarshal([]byte(bookingDB.Metadata.String), &metadata); err != nil {
			r.log.WithFields(logrus.Fields{
				"booking_id": bookingDB.ID.String,
				"error":      err.Error(),
			}).Warn("Discarding unreadable booking metadata")
		}
	}

	return entity.Booking{
		ID:        bookingDB.ID.String,
		CallID:    bookingDB.CallID.String,
		StartTime: bookingDB.StartTS.Time.UTC(),
		EndTime:   bookingDB.EndTS.Time.UTC(),
		Status:    entity.BookingStatus(bookingDB.Status.String),
		Provider:  bookingDB.Provider.String,
		Metadata:  metadata,
		CreatedAt: bookingDB.CreatedAt,
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
