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
	"github.com/sirupsen/logrus"
)

type CallDB struct {
	ID            sql.NullString `db:"id"`
	ExternalID    sql.NullString `db:"external_id"`
	FromAddress   sql.NullString `db:"from_address"`
	ToAddress     sql.NullString `db:"to_address"`
	Status        sql.NullString `db:"status"`
	Stage         sql.NullString `db:"stage"`
	Slots         sql.NullString `db:"slots"`
	LastUtterance sql.NullString `db:"last_utterance"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *callRepository) GetCallByID(ctx context.Context, id string) (entity.Call, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var callDB CallDB

	query, args, err := sqlx.Named(queryGetCallByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetCallByID named query preparation err")
		return entity.Call{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&callDB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"call_id":    id,
			}).Warn("GetCallByID call not found")
			return entity.Call{}, bookings.ErrCallNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetCallByID execution err")
		return entity.Call{}, err
	}

	return r.makeCall(requestID, callDB), nil
}

func (r *callRepository) makeCall(requestID string, callDB CallDB) entity.Call {
	var slots entity.Slots
	if callDB.Slots.Valid && callDB.Slots.String != "" {
		if err := json.Unmarshal([]byte(callDB.Slots.String), &slots); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"call_id":    callDB.ID.String,
				"error":      err.Error(),
			}).Warn("Discarding unreadable call slots")
		}
	}

	return entity.Call{
		ID:            callDB.ID.String,
		ExternalID:    callDB.ExternalID.String,
		FromAddress:   callDB.FromAddress.String,
		ToAddress:     callDB.ToAddress.String,
		Status:        entity.CallStatus(callDB.Status.String),
		Stage:         entity.DialogStage(callDB.Stage.String),
		Slots:         slots,
		LastUtterance: callDB.LastUtterance.String,
		CreatedAt:     callDB.CreatedAt,
		UpdatedAt:     callDB.UpdatedAt,
	}
}

func (r *callRepository) FinishCall(ctx context.Context, id string, status entity.CallStatus) error {
	requestID := contextPkg.GetRequestID(ctx)

	query, args, err := sqlx.Named(queryFinishCall, map[string]interface{}{
		"id":         id,
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("FinishCall named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("FinishCall execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return bookings.ErrCallNotFound
	}

	return nil
}
