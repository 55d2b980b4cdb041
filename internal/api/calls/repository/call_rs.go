package callRepository

import (
	"VoiceBooking/internal/api/calls"
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

type upsertedCallDB struct {
	CallDB
	Inserted bool `db:"inserted"`
}

func (r *callRepository) UpsertOnStart(ctx context.Context, call entity.Call, reset bool) (entity.Call, bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV, err := r.callArgs(call)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal call slots")
		return entity.Call{}, false, err
	}

	stmt := queryUpsertCallPreserve
	if reset {
		stmt = queryUpsertCallReset
	}

	query, args, err := sqlx.Named(stmt, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertOnStart named query preparation err")
		return entity.Call{}, false, err
	}
	query = r.q.Rebind(query)

	var row upsertedCallDB
	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"external_id": call.ExternalID,
			"error":       err.Error(),
		}).Error("UpsertOnStart execution err")
		return entity.Call{}, false, err
	}

	return r.makeCall(row.CallDB), row.Inserted, nil
}

func (r *callRepository) CreateCall(ctx context.Context, call entity.Call) error {
	return r.insert(ctx, queryCreateCall, call, "CreateCall")
}

func (r *callRepository) EnsureCall(ctx context.Context, call entity.Call) error {
	return r.insert(ctx, queryEnsureCall, call, "EnsureCall")
}

func (r *callRepository) insert(ctx context.Context, stmt string, call entity.Call, operation string) error {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV, err := r.callArgs(call)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal call slots")
		return err
	}

	query, args, err := sqlx.Named(stmt, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(operation + " named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
			"error":      err.Error(),
		}).Error(operation + " execution err")
		return err
	}

	return nil
}

func (r *callRepository) GetCallByIDForUpdate(ctx context.Context, id string) (entity.Call, error) {
	return r.getOne(ctx, queryGetCallByIDForUpdate, map[string]interface{}{"id": id}, "GetCallByIDForUpdate")
}

func (r *callRepository) GetCallByExternalIDForUpdate(ctx context.Context, externalID string) (entity.Call, error) {
	return r.getOne(ctx, queryGetCallByExternalIDForUpdate, map[string]interface{}{"external_id": externalID}, "GetCallByExternalIDForUpdate")
}

func (r *callRepository) getOne(ctx context.Context, stmt string, argsKV map[string]interface{}, operation string) (entity.Call, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var callDB CallDB

	query, args, err := sqlx.Named(stmt, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(operation + " named query preparation err")
		return entity.Call{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&callDB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"args":       argsKV,
			}).Debug(operation + " call not found")
			return entity.Call{}, calls.ErrCallNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(operation + " execution err")
		return entity.Call{}, err
	}

	return r.makeCall(callDB), nil
}

func (r *callRepository) UpdateCall(ctx context.Context, call entity.Call) error {
	requestID := contextPkg.GetRequestID(ctx)

	slotsJSON, err := json.Marshal(call.Slots)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal call slots")
		return err
	}

	argsKV := map[string]interface{}{
		"id":             call.ID,
		"stage":          string(call.Stage),
		"slots":          string(slotsJSON),
		"last_utterance": call.LastUtterance,
		"updated_at":     time.Now().UTC(),
	}

	query, args, err := sqlx.Named(queryUpdateCall, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateCall named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdateCall execution err")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
		}).Warn("UpdateCall no rows affected")
		return calls.ErrCallNotFound
	}

	return nil
}

func (r *callRepository) MarkBooking(ctx context.Context, id string) (bool, error) {
	requestID := contextPkg.GetRequestID(ctx)

	query, args, err := sqlx.Named(queryMarkCallBooking, map[string]interface{}{
		"id":         id,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkBooking named query preparation err")
		return false, err
	}
	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkBooking execution err")
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (r *callRepository) callArgs(call entity.Call) (map[string]interface{}, error) {
	slotsJSON, err := json.Marshal(call.Slots)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":             call.ID,
		"external_id":    sql.NullString{String: call.ExternalID, Valid: call.ExternalID != ""},
		"from_address":   call.FromAddress,
		"to_address":     call.ToAddress,
		"status":         string(call.Status),
		"stage":          string(call.Stage),
		"slots":          string(slotsJSON),
		"last_utterance": call.LastUtterance,
		"created_at":     call.CreatedAt,
		"updated_at":     call.UpdatedAt,
	}, nil
}

func (r *callRepository) makeCall(callDB CallDB) entity.Call {
	var slots entity.Slots
	if callDB.Slots.Valid && callDB.Slots.String != "" {
		if err := json.Unmarshal([]byte(callDB.Slots.String), &slots); err != nil {
			r.log.WithFields(logrus.Fields{
				"call_id": callDB.ID.String,
				"error":   err.Error(),
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
