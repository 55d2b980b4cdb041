package callService

import (
	"VoiceBooking/internal/api/calls"
	callRepository "VoiceBooking/internal/api/calls/repository"
	"VoiceBooking/internal/entity"
	contextPkg "VoiceBooking/pkg/context"
	"VoiceBooking/pkg/queue"
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

func (s *callService) StartCall(ctx context.Context, req calls.StartCallRequest) (*calls.DialogResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.callRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}
	defer repo.Rollback()

	fresh, err := s.newCall(req.ExternalID, req.FromAddress, req.ToAddress)
	if err != nil {
		return nil, err
	}

	if req.ExternalID == "" {
		if err := repo.Calls.CreateCall(ctx, fresh); err != nil {
			return nil, err
		}
		if err := repo.Commit(); err != nil {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    fresh.ID,
		}).Warn("Call started without external id")
		return greeting(fresh), nil
	}

	reset := s.config.CallStartMode == calls.CallStartReset
	call, inserted, err := repo.Calls.UpsertOnStart(ctx, fresh, reset)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"external_id": req.ExternalID,
			"error":       err.Error(),
		}).Error("Failed to upsert call")
		return nil, err
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"call_id":     call.ID,
		"external_id": call.ExternalID,
		"inserted":    inserted,
		"mode":        s.config.CallStartMode,
		"stage":       call.Stage,
	}).Info("Call started")

	if inserted || reset || call.Stage == entity.StageStart {
		return greeting(call), nil
	}

	// A repeated start event for a dialog in progress re-asks the current question.
	var t Transition
	if call.IsTerminal() {
		t = Advance(stateOf(call), "")
	} else {
		t = NextPrompt(stateOf(call))
	}

	return &calls.DialogResponse{
		CallID: call.ID,
		Stage:  t.State.Stage,
		Prompt: t.Prompt,
		Listen: t.Listen,
	}, nil
}

func (s *callService) HandleTurn(ctx context.Context, req calls.TurnRequest) (*calls.DialogResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.callRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}
	defer repo.Rollback()

	call, err := s.resolveCall(ctx, repo, req.ExternalID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"external_id": req.ExternalID,
			"error":       err.Error(),
		}).Error("Failed to resolve call")
		return nil, err
	}

	utterance := strings.TrimSpace(req.Utterance)
	t := Advance(stateOf(call), utterance)

	// Terminal calls keep their state; the transcript is diagnostic only.
	if !call.IsTerminal() {
		call.Stage = t.State.Stage
		call.Slots = t.State.Slots
	}
	call.LastUtterance = utterance

	if err := repo.Calls.UpdateCall(ctx, call); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
			"error":      err.Error(),
		}).Error("Failed to update call")
		return nil, err
	}

	enqueue := false
	if t.EnqueueBooking {
		enqueue, err = repo.Calls.MarkBooking(ctx, call.ID)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"call_id":    call.ID,
				"error":      err.Error(),
			}).Error("Failed to mark call as booking")
			return nil, err
		}
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"call_id":    call.ID,
		"stage":      call.Stage,
		"enqueue":    enqueue,
	}).Debug("Dialog advanced")

	if enqueue {
		s.enqueueBooking(ctx, call)
	} else if t.EnqueueBooking {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
		}).Warn("Booking already in progress, skipping enqueue")
	}

	return &calls.DialogResponse{
		CallID: call.ID,
		Stage:  call.Stage,
		Prompt: t.Prompt,
		Listen: t.Listen,
	}, nil
}

func (s *callService) HandleIntent(ctx context.Context, req calls.IntentRequest) (*calls.IntentResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.callRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}
	defer repo.Rollback()

	// An unknown call is rejected whatever the intent.
	call, err := repo.Calls.GetCallByIDForUpdate(ctx, req.CallID)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(strings.TrimSpace(req.Intent), "book") {
		return &calls.IntentResponse{OK: true, Message: "ignored"}, nil
	}

	if call.IsTerminal() {
		return &calls.IntentResponse{OK: true, Message: "call already finished"}, nil
	}

	call.Slots = call.Slots.Merge(req.Slots)
	call.Stage = entity.StageConfirming

	if err := repo.Calls.UpdateCall(ctx, call); err != nil {
		return nil, err
	}

	marked, err := repo.Calls.MarkBooking(ctx, call.ID)
	if err != nil {
		return nil, err
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		return nil, err
	}

	if !marked {
		return &calls.IntentResponse{OK: true, Message: "booking already in progress"}, nil
	}

	if err := s.queue.EnqueueBooking(ctx, queue.BookingPayload{CallID: call.ID, Slots: call.Slots}); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
			"error":      err.Error(),
		}).Error("Failed to enqueue booking")
		return nil, calls.ErrEnqueueFailed
	}

	return &calls.IntentResponse{OK: true, Message: "booking started"}, nil
}

// resolveCall locks the call for the rest of the turn. Unknown ids get a fresh session so the dialog
// can continue.
func (s *callService) resolveCall(ctx context.Context, repo callRepository.Client, externalID string) (entity.Call, error) {
	if externalID == "" {
		call, err := s.newCall("", "unknown", "unknown")
		if err != nil {
			return entity.Call{}, err
		}
		if err := repo.Calls.CreateCall(ctx, call); err != nil {
			return entity.Call{}, err
		}
		return call, nil
	}

	call, err := repo.Calls.GetCallByExternalIDForUpdate(ctx, externalID)
	if err == nil {
		return call, nil
	}
	if !errors.Is(err, calls.ErrCallNotFound) {
		return entity.Call{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  contextPkg.GetRequestID(ctx),
		"external_id": externalID,
	}).Warn("Turn for unknown call, synthesizing session")

	synthesized, err := s.newCall(externalID, "unknown", "unknown")
	if err != nil {
		return entity.Call{}, err
	}
	if err := repo.Calls.EnsureCall(ctx, synthesized); err != nil {
		return entity.Call{}, err
	}

	return repo.Calls.GetCallByExternalIDForUpdate(ctx, externalID)
}

func (s *callService) enqueueBooking(ctx context.Context, call entity.Call) {
	err := s.queue.EnqueueBooking(ctx, queue.BookingPayload{CallID: call.ID, Slots: call.Slots})
	if err != nil {
		// The call stays parked in booking; the caller already heard the goodbye.
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"call_id":    call.ID,
			"error":      err.Error(),
		}).Error("Failed to enqueue booking")
	}
}

func (s *callService) newCall(externalID, from, to string) (entity.Call, error) {
	now := s.now()

	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		return entity.Call{}, err
	}

	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	return entity.Call{
		ID:          id,
		ExternalID:  externalID,
		FromAddress: from,
		ToAddress:   to,
		Status:      entity.CallStatusInDialog,
		Stage:       entity.StageStart,
		Slots:       entity.Slots{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func greeting(call entity.Call) *calls.DialogResponse {
	return &calls.DialogResponse{
		CallID: call.ID,
		Stage:  entity.StageStart,
		Prompt: PromptGreeting,
		Listen: true,
	}
}
