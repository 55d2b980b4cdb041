package callService

import (
	"VoiceBooking/internal/api/calls"
	callRepository "VoiceBooking/internal/api/calls/repository"
	"VoiceBooking/pkg/queue"
	"VoiceBooking/pkg/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type ICallService interface {
	StartCall(ctx context.Context, req calls.StartCallRequest) (*calls.DialogResponse, error)
	HandleTurn(ctx context.Context, req calls.TurnRequest) (*calls.DialogResponse, error)
	HandleIntent(ctx context.Context, req calls.IntentRequest) (*calls.IntentResponse, error)
}

type callService struct {
	log      *logrus.Logger
	callRepo callRepository.Repository
	queue    queue.IQueue
	utils    utils.IUtils
	config   calls.Config
	now      func() time.Time
}

func NewCallService(
	log *logrus.Logger,
	callRepo callRepository.Repository,
	queue queue.IQueue,
	utils utils.IUtils,
	config calls.Config,
) ICallService {
	if config.CallStartMode == "" {
		config.CallStartMode = calls.CallStartPreserve
	}

	return &callService{
		log:      log,
		callRepo: callRepo,
		queue:    queue,
		utils:    utils,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}
