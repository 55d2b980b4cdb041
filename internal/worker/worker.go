package worker

import (
	"VoiceBooking/internal/api/bookings"
	bookingService "VoiceBooking/internal/api/bookings/service"
	contextPkg "VoiceBooking/pkg/context"
	"VoiceBooking/pkg/queue"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	baseRetryDelay    = time.Second
	minRetryDelay     = 500 * time.Millisecond
	exhaustTimeout    = 10 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultConcurrent = 10
)

type Config struct {
	Concurrency   int
	MaxRetryDelay time.Duration
}

type Worker struct {
	log            *logrus.Logger
	server         *asynq.Server
	mux            *asynq.ServeMux
	bookingService bookingService.IBookingService
}

func New(log *logrus.Logger, redisOpt asynq.RedisConnOpt, bs bookingService.IBookingService, config Config) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrent
	}
	if config.MaxRetryDelay <= 0 {
		config.MaxRetryDelay = DefaultMaxDelay
	}

	w := &Worker{
		log:            log,
		bookingService: bs,
		mux:            asynq.NewServeMux(),
	}

	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.Concurrency,
		Queues: map[string]int{
			queue.QueueBookings: 1,
		},
		RetryDelayFunc: RetryDelay(config.MaxRetryDelay),
		ErrorHandler:   asynq.ErrorHandlerFunc(w.reportError),
		Logger:         log,
	})

	w.mux.HandleFunc(queue.TypeMakeBooking, w.HandleMakeBooking)

	return w
}

// Start runs the worker pool in the background.
func (w *Worker) Start() error {
	w.log.Info("Starting booking worker")
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// attempt is the retry position asynq reports for a running task.
type attempt struct {
	retried  int
	maxRetry int
	known    bool
}

func (a attempt) final() bool {
	return a.known && isFinalAttempt(a.retried, a.maxRetry)
}

func (w *Worker) HandleMakeBooking(ctx context.Context, task *asynq.Task) error {
	if taskID, ok := asynq.GetTaskID(ctx); ok {
		ctx = contextPkg.WithRequestID(ctx, taskID)
	}

	retried, okRetried := asynq.GetRetryCount(ctx)
	maxRetry, okMax := asynq.GetMaxRetry(ctx)

	return w.handle(ctx, task, attempt{retried: retried, maxRetry: maxRetry, known: okRetried && okMax})
}

func (w *Worker) handle(ctx context.Context, task *asynq.Task, at attempt) error {
	payload, err := queue.ParseBookingPayload(task)
	if err != nil {
		w.log.WithFields(logrus.Fields{
			"type":  task.Type(),
			"error": err.Error(),
		}).Error("Dropping malformed booking task")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	res, err := w.bookingService.MakeBooking(ctx, payload)
	if err == nil {
		w.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"call_id":    payload.CallID,
			"outcome":    res.Outcome,
			"booking_id": res.Booking.ID,
		}).Info("Booking task done")
		return nil
	}

	if errors.Is(err, bookings.ErrCallNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if at.final() {
		w.markExhausted(ctx, payload, err)
	}

	return err
}

// markExhausted runs even when the task deadline already fired.
func (w *Worker) markExhausted(ctx context.Context, payload queue.BookingPayload, cause error) {
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exhaustTimeout)
	defer cancel()

	if err := w.bookingService.MarkExhausted(markCtx, payload, cause); err != nil {
		w.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"call_id":    payload.CallID,
			"error":      err.Error(),
		}).Error("Failed to record exhausted booking")
	}
}

func (w *Worker) reportError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	w.log.WithFields(logrus.Fields{
		"type":      task.Type(),
		"retried":   retried,
		"max_retry": maxRetry,
		"error":     err.Error(),
	}).Warn("Booking task failed")
}

func isFinalAttempt(retried, maxRetry int) bool {
	return retried >= maxRetry
}

// RetryDelay is exponential backoff with full jitter, capped at maxDelay.
func RetryDelay(maxDelay time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return backoff(n, maxDelay)
	}
}

func backoff(n int, maxDelay time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}

	ceiling := maxDelay
	if n < 30 {
		if d := baseRetryDelay << uint(n); d > 0 && d < maxDelay {
			ceiling = d
		}
	}

	if ceiling <= minRetryDelay {
		return minRetryDelay
	}
	return minRetryDelay + rand.N(ceiling-minRetryDelay)
}
