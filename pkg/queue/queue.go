package queue

import (
	"VoiceBooking/internal/entity"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypeMakeBooking = "booking:make"
	QueueBookings   = "bookings"
)

type BookingPayload struct {
	CallID string       `json:"call_id"`
	Slots  entity.Slots `json:"slots"`
}

type IQueue interface {
	EnqueueBooking(ctx context.Context, payload BookingPayload) error
	Close() error
}

type Options struct {
	MaxRetry int
	Timeout  time.Duration
}

type asynqQueue struct {
	client *asynq.Client
	opts   Options
}

// RedisOpt reads the connection used by both the task client and the worker.
func RedisOpt() asynq.RedisClientOpt {
	db, _ := strconv.Atoi(os.Getenv("REDIS_QUEUE_DB"))

	return asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDRESS"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

func New(redisOpt asynq.RedisConnOpt, opts Options) IQueue {
	logrus.Info(fmt.Sprintf("Booking queue using max_retry=%d timeout=%s", opts.MaxRetry, opts.Timeout))

	return &asynqQueue{
		client: asynq.NewClient(redisOpt),
		opts:   opts,
	}
}

func NewBookingTask(payload BookingPayload, opts Options) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	task := asynq.NewTask(TypeMakeBooking, b)
	taskOpts := []asynq.Option{
		asynq.Queue(QueueBookings),
		asynq.TaskID(BookingTaskID(payload.CallID)),
		asynq.MaxRetry(opts.MaxRetry),
	}
	if opts.Timeout > 0 {
		taskOpts = append(taskOpts, asynq.Timeout(opts.Timeout))
	}

	return task, taskOpts, nil
}

// BookingTaskID collapses repeated enqueues for the same call while a task is still pending.
func BookingTaskID(callID string) string {
	return "booking:" + callID
}

func ParseBookingPayload(task *asynq.Task) (BookingPayload, error) {
	var p BookingPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return BookingPayload{}, err
	}
	if p.CallID == "" {
		return BookingPayload{}, errors.New("booking payload without call id")
	}
	return p, nil
}

func (q *asynqQueue) EnqueueBooking(ctx context.Context, payload BookingPayload) error {
	task, opts, err := NewBookingTask(payload, q.opts)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logrus.WithField("call_id", payload.CallID).Debug("Booking task already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue booking for call %s: %w", payload.CallID, err)
	}

	logrus.WithFields(logrus.Fields{
		"call_id": payload.CallID,
		"task_id": info.ID,
		"queue":   info.Queue,
	}).Debug("Booking task enqueued")

	return nil
}

func (q *asynqQueue) Close() error {
	return q.client.Close()
}
