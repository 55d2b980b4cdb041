package worker

import (
	"VoiceBooking/internal/api/bookings"
	contextPkg "VoiceBooking/pkg/context"
	"VoiceBooking/pkg/queue"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookingService struct {
	payloads    []queue.BookingPayload
	err         error
	exhausted   int
	markCtxErr  error
	markCause   error
	markRequest string
	markErr     error
}

func (f *fakeBookingService) MakeBooking(_ context.Context, p queue.BookingPayload) (bookings.BookingResult, error) {
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return bookings.BookingResult{}, f.err
	}
	return bookings.BookingResult{Outcome: bookings.OutcomeConfirmed}, nil
}

func (f *fakeBookingService) MarkExhausted(ctx context.Context, _ queue.BookingPayload, cause error) error {
	f.exhausted++
	f.markCtxErr = ctx.Err()
	f.markCause = cause
	f.markRequest = contextPkg.GetRequestID(ctx)
	return f.markErr
}

func newTestWorker(bs *fakeBookingService) *Worker {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Worker{log: l, bookingService: bs}
}

func bookingTask(t *testing.T, callID string) *asynq.Task {
	t.Helper()
	task, _, err := queue.NewBookingTask(queue.BookingPayload{CallID: callID}, queue.Options{MaxRetry: 3})
	require.NoError(t, err)
	return task
}

func TestHandleMakeBooking(t *testing.T) {
	bs := &fakeBookingService{}
	w := newTestWorker(bs)

	require.NoError(t, w.HandleMakeBooking(context.Background(), bookingTask(t, "call-1")))
	require.Len(t, bs.payloads, 1)
	assert.Equal(t, "call-1", bs.payloads[0].CallID)
}

func TestHandleMakeBookingMalformed(t *testing.T) {
	bs := &fakeBookingService{}
	w := newTestWorker(bs)

	err := w.HandleMakeBooking(context.Background(), asynq.NewTask(queue.TypeMakeBooking, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, bs.payloads)
}

func TestHandleMakeBookingUnknownCallIsNotRetried(t *testing.T) {
	w := newTestWorker(&fakeBookingService{err: bookings.ErrCallNotFound})

	err := w.HandleMakeBooking(context.Background(), bookingTask(t, "ghost"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleMakeBookingTransientIsRetried(t *testing.T) {
	boom := errors.New("connection reset")
	bs := &fakeBookingService{err: boom}
	w := newTestWorker(bs)

	err := w.HandleMakeBooking(context.Background(), bookingTask(t, "call-1"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 0, bs.exhausted)
}

func TestHandleFinalAttemptMarksExhausted(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("non-final attempt leaves the call alone", func(t *testing.T) {
		bs := &fakeBookingService{err: boom}
		w := newTestWorker(bs)

		err := w.handle(context.Background(), bookingTask(t, "call-1"), attempt{retried: 1, maxRetry: 3, known: true})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, bs.exhausted)
	})

	t.Run("unknown retry position leaves the call alone", func(t *testing.T) {
		bs := &fakeBookingService{err: boom}
		w := newTestWorker(bs)

		err := w.handle(context.Background(), bookingTask(t, "call-1"), attempt{retried: 3, maxRetry: 3})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, bs.exhausted)
	})

	t.Run("final attempt records the failure", func(t *testing.T) {
		bs := &fakeBookingService{err: boom}
		w := newTestWorker(bs)
		ctx := contextPkg.WithRequestID(context.Background(), "booking:call-1")

		err := w.handle(ctx, bookingTask(t, "call-1"), attempt{retried: 3, maxRetry: 3, known: true})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, bs.exhausted)
		assert.ErrorIs(t, bs.markCause, boom)
		assert.Equal(t, "booking:call-1", bs.markRequest)
		assert.NoError(t, bs.markCtxErr)
	})

	t.Run("final attempt after the task deadline fired", func(t *testing.T) {
		bs := &fakeBookingService{err: context.DeadlineExceeded}
		w := newTestWorker(bs)
		ctx, cancel := context.WithCancel(contextPkg.WithRequestID(context.Background(), "booking:call-1"))
		cancel()

		err := w.handle(ctx, bookingTask(t, "call-1"), attempt{retried: 3, maxRetry: 3, known: true})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, bs.exhausted)
		assert.NoError(t, bs.markCtxErr)
		assert.Equal(t, "booking:call-1", bs.markRequest)
	})

	t.Run("mark failure keeps the booking error", func(t *testing.T) {
		bs := &fakeBookingService{err: boom, markErr: errors.New("db down")}
		w := newTestWorker(bs)

		err := w.handle(context.Background(), bookingTask(t, "call-1"), attempt{retried: 3, maxRetry: 3, known: true})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, bs.exhausted)
	})
}

func TestIsFinalAttempt(t *testing.T) {
	assert.False(t, isFinalAttempt(0, 3))
	assert.False(t, isFinalAttempt(2, 3))
	assert.True(t, isFinalAttempt(3, 3))
	assert.True(t, isFinalAttempt(0, 0))
}

func TestBackoffProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("delay stays within the exponential ceiling", prop.ForAll(
		func(n int, maxSeconds int) bool {
			maxDelay := time.Duration(maxSeconds) * time.Second
			d := backoff(n, maxDelay)

			ceiling := maxDelay
			if n < 30 && baseRetryDelay<<uint(n) < maxDelay {
				ceiling = baseRetryDelay << uint(n)
			}
			if ceiling < minRetryDelay {
				ceiling = minRetryDelay
			}
			return d >= minRetryDelay && d <= ceiling
		},
		gen.IntRange(0, 40),
		gen.IntRange(1, 120),
	))

	properties.TestingRun(t)
}
