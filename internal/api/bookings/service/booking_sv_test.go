package bookingService

import (
	"VoiceBooking/internal/api/bookings"
	"VoiceBooking/internal/entity"
	"VoiceBooking/pkg/queue"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

type bookingFixture struct {
	svc      *bookingService
	repo     *memBookingRepo
	notifier *memNotifier
	dedup    *memDedup
	archive  *memArchive
}

func newFixture(parser fixedParser) *bookingFixture {
	f := &bookingFixture{
		repo:     newMemBookingRepo(),
		notifier: &memNotifier{},
		dedup:    &memDedup{},
		archive:  &memArchive{},
	}

	f.svc = &bookingService{
		log:         quietLogger(),
		bookingRepo: f.repo,
		parser:      parser,
		notifier:    f.notifier,
		dedup:       f.dedup,
		archive:     f.archive,
		utils:       &seqIDs{},
		config: bookings.Config{
			SlotDuration:     30 * time.Minute,
			ProbeLimit:       6,
			FailOnExhaustion: true,
		},
		now: func() time.Time { return testNow },
	}

	return f
}

func defaultParser() fixedParser {
	return fixedParser{"tomorrow 3pm": calendarStart}
}

func payload(callID, service, when string) queue.BookingPayload {
	return queue.BookingPayload{CallID: callID, Slots: entity.Slots{Service: service, When: when}}
}

func TestMakeBookingConfirms(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)

	assert.Equal(t, bookings.OutcomeConfirmed, res.Outcome)
	assert.Equal(t, calendarStart, res.Booking.StartTime)
	assert.Equal(t, calendarStart.Add(30*time.Minute), res.Booking.EndTime)
	assert.Equal(t, entity.BookingStatusConfirmed, res.Booking.Status)
	assert.Equal(t, entity.BookingProviderDemo, res.Booking.Provider)

	call := f.repo.call("call-1")
	assert.Equal(t, entity.CallStatusCompleted, call.Status)
	assert.Equal(t, entity.StageDone, call.Stage)

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "+15550001", f.notifier.sent[0].To)
	assert.Equal(t, "Confirmed: Fri Jan 03 03:00 PM UTC for 30 mins.", f.notifier.sent[0].Body)

	raw, ok := f.archive.objects[ReceiptKey(res.Booking.ID)]
	require.True(t, ok)
	var receipt bookings.Receipt
	require.NoError(t, json.Unmarshal(raw, &receipt))
	assert.Equal(t, "call-1", receipt.CallID)
	assert.Equal(t, 30, receipt.Minutes)
	assert.Equal(t, "haircut", receipt.Requested.Service)
}

func TestMakeBookingLogsUnencodableReceipt(t *testing.T) {
	// Years past 9999 have no RFC 3339 form.
	farFuture := time.Date(10000, 1, 3, 15, 0, 0, 0, time.UTC)
	f := newFixture(fixedParser{"someday": farFuture})
	log, hook := test.NewNullLogger()
	f.svc.log = log
	f.repo.addCall("call-1", "+15550001")

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "someday"))
	require.NoError(t, err)
	assert.Equal(t, bookings.OutcomeConfirmed, res.Outcome)
	assert.Empty(t, f.archive.objects)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to encode booking receipt" {
			warned = true
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			assert.Equal(t, res.Booking.ID, entry.Data["booking_id"])
		}
	}
	assert.True(t, warned)
}

func TestMakeBookingTimeFallbacks(t *testing.T) {
	t.Run("empty when uses default expression", func(t *testing.T) {
		f := newFixture(defaultParser())
		f.repo.addCall("call-1", "+15550001")

		res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "demo", ""))
		require.NoError(t, err)
		assert.Equal(t, calendarStart, res.Booking.StartTime)
	})

	t.Run("unparseable when falls back to an hour from now", func(t *testing.T) {
		f := newFixture(defaultParser())
		f.repo.addCall("call-1", "+15550001")

		res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "demo", "whenever"))
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(time.Hour), res.Booking.StartTime)
	})
}

func TestMakeBookingMovesPastConflict(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	f.repo.addConfirmed("other", calendarStart.Add(-10*time.Minute), 30*time.Minute)

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)
	assert.Equal(t, calendarStart.Add(30*time.Minute), res.Booking.StartTime)
}

func TestMakeBookingExhaustion(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	for i := 0; i < 7; i++ {
		f.repo.addConfirmed(fmt.Sprintf("busy-%d", i), calendarStart.Add(time.Duration(i)*30*time.Minute), 30*time.Minute)
	}

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)

	assert.Equal(t, bookings.OutcomeNoSlots, res.Outcome)
	assert.Equal(t, entity.BookingStatusFailed, res.Booking.Status)
	assert.Equal(t, bookings.ReasonNoSlots, res.Booking.Metadata["reason"])
	assert.Equal(t, entity.Slots{Service: "haircut", When: "tomorrow 3pm"}, res.Booking.Metadata["requested"])

	call := f.repo.call("call-1")
	assert.Equal(t, entity.CallStatusFailed, call.Status)
	assert.Equal(t, entity.StageDone, call.Stage)
	assert.Equal(t, 0, f.notifier.count())
	assert.Len(t, f.repo.confirmed(), 7)
}

func TestMakeBookingLastProbeWins(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	for i := 0; i < 6; i++ {
		f.repo.addConfirmed(fmt.Sprintf("busy-%d", i), calendarStart.Add(time.Duration(i)*30*time.Minute), 30*time.Minute)
	}

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)
	assert.Equal(t, bookings.OutcomeConfirmed, res.Outcome)
	assert.Equal(t, calendarStart.Add(3*time.Hour), res.Booking.StartTime)
}

func TestMakeBookingIsIdempotent(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	p := payload("call-1", "haircut", "tomorrow 3pm")

	first, err := f.svc.MakeBooking(context.Background(), p)
	require.NoError(t, err)
	second, err := f.svc.MakeBooking(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, bookings.OutcomeExisting, second.Outcome)
	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Len(t, f.repo.confirmed(), 1)
	assert.Equal(t, 1, f.notifier.count())
}

func TestMakeBookingCompletesCallParkedBehindExistingBooking(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	f.repo.addConfirmed("call-1", calendarStart, 30*time.Minute)

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)
	assert.Equal(t, bookings.OutcomeExisting, res.Outcome)

	call := f.repo.call("call-1")
	assert.Equal(t, entity.CallStatusCompleted, call.Status)
	assert.Equal(t, entity.StageDone, call.Stage)
	assert.Len(t, f.repo.confirmed(), 1)
	assert.Equal(t, 0, f.notifier.count())
}

func TestMakeBookingAfterNoSlotsDoesNotRetryAllocation(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	for i := 0; i < 7; i++ {
		f.repo.addConfirmed(fmt.Sprintf("busy-%d", i), calendarStart.Add(time.Duration(i)*30*time.Minute), 30*time.Minute)
	}
	p := payload("call-1", "haircut", "tomorrow 3pm")

	_, err := f.svc.MakeBooking(context.Background(), p)
	require.NoError(t, err)

	res, err := f.svc.MakeBooking(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, bookings.OutcomeFinished, res.Outcome)
	assert.Len(t, f.repo.all(), 8)
}

func TestMakeBookingSwallowsDeliveryFailures(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	f.notifier.err = errors.New("sms down")
	f.archive.err = errors.New("s3 down")

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)
	assert.Equal(t, bookings.OutcomeConfirmed, res.Outcome)
	assert.Equal(t, entity.CallStatusCompleted, f.repo.call("call-1").Status)
}

func TestMakeBookingSkipsAlreadyNotified(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	_, err := f.dedup.SetOnce(context.Background(), "notify:bk-0001", "call-1", time.Hour)
	require.NoError(t, err)

	res, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.NoError(t, err)
	assert.Equal(t, "bk-0001", res.Booking.ID)
	assert.Equal(t, 0, f.notifier.count())
}

func TestMakeBookingStoreFailureRollsBack(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-1", "+15550001")
	f.repo.listErr = errors.New("connection reset")

	_, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
	require.Error(t, err)

	assert.Empty(t, f.repo.all())
	assert.Equal(t, entity.CallStatusBooking, f.repo.call("call-1").Status)
	assert.Equal(t, 0, f.notifier.count())
}

func TestMakeBookingUnknownCall(t *testing.T) {
	f := newFixture(defaultParser())

	_, err := f.svc.MakeBooking(context.Background(), payload("ghost", "haircut", "tomorrow 3pm"))
	assert.ErrorIs(t, err, bookings.ErrCallNotFound)
}

func TestConcurrentBookingsDoNotOverlap(t *testing.T) {
	f := newFixture(defaultParser())
	f.repo.addCall("call-a", "+15550001")
	f.repo.addCall("call-b", "+15550002")

	var wg sync.WaitGroup
	results := make([]bookings.BookingResult, 2)
	for i, id := range []string{"call-a", "call-b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			res, err := f.svc.MakeBooking(context.Background(), payload(id, "haircut", "tomorrow 3pm"))
			assert.NoError(t, err)
			results[i] = res
		}(i, id)
	}
	wg.Wait()

	confirmed := f.repo.confirmed()
	require.Len(t, confirmed, 2)
	assert.Equal(t, calendarStart, confirmed[0].StartTime)
	assert.Equal(t, calendarStart.Add(30*time.Minute), confirmed[1].StartTime)
	assert.False(t, confirmed[0].Overlaps(confirmed[1].StartTime, confirmed[1].EndTime))
}

func TestMarkExhausted(t *testing.T) {
	cause := errors.New("connection reset")

	t.Run("fails the call", func(t *testing.T) {
		f := newFixture(defaultParser())
		f.repo.addCall("call-1", "+15550001")

		require.NoError(t, f.svc.MarkExhausted(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"), cause))

		all := f.repo.all()
		require.Len(t, all, 1)
		assert.Equal(t, entity.BookingStatusFailed, all[0].Status)
		assert.Equal(t, "retries exhausted: connection reset", all[0].Metadata["reason"])
		assert.Equal(t, entity.CallStatusFailed, f.repo.call("call-1").Status)
	})

	t.Run("leaves call parked when disabled", func(t *testing.T) {
		f := newFixture(defaultParser())
		f.svc.config.FailOnExhaustion = false
		f.repo.addCall("call-1", "+15550001")

		require.NoError(t, f.svc.MarkExhausted(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"), cause))
		assert.Empty(t, f.repo.all())
		assert.Equal(t, entity.CallStatusBooking, f.repo.call("call-1").Status)
	})

	t.Run("keeps a confirmed booking", func(t *testing.T) {
		f := newFixture(defaultParser())
		f.repo.addCall("call-1", "+15550001")
		_, err := f.svc.MakeBooking(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"))
		require.NoError(t, err)

		require.NoError(t, f.svc.MarkExhausted(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"), cause))
		assert.Len(t, f.repo.all(), 1)
		assert.Equal(t, entity.CallStatusCompleted, f.repo.call("call-1").Status)
	})

	t.Run("completes a call parked behind a confirmed booking", func(t *testing.T) {
		f := newFixture(defaultParser())
		f.repo.addCall("call-1", "+15550001")
		f.repo.addConfirmed("call-1", calendarStart, 30*time.Minute)

		require.NoError(t, f.svc.MarkExhausted(context.Background(), payload("call-1", "haircut", "tomorrow 3pm"), cause))
		assert.Len(t, f.repo.all(), 1)
		assert.Equal(t, entity.CallStatusCompleted, f.repo.call("call-1").Status)
	})
}

func TestConfirmedBookingsAreDisjoint(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("confirmed bookings never overlap", prop.ForAll(
		func(offsets []int) bool {
			parser := fixedParser{}
			f := newFixture(parser)

			for i, offset := range offsets {
				id := fmt.Sprintf("call-%d", i)
				when := fmt.Sprintf("slot %d", i)
				parser[when] = calendarStart.Add(time.Duration(offset) * time.Minute)
				f.repo.addCall(id, "+15550001")

				if _, err := f.svc.MakeBooking(context.Background(), payload(id, "demo", when)); err != nil {
					return false
				}
			}

			confirmed := f.repo.confirmed()
			for i := range confirmed {
				for j := i + 1; j < len(confirmed); j++ {
					if confirmed[i].Overlaps(confirmed[j].StartTime, confirmed[j].EndTime) {
						return false
					}
				}
			}
			return len(f.repo.all()) == len(offsets)
		},
		gen.SliceOf(gen.IntRange(0, 240)),
	))

	properties.TestingRun(t)
}
