package bookingService

import (
	"VoiceBooking/internal/api/bookings"
	bookingRepository "VoiceBooking/internal/api/bookings/repository"
	"VoiceBooking/internal/entity"
	contextPkg "VoiceBooking/pkg/context"
	"VoiceBooking/pkg/notify"
	"VoiceBooking/pkg/queue"
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	confirmationLayout = "Mon Jan 02 03:04 PM"
	notifyDedupTTL     = 7 * 24 * time.Hour
)

func (s *bookingService) MakeBooking(ctx context.Context, payload queue.BookingPayload) (bookings.BookingResult, error) {
	requestID := contextPkg.GetRequestID(ctx)
	desired := s.desiredStart(ctx, payload.Slots.When)

	repo, err := s.bookingRepo.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return bookings.BookingResult{}, err
	}
	defer repo.Rollback()

	if err := repo.Bookings.LockCalendar(ctx); err != nil {
		return bookings.BookingResult{}, err
	}

	call, err := repo.Calls.GetCallByID(ctx, payload.CallID)
	if err != nil {
		return bookings.BookingResult{}, err
	}

	existing, err := repo.Bookings.GetConfirmedByCall(ctx, call.ID)
	switch {
	case err == nil:
		// A re-dialled call can be parked in booking behind an earlier confirmation.
		if call.Status != entity.CallStatusCompleted {
			if err := repo.Calls.FinishCall(ctx, call.ID, entity.CallStatusCompleted); err != nil {
				return bookings.BookingResult{}, err
			}
		}
		if err := repo.Commit(); err != nil {
			return bookings.BookingResult{}, err
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
			"booking_id": existing.ID,
		}).Info("Booking already confirmed for call")
		return bookings.BookingResult{Outcome: bookings.OutcomeExisting, Booking: existing}, nil
	case !errors.Is(err, bookings.ErrBookingNotFound):
		return bookings.BookingResult{}, err
	}

	if call.Status == entity.CallStatusFailed || call.Status == entity.CallStatusCompleted {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
			"status":     call.Status,
		}).Info("Call already finished, skipping booking")
		return bookings.BookingResult{Outcome: bookings.OutcomeFinished}, nil
	}

	slot, found, err := Allocate(ctx, desired, s.config.SlotDuration, s.config.ProbeLimit, availability(repo.Bookings))
	if err != nil {
		return bookings.BookingResult{}, err
	}

	if !found {
		failed, err := s.recordFailure(ctx, repo, call.ID, payload.Slots, bookings.ReasonNoSlots)
		if err != nil {
			return bookings.BookingResult{}, err
		}
		if err := repo.Commit(); err != nil {
			return bookings.BookingResult{}, err
		}

		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    call.ID,
			"desired":    desired,
			"probes":     s.config.ProbeLimit,
		}).Warn("No free slot found")
		return bookings.BookingResult{Outcome: bookings.OutcomeNoSlots, Booking: failed}, nil
	}

	booking, err := s.newBooking(call.ID, entity.BookingStatusConfirmed, map[string]interface{}{
		"requested": payload.Slots,
	})
	if err != nil {
		return bookings.BookingResult{}, err
	}
	booking.StartTime = slot.Start
	booking.EndTime = slot.End

	if err := repo.Bookings.CreateBooking(ctx, booking); err != nil {
		return bookings.BookingResult{}, err
	}
	if err := repo.Calls.FinishCall(ctx, call.ID, entity.CallStatusCompleted); err != nil {
		return bookings.BookingResult{}, err
	}
	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit transaction")
		return bookings.BookingResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"call_id":    call.ID,
		"booking_id": booking.ID,
		"start":      booking.StartTime,
		"end":        booking.EndTime,
		"moved":      !slot.Start.Equal(desired),
	}).Info("Booking confirmed")

	s.deliver(ctx, call, booking, payload.Slots)

	return bookings.BookingResult{Outcome: bookings.OutcomeConfirmed, Booking: booking}, nil
}

func (s *bookingService) MarkExhausted(ctx context.Context, payload queue.BookingPayload, cause error) error {
	requestID := contextPkg.GetRequestID(ctx)

	if !s.config.FailOnExhaustion {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"call_id":    payload.CallID,
		}).Warn("Booking retries exhausted, leaving call parked")
		return nil
	}

	repo, err := s.bookingRepo.NewClient(true)
	if err != nil {
		return err
	}
	defer repo.Rollback()

	call, err := repo.Calls.GetCallByID(ctx, payload.CallID)
	if err != nil {
		return err
	}
	if call.Status == entity.CallStatusFailed || call.Status == entity.CallStatusCompleted {
		return nil
	}

	if _, err := repo.Bookings.GetConfirmedByCall(ctx, call.ID); err == nil {
		if err := repo.Calls.FinishCall(ctx, call.ID, entity.CallStatusCompleted); err != nil {
			return err
		}
		return repo.Commit()
	} else if !errors.Is(err, bookings.ErrBookingNotFound) {
		return err
	}

	reason := bookings.ReasonRetriesExhausted
	if cause != nil {
		reason = fmt.Sprintf("%s: %s", reason, cause.Error())
	}
	if _, err := s.recordFailure(ctx, repo, call.ID, payload.Slots, reason); err != nil {
		return err
	}

	if err := repo.Commit(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"call_id":    call.ID,
	}).Warn("Booking retries exhausted, call marked failed")

	return nil
}

// desiredStart falls back to one hour from now when the time expression cannot be read.
func (s *bookingService) desiredStart(ctx context.Context, when string) time.Time {
	now := s.now()
	if when == "" {
		when = bookings.DefaultWhen
	}

	t, ok := s.parser.Parse(when, now)
	if !ok {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"when":       when,
		}).Warn("Could not parse requested time, using fallback")
		return now.Add(time.Hour)
	}

	return t.UTC()
}

func (s *bookingService) recordFailure(
	ctx context.Context,
	repo bookingRepository.Client,
	callID string,
	requested entity.Slots,
	reason string,
) (entity.Booking, error) {
	failed, err := s.newBooking(callID, entity.BookingStatusFailed, map[string]interface{}{
		"reason":    reason,
		"requested": requested,
	})
	if err != nil {
		return entity.Booking{}, err
	}

	if err := repo.Bookings.CreateBooking(ctx, failed); err != nil {
		return entity.Booking{}, err
	}
	if err := repo.Calls.FinishCall(ctx, callID, entity.CallStatusFailed); err != nil {
		return entity.Booking{}, err
	}

	return failed, nil
}

func (s *bookingService) newBooking(callID string, status entity.BookingStatus, metadata map[string]interface{}) (entity.Booking, error) {
	now := s.now()

	id, err := s.utils.NewULIDFromTimestamp(now)
	if err != nil {
		return entity.Booking{}, err
	}

	return entity.Booking{
		ID:        id,
		CallID:    callID,
		Status:    status,
		Provider:  entity.BookingProviderDemo,
		Metadata:  metadata,
		CreatedAt: now,
	}, nil
}

// deliver runs after commit. Nothing here can undo the booking.
func (s *bookingService) deliver(ctx context.Context, call entity.Call, booking entity.Booking, requested entity.Slots) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.dedup != nil {
		first, err := s.dedup.SetOnce(ctx, "notify:"+booking.ID, call.ID, notifyDedupTTL)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"booking_id": booking.ID,
				"error":      err.Error(),
			}).Warn("Notification dedup unavailable, sending anyway")
		} else if !first {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"booking_id": booking.ID,
			}).Info("Booking already notified")
			return
		}
	}

	if s.notifier != nil {
		msg := notify.Message{
			To:      call.FromAddress,
			Subject: "Booking confirmed",
			Body:    ConfirmationMessage(booking),
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"booking_id": booking.ID,
				"error":      err.Error(),
			}).Warn("Failed to notify caller")
		}
	}

	if s.archive != nil {
		receipt, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(bookings.Receipt{
			BookingID:   booking.ID,
			CallID:      call.ID,
			CallerPhone: call.FromAddress,
			Start:       booking.StartTime,
			End:         booking.EndTime,
			Minutes:     int(booking.EndTime.Sub(booking.StartTime).Minutes()),
			Requested:   requested,
			Provider:    booking.Provider,
		})
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"booking_id": booking.ID,
				"error":      err.Error(),
			}).Warn("Failed to encode booking receipt")
			return
		}

		location, err := s.archive.UploadJSON(ctx, ReceiptKey(booking.ID), receipt)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"booking_id": booking.ID,
				"error":      err.Error(),
			}).Warn("Failed to archive booking receipt")
			return
		}

		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"booking_id": booking.ID,
			"location":   location,
		}).Debug("Booking receipt archived")
	}
}

// ConfirmationMessage renders e.g. "Confirmed: Thu Jan 02 03:00 PM UTC for 30 mins."
func ConfirmationMessage(booking entity.Booking) string {
	minutes := int(booking.EndTime.Sub(booking.StartTime).Minutes())
	return fmt.Sprintf("Confirmed: %s UTC for %d mins.", booking.StartTime.UTC().Format(confirmationLayout), minutes)
}

func ReceiptKey(bookingID string) string {
	return "bookings/" + bookingID + ".json"
}
