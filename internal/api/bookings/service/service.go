package bookingService

import (
	"VoiceBooking/internal/api/bookings"
	bookingRepository "VoiceBooking/internal/api/bookings/repository"
	"VoiceBooking/pkg/notify"
	"VoiceBooking/pkg/queue"
	"VoiceBooking/pkg/redis"
	"VoiceBooking/pkg/s3"
	"VoiceBooking/pkg/timeparse"
	"VoiceBooking/pkg/utils"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type IBookingService interface {
	// MakeBooking turns finished dialog slots into a booking. It is safe to run more than once for
	// the same call.
	MakeBooking(ctx context.Context, payload queue.BookingPayload) (bookings.BookingResult, error)
	// MarkExhausted records the final failure of a booking task that ran out of retries.
	MarkExhausted(ctx context.Context, payload queue.BookingPayload, cause error) error
}

type bookingService struct {
	log         *logrus.Logger
	bookingRepo bookingRepository.Repository
	parser      timeparse.IParser
	notifier    notify.INotifier
	dedup       redis.IRedis
	archive     s3.ItfS3
	utils       utils.IUtils
	config      bookings.Config
	now         func() time.Time
}

// NewBookingService wires the booking task. dedup and archive may be nil.
func NewBookingService(
	log *logrus.Logger,
	bookingRepo bookingRepository.Repository,
	parser timeparse.IParser,
	notifier notify.INotifier,
	dedup redis.IRedis,
	archive s3.ItfS3,
	utils utils.IUtils,
	config bookings.Config,
) IBookingService {
	if config.SlotDuration <= 0 {
		config.SlotDuration = bookings.DefaultSlotDuration
	}
	if config.ProbeLimit < 0 {
		config.ProbeLimit = bookings.DefaultProbeLimit
	}

	return &bookingService{
		log:         log,
		bookingRepo: bookingRepo,
		parser:      parser,
		notifier:    notifier,
		dedup:       dedup,
		archive:     archive,
		utils:       utils,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}
