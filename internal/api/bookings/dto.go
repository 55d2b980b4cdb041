package bookings

import (
	"VoiceBooking/internal/entity"
	"time"
)

const (
	// DefaultWhen is used when the dialog finished without a time expression.
	DefaultWhen         = "tomorrow 3pm"
	DefaultSlotDuration = 30 * time.Minute
	DefaultProbeLimit   = 6

	ReasonNoSlots          = "no slots"
	ReasonRetriesExhausted = "retries exhausted"
)

type Config struct {
	SlotDuration time.Duration
	ProbeLimit   int
	// FailOnExhaustion closes the call as failed once the booking task runs out of retries.
	FailOnExhaustion bool
}

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeExisting  Outcome = "existing"
	OutcomeNoSlots   Outcome = "no_slots"
	OutcomeFinished  Outcome = "finished"
)

// BookingResult describes what a booking task run did.
type BookingResult struct {
	Outcome Outcome
	Booking entity.Booking
}

// Receipt is the archived copy of a confirmed booking.
type Receipt struct {
	BookingID   string       `json:"booking_id"`
	CallID      string       `json:"call_id"`
	CallerPhone string       `json:"caller_phone"`
	Start       time.Time    `json:"start"`
	End         time.Time    `json:"end"`
	Minutes     int          `json:"minutes"`
	Requested   entity.Slots `json:"requested"`
	Provider    string       `json:"provider"`
}
