package entity

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusFailed    BookingStatus = "failed"
)

const BookingProviderDemo = "demo"

// Booking is one allocation outcome for a call. StartTime and EndTime form a half-open UTC interval and
// are zero for failed bookings that never resolved one.
type Booking struct {
	ID        string                 `json:"id"`
	CallID    string                 `json:"call_id"`
	StartTime time.Time              `json:"start_time"`
	EndTime   time.Time              `json:"end_time"`
	Status    BookingStatus          `json:"status"`
	Provider  string                 `json:"provider"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// Overlaps reports whether b intersects [start, end). Both bounds are strict so back-to-back
// intervals do not overlap.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}
