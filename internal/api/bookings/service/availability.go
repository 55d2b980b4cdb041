package bookingService

import (
	"VoiceBooking/internal/entity"
	"context"
	"time"
)

// IsFree reports whether [start, end) intersects none of the confirmed bookings. Back-to-back
// intervals do not intersect.
func IsFree(existing []entity.Booking, start, end time.Time) bool {
	for _, b := range existing {
		if b.Status != entity.BookingStatusConfirmed {
			continue
		}
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}

type overlapLister interface {
	ListConfirmedOverlapping(ctx context.Context, start, end time.Time) ([]entity.Booking, error)
}

// availability checks intervals against the store. It must be used under the calendar lock.
func availability(store overlapLister) FreeFunc {
	return func(ctx context.Context, start, end time.Time) (bool, error) {
		existing, err := store.ListConfirmedOverlapping(ctx, start, end)
		if err != nil {
			return false, err
		}
		return IsFree(existing, start, end), nil
	}
}
