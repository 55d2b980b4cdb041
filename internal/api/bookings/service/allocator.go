package bookingService

import (
	"VoiceBooking/internal/api/bookings"
	"context"
	"time"
)

type Slot struct {
	Start time.Time
	End   time.Time
}

type FreeFunc func(ctx context.Context, start, end time.Time) (bool, error)

// Allocate returns the desired slot when it is free, otherwise the first free slot found by stepping
// forward one duration at a time, at most probeLimit times. The bool is false when every candidate
// was taken.
func Allocate(ctx context.Context, desired time.Time, duration time.Duration, probeLimit int, free FreeFunc) (Slot, bool, error) {
	if duration <= 0 {
		return Slot{}, false, bookings.ErrInvalidInterval
	}

	slot := Slot{Start: desired, End: desired.Add(duration)}
	for probe := 0; probe <= probeLimit; probe++ {
		ok, err := free(ctx, slot.Start, slot.End)
		if err != nil {
			return Slot{}, false, err
		}
		if ok {
			return slot, true, nil
		}
		slot = Slot{Start: slot.End, End: slot.End.Add(duration)}
	}

	return Slot{}, false, nil
}
