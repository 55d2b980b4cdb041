package bookings

import (
	"VoiceBooking/pkg/response"
	"net/http"
)

var (
	ErrBookingNotFound = response.NewError(http.StatusNotFound, "booking not found")
	ErrCallNotFound    = response.NewError(http.StatusNotFound, "call not found")
	ErrSlotTaken       = response.NewError(http.StatusConflict, "slot already taken")
	ErrInvalidInterval = response.NewError(http.StatusBadRequest, "booking interval is empty")
)

var ErrAlreadyBooked = response.NewError(http.StatusConflict, "call already has a confirmed booking")
