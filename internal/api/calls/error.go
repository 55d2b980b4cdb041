package calls

import (
	"VoiceBooking/pkg/response"
	"net/http"
)

var (
	ErrCallNotFound   = response.NewError(http.StatusNotFound, "call not found")
	ErrInvalidPayload = response.NewError(http.StatusBadRequest, "invalid payload")
	ErrEnqueueFailed  = response.NewError(http.StatusInternalServerError, "failed to enqueue booking")
)
