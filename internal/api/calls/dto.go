package calls

import "VoiceBooking/internal/entity"

type StartCallRequest struct {
	ExternalID  string `json:"external_id" form:"CallSid"`
	FromAddress string `json:"from_address" form:"From"`
	ToAddress   string `json:"to_address" form:"To"`
}

type TurnRequest struct {
	ExternalID string `json:"external_id" form:"CallSid"`
	Utterance  string `json:"utterance" form:"SpeechResult"`
}

type IntentRequest struct {
	CallID string       `json:"call_id" validate:"required"`
	Intent string       `json:"intent"`
	Slots  entity.Slots `json:"slots"`
}

type IntentResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// DialogResponse is what the caller hears next. Listen is false once the dialog is over.
type DialogResponse struct {
	CallID string             `json:"call_id"`
	Stage  entity.DialogStage `json:"stage"`
	Prompt string             `json:"prompt"`
	Listen bool               `json:"listen"`
}

type CallStartMode string

const (
	// CallStartPreserve leaves an existing dialog untouched on a repeated call-started event.
	CallStartPreserve CallStartMode = "preserve"
	// CallStartReset restarts the dialog for a known call id (re-dial).
	CallStartReset CallStartMode = "reset"
)

type Config struct {
	CallStartMode CallStartMode
}
