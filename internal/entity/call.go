package entity

import "time"

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusInDialog  CallStatus = "in_dialog"
	CallStatusBooking   CallStatus = "booking"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusHandoff   CallStatus = "handoff"
)

type DialogStage string

const (
	StageStart       DialogStage = "start"
	StageNeedService DialogStage = "need_service"
	StageNeedTime    DialogStage = "need_time"
	StageConfirming  DialogStage = "confirming"
	StageDone        DialogStage = "done"
)

// Slots are the values the dialog collects. An empty string means unset.
type Slots struct {
	Service string `json:"service,omitempty"`
	When    string `json:"when,omitempty"`
}

func (s Slots) HasService() bool {
	return s.Service != ""
}

func (s Slots) HasWhen() bool {
	return s.When != ""
}

// Merge overwrites only the slots that are set in other.
func (s Slots) Merge(other Slots) Slots {
	if other.Service != "" {
		s.Service = other.Service
	}
	if other.When != "" {
		s.When = other.When
	}
	return s
}

// Call is the per-call session. ExternalID is the telephony CallSid and may be empty on first contact.
type Call struct {
	ID            string      `json:"id"`
	ExternalID    string      `json:"external_id"`
	FromAddress   string      `json:"from_address"`
	ToAddress     string      `json:"to_address"`
	Status        CallStatus  `json:"status"`
	Stage         DialogStage `json:"stage"`
	Slots         Slots       `json:"slots"`
	LastUtterance string      `json:"last_utterance"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (c Call) IsTerminal() bool {
	return c.Stage == StageDone
}
