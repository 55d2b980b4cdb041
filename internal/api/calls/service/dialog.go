package callService

import (
	"VoiceBooking/internal/entity"
	"VoiceBooking/pkg/nlp"
	"fmt"
)

const (
	PromptGreeting       = "Hi! I can book appointments. What service do you need? For example, haircut or consultation."
	PromptAskService     = "What service do you need? For example, haircut or consultation."
	PromptServiceUnknown = "I can help you book. What service do you need? For example, haircut or consultation."
	PromptAskTime        = "When would you like to come in?"
	PromptConfirmFormat  = "Great. You want a %s around %s. Shall I book it? Please say yes or no."
	PromptBooked         = "Awesome, I'm booking that now. You'll get a confirmation soon. Goodbye!"
	PromptStartOver      = "No problem. Let's start over. What service do you need?"
	PromptConfirmUnclear = "Sorry, I didn't catch that. Should I book it? Please say yes or no."
	PromptRepeat         = "Sorry, I didn't get that. Could you repeat?"
	PromptFallback       = "Sorry, I didn't catch that."
)

// DialogState is the part of a call the state machine reads and writes.
type DialogState struct {
	Stage  entity.DialogStage
	Status entity.CallStatus
	Slots  entity.Slots
}

// Transition is the outcome of one turn. EnqueueBooking is set only on the confirming -> done edge.
type Transition struct {
	State          DialogState
	Prompt         string
	Listen         bool
	EnqueueBooking bool
}

func stateOf(call entity.Call) DialogState {
	return DialogState{
		Stage:  call.Stage,
		Status: call.Status,
		Slots:  call.Slots,
	}
}

// NextPrompt picks the question for the first unmet slot. It does not look at the current stage, so
// calling it twice with the same slots yields the same transition.
func NextPrompt(state DialogState) Transition {
	switch {
	case !state.Slots.HasService():
		state.Stage = entity.StageNeedService
		return Transition{State: state, Prompt: PromptAskService, Listen: true}
	case !state.Slots.HasWhen():
		state.Stage = entity.StageNeedTime
		return Transition{State: state, Prompt: PromptAskTime, Listen: true}
	default:
		state.Stage = entity.StageConfirming
		return Transition{
			State:  state,
			Prompt: fmt.Sprintf(PromptConfirmFormat, state.Slots.Service, state.Slots.When),
			Listen: true,
		}
	}
}

// Advance applies one utterance to the dialog. It has no side effects.
func Advance(state DialogState, utterance string) Transition {
	switch state.Stage {
	case entity.StageStart, entity.StageNeedService:
		service, ok := nlp.ExtractService(utterance)
		if !ok {
			state.Stage = entity.StageNeedService
			return Transition{State: state, Prompt: PromptServiceUnknown, Listen: true}
		}
		state.Slots.Service = service
		return NextPrompt(state)

	case entity.StageNeedTime:
		state.Slots.When = nlp.NormalizeWhen(utterance)
		return NextPrompt(state)

	case entity.StageConfirming:
		switch nlp.ClassifyConfirmation(utterance) {
		case nlp.ConfirmationAffirmative:
			state.Stage = entity.StageDone
			state.Status = entity.CallStatusBooking
			return Transition{State: state, Prompt: PromptBooked, Listen: false, EnqueueBooking: true}
		case nlp.ConfirmationNegative:
			state.Stage = entity.StageNeedService
			state.Slots = entity.Slots{}
			return Transition{State: state, Prompt: PromptStartOver, Listen: true}
		default:
			return Transition{State: state, Prompt: PromptConfirmUnclear, Listen: true}
		}
	}

	return Transition{State: state, Prompt: PromptRepeat, Listen: true}
}
