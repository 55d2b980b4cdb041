package nlp

type Confirmation uint8

const (
	ConfirmationUnclear     Confirmation = 0
	ConfirmationAffirmative Confirmation = 1
	ConfirmationNegative    Confirmation = 2
)

var ConfirmationMap = map[Confirmation]string{
	ConfirmationUnclear:     "unclear",
	ConfirmationAffirmative: "affirmative",
	ConfirmationNegative:    "negative",
}

func (c Confirmation) String() string {
	return ConfirmationMap[c]
}

// DefaultService is returned when the caller asks for a booking without naming a known service.
const DefaultService = "demo"

// Services is ordered: the first entry found in an utterance wins.
var Services = []string{"haircut", "consultation", "cleaning", "repair", "massage", "demo"}

var bookingWords = []string{"book", "appointment"}

var affirmativeWords = []string{"yes", "yeah", "yup", "please", "sure", "book", "go ahead", "confirm"}

var negativeWords = []string{"no", "nope", "stop", "cancel"}
