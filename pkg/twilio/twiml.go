package twilioPkg

import (
	"github.com/twilio/twilio-go/twiml"
)

const (
	VoicePath        = "/webhooks/twilio/voice/"
	GatherActionPath = "/webhooks/twilio/gather-action/"

	fallbackPrompt = "Sorry, I didn't catch that."
)

// GatherResponse asks prompt and posts the caller's speech to the gather action. When the caller says
// nothing the call is redirected back to the voice webhook.
func GatherResponse(baseURL, prompt string) (string, error) {
	gather := &twiml.VoiceGather{
		Input:         "speech",
		Action:        baseURL + GatherActionPath,
		Method:        "POST",
		SpeechTimeout: "auto",
		InnerElements: []twiml.Element{
			&twiml.VoiceSay{Message: prompt},
		},
	}

	return twiml.Voice([]twiml.Element{
		gather,
		&twiml.VoiceSay{Message: fallbackPrompt},
		&twiml.VoiceRedirect{Url: baseURL + VoicePath, Method: "POST"},
	})
}

func SayResponse(prompt string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: prompt},
	})
}
