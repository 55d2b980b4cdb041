package twilioPkg

import (
	"github.com/twilio/twilio-go/client"
)

type ISignatureValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

type signatureValidator struct {
	validator client.RequestValidator
}

// NewSignatureValidator checks X-Twilio-Signature headers signed with authToken.
func NewSignatureValidator(authToken string) ISignatureValidator {
	return &signatureValidator{validator: client.NewRequestValidator(authToken)}
}

func (v *signatureValidator) Validate(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return v.validator.Validate(url, params, signature)
}
