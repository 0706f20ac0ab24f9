package sso

import (
	"encoding/json"
	"fmt"

	"learnsync/internal/model"
)

// message is one of the values the page script may post to the host.
type message interface {
	message()
}

type formObserved struct{}

type credentialInjected struct{}

type formSubmitted struct {
	Fields model.FingerprintFields
}

type logLine struct {
	Text string
}

func (formObserved) message()       {}
func (credentialInjected) message() {}
func (formSubmitted) message()      {}
func (logLine) message()            {}

type wireMessage struct {
	Type            string `json:"type"`
	FingerPrint     string `json:"fingerPrint"`
	FingerGenPrint  string `json:"fingerGenPrint"`
	FingerGenPrint3 string `json:"fingerGenPrint3"`
	Message         string `json:"message"`
}

// decodeMessage parses a page payload. Payloads come from the page and are
// untrusted; anything outside the known set is an error.
func decodeMessage(raw []byte) (message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode page message: %w", err)
	}
	switch w.Type {
	case "formObserved":
		return formObserved{}, nil
	case "credentialInjected":
		return credentialInjected{}, nil
	case "formSubmitted":
		return formSubmitted{Fields: model.FingerprintFields{
			FingerPrint:     w.FingerPrint,
			FingerGenPrint:  w.FingerGenPrint,
			FingerGenPrint3: w.FingerGenPrint3,
		}}, nil
	case "log":
		return logLine{Text: w.Message}, nil
	}
	return nil, fmt.Errorf("unknown page message type %q", w.Type)
}
