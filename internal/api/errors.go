package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PaesslerAG/jsonpath"
)

// Error is returned for every failed call. Message is the human readable
// message the service sent, empty when it sent none (or when the request
// never reached it). Payload is the decoded error body as received, a
// string or a structured JSON value.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Payload    any
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	default:
		return e.Op + ": request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ServiceMessage exposes the service-provided message to callers that only
// depend on the behaviour, not on this package.
func (e *Error) ServiceMessage() string {
	return e.Message
}

// ServicePayload exposes the raw error payload.
func (e *Error) ServicePayload() any {
	return e.Payload
}

// messagePaths are tried in order against structured error bodies.
var messagePaths = []string{
	"$.message",
	"$.error.message",
	"$.error",
	"$.detail",
	"$.msg",
}

const maxPlainMessage = 300

// decodePayload turns an error body into (payload, message).
func decodePayload(body []byte) (any, string) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, ""
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		// Not JSON, keep the text as is.
		if len(text) > maxPlainMessage {
			cut := maxPlainMessage
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		return text, text
	}
	return payload, MessageOf(payload)
}

// MessageOf extracts a display message from a decoded JSON payload. It
// returns "" when no known message field holds a non-empty string.
func MessageOf(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, path := range messagePaths {
			got, err := jsonpath.Get(path, v)
			if err != nil {
				continue
			}
			if s, ok := got.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// Describe renders any payload for display: the extracted message when
// there is one, otherwise compact JSON.
func Describe(payload any) string {
	if msg := MessageOf(payload); msg != "" {
		return msg
	}
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(data)
}
