package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated  = errors.New("not logged in")
	ErrLoginInFlight     = errors.New("login already in progress")
	ErrUploadInFlight    = errors.New("upload already in progress")
	ErrAnalysisInFlight  = errors.New("analysis already in progress")
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrNoPendingFile     = errors.New("no file selected")
	ErrCredentialMissing = errors.New("username and password are required")
)

const (
	loginFallback   = "failed to login"
	uploadFallback  = "failed to upload file"
	analyzeFallback = "failed to analyze trades"
)

// Errors coming back from the service client may expose the message and
// raw payload the service sent.
type serviceMessenger interface {
	ServiceMessage() string
}

type payloadCarrier interface {
	ServicePayload() any
}

func serviceMessage(err error) string {
	var m serviceMessenger
	if errors.As(err, &m) {
		return m.ServiceMessage()
	}
	return ""
}

func servicePayload(err error) any {
	var p payloadCarrier
	if errors.As(err, &p) {
		return p.ServicePayload()
	}
	return nil
}

// AuthError is a failed login.
type AuthError struct {
	Message string
	Err     error
}

func newAuthError(err error) *AuthError {
	msg := serviceMessage(err)
	if msg == "" {
		msg = loginFallback
	}
	return &AuthError{Message: msg, Err: err}
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UploadError is a rejected or failed transfer. The file stays pending.
type UploadError struct {
	File    string
	Message string
	Err     error
}

func newUploadError(file string, err error) *UploadError {
	msg := serviceMessage(err)
	if msg == "" {
		msg = uploadFallback
	}
	return &UploadError{File: file, Message: msg, Err: err}
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %s", e.File, e.Message)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// AnalysisError is a failed analysis run. Payload is the raw body the
// service sent, when there was one; it may be a string or a JSON object.
type AnalysisError struct {
	Message string
	Payload any
	Err     error
}

func newAnalysisError(err error) *AnalysisError {
	ae := &AnalysisError{Err: err, Payload: servicePayload(err)}
	ae.Message = serviceMessage(err)
	if ae.Message == "" && ae.Payload != nil {
		ae.Message = describePayload(ae.Payload)
	}
	if ae.Message == "" {
		ae.Message = fmt.Sprintf("%s: %v", analyzeFallback, err)
	}
	return ae
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// describePayload normalises either payload shape into one line of text.
func describePayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
