package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrPeerFailure        = errors.New("peer data deletion failed")
)

// InputError is a caller-fixable validation failure. It matches
// ErrInvalidInput under errors.Is.
type InputError struct {
	Msg string
}

// NewInputError returns an InputError carrying msg.
func NewInputError(msg string) *InputError {
	return &InputError{Msg: msg}
}

func (e *InputError) Error() string {
	return e.Msg
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// PeerError describes a failed cascade-delete call to the peer service.
// Status is zero when the request never got a response.
type PeerError struct {
	Status int
	Detail string
}

func (e *PeerError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("peer request failed: %s", e.Detail)
	}
	return fmt.Sprintf("peer responded %d: %s", e.Status, e.Detail)
}

func (e *PeerError) Unwrap() error {
	return ErrPeerFailure
}

// PeerDetail extracts the peer-reported detail from err, falling back to the
// error text.
func PeerDetail(err error) string {
	if err == nil {
		return ""
	}
	var pe *PeerError
	if errors.As(err, &pe) && pe.Detail != "" {
		return pe.Detail
	}
	return err.Error()
}
