// Package apierr classifies failed backend calls and turns them into
// messages that are safe to show next to a list.
package apierr

import (
	"errors"
	"fmt"
)

// StatusMalformed marks a 2xx response whose body did not have the expected shape.
const StatusMalformed = -1

// NetworkMessage is shown for every transport failure.
const NetworkMessage = "Unable to reach the server. Please check your internet connection."

// GenericMessage is used when the caller supplies no default.
const GenericMessage = "Something went wrong. Please try again."

// NetworkError is returned when the request never got a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is returned for non-2xx responses and for responses that fail
// shape validation (Status == StatusMalformed).
type ServerError struct {
	Op     string
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Status == StatusMalformed {
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Detail)
}

// Malformed reports whether the error came from a response with a bad shape.
func (e *ServerError) Malformed() bool {
	return e.Status == StatusMalformed
}

// Message maps err to the string stored in a list's lastError.
// Server detail is never surfaced; fallback is used instead.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if fallback == "" {
		fallback = GenericMessage
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return NetworkMessage
	}
	return fallback
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsMalformed reports whether err is a response that failed shape validation.
func IsMalformed(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr) && srvErr.Malformed()
}
