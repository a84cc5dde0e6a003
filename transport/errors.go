package transport

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrUnauthenticated reports a response whose status signals that the bearer
// token is no longer accepted. Any 401 from any endpoint carries it.
var ErrUnauthenticated = errors.New("unauthenticated")

// unknownErrorMessage is the last-resort message when a failed response
// carries no parseable error envelope.
const unknownErrorMessage = "unknown error"

// APIError is a normalized backend error: one human-readable message plus
// the HTTP status it came from. A 401 APIError unwraps to
// [ErrUnauthenticated].
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

// errorBody is the structured error envelope the backend uses.
type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func normalizeMessage(body []byte) string {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Detail != "" {
			return eb.Detail
		}
	}
	return unknownErrorMessage
}
