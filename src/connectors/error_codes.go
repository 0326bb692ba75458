package connectors

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds derived from the exchange "message" field.
const (
	ErrorKindAuth         = "auth"
	ErrorKindFunds        = "insufficient_funds"
	ErrorKindSize         = "invalid_size"
	ErrorKindPrice        = "invalid_price"
	ErrorKindNotFound     = "not_found"
	ErrorKindRateLimit    = "rate_limit"
	ErrorKindUnknown      = "unknown"
	ErrorKindInvalidInput = "invalid_input"
)

// coinbaseErrorMessages maps lower-cased fragments of Coinbase error messages to a kind.
var coinbaseErrorMessages = []struct {
	fragment string
	kind     string
}{
	{"invalid api key", ErrorKindAuth},
	{"invalid passphrase", ErrorKindAuth},
	{"invalid signature", ErrorKindAuth},
	{"invalid timestamp", ErrorKindAuth},
	{"request timestamp expired", ErrorKindAuth},
	{"unauthorized", ErrorKindAuth},
	{"forbidden", ErrorKindAuth},
	{"insufficient funds", ErrorKindFunds},
	{"size is too small", ErrorKindSize},
	{"size is too accurate", ErrorKindSize},
	{"size too small", ErrorKindSize},
	{"price is too accurate", ErrorKindPrice},
	{"price too small", ErrorKindPrice},
	{"notfound", ErrorKindNotFound},
	{"not found", ErrorKindNotFound},
	{"rate limit", ErrorKindRateLimit},
	{"invalid", ErrorKindInvalidInput},
}

// APIError is an error answer from the exchange. The request reached the server,
// so it is never retried; callers decide whether the step can continue.
type APIError struct {
	Message   string  `json:"error"`
	Status    int     `json:"status"`
	Timestamp string  `json:"timestamp"`
	Request   Request `json:"requestParams"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coinbase error (HTTP %d) on %s %s: %s", e.Status, e.Request.Method, e.Request.Path, e.Message)
}

// Kind classifies the message, see coinbaseErrorMessages.
func (e *APIError) Kind() string {
	msg := strings.ToLower(e.Message)
	for _, m := range coinbaseErrorMessages {
		if strings.Contains(msg, m.fragment) {
			return m.kind
		}
	}
	return ErrorKindUnknown
}

// RequestError is a terminal transport failure after all attempts were spent.
type RequestError struct {
	Err      error   `json:"-"`
	Request  Request `json:"requestParams"`
	Attempts int     `json:"attempts"`
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Request.Method, e.Request.Path, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// transportError marks failures that never produced an HTTP response.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

// AsAPIError reports whether err carries an exchange error answer.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrorMessage is the text put in execution reports: the exchange message for
// API errors, the error string otherwise.
func ErrorMessage(err error) string {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}
