package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindServerError  ErrorKind = "server_error"
	KindHTTP         ErrorKind = "http"
	KindNoResponse   ErrorKind = "no_response"
	KindUnexpected   ErrorKind = "unexpected"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	MessageSessionExpired   string = "Your session has expired. Please log in again."
	MessageForbidden        string = "You do not have permission to perform this action."
	MessageNotFound         string = "The requested resource was not found."
	MessageServerError      string = "A server error occurred. Please try again later."
	MessageNoResponse       string = "No response from server. Please check your connection."
	MessageUnexpected       string = "An unexpected error occurred."
	validationPrefix        string = "Validation error: "
	defaultValidationDetail string = "please check the submitted data."
)

// NormalizedError is the user facing description of a failed call
type NormalizedError struct {
	Kind     ErrorKind
	Status   int
	Message  string
	Severity Severity
	// Duration is how long the message should stay visible
	Duration time.Duration
	Method   string
	URL      string
	Err      error
}

// Normalize turns any error returned by the client into a message for the user
func Normalize(err error) NormalizedError {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return normalizeResponse(respErr, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NormalizedError{
			Kind:     KindNoResponse,
			Message:  MessageNoResponse,
			Severity: SeverityWarning,
			Duration: 5 * time.Second,
			Method:   strings.ToUpper(urlErr.Op),
			URL:      urlErr.URL,
			Err:      err,
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return NormalizedError{
			Kind:     KindNoResponse,
			Message:  MessageNoResponse,
			Severity: SeverityWarning,
			Duration: 5 * time.Second,
			Err:      err,
		}
	}
	return NormalizedError{
		Kind:     KindUnexpected,
		Message:  MessageUnexpected,
		Severity: SeverityError,
		Duration: 5 * time.Second,
		Err:      err,
	}
}

func normalizeResponse(respErr *ResponseError, err error) NormalizedError {
	output := NormalizedError{
		Status: respErr.StatusCode,
		Method: respErr.Method,
		URL:    respErr.URL,
		Err:    err,
	}
	message := ExtractMessage(respErr.Body)
	switch {
	case respErr.StatusCode == http.StatusBadRequest:
		if message == "" {
			message = defaultValidationDetail
		}
		output.Kind = KindValidation
		output.Message = validationPrefix + message
		output.Severity = SeverityWarning
		output.Duration = 6 * time.Second
	case respErr.StatusCode == http.StatusUnauthorized:
		output.Kind = KindUnauthorized
		output.Message = MessageSessionExpired
		output.Severity = SeverityError
		output.Duration = 5 * time.Second
	case respErr.StatusCode == http.StatusForbidden:
		output.Kind = KindForbidden
		output.Message = MessageForbidden
		output.Severity = SeverityError
		output.Duration = 5 * time.Second
	case respErr.StatusCode == http.StatusNotFound:
		output.Kind = KindNotFound
		output.Message = MessageNotFound
		output.Severity = SeverityWarning
		output.Duration = 4 * time.Second
	case respErr.StatusCode >= http.StatusInternalServerError:
		output.Kind = KindServerError
		output.Message = MessageServerError
		output.Severity = SeverityError
		output.Duration = 8 * time.Second
	default:
		if message == "" {
			message = fmt.Sprintf("Request failed with status %d.", respErr.StatusCode)
		}
		output.Kind = KindHTTP
		output.Message = message
		output.Severity = SeverityError
		output.Duration = 5 * time.Second
	}
	return output
}

// ExtractMessage picks a human readable message out of an error payload, looking at
// non_field_errors, detail and message in that order and otherwise listing every field
// with its first error in payload order.
func ExtractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	fields := orderedmap.New[string, json.RawMessage]()
	err := json.Unmarshal(body, fields)
	if err != nil {
		// not an object, a bare string or list of errors is still usable
		return firstString(body)
	}
	if raw, ok := fields.Get("non_field_errors"); ok {
		if message := firstString(raw); message != "" {
			return message
		}
	}
	for _, key := range []string{"detail", "message"} {
		raw, ok := fields.Get(key)
		if !ok {
			continue
		}
		var message string
		if json.Unmarshal(raw, &message) == nil && message != "" {
			return message
		}
	}
	parts := []string{}
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		switch pair.Key {
		case "non_field_errors", "detail", "message":
			continue
		}
		message := firstString(pair.Value)
		if message == "" {
			continue
		}
		parts = append(parts, pair.Key+": "+message)
	}
	return strings.Join(parts, "; ")
}

// firstString returns a JSON string, the first element of a JSON list or a compact
// rendering of anything else
func firstString(raw json.RawMessage) string {
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		if len(list) == 0 {
			return ""
		}
		return firstString(list[0])
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) == nil {
		// nested serializer errors, show the first nested message
		nested := ExtractMessage(raw)
		if nested != "" {
			return nested
		}
		return ""
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" || !json.Valid(raw) {
		return ""
	}
	return trimmed
}
