package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const contentTypeJSON string = "application/json"

// Request describes a call to the backend. Path is resolved against the client base URL
// unless it is an absolute URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is sent verbatim when it is a []byte, a string or an io.Reader and encoded as JSON otherwise
	Body any
	// ContentType overrides the default application/json, e.g. for multipart uploads
	ContentType string
}

func (r Request) encodeBody() ([]byte, error) {
	switch body := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return body, nil
	case string:
		return []byte(body), nil
	case io.Reader:
		// buffered so that the request can be sent again after a token refresh
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("cannot read request body: %w", err)
		}
		return raw, nil
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request body: %w", err)
		}
		return raw, nil
	}
}

func (r Request) contentType() string {
	if r.ContentType != "" {
		return r.ContentType
	}
	if r.Header != nil && r.Header.Get("Content-Type") != "" {
		return r.Header.Get("Content-Type")
	}
	return contentTypeJSON
}

// attempt carries a request through the pipeline together with its retry state
type attempt struct {
	request Request
	body    []byte
	// retried is set once the request went through a refresh and was sent again
	retried bool
	// sentToken is the access token attached to the last send of this request
	sentToken string
	requestID string
}

func (a *attempt) bodyReader() io.Reader {
	if a.body == nil {
		return nil
	}
	return bytes.NewReader(a.body)
}

// Response is a successful (2xx) answer from the backend
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("the response has no body")
	}
	return json.Unmarshal(r.Body, v)
}

// ResponseError is returned for every non-2xx answer. Callers that need field level
// detail (for example a login form) read the payload from here.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

func (e *ResponseError) JSON(v any) error {
	return json.Unmarshal(e.Body, v)
}

// Payload returns the JSON object in the body or nil when the body is not an object
func (e *ResponseError) Payload() map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return nil
	}
	return payload
}
