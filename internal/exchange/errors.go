package exchange

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// TransportError indicates that the token endpoint could not be reached at
// all: no HTTP response was received
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("token endpoint unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProviderError indicates that the token endpoint answered with a non-2xx
// response: the provider rejected the grant
type ProviderError struct {
	StatusCode  int
	Code        string
	Description string
	Body        []byte
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token endpoint returned %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, string(e.Body))
}

// DecodeError indicates that the token endpoint answered 2xx but the response
// body could not be interpreted as a token
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("token endpoint returned an unparseable response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// classifyError sorts an error from the underlying OAuth client into the
// three failure modes a caller can meaningfully branch on
func classifyError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		statusCode := 0
		if retrieveErr.Response != nil {
			statusCode = retrieveErr.Response.StatusCode
		}
		return &ProviderError{
			StatusCode:  statusCode,
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
			Body:        retrieveErr.Body,
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &TransportError{Err: err}
	}
	return &DecodeError{Err: err}
}
