package libreview

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when neither the call nor the client
	// carries a usable email/password pair.
	ErrMissingCredentials = errors.New("libreview: email and password are required")

	// ErrMalformedAuthResponse is returned when the login response decodes as
	// JSON but lacks the token or the account id.
	ErrMalformedAuthResponse = errors.New("libreview: auth response missing expected fields")

	// ErrNoConnections is returned when the connections list has no entries.
	ErrNoConnections = errors.New("libreview: connections list is empty")

	// ErrUnsupportedMethod is returned before any network call for methods
	// other than GET and POST.
	ErrUnsupportedMethod = errors.New("libreview: unsupported HTTP method")
)

// RequestError describes a vendor API call that did not produce a 2xx response
// with a parseable JSON body. Status is 0 when the request never completed.
// Diagnostic holds whatever partial body or transport error text was available;
// it never contains credentials or tokens.
type RequestError struct {
	URL        string
	Status     int
	Diagnostic string
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("libreview: request to %s failed with status %d: %s", e.URL, e.Status, e.Diagnostic)
	}
	return fmt.Sprintf("libreview: request to %s failed: %s", e.URL, e.Diagnostic)
}
