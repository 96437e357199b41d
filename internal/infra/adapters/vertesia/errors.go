package vertesia

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the vendor.
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vertesia %s: http %d %s", e.Endpoint, e.StatusCode, e.Status)
}

// IsStatus reports whether err is an APIError with the given code.
func IsStatus(err error, code int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == code
}

// IsNotFound reports a 404 from the vendor.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

var errMissingRun = errors.New("run reference is missing")
