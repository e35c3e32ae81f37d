package errmsg

import (
	"errors"
	"net/http"

	"github.com/andymarkow/taskmart/internal/errs"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)

	ErrPathParamInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("path parameter is invalid"),
	)
)

var (
	ErrClientCredentialsInvalid = NewHTTPError(
		http.StatusUnauthorized,
		errors.New("client credentials invalid"),
	)

	ErrRoleForbidden = NewHTTPError(
		http.StatusForbidden,
		errors.New("token role not allowed here"),
	)
)

// kindCodes maps error kinds to HTTP status codes.
var kindCodes = map[error]int{
	errs.ErrInvalidInput:      http.StatusBadRequest,
	errs.ErrNotFound:          http.StatusNotFound,
	errs.ErrConflict:          http.StatusConflict,
	errs.ErrInsufficientFunds: http.StatusPaymentRequired,
	errs.ErrNoTaskAvailable:   http.StatusNotFound,
	errs.ErrInvalidTransition: http.StatusUnprocessableEntity,
}

// FromError converts an engine error into an HTTPError. The message of a
// classified error is the innermost one, without wrapping context;
// unclassified errors become a generic 500.
func FromError(err error) HTTPError {
	code, ok := kindCodes[errs.KindOf(err)]
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
	}

	return NewHTTPError(code, errors.New(errs.Message(err)))
}
