package services

import (
	"errors"
	"net/http"
)

// BusinessError is a failure the caller caused. Code doubles as the HTTP
// status the handlers answer with.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

func BadRequest(msg string) *BusinessError   { return &BusinessError{Code: http.StatusBadRequest, Message: msg} }
func Unauthorized(msg string) *BusinessError { return &BusinessError{Code: http.StatusUnauthorized, Message: msg} }
func Forbidden(msg string) *BusinessError    { return &BusinessError{Code: http.StatusForbidden, Message: msg} }
func NotFound(msg string) *BusinessError     { return &BusinessError{Code: http.StatusNotFound, Message: msg} }
func Conflict(msg string) *BusinessError     { return &BusinessError{Code: http.StatusConflict, Message: msg} }

var (
	ErrBadCreds     = Unauthorized("invalid username or password")
	ErrTokenInvalid = Unauthorized("invalid or expired token")
)

// AsBusiness unwraps err into a *BusinessError if it is one.
func AsBusiness(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
