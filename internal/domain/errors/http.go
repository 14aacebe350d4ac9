package errors

import "net/http"

// HTTPStatus maps a payment error type to the HTTP status class the API
// surface reports for it.
func HTTPStatus(errType string) int {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidTransition, ErrTypeRetryExhausted, ErrTypeExpired:
		return http.StatusBadRequest
	case ErrTypeUnauthenticated:
		return http.StatusUnauthorized
	case ErrTypeInvalidCredential:
		return http.StatusUnauthorized
	case ErrTypeForbidden:
		return http.StatusForbidden
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeConflict, ErrTypeConcurrentModification:
		return http.StatusConflict
	case ErrTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf is a convenience over HTTPStatus(TypeOf(err)).
func StatusOf(err error) int {
	return HTTPStatus(TypeOf(err))
}
