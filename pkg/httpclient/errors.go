package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/toolhub/toolhub/pkg/errors"
)

const maxBodyBytes = 8 << 20

// envelope mirrors httputil.Response on the wire.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx response. When the body carried an error
// envelope, AppError holds its code and message.
type StatusError struct {
	Status   int
	AppError *apperrors.AppError
	Body     string
}

func (e *StatusError) Error() string {
	if e.AppError != nil {
		return fmt.Sprintf("status %d: %s", e.Status, e.AppError.Error())
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// Unwrap lets errors.As reach the AppError and its sentinel.
func (e *StatusError) Unwrap() error {
	if e.AppError == nil {
		return nil
	}
	return e.AppError
}

func responseError(status int, body []byte) error {
	statusErr := &StatusError{Status: status}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		statusErr.AppError = &apperrors.AppError{
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Status:  status,
			Err:     sentinelFor(status),
		}
		return statusErr
	}

	const maxShown = 512
	if len(body) > maxShown {
		body = body[:maxShown]
	}
	statusErr.Body = string(body)
	return statusErr
}

func sentinelFor(status int) error {
	switch status {
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrForbidden
	case http.StatusTooManyRequests:
		return apperrors.ErrTooManyRequests
	case http.StatusServiceUnavailable:
		return apperrors.ErrServiceUnavail
	}
	return nil
}
