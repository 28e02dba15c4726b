package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind string

const (
	KindClientInput    Kind = "client_input"
	KindRateExceeded   Kind = "rate_exceeded"
	KindBudgetExceeded Kind = "budget_exceeded"
	KindUpstreamModel  Kind = "upstream_model"
	KindInternal       Kind = "internal"
)

type Error struct {
	Kind   Kind
	Status int
	Code   string
	Err    error
	// ResetAt is set on 429-class errors.
	ResetAt time.Time
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Kind: kindForStatus(status), Status: status, Code: code, Err: err}
}

func ClientInput(code string, err error) *Error {
	return &Error{Kind: KindClientInput, Status: http.StatusBadRequest, Code: code, Err: err}
}

func RateExceeded(code string, resetAt time.Time, err error) *Error {
	return &Error{Kind: KindRateExceeded, Status: http.StatusTooManyRequests, Code: code, Err: err, ResetAt: resetAt}
}

func BudgetExceeded(code string, resetAt time.Time, err error) *Error {
	return &Error{Kind: KindBudgetExceeded, Status: http.StatusTooManyRequests, Code: code, Err: err, ResetAt: resetAt}
}

func UpstreamModel(code string, err error) *Error {
	return &Error{Kind: KindUpstreamModel, Status: http.StatusBadGateway, Code: code, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Code: "internal_error", Err: err}
}

// From returns err as *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateExceeded
	case status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return KindUpstreamModel
	case status >= 400 && status < 500:
		return KindClientInput
	default:
		return KindInternal
	}
}
