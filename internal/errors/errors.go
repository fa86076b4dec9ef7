package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on the kind prefix of the code, so a wrapped
// MED_NOT_FOUND still satisfies errors.Is(err, ErrNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return kindOf(e.Code) == kindOf(t.Code)
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

const (
	KindNotFound      = "NOT_FOUND"
	KindInvalidInput  = "INVALID"
	KindStateConflict = "CONFLICT"
	KindUnavailable   = "UNAVAILABLE"
	KindUnauthorized  = "AUTH"
	KindInternal      = "INTERNAL"
)

var (
	ErrNotFound      = &AppError{Code: KindNotFound + "_000", Message: "resource not found"}
	ErrInvalidInput  = &AppError{Code: KindInvalidInput + "_000", Message: "invalid input"}
	ErrStateConflict = &AppError{Code: KindStateConflict + "_000", Message: "state conflict"}
	ErrUnavailable   = &AppError{Code: KindUnavailable + "_000", Message: "service unavailable"}
	ErrUnauthorized  = &AppError{Code: KindUnauthorized + "_000", Message: "unauthorized"}
	ErrInternal      = &AppError{Code: KindInternal + "_000", Message: "internal error"}

	ErrMedicationNotFound = &AppError{Code: KindNotFound + "_001", Message: "medication not found"}
	ErrDoseNotFound       = &AppError{Code: KindNotFound + "_002", Message: "dose not found"}
	ErrScheduleNotFound   = &AppError{Code: KindNotFound + "_003", Message: "schedule not found"}

	ErrInvalidFrequency = &AppError{Code: KindInvalidInput + "_001", Message: "frequency must be positive"}
	ErrInvalidTime      = &AppError{Code: KindInvalidInput + "_002", Message: "malformed time of day"}
	ErrInvalidDate      = &AppError{Code: KindInvalidInput + "_003", Message: "malformed date"}
	ErrInvalidStatus    = &AppError{Code: KindInvalidInput + "_004", Message: "unknown dose status"}
	ErrInvalidPeriod    = &AppError{Code: KindInvalidInput + "_005", Message: "unknown period"}

	ErrStockClamped    = &AppError{Code: KindStateConflict + "_001", Message: "stock adjustment clamped"}
	ErrVersionConflict = &AppError{Code: KindStateConflict + "_002", Message: "concurrent update"}

	ErrStoreUnavailable  = &AppError{Code: KindUnavailable + "_001", Message: "backing store unavailable"}
	ErrLedgerWrite       = &AppError{Code: KindUnavailable + "_002", Message: "dose ledger write failed"}
	ErrSummarizerOffline = &AppError{Code: KindUnavailable + "_003", Message: "insight summarizer unavailable"}

	ErrRateLimited = &AppError{Code: KindUnauthorized + "_001", Message: "rate limit exceeded"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Kind returns the kind portion of an error code, or KindInternal for
// errors that did not come from this package.
func Kind(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return kindOf(appErr.Code)
	}
	return KindInternal
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithCause returns a copy of a sentinel carrying the given cause.
func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Cause: cause}
}

// Withf returns a copy of a sentinel with extra detail appended to the message.
func (e *AppError) Withf(format string, args ...any) *AppError {
	return &AppError{Code: e.Code, Message: e.Message + ": " + fmt.Sprintf(format, args...), Cause: e.Cause}
}

func IsNotFound(err error) bool      { return stderrors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool  { return stderrors.Is(err, ErrInvalidInput) }
func IsStateConflict(err error) bool { return stderrors.Is(err, ErrStateConflict) }
func IsUnavailable(err error) bool   { return stderrors.Is(err, ErrUnavailable) }

func kindOf(code string) string {
	for i := len(code) - 1; i >= 0; i-- {
		if code[i] == '_' {
			return code[:i]
		}
	}
	return code
}
