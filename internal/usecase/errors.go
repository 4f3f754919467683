package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorUnsafeContent    ErrorCode = "UNSAFE_CONTENT"
	ErrorRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

const (
	ReasonEmptyText           = "empty_text"
	ReasonNoMeaningfulContent = "no_meaningful_content"
	ReasonSafeguardThreat     = "safeguard_threat"
	ReasonSafeguardAttachment = "safeguard_attachment"
	ReasonSafeguardTooLong    = "safeguard_too_long"
	ReasonSafeguardInvalid    = "safeguard_invalid"
	ReasonGeneratorError      = "generator_error"
	ReasonEmptyGeneration     = "empty_generation"
	ReasonParamLoadError      = "param_load_error"
	ReasonRateStoreError      = "rate_store_error"
	ReasonRateExceeded        = "rate_exceeded"
)

// User-facing messages. Generation and internal failures never say more than
// MessageGeneric.
const (
	MessageGeneric       = "Something went wrong. Please try again."
	MessageTextRequired  = "Message text is required."
	MessageNoContent     = "There is no meaningful content for Clancha to write."
	MessageRateLimited   = "Too many requests. Please try again later."
	messageUnsafeDefault = "Message unsafe."
)

type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

// NewRateLimited reports a rate-gate denial.
func NewRateLimited() *Error {
	return newError(ErrorRateLimited, ReasonRateExceeded, MessageRateLimited, nil)
}

// NewInternal wraps an unexpected failure outside the rewrite flow, such as
// a rate store error.
func NewInternal(reason string, err error) *Error {
	return newError(ErrorInternal, reason, MessageGeneric, err)
}
