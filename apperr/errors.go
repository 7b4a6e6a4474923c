// Package apperr carries the error taxonomy shared by the checkout,
// claim and settlement flows. Every error that reaches the HTTP
// boundary is either an *Error or treated as internal.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindState
	KindUpstream
	KindUnavailable
	KindSignature
)

// Codes surfaced in the error envelope.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeAuthRequired          = "AUTH_REQUIRED"
	CodeAuthRequiredBranded   = "AUTH_REQUIRED_FOR_KAPPA_BRANDED"
	CodeAuthFailed            = "AUTH_FAILED"
	CodeAccountCreationFailed = "ACCOUNT_CREATION_FAILED"
	CodeGuestCheckoutFailed   = "GUEST_CHECKOUT_FAILED"
	CodeNotEligible           = "NOT_ELIGIBLE"
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeInvalidPrice          = "INVALID_PRICE"
	CodeSellerNotApproved     = "SELLER_NOT_APPROVED"
	CodeStripeNotConnected    = "STRIPE_NOT_CONNECTED"
	CodeListingNotFound       = "LISTING_NOT_FOUND"
	CodeListingNotClaimable   = "LISTING_NOT_CLAIMABLE"
	CodeListingUnavailable    = "LISTING_UNAVAILABLE"
	CodeChapterNotConnected   = "CHAPTER_NOT_CONNECTED"
	CodeStewardNotConnected   = "STEWARD_NOT_CONNECTED"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodePaymentProcessorError = "PAYMENT_PROCESSOR_ERROR"
	CodeCheckoutFailed        = "CHECKOUT_FAILED"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	CodeInvalidSignature      = "INVALID_SIGNATURE"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is a classified failure with a stable code and a message that is
// safe to show to the caller. Err holds internal detail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, CodeInternal, "Internal server error", err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
