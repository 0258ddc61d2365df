package domain

import "errors"

// Common domain errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")
)

// User errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Catalog errors
var (
	ErrBookNotFound = errors.New("book not found")
)

// Circulation errors
var (
	ErrLoanNotFound           = errors.New("loan not found or already returned")
	ErrNotLoanOwner           = errors.New("loan does not belong to this user")
	ErrLoanLimitReached       = errors.New("active loan limit reached")
	ErrBookReserved           = errors.New("book is reserved and cannot circulate this term")
	ErrBookUnavailable        = errors.New("book is already on loan")
	ErrRenewalLimitReached    = errors.New("renewal limit reached")
	ErrRenewalsNotExhausted   = errors.New("extension only available after the renewal limit is reached")
	ErrAlreadyExtended        = errors.New("loan is already extended")
	ErrOutsideExtensionWindow = errors.New("outside the extension eligibility window")
	ErrLoanOverdue            = errors.New("loan is overdue and cannot be extended")
	ErrAlreadyReturned        = errors.New("loan already returned")
)

// Policy errors
var (
	ErrInvalidPolicyValue = errors.New("invalid policy value")
)

// ErrorKind groups domain errors into the categories the HTTP layer
// maps to status codes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindPolicyViolation
	KindAlreadyTerminal
	KindInvalidInput
)

// KindOf classifies a domain error
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrLoanNotFound),
		errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrNotLoanOwner),
		errors.Is(err, ErrUserInactive),
		errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrLoanLimitReached),
		errors.Is(err, ErrBookReserved),
		errors.Is(err, ErrBookUnavailable),
		errors.Is(err, ErrRenewalLimitReached),
		errors.Is(err, ErrRenewalsNotExhausted),
		errors.Is(err, ErrAlreadyExtended),
		errors.Is(err, ErrOutsideExtensionWindow),
		errors.Is(err, ErrLoanOverdue):
		return KindPolicyViolation
	case errors.Is(err, ErrAlreadyReturned):
		return KindAlreadyTerminal
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidPolicyValue):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}
