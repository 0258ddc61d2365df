package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{ErrLoanNotFound, KindNotFound},
		{ErrBookNotFound, KindNotFound},
		{ErrUserNotFound, KindNotFound},
		{ErrNotLoanOwner, KindUnauthorized},
		{ErrUserInactive, KindUnauthorized},
		{ErrLoanLimitReached, KindPolicyViolation},
		{ErrBookReserved, KindPolicyViolation},
		{ErrRenewalLimitReached, KindPolicyViolation},
		{ErrRenewalsNotExhausted, KindPolicyViolation},
		{ErrAlreadyExtended, KindPolicyViolation},
		{ErrOutsideExtensionWindow, KindPolicyViolation},
		{ErrLoanOverdue, KindPolicyViolation},
		{ErrAlreadyReturned, KindAlreadyTerminal},
		{ErrInvalidPolicyValue, KindInvalidInput},
		{errors.New("database on fire"), KindUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err), "kind of %v", tc.err)
	}
}

func TestKindOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("%w: loan_duration_days must be at least 1", ErrInvalidPolicyValue)
	assert.Equal(t, KindInvalidInput, KindOf(wrapped))
}
