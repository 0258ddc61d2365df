package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrow_SetsDueDateFromPolicy(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Cálculo I")

	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	assert.Equal(t, f.now, loan.BorrowedAt)
	assert.Equal(t, f.now.AddDate(0, 0, 7), loan.DueDate)
	assert.Equal(t, 0, loan.Renewals)
	assert.False(t, loan.IsExtended)
	assert.Equal(t, 1, f.mailer.loanConfirms)
}

func TestBorrow_RejectsBookAlreadyOut(t *testing.T) {
	f := newFixture()
	alice := f.addUser("1111111")
	bob := f.addUser("2222222")
	book := f.addBook("Física II")

	_, err := f.svc.Borrow(context.Background(), alice.ID, book.ID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(context.Background(), bob.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookUnavailable)
}

func TestBorrow_ConcurrentBorrowsOfOneCopy(t *testing.T) {
	f := newFixture()
	book := f.addBook("Disputado")
	users := make([]uint, 8)
	for i := range users {
		users[i] = f.addUser(fmt.Sprintf("%07d", i+1)).ID
	}

	// All requests race for the same copy; the repository's locked
	// check-and-insert lets exactly one through
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won, lost int
	for _, userID := range users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := f.svc.Borrow(context.Background(), userID, book.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
			} else if errors.Is(err, domain.ErrBookUnavailable) {
				lost++
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, len(users)-1, lost)

	active, err := f.svc.FindActiveByBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, active.BookID)
}

func TestBorrow_RejectsReservedBook(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.books.add(models.Book{Title: "Reservado", IsReserved: true})

	_, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookReserved)
}

func TestBorrow_EnforcesActiveLoanLimit(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")

	for i := 0; i < 5; i++ {
		book := f.addBook("Livro")
		_, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
		require.NoError(t, err)
	}

	extra := f.addBook("Um a mais")
	_, err := f.svc.Borrow(context.Background(), user.ID, extra.ID)
	assert.ErrorIs(t, err, domain.ErrLoanLimitReached)

	// Returning one frees a slot
	loans, err := f.svc.ListActiveByUser(context.Background(), user.ID)
	require.NoError(t, err)
	_, err = f.svc.Return(context.Background(), loans[0].ID, user.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Borrow(context.Background(), user.ID, extra.ID)
	assert.NoError(t, err)
}

func TestBorrow_RejectsInactiveUser(t *testing.T) {
	f := newFixture()
	user := f.users.add(models.User{
		NUSP:     "7654321",
		Name:     "Patron 7654321",
		Email:    "7654321@usp.br",
		Role:     "USER",
		IsActive: false,
	})
	book := f.addBook("Qualquer")

	_, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestBorrowAsAdmin_ResolvesPatronByNUSP(t *testing.T) {
	f := newFixture()
	patron := f.addUser("1234567")
	book := f.addBook("História do Brasil")

	loan, err := f.svc.BorrowAsAdmin(context.Background(), "1234567", book.ID)
	require.NoError(t, err)
	assert.Equal(t, patron.ID, loan.UserID)

	_, err = f.svc.BorrowAsAdmin(context.Background(), "0000000", book.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestReturn_IsIdempotent(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Química")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	first, err := f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.False(t, first.AlreadyReturned)
	require.NotNil(t, first.Loan.ReturnedAt)
	returnedAt := *first.Loan.ReturnedAt

	f.advance(2 * time.Hour)
	second, err := f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.True(t, second.AlreadyReturned)
	// The original return timestamp is preserved
	assert.Equal(t, returnedAt, *second.Loan.ReturnedAt)
	assert.Equal(t, 1, f.mailer.returnConfirms)
}

func TestReturn_RejectsOtherUsersLoan(t *testing.T) {
	f := newFixture()
	alice := f.addUser("1111111")
	bob := f.addUser("2222222")
	book := f.addBook("Sociologia")
	loan, err := f.svc.Borrow(context.Background(), alice.ID, book.ID)
	require.NoError(t, err)

	_, err = f.svc.Return(context.Background(), loan.ID, bob.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotLoanOwner)

	// Staff can return anyone's loan
	_, err = f.svc.Return(context.Background(), loan.ID, bob.ID, true)
	assert.NoError(t, err)
}

func TestReturn_AllowedOnOverdueLoan(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Estatística")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	f.advance(10 * 24 * time.Hour)
	result, err := f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.False(t, result.AlreadyReturned)
}

func TestRenew_ExtendsFromCurrentDueDate(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Álgebra Linear")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	originalDue := loan.DueDate

	// Renew early: the new due date counts from the old due date,
	// not from today
	f.advance(24 * time.Hour)
	renewed, err := f.svc.Renew(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, originalDue.AddDate(0, 0, 7), renewed.DueDate)
	assert.Equal(t, 1, renewed.Renewals)
	assert.Equal(t, 1, f.mailer.renewalConfirms)
}

func TestRenew_StopsAtRenewalLimit(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Geometria")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Renew(context.Background(), loan.ID, user.ID, false)
		require.NoError(t, err)
	}

	_, err = f.svc.Renew(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrRenewalLimitReached)

	got, err := f.svc.GetLoan(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Renewals)
}

func TestRenew_RejectsReturnedLoan(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Biologia")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	_, err = f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Renew(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestPreviewRenew_DoesNotMutate(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Filosofia")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	preview, err := f.svc.PreviewRenew(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.True(t, preview.Eligible)
	require.NotNil(t, preview.NewDueDate)
	assert.Equal(t, loan.DueDate.AddDate(0, 0, 7), *preview.NewDueDate)

	got, err := f.svc.GetLoan(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Renewals)
	assert.Equal(t, loan.DueDate, got.DueDate)
}

func TestPreviewRenew_ReportsIneligibilityReason(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Português")
	loan := exhaustRenewals(t, f, user.ID, book.ID)

	preview, err := f.svc.PreviewRenew(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.False(t, preview.Eligible)
	assert.Equal(t, domain.ErrRenewalLimitReached.Error(), preview.Reason)
	assert.Equal(t, 0, preview.RenewalsRemaining)
}

func TestExtension_RequiresExhaustedRenewals(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Economia")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrRenewalsNotExhausted)
}

func TestExtension_GrantedInsideWindow(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Direito")
	loan := exhaustRenewals(t, f, user.ID, book.ID)

	// Move to 2 days before the due date, inside the 3-day window
	due := loanDue(t, f, loan.ID, user.ID)
	f.now = due.Add(-48 * time.Hour)

	extended, err := f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.True(t, extended.IsExtended)
	// 7 renewal days x 3.0 multiplier = 21 days, counted from today
	assert.Equal(t, f.now.AddDate(0, 0, 21), extended.DueDate)
	assert.Equal(t, 1, f.mailer.extensionConfirms)
}

func TestExtension_RejectedOutsideWindow(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Medicina")
	loan := exhaustRenewals(t, f, user.ID, book.ID)

	// 5 days before the due date: too early
	due := loanDue(t, f, loan.ID, user.ID)
	f.now = due.Add(-5 * 24 * time.Hour)

	_, err := f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrOutsideExtensionWindow)
}

func TestExtension_RejectedWhenOverdue(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Arquitetura")
	loan := exhaustRenewals(t, f, user.ID, book.ID)

	due := loanDue(t, f, loan.ID, user.ID)
	f.now = due.Add(time.Hour)

	_, err := f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrLoanOverdue)
}

func TestExtension_OnlyOncePerLoan(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Letras")
	loan := exhaustRenewals(t, f, user.ID, book.ID)

	due := loanDue(t, f, loan.ID, user.ID)
	f.now = due.Add(-24 * time.Hour)
	_, err := f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)

	// Even inside a new window, a second extension is refused
	due = loanDue(t, f, loan.ID, user.ID)
	f.now = due.Add(-24 * time.Hour)
	_, err = f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyExtended)
}

func TestNudge_ShortensExtendedLoan(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Astronomia")
	loan := extendLoan(t, f, user.ID, book.ID)

	impact, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.True(t, impact.DueDateChanged)
	assert.Equal(t, f.now.AddDate(0, 0, 5), impact.Loan.DueDate)
	require.NotNil(t, impact.Loan.LastNudgedAt)
	assert.Equal(t, f.now, *impact.Loan.LastNudgedAt)
}

func TestNudge_NoopOnNonExtendedLoan(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Geografia")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	impact, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.False(t, impact.DueDateChanged)
	assert.Equal(t, loan.DueDate, impact.Loan.DueDate)
	assert.Nil(t, impact.Loan.LastNudgedAt)
}

func TestNudge_NeverExtendsDueDate(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Nutrição")
	loan := extendLoan(t, f, user.ID, book.ID)

	// Close to the due date the shortened candidate would land later
	// than the current due date; the nudge must not move it
	first, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	require.True(t, first.DueDateChanged)
	due := first.Loan.DueDate

	f.advance(48 * time.Hour)
	second, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.False(t, second.DueDateChanged)
	assert.Equal(t, due, second.Loan.DueDate)
}

func TestNudge_ZeroShortenedDaysCollapsesDueDateToNow(t *testing.T) {
	f := newFixture()
	f.policy.NudgeShortenedDueDays = 0
	user := f.addUser("1234567")
	book := f.addBook("Mecânica")
	loan := extendLoan(t, f, user.ID, book.ID)

	impact, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.True(t, impact.DueDateChanged)
	assert.Equal(t, f.now, impact.Loan.DueDate)
	// Due today, not yet overdue
	assert.False(t, impact.Loan.IsOverdue(f.now))
}

func TestNudge_CooldownAbsorbsRepeats(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Veterinária")
	loan := extendLoan(t, f, user.ID, book.ID)

	first, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	require.True(t, first.DueDateChanged)

	// Inside the 24h cooldown: absorbed, even though a shorter
	// candidate would exist
	f.advance(time.Hour)
	second, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.False(t, second.DueDateChanged)
	assert.Equal(t, first.Loan.DueDate, second.Loan.DueDate)
}

func TestRegisterInternalUse_BornReturned(t *testing.T) {
	f := newFixture()
	staff := f.addUser("0000001")
	book := f.addBook("Obra rara")

	loan, err := f.svc.RegisterInternalUse(context.Background(), book.ID, staff.ID)
	require.NoError(t, err)
	require.NotNil(t, loan.ReturnedAt)
	assert.Equal(t, f.now, *loan.ReturnedAt)
	assert.Equal(t, f.now, loan.BorrowedAt)

	// The copy stays borrowable
	other := f.addUser("1234567")
	_, err = f.svc.Borrow(context.Background(), other.ID, book.ID)
	assert.NoError(t, err)
}

func TestListOverdue_DerivedFromClock(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	early := f.addBook("Devolvido em dia")
	late := f.addBook("Atrasado")

	_, err := f.svc.Borrow(context.Background(), user.ID, late.ID)
	require.NoError(t, err)

	f.advance(5 * 24 * time.Hour)
	_, err = f.svc.Borrow(context.Background(), user.ID, early.ID)
	require.NoError(t, err)

	// 8 days after the first borrow: only the first loan is overdue
	f.advance(3 * 24 * time.Hour)
	overdue, err := f.svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].BookID)
	assert.True(t, overdue[0].IsOverdue(f.now))
}

// Full lifecycle: borrow, renew to the cap, extend, get nudged,
// return. Exercises every transition in order.
func TestLoanLifecycle(t *testing.T) {
	f := newFixture()
	user := f.addUser("1234567")
	book := f.addBook("Cálculo III")

	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		renewed, err := f.svc.Renew(context.Background(), loan.ID, user.ID, false)
		require.NoError(t, err)
		assert.Equal(t, i, renewed.Renewals)
	}

	due := loanDue(t, f, loan.ID, user.ID)
	f.now = due.Add(-24 * time.Hour)
	extended, err := f.svc.RequestExtension(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	require.True(t, extended.IsExtended)

	impact, err := f.svc.ApplyNudgeImpact(context.Background(), loan.ID)
	require.NoError(t, err)
	require.True(t, impact.DueDateChanged)
	assert.True(t, impact.Loan.DueDate.Before(extended.DueDate))

	result, err := f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.False(t, result.AlreadyReturned)

	// Terminal: nothing moves anymore
	_, err = f.svc.Renew(context.Background(), loan.ID, user.ID, false)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	again, err := f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)
	assert.True(t, again.AlreadyReturned)
}

// exhaustRenewals borrows the book and renews to the policy cap
func exhaustRenewals(t *testing.T, f *fixture, userID, bookID uint) *models.Loan {
	t.Helper()
	loan, err := f.svc.Borrow(context.Background(), userID, bookID)
	require.NoError(t, err)
	for i := 0; i < f.policy.MaxRenewals; i++ {
		_, err := f.svc.Renew(context.Background(), loan.ID, userID, false)
		require.NoError(t, err)
	}
	return loan
}

// extendLoan drives a loan into the extended state
func extendLoan(t *testing.T, f *fixture, userID, bookID uint) *models.Loan {
	t.Helper()
	loan := exhaustRenewals(t, f, userID, bookID)
	due := loanDue(t, f, loan.ID, userID)
	f.now = due.Add(-24 * time.Hour)
	_, err := f.svc.RequestExtension(context.Background(), loan.ID, userID, false)
	require.NoError(t, err)
	return loan
}

func loanDue(t *testing.T, f *fixture, loanID, userID uint) time.Time {
	t.Helper()
	loan, err := f.svc.GetLoan(context.Background(), loanID, userID, false)
	require.NoError(t, err)
	return loan.DueDate
}
