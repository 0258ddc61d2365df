package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"proaluno-library/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOverdueFixture() (*fixture, *OverdueService) {
	f := newFixture()
	svc := NewOverdueService(f.loans, f.users, f.notes, stubPolicies{f.policy}, f.mailer)
	svc.now = func() time.Time { return f.now }
	return f, svc
}

// borrowOverdue creates a loan and moves the clock past its due date
func borrowOverdue(t *testing.T, f *fixture, nusp, title string) {
	t.Helper()
	user := f.addUser(nusp)
	book := f.addBook(title)
	_, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)
	f.advance(8 * 24 * time.Hour)
}

func TestSweep_FirstRunAlertsOnce(t *testing.T) {
	f, sweep := newOverdueFixture()
	borrowOverdue(t, f, "1234567", "Cálculo I")

	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.NewlyOverdue)
	// The run that raises the alert never also reminds
	assert.Equal(t, 0, report.RemindersSent)
	assert.Equal(t, 0, report.Failed)

	alerts := f.notes.byKind(string(domain.NotificationOverdue))
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "Cálculo I")
	assert.Equal(t, 1, f.mailer.overdueAlerts)
	assert.Equal(t, 0, f.mailer.overdueReminders)
}

func TestSweep_FirstReminderOnNextRun(t *testing.T) {
	f, sweep := newOverdueFixture()
	borrowOverdue(t, f, "1234567", "Física II")

	_, err := sweep.Run(context.Background())
	require.NoError(t, err)

	// Next run: the alert is never raised twice, and with no reminder
	// on record yet the first reminder goes out right away
	f.advance(24 * time.Hour)
	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 0, report.NewlyOverdue)
	assert.Equal(t, 1, report.RemindersSent)

	assert.Len(t, f.notes.byKind(string(domain.NotificationOverdue)), 1)
	reminders := f.notes.byKind(string(domain.NotificationOverdueReminder))
	require.Len(t, reminders, 1)
	assert.Contains(t, reminders[0].Message, "Lembrete")
	assert.Equal(t, 1, f.mailer.overdueAlerts)
	assert.Equal(t, 1, f.mailer.overdueReminders)
}

func TestSweep_RemindersAreSpaced(t *testing.T) {
	f, sweep := newOverdueFixture()
	borrowOverdue(t, f, "1234567", "Estatística")

	_, err := sweep.Run(context.Background())
	require.NoError(t, err)

	// First reminder on the next run
	f.advance(time.Hour)
	_, err = sweep.Run(context.Background())
	require.NoError(t, err)

	// A day later: inside the 3-day interval since the last reminder
	f.advance(24 * time.Hour)
	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.RemindersSent)

	// Past the interval: second reminder
	f.advance(3 * 24 * time.Hour)
	report, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemindersSent)
	assert.Len(t, f.notes.byKind(string(domain.NotificationOverdueReminder)), 2)
	assert.Equal(t, 2, f.mailer.overdueReminders)
}

func TestSweep_SkipsLoansStillOnTime(t *testing.T) {
	f, sweep := newOverdueFixture()
	user := f.addUser("1234567")
	book := f.addBook("Em dia")
	_, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Empty(t, f.notes.records)
	assert.Equal(t, 0, f.mailer.overdueAlerts)
}

func TestSweep_SkipsReturnedLoans(t *testing.T) {
	f, sweep := newOverdueFixture()
	user := f.addUser("1234567")
	book := f.addBook("Devolvido atrasado")
	loan, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	f.advance(10 * 24 * time.Hour)
	_, err = f.svc.Return(context.Background(), loan.ID, user.ID, false)
	require.NoError(t, err)

	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
	assert.Equal(t, 0, f.mailer.overdueAlerts)
}

func TestSweep_OneFailingLoanDoesNotAbort(t *testing.T) {
	f, sweep := newOverdueFixture()
	borrowOverdue(t, f, "1111111", "Atrasado A")
	borrowOverdue(t, f, "2222222", "Atrasado B")
	borrowOverdue(t, f, "3333333", "Atrasado C")

	// The middle loan's notification write blows up
	f.notes.failLoanID = 2
	f.notes.failErr = errors.New("deadlock found when trying to get lock")

	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.Failed)
	// The other borrowers still got their alerts
	assert.Equal(t, 2, report.NewlyOverdue)
	assert.Equal(t, 2, f.mailer.overdueAlerts)

	// Once the write works again the skipped loan catches up
	f.notes.failErr = nil
	f.advance(time.Hour)
	report, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.NewlyOverdue)
	assert.Equal(t, 3, f.mailer.overdueAlerts)
}

func TestSweep_HandlesMixedLoans(t *testing.T) {
	f, sweep := newOverdueFixture()
	// Two overdue loans from different patrons, one fresh loan
	borrowOverdue(t, f, "1111111", "Atrasado A")
	borrowOverdue(t, f, "2222222", "Atrasado B")
	user := f.addUser("3333333")
	book := f.addBook("Novo")
	_, err := f.svc.Borrow(context.Background(), user.ID, book.ID)
	require.NoError(t, err)

	report, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.NewlyOverdue)
	assert.Equal(t, 2, f.mailer.overdueAlerts)
}
