package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// In-memory repository fakes. They mirror the gorm-backed behavior the
// services rely on: record-not-found errors, preloaded relations and
// the dedupe semantics of CreateOnce.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User)}
}

func (r *fakeUserRepo) add(user models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = &user
	return &user
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByNUSP(ctx context.Context, nusp string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.NUSP == nusp {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.User, 0, len(r.users))
	for _, user := range r.users {
		copied := *user
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeUserRepo) ExistsByNUSP(ctx context.Context, nusp string) (bool, error) {
	_, err := r.GetByNUSP(ctx, nusp)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

type fakeBookRepo struct {
	mu     sync.Mutex
	nextID uint
	books  map[uint]*models.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: make(map[uint]*models.Book)}
}

func (r *fakeBookRepo) add(book models.Book) *models.Book {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	book.ID = r.nextID
	r.books[book.ID] = &book
	return &book
}

func (r *fakeBookRepo) Create(ctx context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	book.ID = r.nextID
	stored := *book
	r.books[book.ID] = &stored
	return nil
}

func (r *fakeBookRepo) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	book, ok := r.books[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *book
	return &copied, nil
}

func (r *fakeBookRepo) Update(ctx context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[book.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *book
	r.books[book.ID] = &stored
	return nil
}

func (r *fakeBookRepo) List(ctx context.Context, offset, limit int) ([]*models.Book, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.Book, 0, len(r.books))
	for _, book := range r.books {
		copied := *book
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type fakeLoanRepo struct {
	mu     sync.Mutex
	nextID uint
	loans  map[uint]*models.Loan
	books  *fakeBookRepo
	users  *fakeUserRepo
}

func newFakeLoanRepo(books *fakeBookRepo, users *fakeUserRepo) *fakeLoanRepo {
	return &fakeLoanRepo{loans: make(map[uint]*models.Loan), books: books, users: users}
}

// attach mimics gorm's Preload for the Book and User relations
func (r *fakeLoanRepo) attach(loan models.Loan) *models.Loan {
	if book, ok := r.books.books[loan.BookID]; ok {
		loan.Book = *book
	}
	if user, ok := r.users.users[loan.UserID]; ok {
		loan.User = *user
	}
	return &loan
}

func (r *fakeLoanRepo) Create(ctx context.Context, loan *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(loan)
	return nil
}

// CreateIfAvailable holds the lock across the availability check and
// the insert, matching the row-lock semantics of the real repository
func (r *fakeLoanRepo) CreateIfAvailable(ctx context.Context, loan *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.loans {
		if existing.BookID == loan.BookID && existing.ReturnedAt == nil {
			return repositories.ErrBookOnLoan
		}
	}
	r.insert(loan)
	return nil
}

// insert requires r.mu to be held
func (r *fakeLoanRepo) insert(loan *models.Loan) {
	r.nextID++
	loan.ID = r.nextID
	stored := *loan
	stored.Book = models.Book{}
	stored.User = models.User{}
	r.loans[loan.ID] = &stored
}

func (r *fakeLoanRepo) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.attach(*loan), nil
}

func (r *fakeLoanRepo) GetActiveByID(ctx context.Context, id uint) (*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[id]
	if !ok || loan.ReturnedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.attach(*loan), nil
}

func (r *fakeLoanRepo) GetActiveByBookID(ctx context.Context, bookID uint) (*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, loan := range r.loans {
		if loan.BookID == bookID && loan.ReturnedAt == nil {
			return r.attach(*loan), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLoanRepo) HasActiveByBookID(ctx context.Context, bookID uint) (bool, error) {
	_, err := r.GetActiveByBookID(ctx, bookID)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeLoanRepo) CountActiveByUserID(ctx context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, loan := range r.loans {
		if loan.UserID == userID && loan.ReturnedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *fakeLoanRepo) list(filter func(*models.Loan) bool) []models.Loan {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Loan
	for _, loan := range r.loans {
		if filter(loan) {
			out = append(out, *r.attach(*loan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeLoanRepo) ListAll(ctx context.Context) ([]models.Loan, error) {
	return r.list(func(*models.Loan) bool { return true }), nil
}

func (r *fakeLoanRepo) ListActive(ctx context.Context) ([]models.Loan, error) {
	return r.list(func(l *models.Loan) bool { return l.ReturnedAt == nil }), nil
}

func (r *fakeLoanRepo) ListByUserID(ctx context.Context, userID uint) ([]models.Loan, error) {
	return r.list(func(l *models.Loan) bool { return l.UserID == userID }), nil
}

func (r *fakeLoanRepo) ListActiveByUserID(ctx context.Context, userID uint) ([]models.Loan, error) {
	return r.list(func(l *models.Loan) bool { return l.UserID == userID && l.ReturnedAt == nil }), nil
}

func (r *fakeLoanRepo) Mutate(ctx context.Context, id uint, fn func(loan *models.Loan) error) (*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	candidate := *loan
	if err := fn(&candidate); err != nil {
		return nil, err
	}
	r.loans[id] = &candidate
	return r.attach(candidate), nil
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	nextID  uint
	records []models.Notification
	deduped map[string]bool
	clock   func() time.Time

	// failLoanID makes writes for that loan return failErr
	failLoanID uint
	failErr    error
}

func newFakeNotificationRepo(clock func() time.Time) *fakeNotificationRepo {
	return &fakeNotificationRepo{deduped: make(map[string]bool), clock: clock}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil && n.LoanID == r.failLoanID {
		return r.failErr
	}
	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.clock()
	}
	r.records = append(r.records, *n)
	return nil
}

func (r *fakeNotificationRepo) CreateOnce(ctx context.Context, n *models.Notification) (bool, error) {
	r.mu.Lock()
	if r.failErr != nil && n.LoanID == r.failLoanID {
		r.mu.Unlock()
		return false, r.failErr
	}
	key := fmt.Sprintf("%s:%d", n.Kind, n.LoanID)
	if r.deduped[key] {
		r.mu.Unlock()
		return false, nil
	}
	r.deduped[key] = true
	r.mu.Unlock()
	return true, r.Create(ctx, n)
}

func (r *fakeNotificationRepo) MostRecent(ctx context.Context, loanID uint, kind string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *time.Time
	for i := range r.records {
		n := r.records[i]
		if n.LoanID != loanID || n.Kind != kind {
			continue
		}
		if latest == nil || n.CreatedAt.After(*latest) {
			t := n.CreatedAt
			latest = &t
		}
	}
	return latest, nil
}

func (r *fakeNotificationRepo) ListByUserID(ctx context.Context, userID uint) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.records {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	for i := range r.records {
		if r.records[i].ID == id && r.records[i].UserID == userID {
			r.records[i].ReadAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeNotificationRepo) byKind(kind string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.records {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// stubPolicies serves a fixed policy without a database
type stubPolicies struct {
	policy *models.CirculationPolicy
}

func (s stubPolicies) Current(ctx context.Context) (*models.CirculationPolicy, error) {
	return s.policy, nil
}

// recordingMailer records delivery calls instead of sending anything
type recordingMailer struct {
	mu                sync.Mutex
	loanConfirms      int
	returnConfirms    int
	renewalConfirms   int
	extensionConfirms int
	overdueAlerts     int
	overdueReminders  int
	nudges            []bool
}

func (m *recordingMailer) SendLoanConfirmation(*models.User, *models.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loanConfirms++
}

func (m *recordingMailer) SendReturnConfirmation(*models.User, *models.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnConfirms++
}

func (m *recordingMailer) SendRenewalConfirmation(*models.User, *models.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renewalConfirms++
}

func (m *recordingMailer) SendExtensionConfirmation(*models.User, *models.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extensionConfirms++
}

func (m *recordingMailer) SendOverdueAlert(*models.User, *models.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overdueAlerts++
}

func (m *recordingMailer) SendOverdueReminder(*models.User, *models.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overdueReminders++
}

func (m *recordingMailer) SendNudge(_ *models.User, _ *models.Loan, dueDateChanged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nudges = append(m.nudges, dueDateChanged)
}

// fixture wires a circulation service over the fakes with a fixed,
// test-controlled clock
type fixture struct {
	users  *fakeUserRepo
	books  *fakeBookRepo
	loans  *fakeLoanRepo
	notes  *fakeNotificationRepo
	policy *models.CirculationPolicy
	mailer *recordingMailer
	now    time.Time
	svc    *CirculationService
}

func defaultPolicy() *models.CirculationPolicy {
	return &models.CirculationPolicy{
		ID:                       1,
		LoanDurationDays:         7,
		MaxActiveLoansPerUser:    5,
		MaxRenewals:              3,
		RenewalExtensionDays:     7,
		ExtensionWindowDays:      3,
		ExtensionBlockMultiplier: 3,
		NudgeShortenedDueDays:    5,
		NudgeCooldownHours:       24,
		OverdueReminderDays:      3,
	}
}

func newFixture() *fixture {
	f := &fixture{
		users:  newFakeUserRepo(),
		books:  newFakeBookRepo(),
		policy: defaultPolicy(),
		mailer: &recordingMailer{},
		now:    time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.loans = newFakeLoanRepo(f.books, f.users)
	f.notes = newFakeNotificationRepo(func() time.Time { return f.now })
	f.svc = NewCirculationService(f.loans, f.books, f.users, stubPolicies{f.policy}, f.mailer)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// advance moves the fixture clock forward
func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) addUser(nusp string) *models.User {
	return f.users.add(models.User{
		NUSP:     nusp,
		Name:     "Patron " + nusp,
		Email:    nusp + "@usp.br",
		Role:     "USER",
		IsActive: true,
	})
}

func (f *fixture) addBook(title string) *models.Book {
	return f.books.add(models.Book{Title: title})
}
