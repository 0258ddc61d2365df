package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Users & Auth Tables
// ============================================================

// User represents users table (library patrons and staff)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	NUSP      string         `gorm:"uniqueIndex;size:20;not null" json:"nusp"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'USER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	NUSP      string    `json:"nusp"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		NUSP:      u.NUSP,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Catalog Tables
// ============================================================

// Book represents books table
type Book struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Title      string         `gorm:"size:255;not null;index" json:"title"`
	Author     string         `gorm:"size:255" json:"author"`
	Edition    string         `gorm:"size:50" json:"edition"`
	IsReserved bool           `gorm:"default:false" json:"is_reserved"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// ============================================================
// Circulation Tables
// ============================================================

// Loan represents loans table. Closed loans are kept as history,
// never deleted.
type Loan struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BookID       uint       `gorm:"index;not null" json:"book_id"`
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	BorrowedAt   time.Time  `gorm:"not null" json:"borrowed_at"`
	DueDate      time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnedAt   *time.Time `gorm:"index" json:"returned_at"`
	Renewals     int        `gorm:"default:0" json:"renewals"`
	IsExtended   bool       `gorm:"default:false" json:"is_extended"`
	LastNudgedAt *time.Time `json:"last_nudged_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	Book         Book       `gorm:"foreignKey:BookID" json:"-"`
	User         User       `gorm:"foreignKey:UserID" json:"-"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsActive reports whether the book is still out
func (l *Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// IsOverdue is always derived at read time, never stored
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.ReturnedAt == nil && now.After(l.DueDate)
}

// LoanResponse DTO with the computed overdue flag
type LoanResponse struct {
	ID           uint       `json:"id"`
	BookID       uint       `json:"book_id"`
	UserID       uint       `json:"user_id"`
	BookTitle    string     `json:"book_title,omitempty"`
	BorrowerName string     `json:"borrower_name,omitempty"`
	BorrowedAt   time.Time  `json:"borrowed_at"`
	DueDate      time.Time  `json:"due_date"`
	ReturnedAt   *time.Time `json:"returned_at"`
	Renewals     int        `json:"renewals"`
	IsExtended   bool       `json:"is_extended"`
	LastNudgedAt *time.Time `json:"last_nudged_at"`
	IsOverdue    bool       `json:"is_overdue"`
}

func (l *Loan) ToResponse(now time.Time) *LoanResponse {
	return &LoanResponse{
		ID:           l.ID,
		BookID:       l.BookID,
		UserID:       l.UserID,
		BookTitle:    l.Book.Title,
		BorrowerName: l.User.Name,
		BorrowedAt:   l.BorrowedAt,
		DueDate:      l.DueDate,
		ReturnedAt:   l.ReturnedAt,
		Renewals:     l.Renewals,
		IsExtended:   l.IsExtended,
		LastNudgedAt: l.LastNudgedAt,
		IsOverdue:    l.IsOverdue(now),
	}
}

// CirculationPolicy represents the circulation_policies table.
// A single row (ID=1) holds the tunable parameters of the loan
// state machine; it is seeded on startup and mutated only via the
// admin update endpoint.
type CirculationPolicy struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	LoanDurationDays         int       `gorm:"not null;default:7" json:"loan_duration_days"`
	MaxActiveLoansPerUser    int       `gorm:"not null;default:5" json:"max_active_loans_per_user"`
	MaxRenewals              int       `gorm:"not null;default:3" json:"max_renewals"`
	RenewalExtensionDays     int       `gorm:"not null;default:7" json:"renewal_extension_days"`
	ExtensionWindowDays      int       `gorm:"not null;default:3" json:"extension_window_days"`
	ExtensionBlockMultiplier float64   `gorm:"not null;default:3" json:"extension_block_multiplier"`
	NudgeShortenedDueDays    int       `gorm:"not null;default:5" json:"nudge_shortened_due_days"`
	NudgeCooldownHours       int       `gorm:"not null;default:24" json:"nudge_cooldown_hours"`
	OverdueReminderDays      int       `gorm:"not null;default:3" json:"overdue_reminder_days"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CirculationPolicy) TableName() string {
	return "circulation_policies"
}

// ============================================================
// Notification Tables
// ============================================================

// Notification represents notifications table. DedupeKey is set
// only for at-most-once kinds (the first overdue alert of a loan):
// the unique index makes duplicate sweep runs a no-op at the
// database level.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	LoanID    uint       `gorm:"index:idx_notifications_loan_kind" json:"loan_id"`
	Kind      string     `gorm:"size:30;not null;index:idx_notifications_loan_kind" json:"kind"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	DedupeKey *string    `gorm:"size:60;uniqueIndex" json:"-"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// ============================================================
// Migration
// ============================================================

// AutoMigrate migrates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Book{},
		&Loan{},
		&CirculationPolicy{},
		&Notification{},
	)
}
