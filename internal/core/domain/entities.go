package domain

// Role represents user role in the system
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// NotificationKind classifies notification records. The overdue kind
// is created at most once per loan; reminders repeat on the policy
// cadence; nudges are created on every incoming nudge signal.
type NotificationKind string

const (
	NotificationOverdue         NotificationKind = "overdue"
	NotificationOverdueReminder NotificationKind = "overdue_reminder"
	NotificationNudge           NotificationKind = "nudge"
)
