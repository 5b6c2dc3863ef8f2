package notification

import "time"

// NotificationType identifies which reminder a SendRecord refers to
type NotificationType string

const (
	// NotificationFiveDaysBefore is sent five days before the due date
	NotificationFiveDaysBefore NotificationType = "five_days_before"

	// NotificationDueToday is sent on the due date
	NotificationDueToday NotificationType = "due_today"

	// NotificationTwoDaysLate is sent two days after the due date for late invoices
	NotificationTwoDaysLate NotificationType = "two_days_late"

	// NotificationFiveDaysLate is sent five days after the due date for late invoices
	NotificationFiveDaysLate NotificationType = "five_days_late"
)

// Template keys used by the reminder rules
const (
	TemplateBeforeDue     = "before_due"
	TemplateReminderToday = "reminder_today"
	TemplateAfterDue      = "after_due"
)

// String returns the string representation of NotificationType
func (t NotificationType) String() string {
	return string(t)
}

// IsValid returns true if the type is one of the four reminder kinds
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationFiveDaysBefore, NotificationDueToday,
		NotificationTwoDaysLate, NotificationFiveDaysLate:
		return true
	}
	return false
}

// Rule describes the reminder selected for an invoice
type Rule struct {
	Type           NotificationType
	TemplateKey    string
	AttachDocument bool
}

// Offsets returns the day offsets between today and the due date, on calendar days.
// daysPastDue is -1 while the due date is still in the future.
func Offsets(today, due time.Time) (daysUntilDue, daysPastDue int) {
	daysUntilDue = DaysBetween(today, due)
	daysPastDue = -1
	if daysUntilDue <= 0 {
		daysPastDue = -daysUntilDue
	}
	return daysUntilDue, daysPastDue
}

// SelectRule returns the reminder due today for an invoice, if any.
// The rules map to distinct day offsets so at most one can match.
func SelectRule(today, due time.Time, status InvoiceStatus) (Rule, bool) {
	daysUntilDue, daysPastDue := Offsets(today, due)

	switch {
	case daysUntilDue == 5:
		return Rule{Type: NotificationFiveDaysBefore, TemplateKey: TemplateBeforeDue, AttachDocument: true}, true
	case daysUntilDue == 0:
		return Rule{Type: NotificationDueToday, TemplateKey: TemplateReminderToday}, true
	case daysPastDue == 2 && status == InvoiceStatusLate:
		return Rule{Type: NotificationTwoDaysLate, TemplateKey: TemplateAfterDue, AttachDocument: true}, true
	case daysPastDue == 5 && status == InvoiceStatusLate:
		return Rule{Type: NotificationFiveDaysLate, TemplateKey: TemplateAfterDue, AttachDocument: true}, true
	}
	return Rule{}, false
}

// DaysBetween counts calendar days from one date to another, ignoring the time of day.
func DaysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)) / (24 * time.Hour))
}

// DaysLate returns how many whole days an invoice is overdue, never negative.
func DaysLate(today, due time.Time) int {
	d := DaysBetween(due, today)
	if d < 0 {
		return 0
	}
	return d
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
