package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSelectRule_Offsets(t *testing.T) {
	due := date(2025, time.March, 10)

	tests := []struct {
		name     string
		today    time.Time
		status   InvoiceStatus
		expected NotificationType
		matched  bool
	}{
		{"5 days before", date(2025, time.March, 5), InvoiceStatusOpen, NotificationFiveDaysBefore, true},
		{"due today", date(2025, time.March, 10), InvoiceStatusOpen, NotificationDueToday, true},
		{"2 days late", date(2025, time.March, 12), InvoiceStatusLate, NotificationTwoDaysLate, true},
		{"5 days late", date(2025, time.March, 15), InvoiceStatusLate, NotificationFiveDaysLate, true},
		{"2 days past due but still open", date(2025, time.March, 12), InvoiceStatusOpen, "", false},
		{"5 days past due but still open", date(2025, time.March, 15), InvoiceStatusOpen, "", false},
		{"1 day before", date(2025, time.March, 9), InvoiceStatusOpen, "", false},
		{"4 days before", date(2025, time.March, 6), InvoiceStatusOpen, "", false},
		{"6 days before", date(2025, time.March, 4), InvoiceStatusOpen, "", false},
		{"1 day late", date(2025, time.March, 11), InvoiceStatusLate, "", false},
		{"3 days late", date(2025, time.March, 13), InvoiceStatusLate, "", false},
		{"4 days late", date(2025, time.March, 14), InvoiceStatusLate, "", false},
		{"6 days late", date(2025, time.March, 16), InvoiceStatusLate, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := SelectRule(tt.today, due, tt.status)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.expected, rule.Type)
		})
	}
}

func TestSelectRule_TemplatesAndAttachments(t *testing.T) {
	due := date(2025, time.March, 10)

	rule, ok := SelectRule(date(2025, time.March, 5), due, InvoiceStatusOpen)
	require.True(t, ok)
	assert.Equal(t, TemplateBeforeDue, rule.TemplateKey)
	assert.True(t, rule.AttachDocument)

	rule, ok = SelectRule(due, due, InvoiceStatusOpen)
	require.True(t, ok)
	assert.Equal(t, TemplateReminderToday, rule.TemplateKey)
	assert.False(t, rule.AttachDocument)

	rule, ok = SelectRule(date(2025, time.March, 15), due, InvoiceStatusLate)
	require.True(t, ok)
	assert.Equal(t, TemplateAfterDue, rule.TemplateKey)
	assert.True(t, rule.AttachDocument)
}

func TestOffsets_IgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC)
	today := time.Date(2025, time.March, 5, 0, 1, 0, 0, time.UTC)

	until, past := Offsets(today, due)
	assert.Equal(t, 5, until)
	assert.Equal(t, -1, past)

	until, past = Offsets(due, due)
	assert.Equal(t, 0, until)
	assert.Equal(t, 0, past)
}

func TestOffsets_AcrossMonthBoundary(t *testing.T) {
	until, past := Offsets(date(2025, time.March, 2), date(2025, time.February, 28))
	assert.Equal(t, -2, until)
	assert.Equal(t, 2, past)
}

func TestDaysLate(t *testing.T) {
	assert.Equal(t, 0, DaysLate(date(2025, time.March, 5), date(2025, time.March, 10)))
	assert.Equal(t, 0, DaysLate(date(2025, time.March, 10), date(2025, time.March, 10)))
	assert.Equal(t, 7, DaysLate(date(2025, time.March, 17), date(2025, time.March, 10)))
}

func TestNotificationType_IsValid(t *testing.T) {
	assert.True(t, NotificationFiveDaysBefore.IsValid())
	assert.True(t, NotificationDueToday.IsValid())
	assert.True(t, NotificationTwoDaysLate.IsValid())
	assert.True(t, NotificationFiveDaysLate.IsValid())
	assert.False(t, NotificationType("weekly").IsValid())
}
