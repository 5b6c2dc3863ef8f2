package notification

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod is returned for a month or year outside the accepted range
var ErrInvalidPeriod = errors.New("notification: invalid billing period")

// Period is a billing period (competência).
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewPeriod creates a validated billing period
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the billing period containing t
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// Validate checks month and year ranges
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 2000 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// String formats the period as MM/YYYY
func (p Period) String() string {
	return fmt.Sprintf("%02d/%04d", p.Month, p.Year)
}

// Key formats the period as YYYY-MM, suitable for object keys and sorting
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Next returns the following billing period
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// Start returns the first day of the period at midnight in loc
func (p Period) Start(loc *time.Location) time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
}

// End returns the last day of the period at midnight in loc
func (p Period) End(loc *time.Location) time.Time {
	return p.Start(loc).AddDate(0, 1, -1)
}

// DueDate builds the due date for a monthly due-day inside the period.
// Due-days past the end of the month are clamped to its last day.
func (p Period) DueDate(dueDay int, loc *time.Location) time.Time {
	last := p.End(loc).Day()
	if dueDay < 1 {
		dueDay = 1
	}
	if dueDay > last {
		dueDay = last
	}
	return time.Date(p.Year, time.Month(p.Month), dueDay, 0, 0, 0, 0, loc)
}
