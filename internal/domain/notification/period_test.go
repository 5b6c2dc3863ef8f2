package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod_String(t *testing.T) {
	assert.Equal(t, "03/2025", Period{Month: 3, Year: 2025}.String())
	assert.Equal(t, "2025-03", Period{Month: 3, Year: 2025}.Key())
}

func TestPeriod_Next(t *testing.T) {
	assert.Equal(t, Period{Month: 4, Year: 2025}, Period{Month: 3, Year: 2025}.Next())
	assert.Equal(t, Period{Month: 1, Year: 2026}, Period{Month: 12, Year: 2025}.Next())
}

func TestPeriod_Bounds(t *testing.T) {
	p := Period{Month: 2, Year: 2024}
	assert.Equal(t, date(2024, time.February, 1), p.Start(time.UTC))
	assert.Equal(t, date(2024, time.February, 29), p.End(time.UTC))
}

func TestPeriod_DueDate(t *testing.T) {
	p := Period{Month: 2, Year: 2025}
	assert.Equal(t, date(2025, time.February, 10), p.DueDate(10, time.UTC))
	assert.Equal(t, date(2025, time.February, 28), p.DueDate(31, time.UTC))
	assert.Equal(t, date(2025, time.February, 1), p.DueDate(0, time.UTC))
}

func TestNewPeriod_Validation(t *testing.T) {
	_, err := NewPeriod(13, 2025)
	assert.Error(t, err)
	_, err = NewPeriod(0, 2025)
	assert.Error(t, err)

	p, err := NewPeriod(3, 2025)
	require.NoError(t, err)
	assert.Equal(t, Period{Month: 3, Year: 2025}, p)
}

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, Period{Month: 3, Year: 2025}, PeriodOf(date(2025, time.March, 31)))
}

func TestNewPeriod_RejectsOutOfRange(t *testing.T) {
	_, err := NewPeriod(13, 2025)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewPeriod(3, 1999)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	p, err := NewPeriod(12, 2025)
	assert.NoError(t, err)
	assert.Equal(t, Period{Month: 12, Year: 2025}, p)
}
