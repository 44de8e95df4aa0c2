package datekey

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_ToDateKey_UsesLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	cal := NewCalendar(shanghai)

	// UTC 16:30 即东八区次日 00:30
	instant := time.Date(2024, 1, 9, 16, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-10", cal.ToDateKey(instant))
	assert.Equal(t, "2024-01-09", NewCalendar(time.UTC).ToDateKey(instant))
}

func TestCalendar_ToDateKey_SameDaySameKey(t *testing.T) {
	cal := NewCalendar(time.UTC)
	morning := time.Date(2024, 3, 5, 0, 0, 1, 0, time.UTC)
	night := time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, cal.ToDateKey(morning), cal.ToDateKey(night))
}

func TestCalendar_Today(t *testing.T) {
	fixed := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	cal := NewCalendar(time.UTC).WithClock(func() time.Time { return fixed })
	assert.Equal(t, "2024-01-10", cal.Today())
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"2024-01-10":  true,
		"2024-02-29":  true,
		"2023-02-29":  false,
		"2024-1-10":   false,
		"2024/01/10":  false,
		"20240110":    false,
		"":            false,
		"2024-01-10 ": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Valid(in), "Valid(%q)", in)
	}
}

func TestCalendar_Parse(t *testing.T) {
	cal := NewCalendar(time.UTC)
	got, err := cal.Parse("2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = cal.Parse("2024-13-01")
	assert.Error(t, err)
}

func TestLoadCalendar(t *testing.T) {
	cal, err := LoadCalendar("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, cal.Location())

	cal, err = LoadCalendar("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", cal.Location().String())

	_, err = LoadCalendar("Not/AZone")
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidation(v))

	type query struct {
		Date string `validate:"omitempty,datekey"`
	}
	assert.NoError(t, v.Struct(query{Date: "2024-01-10"}))
	assert.NoError(t, v.Struct(query{}))
	assert.Error(t, v.Struct(query{Date: "10-01-2024"}))
}
