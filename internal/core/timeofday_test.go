package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14, tod.Hour())
	assert.Equal(t, 30, tod.Minute())
	assert.Equal(t, "14:30", tod.String())
}

func TestParseTimeOfDayInvalid(t *testing.T) {
	invalid := []string{"", "14", "14:60", "24:00", "-1:00", "ab:cd", "14:30:00:00"}
	for _, value := range invalid {
		_, err := ParseTimeOfDay(value)
		assert.Error(t, err, "expected %q to be rejected", value)
	}
}

func TestParseTimeOfDayTrimsWhitespace(t *testing.T) {
	tod, err := ParseTimeOfDay("  09:05 ")
	require.NoError(t, err)
	assert.Equal(t, "09:05", tod.String())
}

func TestTimeOfDayOn(t *testing.T) {
	date := time.Date(2025, 6, 3, 23, 59, 0, 0, time.UTC)
	anchored := MustParseTimeOfDay("10:15").On(date)
	assert.Equal(t, time.Date(2025, 6, 3, 10, 15, 0, 0, time.UTC), anchored)
}

func TestTimeOfDayAddMinutes(t *testing.T) {
	tod := MustParseTimeOfDay("10:00").AddMinutes(90)
	assert.Equal(t, "11:30", tod.String())
}

func TestTimeOfDayCompare(t *testing.T) {
	early := MustParseTimeOfDay("09:00")
	late := MustParseTimeOfDay("17:00")
	assert.Equal(t, -1, early.Compare(late))
	assert.Equal(t, 1, late.Compare(early))
	assert.Equal(t, 0, early.Compare(MustParseTimeOfDay("09:00")))
}

func TestTimeOfDayJSON(t *testing.T) {
	data, err := json.Marshal(MustParseTimeOfDay("16:45"))
	require.NoError(t, err)
	assert.Equal(t, `"16:45"`, string(data))

	var decoded TimeOfDay
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "16:45", decoded.String())

	assert.Error(t, json.Unmarshal([]byte(`42`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &decoded))
}

func TestHourOfDay(t *testing.T) {
	assert.Equal(t, "09:00", HourOfDay(9).String())
	assert.Equal(t, "16:00", HourOfDay(16).String())
}
