package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clinicTime(t *testing.T, date, hhmm string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, ClinicZone)
	require.NoError(t, err)
	return ts
}

func TestIsLiveHourBucket(t *testing.T) {
	w, err := ComputeWindow("2024-05-01", "10:00")
	require.NoError(t, err)

	cases := []struct {
		now  string
		want bool
	}{
		{"10:00", true},
		{"10:30", true},
		{"10:59", true},
		{"09:59", false},
		{"11:00", false},
	}

	for _, tc := range cases {
		t.Run(tc.now, func(t *testing.T) {
			now := clinicTime(t, "2024-05-01", tc.now)
			assert.Equal(t, tc.want, IsLive(w.Start, now))
		})
	}
}

func TestIsLiveRequiresSameCalendarDay(t *testing.T) {
	w, err := ComputeWindow("2024-05-01", "10:00")
	require.NoError(t, err)

	assert.False(t, IsLive(w.Start, clinicTime(t, "2024-05-02", "10:30")))
	assert.False(t, IsLive(w.Start, clinicTime(t, "2024-04-30", "10:30")))
}

func TestIsLiveBucketNotMinuteWindow(t *testing.T) {
	// A 10:30 start is live at 10:05, before the booked minute, and no
	// longer live at 11:15 even though 10:30+1h has not elapsed. That is
	// the hour-bucket contract.
	w, err := ComputeWindow("2024-05-01", "10:30")
	require.NoError(t, err)

	assert.True(t, IsLive(w.Start, clinicTime(t, "2024-05-01", "10:05")))
	assert.False(t, IsLive(w.Start, clinicTime(t, "2024-05-01", "11:15")))
}

func TestIsLiveComparesInClinicZone(t *testing.T) {
	w, err := ComputeWindow("2024-05-01", "10:00")
	require.NoError(t, err)

	// Same instant expressed in UTC must still count as live.
	nowUTC := clinicTime(t, "2024-05-01", "10:30").UTC()
	assert.True(t, IsLive(w.Start, nowUTC))
}
