package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ClinicZone is the clinic's canonical fixed offset. It is not
// daylight-saving aware; the deployment is single-zone.
var ClinicZone = time.FixedZone("UTC+05:30", 5*3600+30*60)

// SessionLength is the fixed duration of every appointment.
const SessionLength = time.Hour

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ErrInvalidTimeFormat reports a malformed date or time string.
var ErrInvalidTimeFormat = errors.New("invalid date/time format")

// Window is the absolute start/end instant pair of one session.
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeWindow converts a clinic-local calendar date ("YYYY-MM-DD") and
// start time ("HH:MM") into the absolute session window. Pure; the only
// failure mode is malformed input.
func ComputeWindow(date, timeOfDay string) (Window, error) {
	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+timeOfDay, ClinicZone)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q %q", ErrInvalidTimeFormat, date, timeOfDay)
	}
	return Window{Start: start, End: start.Add(SessionLength)}, nil
}
