package schedule

import "time"

// IsLive reports whether now falls inside the session's live window. The
// window is hour-granular: any instant on the same clinic-zone calendar day
// and in the same clock hour as the start counts as live. This intentionally
// differs from the minute-precise [start, start+1h) interval; it is the
// contract the chat affordance is built on, and client and server must
// agree on it.
func IsLive(start, now time.Time) bool {
	s := start.In(ClinicZone)
	n := now.In(ClinicZone)

	sy, sm, sd := s.Date()
	ny, nm, nd := n.Date()
	return sy == ny && sm == nm && sd == nd && s.Hour() == n.Hour()
}
