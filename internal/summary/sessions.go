// Package summary turns completed flights and controller connections into
// summary rows and moves the raw data to the archive tables.
package summary

import (
	"time"

	"vatsim_tracker/internal/storage"
)

// Session is a run of controller connection rows treated as one sitting.
// Brief disconnects inside the merge window do not split a session.
type Session struct {
	Callsign   string
	CID        int
	Name       string
	Rating     int
	Facility   int
	Server     string
	Start      time.Time
	End        time.Time
	LogonTimes []time.Time
}

// MergeSessions groups connection rows into sessions. Rows must be ordered
// by callsign, cid, logon_time. Two consecutive rows of the same callsign
// and CID merge when the gap between one row's last update and the next
// row's logon is at most the merge window; merging is transitive across a
// chain of such gaps.
func MergeSessions(rows []storage.ControllerSample, mergeWindow time.Duration) []Session {
	var sessions []Session
	var cur *Session
	var lastEnd time.Time

	for i := range rows {
		r := &rows[i]
		gap := time.Duration(0)
		if cur != nil {
			gap = r.LogonTime.Sub(lastEnd)
		}
		sameSitting := cur != nil &&
			cur.Callsign == r.Callsign && cur.CID == r.CID &&
			gap <= mergeWindow

		if !sameSitting {
			sessions = append(sessions, Session{
				Callsign: r.Callsign,
				CID:      r.CID,
				Name:     r.Name,
				Rating:   r.Rating,
				Facility: r.Facility,
				Server:   r.Server,
				Start:    r.LogonTime,
				End:      r.LastUpdated,
			})
			cur = &sessions[len(sessions)-1]
		}

		cur.LogonTimes = append(cur.LogonTimes, r.LogonTime)
		if r.LastUpdated.After(cur.End) {
			cur.End = r.LastUpdated
		}
		// Later rows may carry a promoted rating or corrected name.
		cur.Name = r.Name
		cur.Rating = r.Rating
		cur.Facility = r.Facility
		cur.Server = r.Server
		lastEnd = cur.End
	}
	return sessions
}
