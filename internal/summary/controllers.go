package summary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vatsim_tracker/internal/detector"
	"vatsim_tracker/internal/storage"
)

// ControllerSummarizerConfig carries the controller summarizer thresholds.
type ControllerSummarizerConfig struct {
	// Completion is how long a controller must be absent before the
	// connection counts as finished.
	Completion time.Duration
	// MergeWindow is the longest disconnect that still counts as the same
	// session.
	MergeWindow time.Duration
}

// ControllerSummarizer merges completed controller connections into
// sessions, measures the traffic each session worked and archives the raw
// rows.
type ControllerSummarizer struct {
	db  *storage.DB
	det *detector.Detector
	cfg ControllerSummarizerConfig
	log *zap.SugaredLogger
}

func NewControllerSummarizer(db *storage.DB, det *detector.Detector, cfg ControllerSummarizerConfig, log *zap.SugaredLogger) *ControllerSummarizer {
	return &ControllerSummarizer{db: db, det: det, cfg: cfg, log: log}
}

// Run summarizes every finished controller session. A session whose last
// row is still within the merge window of now is held back, since a
// reconnection could still extend it.
func (c *ControllerSummarizer) Run(ctx context.Context, now time.Time) error {
	rows, err := c.db.CompletedControllerRows(ctx, now.Add(-c.cfg.Completion))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	sessions := MergeSessions(rows, c.cfg.MergeWindow)
	done := 0
	for _, sess := range sessions {
		if now.Sub(sess.End) < c.cfg.MergeWindow {
			continue
		}
		if err := c.summarize(ctx, sess); err != nil {
			c.log.Errorw("controller summary failed",
				"callsign", sess.Callsign, "start", sess.Start, "err", err)
			continue
		}
		done++
	}
	if done > 0 {
		c.log.Infow("controller summaries complete", "sessions", done)
	}
	return nil
}

func (c *ControllerSummarizer) summarize(ctx context.Context, sess Session) error {
	contact, err := c.det.ContactsForController(ctx, sess.Callsign, sess.Start, sess.End)
	if err != nil {
		return err
	}

	s := buildControllerSummary(sess, contact)

	return c.db.WithTx(ctx, func(q storage.Querier) error {
		if err := c.db.InsertControllerSummary(ctx, q, s); err != nil {
			return err
		}
		n, err := c.db.ArchiveControllerRows(ctx, q, sess.Callsign, sess.CID, sess.LogonTimes)
		if err != nil {
			return err
		}
		if n != int64(len(sess.LogonTimes)) {
			return fmt.Errorf("archived %d of %d connection rows", n, len(sess.LogonTimes))
		}
		return nil
	})
}

// buildControllerSummary derives the traffic figures from one session's
// matched contacts. contact may be nil when the controller never keyed a
// transceiver near a flight.
func buildControllerSummary(sess Session, contact *detector.Contact) storage.ControllerSummary {
	s := storage.ControllerSummary{
		Callsign:                sess.Callsign,
		CID:                     sess.CID,
		Name:                    sess.Name,
		Rating:                  sess.Rating,
		Facility:                sess.Facility,
		Server:                  sess.Server,
		SessionStartTime:        sess.Start,
		SessionEndTime:          sess.End,
		SessionDurationMinutes:  sess.End.Sub(sess.Start).Minutes(),
		HourlyAircraftBreakdown: map[string]int{},
	}
	if contact == nil {
		return s
	}

	s.TotalAircraftHandled = len(contact.Flights)

	for freq := range contact.Frequencies {
		s.FrequenciesUsed = append(s.FrequenciesUsed, freq)
	}
	sort.Slice(s.FrequenciesUsed, func(i, j int) bool {
		return s.FrequenciesUsed[i] < s.FrequenciesUsed[j]
	})

	for _, fc := range contact.Flights {
		s.AircraftDetails = append(s.AircraftDetails, storage.AircraftDetail{
			Callsign:  fc.Callsign,
			FirstSeen: fc.FirstSeen,
			LastSeen:  fc.LastSeen,
		})
	}
	sort.Slice(s.AircraftDetails, func(i, j int) bool {
		if !s.AircraftDetails[i].FirstSeen.Equal(s.AircraftDetails[j].FirstSeen) {
			return s.AircraftDetails[i].FirstSeen.Before(s.AircraftDetails[j].FirstSeen)
		}
		return s.AircraftDetails[i].Callsign < s.AircraftDetails[j].Callsign
	})

	for hour, callsigns := range hourlyFlights(contact) {
		s.HourlyAircraftBreakdown[hour] = len(callsigns)
	}
	s.PeakAircraftCount = peakConcurrent(contact)
	return s
}

// hourlyFlights buckets each flight into the UTC hours of day its contact
// window touches.
func hourlyFlights(contact *detector.Contact) map[string]map[string]struct{} {
	hours := map[string]map[string]struct{}{}
	for _, fc := range contact.Flights {
		t := fc.FirstSeen.UTC().Truncate(time.Hour)
		for !t.After(fc.LastSeen.UTC()) {
			key := fmt.Sprintf("%02d", t.Hour())
			if hours[key] == nil {
				hours[key] = map[string]struct{}{}
			}
			hours[key][fc.Callsign] = struct{}{}
			t = t.Add(time.Hour)
		}
	}
	return hours
}

// peakConcurrent returns the largest number of flights simultaneously in
// contact, treating each flight's contact as the closed interval from its
// first to its last matched sample.
func peakConcurrent(contact *detector.Contact) int {
	type event struct {
		at    time.Time
		delta int
	}
	events := make([]event, 0, 2*len(contact.Flights))
	for _, fc := range contact.Flights {
		events = append(events, event{fc.FirstSeen, +1})
		events = append(events, event{fc.LastSeen.Add(time.Nanosecond), -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		return events[i].delta > events[j].delta
	})

	cur, peak := 0, 0
	for _, e := range events {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}
