package summary

import (
	"context"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vatsim_tracker/internal/detector"
	"vatsim_tracker/internal/sectors"
	"vatsim_tracker/internal/storage"
)

// FlightSummarizerConfig carries the thresholds the flight summarizer
// works with.
type FlightSummarizerConfig struct {
	// Completion is how long a flight must be absent from the feed before
	// it counts as finished.
	Completion time.Duration
	// Retention bounds how long archived rows are kept.
	Retention time.Duration
	// AirborneSpeedKt is the groundspeed at or above which a sample counts
	// as airborne.
	AirborneSpeedKt int
	// PollInterval converts matched sample counts into minutes.
	PollInterval time.Duration
}

// FlightSummarizer finds completed flights, writes their summaries and
// archives their raw samples.
type FlightSummarizer struct {
	db  *storage.DB
	det *detector.Detector
	eng *sectors.Engine
	cfg FlightSummarizerConfig
	log *zap.SugaredLogger
}

func NewFlightSummarizer(db *storage.DB, det *detector.Detector, eng *sectors.Engine, cfg FlightSummarizerConfig, log *zap.SugaredLogger) *FlightSummarizer {
	return &FlightSummarizer{db: db, det: det, eng: eng, cfg: cfg, log: log}
}

// Run summarizes every flight whose last sample is older than the
// completion threshold. Flights are processed concurrently; one failed
// flight is logged and retried on the next run without blocking the rest.
func (f *FlightSummarizer) Run(ctx context.Context, now time.Time) error {
	keys, err := f.db.CompletedFlightKeys(ctx, now.Add(-f.cfg.Completion))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return f.purge(ctx, now)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := f.summarize(gctx, key, now); err != nil {
				f.log.Errorw("flight summary failed", "flight", key.String(), "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.log.Infow("flight summaries complete", "flights", len(keys))
	return f.purge(ctx, now)
}

func (f *FlightSummarizer) purge(ctx context.Context, now time.Time) error {
	purged, err := f.db.PurgeArchives(ctx, now.Add(-f.cfg.Retention))
	if err != nil {
		return err
	}
	for table, n := range purged {
		if n > 0 {
			f.log.Infow("purged archive rows", "table", table, "rows", n)
		}
	}
	return nil
}

func (f *FlightSummarizer) summarize(ctx context.Context, key storage.FlightKey, now time.Time) error {
	history, err := f.db.FlightHistory(ctx, key)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]

	contacts, err := f.det.ContactsForFlight(ctx, key.Callsign, key.LogonTime, last.LastUpdated)
	if err != nil {
		return err
	}

	s := buildFlightSummary(key, history, contacts, f.cfg, now)

	err = f.db.WithTx(ctx, func(q storage.Querier) error {
		occ, err := f.db.OccupanciesForFlight(ctx, q, key)
		if err != nil {
			return err
		}
		applySectorBreakdown(&s, occ, last.LastUpdated)
		if err := f.db.InsertFlightSummary(ctx, q, s); err != nil {
			return err
		}
		if _, err := f.db.ArchiveFlight(ctx, q, key); err != nil {
			return err
		}
		return f.db.DeleteOccupanciesForFlight(ctx, q, key)
	})
	if err != nil {
		return err
	}
	if f.eng != nil {
		f.eng.Drop(key)
	}
	return nil
}

// buildFlightSummary computes everything derivable from the sample history
// and the radio contact result. Contact minutes come from distinct matched
// sample counts scaled by the poll interval.
func buildFlightSummary(key storage.FlightKey, history []storage.FlightSample, contacts detector.Result, cfg FlightSummarizerConfig, now time.Time) storage.FlightSummary {
	last := history[len(history)-1]

	timeOnline := last.LastUpdated.Sub(key.LogonTime).Minutes()
	if timeOnline < 0 {
		timeOnline = 0
	}
	s := storage.FlightSummary{
		Callsign:          key.Callsign,
		CID:               key.CID,
		LogonTime:         key.LogonTime,
		TimeOnlineMinutes: timeOnline,
		CompletionTime:    now,
	}
	// Plan fields come from the newest sample that carried them; a flight
	// may file or amend its plan mid-session.
	for i := len(history) - 1; i >= 0; i-- {
		h := &history[i]
		if h.Departure != "" || h.Arrival != "" || h.Aircraft != "" {
			s.Departure = h.Departure
			s.Arrival = h.Arrival
			s.AircraftType = h.Aircraft
			s.AircraftFAA = h.AircraftFAA
			s.AircraftShort = h.AircraftShort
			s.FlightRules = h.FlightRules
			s.PlannedAltitude = h.PlannedAltitude
			s.Route = h.Route
			s.DepTime = h.DepTime
			break
		}
	}

	pollMinutes := cfg.PollInterval.Minutes()
	s.ControllerCallsigns = map[string]float64{}
	for cs, c := range contacts.ByController {
		s.ControllerCallsigns[cs] = float64(len(c.SampleTimes)) * pollMinutes
	}

	if timeOnline > 0 {
		pct := 100 * float64(len(contacts.MatchedTimes)) * pollMinutes / timeOnline
		if pct > 100 {
			pct = 100
		}
		s.ControllerTimePercentage = &pct
	}

	airborneTotal, airborneMatched := 0, 0
	coverTol := cfg.PollInterval / 2
	for i := range history {
		h := &history[i]
		if h.Groundspeed == nil || *h.Groundspeed < cfg.AirborneSpeedKt {
			continue
		}
		airborneTotal++
		if coveredAt(contacts.MatchedTimes, h.LastUpdated, coverTol) {
			airborneMatched++
		}
	}
	if airborneTotal > 0 {
		pct := 100 * float64(airborneMatched) / float64(airborneTotal)
		s.AirborneControllerTimePct = &pct
	}
	return s
}

// coveredAt reports whether any matched radio sample falls within tol of
// this flight sample. Flight rows carry the pilot's own last_updated clock
// while transceiver rows carry the snapshot clock; the two drift by seconds
// on the live feed, so exact equality would miss every covered sample.
func coveredAt(matched map[time.Time]struct{}, t time.Time, tol time.Duration) bool {
	if _, ok := matched[t]; ok {
		return true
	}
	for mt := range matched {
		d := mt.Sub(t)
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return true
		}
	}
	return false
}

func applySectorBreakdown(s *storage.FlightSummary, occ []storage.SectorOccupancy, lastSeen time.Time) {
	if len(occ) == 0 {
		return
	}
	breakdown := map[string]float64{}
	for _, o := range occ {
		seconds := float64(0)
		if o.DurationSeconds != nil {
			seconds = float64(*o.DurationSeconds)
		} else if o.ExitTime != nil {
			seconds = o.ExitTime.Sub(o.EntryTime).Seconds()
		} else {
			seconds = lastSeen.Sub(o.EntryTime).Seconds()
		}
		if seconds < 0 {
			seconds = 0
		}
		breakdown[o.SectorName] += seconds / 60
	}

	names := make([]string, 0, len(breakdown))
	total := 0.0
	for name, minutes := range breakdown {
		names = append(names, name)
		total += minutes
	}
	sort.Slice(names, func(i, j int) bool {
		if breakdown[names[i]] != breakdown[names[j]] {
			return breakdown[names[i]] > breakdown[names[j]]
		}
		return names[i] < names[j]
	})

	s.SectorBreakdown = breakdown
	s.PrimaryEnrouteSector = names[0]
	s.TotalEnrouteSectors = len(breakdown)
	s.TotalEnrouteTimeMinutes = total
}
