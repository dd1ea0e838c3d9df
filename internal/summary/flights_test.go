package summary

import (
	"math"
	"testing"
	"time"

	"vatsim_tracker/internal/detector"
	"vatsim_tracker/internal/storage"
)

func flightHistory(key storage.FlightKey, speeds []int, start time.Time, step time.Duration) []storage.FlightSample {
	out := make([]storage.FlightSample, len(speeds))
	for i, gs := range speeds {
		v := gs
		out[i] = storage.FlightSample{
			Callsign:    key.Callsign,
			CID:         key.CID,
			LogonTime:   key.LogonTime,
			Groundspeed: &v,
			Departure:   "YSSY",
			Arrival:     "YMML",
			Aircraft:    "B738",
			LastUpdated: start.Add(time.Duration(i) * step),
		}
	}
	return out
}

func matchedResult(controller string, times ...time.Time) detector.Result {
	res := detector.Result{
		ByController: map[string]*detector.Contact{},
		MatchedTimes: map[time.Time]struct{}{},
	}
	c := &detector.Contact{Controller: controller}
	for _, t := range times {
		c.SampleTimes = append(c.SampleTimes, t)
		res.MatchedTimes[t] = struct{}{}
	}
	res.ByController[controller] = c
	return res
}

func TestBuildFlightSummary(t *testing.T) {
	logon := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	key := storage.FlightKey{Callsign: "QFA1", CID: 123456, LogonTime: logon}
	cfg := FlightSummarizerConfig{AirborneSpeedKt: 50, PollInterval: time.Minute}

	// Ten samples a minute apart. First two on the ground, the rest
	// airborne. Contact during samples 2 through 5.
	history := flightHistory(key, []int{0, 10, 300, 420, 450, 450, 450, 450, 450, 450}, logon, time.Minute)
	contacts := matchedResult("ML_CTR",
		history[2].LastUpdated,
		history[3].LastUpdated,
		history[4].LastUpdated,
		history[5].LastUpdated,
	)
	now := logon.Add(24 * time.Hour)

	s := buildFlightSummary(key, history, contacts, cfg, now)

	if s.Callsign != "QFA1" || s.CID != 123456 {
		t.Errorf("identity = %s/%d", s.Callsign, s.CID)
	}
	if s.Departure != "YSSY" || s.Arrival != "YMML" || s.AircraftType != "B738" {
		t.Errorf("plan = %s-%s %s", s.Departure, s.Arrival, s.AircraftType)
	}
	if want := 9.0; s.TimeOnlineMinutes != want {
		t.Errorf("TimeOnlineMinutes = %v, want %v", s.TimeOnlineMinutes, want)
	}
	if want := 4.0; s.ControllerCallsigns["ML_CTR"] != want {
		t.Errorf("ControllerCallsigns[ML_CTR] = %v, want %v", s.ControllerCallsigns["ML_CTR"], want)
	}

	// 4 matched minutes of 9 online.
	if s.ControllerTimePercentage == nil {
		t.Fatal("ControllerTimePercentage is nil")
	}
	if want := 100 * 4.0 / 9.0; math.Abs(*s.ControllerTimePercentage-want) > 1e-9 {
		t.Errorf("ControllerTimePercentage = %v, want %v", *s.ControllerTimePercentage, want)
	}

	// 8 airborne samples, 4 of them in contact.
	if s.AirborneControllerTimePct == nil {
		t.Fatal("AirborneControllerTimePct is nil")
	}
	if want := 50.0; math.Abs(*s.AirborneControllerTimePct-want) > 1e-9 {
		t.Errorf("AirborneControllerTimePct = %v, want %v", *s.AirborneControllerTimePct, want)
	}
	if !s.CompletionTime.Equal(now) {
		t.Errorf("CompletionTime = %v, want %v", s.CompletionTime, now)
	}
}

func TestBuildFlightSummarySkewedSampleClocks(t *testing.T) {
	logon := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	key := storage.FlightKey{Callsign: "QFA3", CID: 7, LogonTime: logon}
	cfg := FlightSummarizerConfig{AirborneSpeedKt: 50, PollInterval: time.Minute}

	// Flight rows carry the pilot's own update clock, which runs a few
	// seconds behind the snapshot clock the transceiver samples use.
	history := flightHistory(key, []int{450, 450, 450, 450, 450, 450, 450, 450, 450, 450}, logon, time.Minute)
	snapTimes := make([]time.Time, len(history))
	for i := range history {
		snapTimes[i] = history[i].LastUpdated.Add(3 * time.Second)
	}
	contacts := matchedResult("ML_CTR", snapTimes...)

	s := buildFlightSummary(key, history, contacts, cfg, logon.Add(time.Hour))

	if s.AirborneControllerTimePct == nil {
		t.Fatal("AirborneControllerTimePct is nil")
	}
	if want := 100.0; math.Abs(*s.AirborneControllerTimePct-want) > 1e-9 {
		t.Errorf("AirborneControllerTimePct = %v, want %v for continuous contact", *s.AirborneControllerTimePct, want)
	}
}

func TestCoveredAtTolerance(t *testing.T) {
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	matched := map[time.Time]struct{}{base: {}}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"exact", base, true},
		{"behind within tolerance", base.Add(-29 * time.Second), true},
		{"ahead at tolerance", base.Add(30 * time.Second), true},
		{"beyond tolerance", base.Add(31 * time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coveredAt(matched, tt.at, 30*time.Second); got != tt.want {
				t.Errorf("coveredAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildFlightSummaryNoAirborneSamples(t *testing.T) {
	logon := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	key := storage.FlightKey{Callsign: "QFA2", CID: 1, LogonTime: logon}
	cfg := FlightSummarizerConfig{AirborneSpeedKt: 50, PollInterval: time.Minute}

	history := flightHistory(key, []int{0, 5, 12}, logon, time.Minute)
	empty := detector.Result{
		ByController: map[string]*detector.Contact{},
		MatchedTimes: map[time.Time]struct{}{},
	}

	s := buildFlightSummary(key, history, empty, cfg, logon.Add(time.Hour))
	if s.AirborneControllerTimePct != nil {
		t.Errorf("AirborneControllerTimePct = %v, want nil for a flight that never flew",
			*s.AirborneControllerTimePct)
	}
	if s.ControllerTimePercentage == nil || *s.ControllerTimePercentage != 0 {
		t.Errorf("ControllerTimePercentage = %v, want 0", s.ControllerTimePercentage)
	}
}

func TestApplySectorBreakdown(t *testing.T) {
	entry := time.Date(2026, 8, 26, 11, 0, 0, 0, time.UTC)
	secs := func(n int) *int { return &n }

	var s storage.FlightSummary
	occ := []storage.SectorOccupancy{
		{SectorName: "ARL", EntryTime: entry, DurationSeconds: secs(1800)},
		{SectorName: "ELW", EntryTime: entry, DurationSeconds: secs(3600)},
		{SectorName: "ARL", EntryTime: entry.Add(2 * time.Hour), DurationSeconds: secs(600)},
	}
	applySectorBreakdown(&s, occ, entry.Add(3*time.Hour))

	if s.TotalEnrouteSectors != 2 {
		t.Errorf("TotalEnrouteSectors = %d, want 2", s.TotalEnrouteSectors)
	}
	if s.PrimaryEnrouteSector != "ELW" {
		t.Errorf("PrimaryEnrouteSector = %q, want ELW", s.PrimaryEnrouteSector)
	}
	if want := 100.0; s.TotalEnrouteTimeMinutes != want {
		t.Errorf("TotalEnrouteTimeMinutes = %v, want %v", s.TotalEnrouteTimeMinutes, want)
	}
	if got := s.SectorBreakdown["ARL"]; got != 40 {
		t.Errorf("SectorBreakdown[ARL] = %v, want 40", got)
	}
}

func TestApplySectorBreakdownOpenRowUsesLastSeen(t *testing.T) {
	entry := time.Date(2026, 8, 26, 11, 0, 0, 0, time.UTC)

	var s storage.FlightSummary
	occ := []storage.SectorOccupancy{
		{SectorName: "ARL", EntryTime: entry},
	}
	applySectorBreakdown(&s, occ, entry.Add(30*time.Minute))

	if got := s.SectorBreakdown["ARL"]; got != 30 {
		t.Errorf("open row minutes = %v, want 30", got)
	}
}

func TestApplySectorBreakdownEmpty(t *testing.T) {
	var s storage.FlightSummary
	applySectorBreakdown(&s, nil, time.Now())
	if s.SectorBreakdown != nil || s.PrimaryEnrouteSector != "" {
		t.Errorf("empty occupancy should leave the summary untouched: %+v", s)
	}
}
