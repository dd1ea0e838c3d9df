// Package detector finds ATC-to-flight radio contact by correlating
// transceiver samples on frequency, time and distance.
package detector

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"vatsim_tracker/internal/geo"
	"vatsim_tracker/internal/storage"
)

// FacilityKind is the controller position type inferred from a callsign.
type FacilityKind string

const (
	KindGround   FacilityKind = "ground"
	KindTower    FacilityKind = "tower"
	KindApproach FacilityKind = "approach"
	KindCenter   FacilityKind = "center"
	KindFSS      FacilityKind = "fss"
	KindOther    FacilityKind = "other"
)

// Ranges holds the proximity threshold, in nautical miles, for each
// position type.
type Ranges struct {
	GroundNM   float64
	TowerNM    float64
	ApproachNM float64
	CenterNM   float64
	FSSNM      float64
	DefaultNM  float64
}

// Classify maps a controller callsign to a position type using the suffix
// after the last underscore.
func Classify(callsign string) FacilityKind {
	idx := strings.LastIndex(callsign, "_")
	if idx < 0 || idx == len(callsign)-1 {
		return KindOther
	}
	switch strings.ToUpper(callsign[idx+1:]) {
	case "DEL", "GND":
		return KindGround
	case "TWR":
		return KindTower
	case "APP", "DEP":
		return KindApproach
	case "CTR":
		return KindCenter
	case "FSS":
		return KindFSS
	default:
		return KindOther
	}
}

// RangeNM returns the proximity threshold for a controller callsign.
func (r Ranges) RangeNM(callsign string) float64 {
	switch Classify(callsign) {
	case KindGround:
		return r.GroundNM
	case KindTower:
		return r.TowerNM
	case KindApproach:
		return r.ApproachNM
	case KindCenter:
		return r.CenterNM
	case KindFSS:
		return r.FSSNM
	default:
		return r.DefaultNM
	}
}

// Contact is the set of matched flight transceiver samples for one
// controller callsign.
type Contact struct {
	Controller  string
	SampleTimes []time.Time
	First       time.Time
	Last        time.Time
	Frequencies map[int64]struct{}
	Flights     map[string]FlightContact

	seenTimes  map[time.Time]struct{}
	seenFlight map[flightSampleKey]struct{}
}

type flightSampleKey struct {
	callsign string
	at       time.Time
}

// FlightContact is one flight's matched window under a controller.
type FlightContact struct {
	Callsign  string
	FirstSeen time.Time
	LastSeen  time.Time
	Samples   int
}

// Result is the outcome of matching one flight's samples against a set of
// ATC samples.
type Result struct {
	// ByController holds per-controller contact details.
	ByController map[string]*Contact
	// MatchedTimes is the distinct set of flight sample times that matched
	// any controller. Its size over the total sample-time count gives the
	// flight's controller coverage.
	MatchedTimes map[time.Time]struct{}
}

// Matcher implements the pure frequency/time/distance match. It has no
// database dependencies so tests can drive it directly.
type Matcher struct {
	Ranges         Ranges
	TimeWindow     time.Duration
	GuardFrequency int64
}

// Match correlates flight transceiver samples with ATC transceiver samples.
// Two samples match when they are on the same frequency, within the time
// window of each other, and within the controller type's range. The guard
// frequency never matches.
func (m *Matcher) Match(flightSamples, atcSamples []storage.TransceiverSample) Result {
	res := Result{
		ByController: map[string]*Contact{},
		MatchedTimes: map[time.Time]struct{}{},
	}

	// Index ATC samples by frequency so each flight sample only scans
	// candidates on its own channel.
	byFreq := map[int64][]storage.TransceiverSample{}
	for _, a := range atcSamples {
		if a.Frequency == m.GuardFrequency || !a.HasPosition() {
			continue
		}
		byFreq[a.Frequency] = append(byFreq[a.Frequency], a)
	}

	for _, f := range flightSamples {
		if f.Frequency == m.GuardFrequency || !f.HasPosition() {
			continue
		}
		for _, a := range byFreq[f.Frequency] {
			dt := f.SampleTime.Sub(a.SampleTime)
			if dt < 0 {
				dt = -dt
			}
			if dt > m.TimeWindow {
				continue
			}
			rangeM := m.Ranges.RangeNM(a.Callsign) * geo.MetersPerNauticalMile
			dist := geo.DistanceMeters(*f.Latitude, *f.Longitude, *a.Latitude, *a.Longitude)
			if dist > rangeM {
				continue
			}
			res.record(a.Callsign, f)
		}
	}
	return res
}

func (r *Result) record(controller string, f storage.TransceiverSample) {
	c := r.ByController[controller]
	if c == nil {
		c = &Contact{
			Controller:  controller,
			Frequencies: map[int64]struct{}{},
			Flights:     map[string]FlightContact{},
			seenTimes:   map[time.Time]struct{}{},
			seenFlight:  map[flightSampleKey]struct{}{},
		}
		r.ByController[controller] = c
	}

	// A flight sample can match several ATC samples of the same
	// controller; count each (flight, sample time) pair once.
	if _, ok := c.seenTimes[f.SampleTime]; !ok {
		c.seenTimes[f.SampleTime] = struct{}{}
		c.SampleTimes = append(c.SampleTimes, f.SampleTime)
		if c.First.IsZero() || f.SampleTime.Before(c.First) {
			c.First = f.SampleTime
		}
		if f.SampleTime.After(c.Last) {
			c.Last = f.SampleTime
		}
	}

	fk := flightSampleKey{callsign: f.Callsign, at: f.SampleTime}
	if _, ok := c.seenFlight[fk]; !ok {
		c.seenFlight[fk] = struct{}{}
		fc, exists := c.Flights[f.Callsign]
		if !exists {
			fc = FlightContact{Callsign: f.Callsign, FirstSeen: f.SampleTime, LastSeen: f.SampleTime}
		} else {
			if f.SampleTime.Before(fc.FirstSeen) {
				fc.FirstSeen = f.SampleTime
			}
			if f.SampleTime.After(fc.LastSeen) {
				fc.LastSeen = f.SampleTime
			}
		}
		fc.Samples++
		c.Flights[f.Callsign] = fc
	}

	c.Frequencies[f.Frequency] = struct{}{}
	r.MatchedTimes[f.SampleTime] = struct{}{}
}

// Detector runs matches against stored transceiver data.
type Detector struct {
	db      *storage.DB
	matcher Matcher
	log     *zap.SugaredLogger
}

func New(db *storage.DB, matcher Matcher, log *zap.SugaredLogger) *Detector {
	return &Detector{db: db, matcher: matcher, log: log}
}

// Matcher exposes the underlying pure matcher.
func (d *Detector) Matcher() Matcher {
	return d.matcher
}

// ATCSamplesInWindow loads the ATC transceiver samples relevant to a time
// window. The controller pre-filter runs first so only callsigns with a
// real facility that were online in the window are fetched.
func (d *Detector) ATCSamplesInWindow(ctx context.Context, start, end time.Time) ([]storage.TransceiverSample, error) {
	callsigns, err := d.db.ActiveControllerCallsigns(ctx, start)
	if err != nil {
		return nil, err
	}
	if len(callsigns) == 0 {
		return nil, nil
	}
	// The time window pads both ends so samples just outside the flight's
	// own window can still pair with edge samples.
	pad := d.matcher.TimeWindow
	return d.db.ATCTransceivers(ctx, callsigns, start.Add(-pad), end.Add(pad))
}

// ContactsForFlight matches one flight's transceiver history against the
// controllers active over the same window.
func (d *Detector) ContactsForFlight(ctx context.Context, callsign string, start, end time.Time) (Result, error) {
	flightSamples, err := d.db.FlightTransceivers(ctx, callsign, start, end)
	if err != nil {
		return Result{}, err
	}
	if len(flightSamples) == 0 {
		return Result{ByController: map[string]*Contact{}, MatchedTimes: map[time.Time]struct{}{}}, nil
	}
	atcSamples, err := d.ATCSamplesInWindow(ctx, start, end)
	if err != nil {
		return Result{}, err
	}
	res := d.matcher.Match(flightSamples, atcSamples)
	d.log.Debugw("matched flight contacts",
		"callsign", callsign,
		"flight_samples", len(flightSamples),
		"atc_samples", len(atcSamples),
		"controllers", len(res.ByController))
	return res, nil
}

// ContactsForController matches every flight sample in a window against one
// controller's transceiver samples. Used by the controller summarizer.
func (d *Detector) ContactsForController(ctx context.Context, callsign string, start, end time.Time) (*Contact, error) {
	atcSamples, err := d.db.ATCTransceivers(ctx, []string{callsign}, start, end)
	if err != nil {
		return nil, err
	}
	if len(atcSamples) == 0 {
		return nil, nil
	}
	pad := d.matcher.TimeWindow
	flightSamples, err := d.db.AllFlightTransceivers(ctx, start.Add(-pad), end.Add(pad))
	if err != nil {
		return nil, err
	}
	res := d.matcher.Match(flightSamples, atcSamples)
	return res.ByController[callsign], nil
}
