package pipeline

import (
	"strings"
	"time"

	"vatsim_tracker/internal/storage"
	"vatsim_tracker/internal/vatsim"
)

// Normalized is the filtered, database-ready view of one snapshot.
type Normalized struct {
	Time         time.Time
	Flights      []storage.FlightSample
	Controllers  []storage.ControllerSample
	Transceivers []storage.TransceiverSample
}

// Normalize converts a snapshot into samples, applying the filters.
// Transceiver rows take their entity type from whichever admitted list
// their owning callsign appears in; rows owned by nobody are dropped.
func Normalize(snap *vatsim.Snapshot, filter *Filter) *Normalized {
	now := time.Now().UTC()
	snapTime := snap.Time()

	out := &Normalized{Time: snapTime}
	flightCallsigns := map[string]struct{}{}
	atcCallsigns := map[string]struct{}{}

	for i := range snap.Pilots {
		p := &snap.Pilots[i]
		if !filter.AdmitPilot(p) {
			continue
		}
		out.Flights = append(out.Flights, flightSample(p, now))
		flightCallsigns[p.Callsign] = struct{}{}
	}

	for i := range snap.Controllers {
		c := &snap.Controllers[i]
		if !filter.AdmitController(c) {
			continue
		}
		out.Controllers = append(out.Controllers, controllerSample(c, now))
		atcCallsigns[c.Callsign] = struct{}{}
	}

	for _, group := range snap.Transceivers {
		var entity string
		if _, ok := flightCallsigns[group.Callsign]; ok {
			entity = storage.EntityFlight
		} else if _, ok := atcCallsigns[group.Callsign]; ok {
			entity = storage.EntityATC
		} else {
			filter.Stats().TransceiversUnknown.Add(int64(len(group.Transceivers)))
			continue
		}
		for _, t := range group.Transceivers {
			if t.Frequency <= 0 {
				filter.Stats().TransceiversInvalid.Add(1)
				continue
			}
			out.Transceivers = append(out.Transceivers, storage.TransceiverSample{
				Callsign:      group.Callsign,
				TransceiverID: t.ID,
				Frequency:     t.Frequency,
				Latitude:      floatPtr(t.Latitude),
				Longitude:     floatPtr(t.Longitude),
				HeightMSLM:    t.HeightMSLM,
				HeightAGLM:    t.HeightAGLM,
				EntityType:    entity,
				SampleTime:    snapTime,
				IngestedAt:    now,
			})
			filter.Stats().TransceiversAdmitted.Add(1)
		}
	}
	return out
}

func flightSample(p *vatsim.Pilot, now time.Time) storage.FlightSample {
	s := storage.FlightSample{
		Callsign:    p.Callsign,
		CID:         p.CID,
		Name:        p.Name,
		Server:      p.Server,
		Latitude:    floatPtr(p.Latitude),
		Longitude:   floatPtr(p.Longitude),
		Altitude:    intPtr(p.Altitude),
		Heading:     intPtr(p.Heading),
		Groundspeed: intPtr(p.Groundspeed),
		Transponder: p.Transponder,
		QNHiHg:      floatPtr(p.QNHiHg),
		QNHMb:       floatPtr(p.QNHMb),
		LogonTime:   p.LogonTime,
		LastUpdated: p.LastUpdated,
		IngestedAt:  now,
	}
	if fp := p.FlightPlan; fp != nil {
		s.FlightRules = fp.FlightRules
		s.Aircraft = fp.Aircraft
		s.AircraftFAA = fp.AircraftFAA
		s.AircraftShort = fp.AircraftShort
		s.Departure = strings.ToUpper(fp.Departure)
		s.Arrival = strings.ToUpper(fp.Arrival)
		s.Alternate = strings.ToUpper(fp.Alternate)
		s.CruiseTAS = fp.CruiseTAS
		s.PlannedAltitude = fp.Altitude
		s.DepTime = fp.DepTime
		s.EnrouteTime = fp.EnrouteTime
		s.FuelTime = fp.FuelTime
		s.Remarks = fp.Remarks
		s.Route = fp.Route
		s.RevisionID = intPtr(fp.RevisionID)
		s.AssignedTransponder = fp.AssignedTransponder
	}
	return s
}

func controllerSample(c *vatsim.Controller, now time.Time) storage.ControllerSample {
	return storage.ControllerSample{
		Callsign:    c.Callsign,
		CID:         c.CID,
		Name:        c.Name,
		Rating:      c.Rating,
		Facility:    c.Facility,
		VisualRange: c.VisualRange,
		TextATIS:    strings.Join(c.TextATIS, "\n"),
		Frequency:   c.Frequency,
		Server:      c.Server,
		LogonTime:   c.LogonTime,
		LastUpdated: c.LastUpdated,
		IngestedAt:  now,
	}
}

func floatPtr(f vatsim.FlexFloat) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func intPtr(f vatsim.FlexInt) *int {
	if !f.Valid {
		return nil
	}
	v := int(f.Int64)
	return &v
}
