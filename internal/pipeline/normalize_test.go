package pipeline

import (
	"testing"
	"time"

	"vatsim_tracker/internal/storage"
	"vatsim_tracker/internal/vatsim"
)

func testSnapshot() *vatsim.Snapshot {
	inside := validPilot(-33.9, 151.2)
	outside := validPilot(51.5, -0.12)
	outside.Callsign = "BAW9"

	return &vatsim.Snapshot{
		General: vatsim.General{
			Update:          "20260826120000",
			UpdateTimestamp: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		},
		Pilots: []vatsim.Pilot{*inside, *outside},
		Controllers: []vatsim.Controller{
			{Callsign: "ML_CTR", Facility: 6, Frequency: "125.300", TextATIS: []string{"line one", "line two"}},
			{Callsign: "ML_OBS", Facility: 0},
		},
		Transceivers: []vatsim.TransceiverGroup{
			{Callsign: "QFA1", Transceivers: []vatsim.Transceiver{{ID: 0, Frequency: 125300000}}},
			{Callsign: "ML_CTR", Transceivers: []vatsim.Transceiver{{ID: 0, Frequency: 125300000}, {ID: 1, Frequency: 121500000}}},
			{Callsign: "BAW9", Transceivers: []vatsim.Transceiver{{ID: 0, Frequency: 127100000}}},
			{Callsign: "GHOST", Transceivers: []vatsim.Transceiver{{ID: 0, Frequency: 118100000}}},
		},
	}
}

func TestNormalize(t *testing.T) {
	f := testFilter(t, "")
	snap := testSnapshot()
	got := Normalize(snap, f)

	if !got.Time.Equal(snap.General.UpdateTimestamp) {
		t.Errorf("Time = %v, want %v", got.Time, snap.General.UpdateTimestamp)
	}
	if len(got.Flights) != 1 || got.Flights[0].Callsign != "QFA1" {
		t.Fatalf("Flights = %+v, want just QFA1", got.Flights)
	}
	if len(got.Controllers) != 1 || got.Controllers[0].Callsign != "ML_CTR" {
		t.Fatalf("Controllers = %+v, want just ML_CTR", got.Controllers)
	}
	if want := "line one\nline two"; got.Controllers[0].TextATIS != want {
		t.Errorf("TextATIS = %q, want %q", got.Controllers[0].TextATIS, want)
	}

	// BAW9's group goes with its rejected owner, GHOST has no owner at all.
	if len(got.Transceivers) != 3 {
		t.Fatalf("got %d transceivers, want 3", len(got.Transceivers))
	}
	byCallsign := map[string]string{}
	for _, tr := range got.Transceivers {
		byCallsign[tr.Callsign] = tr.EntityType
		if !tr.SampleTime.Equal(got.Time) {
			t.Errorf("transceiver %s sample time = %v, want snapshot time", tr.Callsign, tr.SampleTime)
		}
	}
	if byCallsign["QFA1"] != storage.EntityFlight {
		t.Errorf("QFA1 entity = %q, want %q", byCallsign["QFA1"], storage.EntityFlight)
	}
	if byCallsign["ML_CTR"] != storage.EntityATC {
		t.Errorf("ML_CTR entity = %q, want %q", byCallsign["ML_CTR"], storage.EntityATC)
	}

	stats := f.Stats().View()
	if stats.TransceiversAdmitted != 3 {
		t.Errorf("TransceiversAdmitted = %d, want 3", stats.TransceiversAdmitted)
	}
	if stats.TransceiversUnknown != 2 {
		t.Errorf("TransceiversUnknown = %d, want 2", stats.TransceiversUnknown)
	}
}

func TestNormalizeFlightPlanFields(t *testing.T) {
	f := testFilter(t, "")
	p := validPilot(-33.9, 151.2)
	p.FlightPlan.Departure = "yssy"
	p.FlightPlan.Arrival = "ymml"
	p.FlightPlan.Alternate = "yscb"
	p.FlightPlan.Route = "DCT RIVET DCT"
	p.FlightPlan.RevisionID = vatsim.FlexInt{Int64: 4, Valid: true}
	p.Groundspeed = vatsim.FlexInt{Int64: 420, Valid: true}

	got := Normalize(&vatsim.Snapshot{Pilots: []vatsim.Pilot{*p}}, f)
	if len(got.Flights) != 1 {
		t.Fatalf("got %d flights, want 1", len(got.Flights))
	}
	s := got.Flights[0]
	if s.Departure != "YSSY" || s.Arrival != "YMML" || s.Alternate != "YSCB" {
		t.Errorf("airports not uppercased: %q %q %q", s.Departure, s.Arrival, s.Alternate)
	}
	if s.Route != "DCT RIVET DCT" {
		t.Errorf("Route = %q", s.Route)
	}
	if s.RevisionID == nil || *s.RevisionID != 4 {
		t.Errorf("RevisionID = %v, want 4", s.RevisionID)
	}
	if s.Groundspeed == nil || *s.Groundspeed != 420 {
		t.Errorf("Groundspeed = %v, want 420", s.Groundspeed)
	}
}

func TestNormalizeDropsNonPositiveFrequencies(t *testing.T) {
	f := testFilter(t, "")
	p := validPilot(-33.9, 151.2)
	snap := &vatsim.Snapshot{
		Pilots: []vatsim.Pilot{*p},
		Transceivers: []vatsim.TransceiverGroup{
			{Callsign: "QFA1", Transceivers: []vatsim.Transceiver{
				{ID: 0, Frequency: 125300000},
				{ID: 1, Frequency: 0},
				{ID: 2, Frequency: -118100000},
			}},
		},
	}

	got := Normalize(snap, f)
	if len(got.Transceivers) != 1 {
		t.Fatalf("got %d transceivers, want 1", len(got.Transceivers))
	}
	if got.Transceivers[0].Frequency != 125300000 {
		t.Errorf("kept frequency = %d, want 125300000", got.Transceivers[0].Frequency)
	}

	stats := f.Stats().View()
	if stats.TransceiversInvalid != 2 {
		t.Errorf("TransceiversInvalid = %d, want 2", stats.TransceiversInvalid)
	}
	if stats.TransceiversAdmitted != 1 {
		t.Errorf("TransceiversAdmitted = %d, want 1", stats.TransceiversAdmitted)
	}
}

func TestNormalizeMissingPositionFields(t *testing.T) {
	f := testFilter(t, "")
	p := validPilot(0, 0)
	p.Latitude.Valid = false
	p.Longitude.Valid = false

	got := Normalize(&vatsim.Snapshot{Pilots: []vatsim.Pilot{*p}}, f)
	if len(got.Flights) != 1 {
		t.Fatalf("got %d flights, want 1", len(got.Flights))
	}
	if got.Flights[0].Latitude != nil || got.Flights[0].Longitude != nil {
		t.Errorf("missing coordinates should map to nil, got %v %v",
			got.Flights[0].Latitude, got.Flights[0].Longitude)
	}
}
