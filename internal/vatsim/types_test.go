package vatsim

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexIntUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      int64
		wantValid bool
	}{
		{"number", `36000`, 36000, true},
		{"negative number", `-150`, -150, true},
		{"string number", `"36000"`, 36000, true},
		{"string with fraction", `"36000.0"`, 36000, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage string", `"FL360"`, 0, false},
		{"padded string", `" 250 "`, 250, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexInt
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.input, err)
			}
			if f.Valid != tt.wantValid || f.Int64 != tt.want {
				t.Errorf("Unmarshal(%s) = {%d, %v}, want {%d, %v}",
					tt.input, f.Int64, f.Valid, tt.want, tt.wantValid)
			}
		})
	}
}

func TestFlexFloatUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      float64
		wantValid bool
	}{
		{"number", `-33.9461`, -33.9461, true},
		{"string number", `"151.1772"`, 151.1772, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage", `"south"`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexFloat
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.input, err)
			}
			if f.Valid != tt.wantValid || f.Float64 != tt.want {
				t.Errorf("Unmarshal(%s) = {%v, %v}, want {%v, %v}",
					tt.input, f.Float64, f.Valid, tt.want, tt.wantValid)
			}
		})
	}
}

func TestCoercionFailureCounter(t *testing.T) {
	before := CoercionFailures()

	var i FlexInt
	if err := json.Unmarshal([]byte(`"FL360"`), &i); err != nil {
		t.Fatal(err)
	}
	var f FlexFloat
	if err := json.Unmarshal([]byte(`"south of the field"`), &f); err != nil {
		t.Fatal(err)
	}
	if i.Valid || f.Valid {
		t.Error("uncoercible values should decode as invalid")
	}
	if got := CoercionFailures() - before; got != 2 {
		t.Errorf("counter advanced by %d, want 2", got)
	}

	// Nulls and empty strings are absent values, not coercion failures.
	before = CoercionFailures()
	_ = json.Unmarshal([]byte(`null`), &i)
	_ = json.Unmarshal([]byte(`""`), &f)
	if got := CoercionFailures() - before; got != 0 {
		t.Errorf("counter advanced by %d for absent values, want 0", got)
	}
}

func TestSnapshotDecode(t *testing.T) {
	doc := `{
		"general": {
			"version": 3,
			"update": "20260826120000",
			"update_timestamp": "2026-08-26T12:00:00Z",
			"connected_clients": 2,
			"unique_users": 2
		},
		"pilots": [{
			"cid": 123456,
			"name": "Test Pilot",
			"callsign": "QFA1",
			"server": "SYDNEY",
			"latitude": -33.9461,
			"longitude": "151.1772",
			"altitude": "36000.0",
			"groundspeed": 450,
			"heading": 270,
			"transponder": "3601",
			"logon_time": "2026-08-26T10:00:00Z",
			"last_updated": "2026-08-26T12:00:00Z",
			"flight_plan": {
				"flight_rules": "I",
				"aircraft_faa": "B738/L",
				"departure": "YSSY",
				"arrival": "YMML",
				"revision_id": "4"
			}
		}],
		"controllers": [{
			"cid": 654321,
			"name": "Test Controller",
			"callsign": "ML_CTR",
			"frequency": "125.300",
			"facility": 6,
			"rating": 5,
			"visual_range": 600,
			"text_atis": ["line one", "line two"],
			"logon_time": "2026-08-26T09:00:00Z",
			"last_updated": "2026-08-26T12:00:00Z"
		}],
		"transceivers": [{
			"callsign": "QFA1",
			"transceivers": [{
				"id": 0,
				"frequency": 125300000,
				"latLat": -34.1,
				"latLon": 150.9,
				"heightMslM": 10972.8,
				"heightAglM": 10900.1
			}]
		}]
	}`

	var snap Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(snap.Pilots) != 1 || len(snap.Controllers) != 1 || len(snap.Transceivers) != 1 {
		t.Fatalf("got %d pilots, %d controllers, %d transceiver groups",
			len(snap.Pilots), len(snap.Controllers), len(snap.Transceivers))
	}

	p := snap.Pilots[0]
	if p.Callsign != "QFA1" || !p.Longitude.Valid || p.Longitude.Float64 != 151.1772 {
		t.Errorf("pilot = %+v", p)
	}
	if !p.Altitude.Valid || p.Altitude.Int64 != 36000 {
		t.Errorf("altitude = %+v, want 36000", p.Altitude)
	}
	if p.FlightPlan == nil || p.FlightPlan.Departure != "YSSY" {
		t.Fatalf("flight plan = %+v", p.FlightPlan)
	}
	if !p.FlightPlan.RevisionID.Valid || p.FlightPlan.RevisionID.Int64 != 4 {
		t.Errorf("revision_id = %+v, want 4", p.FlightPlan.RevisionID)
	}

	tr := snap.Transceivers[0].Transceivers[0]
	if tr.Frequency != 125300000 {
		t.Errorf("frequency = %d, want 125300000", tr.Frequency)
	}
	if !tr.Latitude.Valid || tr.Latitude.Float64 != -34.1 {
		t.Errorf("transceiver latitude = %+v", tr.Latitude)
	}

	want := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	if !snap.Time().Equal(want) {
		t.Errorf("Time() = %v, want %v", snap.Time(), want)
	}
}

func TestSnapshotTimeFallback(t *testing.T) {
	var snap Snapshot
	before := time.Now().UTC()
	got := snap.Time()
	if got.Before(before) || time.Since(got) > time.Minute {
		t.Errorf("Time() fallback = %v, want about now", got)
	}
}
