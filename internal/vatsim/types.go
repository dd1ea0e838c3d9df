// Package vatsim fetches and decodes the public VATSIM network snapshot.
package vatsim

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// coercionFailures counts numeric fields that carried a value but could
// not be coerced and were nulled. The client logs the delta per fetch.
var coercionFailures atomic.Int64

// CoercionFailures returns the number of nulled uncoercible numeric fields
// since process start.
func CoercionFailures() int64 { return coercionFailures.Load() }

// FlexInt handles JSON fields that can be either string or number.
// An unparseable value decodes as invalid rather than failing the document.
type FlexInt struct {
	Int64 int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	f.Int64, f.Valid = 0, false
	if string(data) == "null" {
		return nil
	}

	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		f.Int64, f.Valid = i, true
		return nil
	}

	// Upstream sometimes emits numbers as strings, occasionally with a
	// fractional part ("36000.0").
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.Int64, f.Valid = i, true
			return nil
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil {
			f.Int64, f.Valid = int64(fl), true
			return nil
		}
	}
	coercionFailures.Add(1)
	return nil
}

// FlexFloat is the float counterpart of FlexInt.
type FlexFloat struct {
	Float64 float64
	Valid   bool
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	f.Float64, f.Valid = 0, false
	if string(data) == "null" {
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		f.Float64, f.Valid = v, true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			f.Float64, f.Valid = v, true
			return nil
		}
	}
	coercionFailures.Add(1)
	return nil
}

// Snapshot is one document from the VATSIM data feed. The three entity
// arrays are required; General carries the feed's own update bookkeeping.
type Snapshot struct {
	General      General            `json:"general"`
	Pilots       []Pilot            `json:"pilots"`
	Controllers  []Controller       `json:"controllers"`
	Transceivers []TransceiverGroup `json:"transceivers"`
}

// Time returns the snapshot's upstream timestamp, falling back to now when
// the feed omits it.
func (s *Snapshot) Time() time.Time {
	if !s.General.UpdateTimestamp.IsZero() {
		return s.General.UpdateTimestamp
	}
	return time.Now().UTC()
}

// General holds feed metadata.
type General struct {
	Version          int       `json:"version"`
	Update           string    `json:"update"`
	UpdateTimestamp  time.Time `json:"update_timestamp"`
	ConnectedClients int       `json:"connected_clients"`
	UniqueUsers      int       `json:"unique_users"`
}

// Pilot is one pilot connection in the snapshot.
type Pilot struct {
	CID            int       `json:"cid"`
	Name           string    `json:"name"`
	Callsign       string    `json:"callsign"`
	Server         string    `json:"server"`
	PilotRating    int       `json:"pilot_rating"`
	MilitaryRating int       `json:"military_rating"`
	Latitude       FlexFloat `json:"latitude"`
	Longitude      FlexFloat `json:"longitude"`
	Altitude       FlexInt   `json:"altitude"`
	Groundspeed    FlexInt   `json:"groundspeed"`
	Transponder    string    `json:"transponder"`
	Heading        FlexInt   `json:"heading"`
	QNHiHg         FlexFloat `json:"qnh_i_hg"`
	QNHMb          FlexFloat `json:"qnh_mb"`
	LogonTime      time.Time `json:"logon_time"`
	LastUpdated    time.Time `json:"last_updated"`

	FlightPlan *FlightPlan `json:"flight_plan"`
}

// FlightPlan is the filed plan attached to a pilot, when present.
type FlightPlan struct {
	FlightRules         string  `json:"flight_rules"`
	Aircraft            string  `json:"aircraft"`
	AircraftFAA         string  `json:"aircraft_faa"`
	AircraftShort       string  `json:"aircraft_short"`
	Departure           string  `json:"departure"`
	Arrival             string  `json:"arrival"`
	Alternate           string  `json:"alternate"`
	CruiseTAS           string  `json:"cruise_tas"`
	Altitude            string  `json:"altitude"`
	DepTime             string  `json:"deptime"`
	EnrouteTime         string  `json:"enroute_time"`
	FuelTime            string  `json:"fuel_time"`
	Remarks             string  `json:"remarks"`
	Route               string  `json:"route"`
	RevisionID          FlexInt `json:"revision_id"`
	AssignedTransponder string  `json:"assigned_transponder"`
}

// Controller is one ATC connection in the snapshot.
type Controller struct {
	CID         int       `json:"cid"`
	Name        string    `json:"name"`
	Callsign    string    `json:"callsign"`
	Frequency   string    `json:"frequency"`
	Facility    int       `json:"facility"`
	Rating      int       `json:"rating"`
	Server      string    `json:"server"`
	VisualRange int       `json:"visual_range"`
	TextATIS    []string  `json:"text_atis"`
	LogonTime   time.Time `json:"logon_time"`
	LastUpdated time.Time `json:"last_updated"`
}

// TransceiverGroup is the set of radio transceivers owned by one callsign.
type TransceiverGroup struct {
	Callsign     string        `json:"callsign"`
	Transceivers []Transceiver `json:"transceivers"`
}

// Transceiver is a single radio endpoint. Frequency is Hz and exceeds the
// 32-bit range for typical airband values.
type Transceiver struct {
	ID         int       `json:"id"`
	Frequency  int64     `json:"frequency"`
	Latitude   FlexFloat `json:"latLat"`
	Longitude  FlexFloat `json:"latLon"`
	HeightMSLM float64   `json:"heightMslM"`
	HeightAGLM float64   `json:"heightAglM"`
}
