package storage

import (
	"fmt"
	"time"
)

// FlightKey identifies one pilot connection across its lifetime.
type FlightKey struct {
	Callsign  string
	CID       int
	LogonTime time.Time
}

func (k FlightKey) String() string {
	return fmt.Sprintf("%s/%d@%s", k.Callsign, k.CID, k.LogonTime.UTC().Format(time.RFC3339))
}

// FlightSample is one observation of a pilot connection.
type FlightSample struct {
	ID                  int64
	Callsign            string
	CID                 int
	Name                string
	Server              string
	Latitude            *float64
	Longitude           *float64
	Altitude            *int
	Heading             *int
	Groundspeed         *int
	Transponder         string
	FlightRules         string
	Aircraft            string
	AircraftFAA         string
	AircraftShort       string
	Departure           string
	Arrival             string
	Alternate           string
	CruiseTAS           string
	PlannedAltitude     string
	DepTime             string
	EnrouteTime         string
	FuelTime            string
	Remarks             string
	Route               string
	RevisionID          *int
	AssignedTransponder string
	QNHiHg              *float64
	QNHMb               *float64
	LogonTime           time.Time
	LastUpdated         time.Time
	IngestedAt          time.Time
}

// Key returns the connection identity of the sample.
func (f *FlightSample) Key() FlightKey {
	return FlightKey{Callsign: f.Callsign, CID: f.CID, LogonTime: f.LogonTime}
}

// HasPosition reports whether both coordinates are present.
func (f *FlightSample) HasPosition() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// ControllerSample is one observation of an ATC connection.
type ControllerSample struct {
	Callsign    string
	CID         int
	Name        string
	Rating      int
	Facility    int
	VisualRange int
	TextATIS    string
	Frequency   string
	Server      string
	LogonTime   time.Time
	LastUpdated time.Time
	IngestedAt  time.Time
}

// TransceiverSample is one observation of a radio transceiver.
type TransceiverSample struct {
	Callsign      string
	TransceiverID int
	Frequency     int64
	Latitude      *float64
	Longitude     *float64
	HeightMSLM    float64
	HeightAGLM    float64
	EntityType    string // "flight" or "atc"
	SampleTime    time.Time
	IngestedAt    time.Time
}

// HasPosition reports whether both coordinates are present.
func (t *TransceiverSample) HasPosition() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// Entity types for transceiver samples.
const (
	EntityFlight = "flight"
	EntityATC    = "atc"
)

// SectorOccupancy is a half-open interval during which one flight was
// inside one named sector.
type SectorOccupancy struct {
	ID              int64
	Callsign        string
	CID             int
	LogonTime       time.Time
	SectorName      string
	EntryTime       time.Time
	ExitTime        *time.Time
	EntryLatitude   *float64
	EntryLongitude  *float64
	EntryAltitude   *int
	ExitLatitude    *float64
	ExitLongitude   *float64
	ExitAltitude    *int
	DurationSeconds *int
}

// FlightSummary is one row per completed flight.
type FlightSummary struct {
	ID                           int64
	Callsign                     string
	CID                          int
	LogonTime                    time.Time
	Departure                    string
	Arrival                      string
	AircraftType                 string
	AircraftFAA                  string
	AircraftShort                string
	FlightRules                  string
	PlannedAltitude              string
	Route                        string
	DepTime                      string
	TimeOnlineMinutes            float64
	ControllerCallsigns          map[string]float64 // callsign -> minutes
	ControllerTimePercentage     *float64
	AirborneControllerTimePct    *float64
	PrimaryEnrouteSector         string
	TotalEnrouteSectors          int
	TotalEnrouteTimeMinutes      float64
	SectorBreakdown              map[string]float64 // sector -> minutes
	CompletionTime               time.Time
}

// AircraftDetail records one aircraft a controller worked.
type AircraftDetail struct {
	Callsign  string    `json:"callsign"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ControllerSummary is one row per completed (merged) controller session.
type ControllerSummary struct {
	ID                      int64
	Callsign                string
	CID                     int
	Name                    string
	Rating                  int
	Facility                int
	Server                  string
	SessionStartTime        time.Time
	SessionEndTime          time.Time
	SessionDurationMinutes  float64
	TotalAircraftHandled    int
	PeakAircraftCount       int
	HourlyAircraftBreakdown map[string]int // UTC hour-of-day "00".."23" -> distinct callsigns
	FrequenciesUsed         []int64
	AircraftDetails         []AircraftDetail
}
