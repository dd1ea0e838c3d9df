package api

import (
	"time"

	"vatsim_tracker/internal/storage"
)

// FlightResponse is the JSON shape of one live flight.
type FlightResponse struct {
	Callsign        string    `json:"callsign"`
	CID             int       `json:"cid"`
	Name            string    `json:"name,omitempty"`
	Server          string    `json:"server,omitempty"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	Altitude        *int      `json:"altitude"`
	Heading         *int      `json:"heading"`
	Groundspeed     *int      `json:"groundspeed"`
	Transponder     string    `json:"transponder,omitempty"`
	FlightRules     string    `json:"flight_rules,omitempty"`
	Aircraft        string    `json:"aircraft,omitempty"`
	Departure       string    `json:"departure,omitempty"`
	Arrival         string    `json:"arrival,omitempty"`
	Alternate       string    `json:"alternate,omitempty"`
	PlannedAltitude string    `json:"planned_altitude,omitempty"`
	Route           string    `json:"route,omitempty"`
	LogonTime       time.Time `json:"logon_time"`
	LastUpdated     time.Time `json:"last_updated"`
}

func flightToResponse(f *storage.FlightSample) FlightResponse {
	return FlightResponse{
		Callsign:        f.Callsign,
		CID:             f.CID,
		Name:            f.Name,
		Server:          f.Server,
		Latitude:        f.Latitude,
		Longitude:       f.Longitude,
		Altitude:        f.Altitude,
		Heading:         f.Heading,
		Groundspeed:     f.Groundspeed,
		Transponder:     f.Transponder,
		FlightRules:     f.FlightRules,
		Aircraft:        f.Aircraft,
		Departure:       f.Departure,
		Arrival:         f.Arrival,
		Alternate:       f.Alternate,
		PlannedAltitude: f.PlannedAltitude,
		Route:           f.Route,
		LogonTime:       f.LogonTime,
		LastUpdated:     f.LastUpdated,
	}
}

// ControllerResponse is the JSON shape of one live controller.
type ControllerResponse struct {
	Callsign    string    `json:"callsign"`
	CID         int       `json:"cid"`
	Name        string    `json:"name,omitempty"`
	Rating      int       `json:"rating"`
	Facility    int       `json:"facility"`
	VisualRange int       `json:"visual_range"`
	Frequency   string    `json:"frequency,omitempty"`
	TextATIS    string    `json:"text_atis,omitempty"`
	Server      string    `json:"server,omitempty"`
	LogonTime   time.Time `json:"logon_time"`
	LastUpdated time.Time `json:"last_updated"`
}

func controllerToResponse(c *storage.ControllerSample) ControllerResponse {
	return ControllerResponse{
		Callsign:    c.Callsign,
		CID:         c.CID,
		Name:        c.Name,
		Rating:      c.Rating,
		Facility:    c.Facility,
		VisualRange: c.VisualRange,
		Frequency:   c.Frequency,
		TextATIS:    c.TextATIS,
		Server:      c.Server,
		LogonTime:   c.LogonTime,
		LastUpdated: c.LastUpdated,
	}
}

// TransceiverResponse is the JSON shape of one transceiver sample.
type TransceiverResponse struct {
	Callsign      string    `json:"callsign"`
	TransceiverID int       `json:"transceiver_id"`
	Frequency     int64     `json:"frequency"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	HeightMSLM    float64   `json:"height_msl_m"`
	HeightAGLM    float64   `json:"height_agl_m"`
	EntityType    string    `json:"entity_type"`
	SampleTime    time.Time `json:"sample_time"`
}

func transceiverToResponse(t *storage.TransceiverSample) TransceiverResponse {
	return TransceiverResponse{
		Callsign:      t.Callsign,
		TransceiverID: t.TransceiverID,
		Frequency:     t.Frequency,
		Latitude:      t.Latitude,
		Longitude:     t.Longitude,
		HeightMSLM:    t.HeightMSLM,
		HeightAGLM:    t.HeightAGLM,
		EntityType:    t.EntityType,
		SampleTime:    t.SampleTime,
	}
}

// FlightSummaryResponse is the JSON shape of one completed flight.
type FlightSummaryResponse struct {
	Callsign                  string             `json:"callsign"`
	CID                       int                `json:"cid"`
	LogonTime                 time.Time          `json:"logon_time"`
	Departure                 string             `json:"departure,omitempty"`
	Arrival                   string             `json:"arrival,omitempty"`
	AircraftType              string             `json:"aircraft_type,omitempty"`
	FlightRules               string             `json:"flight_rules,omitempty"`
	Route                     string             `json:"route,omitempty"`
	TimeOnlineMinutes         float64            `json:"time_online_minutes"`
	ControllerCallsigns       map[string]float64 `json:"controller_callsigns,omitempty"`
	ControllerTimePercentage  *float64           `json:"controller_time_percentage"`
	AirborneControllerTimePct *float64           `json:"airborne_controller_time_percentage"`
	PrimaryEnrouteSector      string             `json:"primary_enroute_sector,omitempty"`
	TotalEnrouteSectors       int                `json:"total_enroute_sectors"`
	TotalEnrouteTimeMinutes   float64            `json:"total_enroute_time_minutes"`
	SectorBreakdown           map[string]float64 `json:"sector_breakdown,omitempty"`
	CompletionTime            time.Time          `json:"completion_time"`
}

func flightSummaryToResponse(s *storage.FlightSummary) FlightSummaryResponse {
	return FlightSummaryResponse{
		Callsign:                  s.Callsign,
		CID:                       s.CID,
		LogonTime:                 s.LogonTime,
		Departure:                 s.Departure,
		Arrival:                   s.Arrival,
		AircraftType:              s.AircraftType,
		FlightRules:               s.FlightRules,
		Route:                     s.Route,
		TimeOnlineMinutes:         s.TimeOnlineMinutes,
		ControllerCallsigns:       s.ControllerCallsigns,
		ControllerTimePercentage:  s.ControllerTimePercentage,
		AirborneControllerTimePct: s.AirborneControllerTimePct,
		PrimaryEnrouteSector:      s.PrimaryEnrouteSector,
		TotalEnrouteSectors:       s.TotalEnrouteSectors,
		TotalEnrouteTimeMinutes:   s.TotalEnrouteTimeMinutes,
		SectorBreakdown:           s.SectorBreakdown,
		CompletionTime:            s.CompletionTime,
	}
}

// ControllerSummaryResponse is the JSON shape of one controller session.
type ControllerSummaryResponse struct {
	Callsign                string                    `json:"callsign"`
	CID                     int                       `json:"cid"`
	Name                    string                    `json:"name,omitempty"`
	Rating                  int                       `json:"rating"`
	Facility                int                       `json:"facility"`
	Server                  string                    `json:"server,omitempty"`
	SessionStartTime        time.Time                 `json:"session_start_time"`
	SessionEndTime          time.Time                 `json:"session_end_time"`
	SessionDurationMinutes  float64                   `json:"session_duration_minutes"`
	TotalAircraftHandled    int                       `json:"total_aircraft_handled"`
	PeakAircraftCount       int                       `json:"peak_aircraft_count"`
	HourlyAircraftBreakdown map[string]int           `json:"hourly_aircraft_breakdown,omitempty"`
	FrequenciesUsed         []int64                  `json:"frequencies_used,omitempty"`
	AircraftDetails         []storage.AircraftDetail `json:"aircraft_details,omitempty"`
}

func controllerSummaryToResponse(s *storage.ControllerSummary) ControllerSummaryResponse {
	return ControllerSummaryResponse{
		Callsign:                s.Callsign,
		CID:                     s.CID,
		Name:                    s.Name,
		Rating:                  s.Rating,
		Facility:                s.Facility,
		Server:                  s.Server,
		SessionStartTime:        s.SessionStartTime,
		SessionEndTime:          s.SessionEndTime,
		SessionDurationMinutes:  s.SessionDurationMinutes,
		TotalAircraftHandled:    s.TotalAircraftHandled,
		PeakAircraftCount:       s.PeakAircraftCount,
		HourlyAircraftBreakdown: s.HourlyAircraftBreakdown,
		FrequenciesUsed:         s.FrequenciesUsed,
		AircraftDetails:         s.AircraftDetails,
	}
}
