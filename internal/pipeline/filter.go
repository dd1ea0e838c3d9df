// Package pipeline runs the per-tick path from the upstream snapshot to the
// live tables: normalization, filtering, persistence and sector tracking.
package pipeline

import (
	"sync/atomic"

	"vatsim_tracker/internal/config"
	"vatsim_tracker/internal/refdata"
	"vatsim_tracker/internal/vatsim"
)

// FilterStats counts admissions and rejections since process start, read by
// the introspection endpoint.
type FilterStats struct {
	FlightsAdmitted      atomic.Int64
	FlightsOutOfBounds   atomic.Int64
	FlightsInvalidPlan   atomic.Int64
	ControllersAdmitted  atomic.Int64
	ControllersRejected  atomic.Int64
	TransceiversAdmitted atomic.Int64
	TransceiversUnknown  atomic.Int64
	TransceiversInvalid  atomic.Int64
}

// FilterStatsView is a plain copy of the counters for JSON encoding.
type FilterStatsView struct {
	FlightsAdmitted      int64 `json:"flights_admitted"`
	FlightsOutOfBounds   int64 `json:"flights_out_of_bounds"`
	FlightsInvalidPlan   int64 `json:"flights_invalid_plan"`
	ControllersAdmitted  int64 `json:"controllers_admitted"`
	ControllersRejected  int64 `json:"controllers_rejected"`
	TransceiversAdmitted int64 `json:"transceivers_admitted"`
	TransceiversUnknown  int64 `json:"transceivers_unknown"`
	TransceiversInvalid  int64 `json:"transceivers_invalid"`
}

func (s *FilterStats) View() FilterStatsView {
	return FilterStatsView{
		FlightsAdmitted:      s.FlightsAdmitted.Load(),
		FlightsOutOfBounds:   s.FlightsOutOfBounds.Load(),
		FlightsInvalidPlan:   s.FlightsInvalidPlan.Load(),
		ControllersAdmitted:  s.ControllersAdmitted.Load(),
		ControllersRejected:  s.ControllersRejected.Load(),
		TransceiversAdmitted: s.TransceiversAdmitted.Load(),
		TransceiversUnknown:  s.TransceiversUnknown.Load(),
		TransceiversInvalid:  s.TransceiversInvalid.Load(),
	}
}

// Filter applies the boundary test, the flight-plan rules and the
// controller allow-list.
type Filter struct {
	ref             *refdata.Data
	boundaryEnabled bool
	planRuleEnabled bool
	stats           *FilterStats
}

func NewFilter(ref *refdata.Data, cfg config.Config) *Filter {
	return &Filter{
		ref:             ref,
		boundaryEnabled: cfg.BoundaryFilterEnabled,
		planRuleEnabled: cfg.FlightPlanValidationEnabled,
		stats:           &FilterStats{},
	}
}

// Stats exposes the counters.
func (f *Filter) Stats() *FilterStats { return f.stats }

// AdmitPilot decides whether a pilot enters the live tables. A pilot with
// no position is never rejected by the boundary test.
func (f *Filter) AdmitPilot(p *vatsim.Pilot) bool {
	if f.boundaryEnabled && p.Latitude.Valid && p.Longitude.Valid {
		if !f.ref.FIR.Contains(p.Latitude.Float64, p.Longitude.Float64) {
			f.stats.FlightsOutOfBounds.Add(1)
			return false
		}
	}
	if f.planRuleEnabled && !ValidPlan(p.FlightPlan) {
		f.stats.FlightsInvalidPlan.Add(1)
		return false
	}
	f.stats.FlightsAdmitted.Add(1)
	return true
}

// ValidPlan implements the flight-plan rules: a filed departure and
// arrival, IFR or VFR rules, and a FAA aircraft code.
func ValidPlan(fp *vatsim.FlightPlan) bool {
	if fp == nil {
		return false
	}
	if fp.Departure == "" || fp.Arrival == "" || fp.AircraftFAA == "" {
		return false
	}
	return fp.FlightRules == "I" || fp.FlightRules == "V"
}

// AdmitController decides whether a controller enters the live tables.
// Observers (facility 0) and callsigns outside the allow-list are dropped.
func (f *Filter) AdmitController(c *vatsim.Controller) bool {
	if c.Facility == 0 || !f.ref.AllowsController(c.Callsign) {
		f.stats.ControllersRejected.Add(1)
		return false
	}
	f.stats.ControllersAdmitted.Add(1)
	return true
}
