// Package sectors tracks which enroute sectors each flight currently
// occupies and records entry/exit intervals.
package sectors

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vatsim_tracker/internal/geo"
	"vatsim_tracker/internal/storage"
)

type openRow struct {
	id        int64
	entryTime time.Time
}

type flightState struct {
	lastSample time.Time
	open       map[string]openRow // sector name -> open interval
}

// Engine holds the in-memory view of open sector intervals. All database
// writes go through the caller's transaction so sector transitions commit
// with the snapshot that caused them.
type Engine struct {
	index *geo.SectorIndex
	db    *storage.DB
	log   *zap.SugaredLogger

	mu     sync.Mutex
	states map[storage.FlightKey]*flightState
}

func NewEngine(index *geo.SectorIndex, db *storage.DB, log *zap.SugaredLogger) *Engine {
	return &Engine{
		index:  index,
		db:     db,
		log:    log,
		states: map[storage.FlightKey]*flightState{},
	}
}

// Recover rebuilds the in-memory state from occupancy rows that never got
// an exit, so a restart resumes tracking instead of double-opening.
func (e *Engine) Recover(ctx context.Context) error {
	open, err := e.db.AllOpenOccupancies(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range open {
		key := storage.FlightKey{Callsign: o.Callsign, CID: o.CID, LogonTime: o.LogonTime}
		st := e.states[key]
		if st == nil {
			st = &flightState{open: map[string]openRow{}}
			e.states[key] = st
		}
		st.open[o.SectorName] = openRow{id: o.ID, entryTime: o.EntryTime}
	}
	if len(open) > 0 {
		e.log.Infow("recovered open sector intervals", "count", len(open))
	}
	return nil
}

// Apply advances one flight's sector state to its newest sample. A sample
// with no position, or with the same timestamp as the previous one, changes
// nothing. Sectors left are closed at the sample time; sectors entered are
// opened at it, so an entry and exit in the same snapshot yield a
// zero-duration interval rather than a lost one.
func (e *Engine) Apply(ctx context.Context, q storage.Querier, s *storage.FlightSample) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := s.Key()
	st := e.states[key]
	if st == nil {
		st = &flightState{open: map[string]openRow{}}
		e.states[key] = st
	}

	if !st.lastSample.IsZero() && !s.LastUpdated.After(st.lastSample) {
		return nil
	}
	if !s.HasPosition() {
		return nil
	}
	st.lastSample = s.LastUpdated

	current := map[string]struct{}{}
	for _, name := range e.index.Containing(*s.Latitude, *s.Longitude) {
		current[name] = struct{}{}
	}

	for name, row := range st.open {
		if _, still := current[name]; still {
			continue
		}
		if err := e.db.CloseOccupancy(ctx, q, row.id, s.LastUpdated, s.Latitude, s.Longitude, s.Altitude); err != nil {
			return err
		}
		delete(st.open, name)
	}

	for name := range current {
		if _, already := st.open[name]; already {
			continue
		}
		id, err := e.db.OpenOccupancy(ctx, q, storage.SectorOccupancy{
			Callsign:       key.Callsign,
			CID:            key.CID,
			LogonTime:      key.LogonTime,
			SectorName:     name,
			EntryTime:      s.LastUpdated,
			EntryLatitude:  s.Latitude,
			EntryLongitude: s.Longitude,
			EntryAltitude:  s.Altitude,
		})
		if err != nil {
			return err
		}
		if id == 0 {
			// Row already open in the database but unknown to us, keep
			// tracking without an id; the sweeper will close it.
			continue
		}
		st.open[name] = openRow{id: id, entryTime: s.LastUpdated}
	}
	return nil
}

// Drop forgets a flight, used after the sweeper closes its intervals or
// after the flight is summarized.
func (e *Engine) Drop(key storage.FlightKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, key)
}

// Tracked reports how many flights have in-memory sector state.
func (e *Engine) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.states)
}
