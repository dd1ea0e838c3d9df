// Package sweeper closes sector intervals left open by flights that
// disappeared from the feed without exiting cleanly.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vatsim_tracker/internal/storage"
)

type Sweeper struct {
	db      *storage.DB
	timeout time.Duration
	log     *zap.SugaredLogger
}

func New(db *storage.DB, timeout time.Duration, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{db: db, timeout: timeout, log: log}
}

// Sweep closes every open occupancy row whose flight has not reported for
// the timeout, stamping the exit from the flight's final sample. All
// closures commit in one transaction. Returns the keys of flights whose
// intervals were closed so the caller can drop their in-memory state.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]storage.FlightKey, error) {
	cutoff := now.Add(-s.timeout)
	stale, err := s.db.StaleOpenOccupancies(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	keys := map[storage.FlightKey]struct{}{}
	err = s.db.WithTx(ctx, func(q storage.Querier) error {
		for _, st := range stale {
			o := st.Occupancy
			last := st.LastSample
			err := s.db.CloseOccupancy(ctx, q, o.ID, last.LastUpdated,
				last.Latitude, last.Longitude, last.Altitude)
			if err != nil {
				return err
			}
			keys[storage.FlightKey{Callsign: o.Callsign, CID: o.CID, LogonTime: o.LogonTime}] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	closed := make([]storage.FlightKey, 0, len(keys))
	for k := range keys {
		closed = append(closed, k)
	}
	s.log.Infow("closed stale sector intervals",
		"intervals", len(stale), "flights", len(closed))
	return closed, nil
}
