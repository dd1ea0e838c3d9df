package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const occupancyColumns = `
	id, callsign, cid, logon_time, sector_name, entry_time, exit_time,
	entry_latitude, entry_longitude, entry_altitude,
	exit_latitude, exit_longitude, exit_altitude, duration_seconds`

// OpenOccupancy records a flight entering a sector. The partial unique index
// on open rows makes a double-entry for the same sector a conflict, which is
// ignored so replays stay idempotent. Returns the row id, or 0 when the row
// already existed.
func (d *DB) OpenOccupancy(ctx context.Context, q Querier, o SectorOccupancy) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO flight_sector_occupancy (
			callsign, cid, logon_time, sector_name, entry_time,
			entry_latitude, entry_longitude, entry_altitude
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (callsign, logon_time, sector_name) WHERE exit_time IS NULL
			DO NOTHING
		RETURNING id
	`, o.Callsign, o.CID, o.LogonTime, o.SectorName, o.EntryTime,
		o.EntryLatitude, o.EntryLongitude, o.EntryAltitude).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("open occupancy %s/%s: %w", o.Callsign, o.SectorName, err)
	}
	return id, nil
}

// CloseOccupancy stamps the exit on an open occupancy row. The exit_time
// guard keeps a second close from overwriting the first.
func (d *DB) CloseOccupancy(ctx context.Context, q Querier, id int64, exitTime time.Time, lat, lon *float64, alt *int) error {
	_, err := q.Exec(ctx, `
		UPDATE flight_sector_occupancy SET
			exit_time = $2,
			exit_latitude = $3,
			exit_longitude = $4,
			exit_altitude = $5,
			duration_seconds = EXTRACT(EPOCH FROM ($2 - entry_time))::BIGINT
		WHERE id = $1 AND exit_time IS NULL
	`, id, exitTime, lat, lon, alt)
	if err != nil {
		return fmt.Errorf("close occupancy %d: %w", id, err)
	}
	return nil
}

// AllOpenOccupancies returns every row without an exit, used to rebuild the
// in-memory sector state after a restart.
func (d *DB) AllOpenOccupancies(ctx context.Context) ([]SectorOccupancy, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+occupancyColumns+`
		FROM flight_sector_occupancy
		WHERE exit_time IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("open occupancies: %w", err)
	}
	return collectOccupancies(rows)
}

// StaleOccupancy pairs an open occupancy row with the newest sample of its
// flight, for the sweeper.
type StaleOccupancy struct {
	Occupancy  SectorOccupancy
	LastSample FlightSample
}

// StaleOpenOccupancies returns open occupancy rows whose flight has not been
// updated since the cutoff, together with the flight's final sample.
func (d *DB) StaleOpenOccupancies(ctx context.Context, cutoff time.Time) ([]StaleOccupancy, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT o.id, o.callsign, o.cid, o.logon_time, o.sector_name, o.entry_time,
		       o.exit_time, o.entry_latitude, o.entry_longitude, o.entry_altitude,
		       o.exit_latitude, o.exit_longitude, o.exit_altitude, o.duration_seconds,
		       f.latitude, f.longitude, f.altitude, f.last_updated
		FROM flight_sector_occupancy o
		JOIN LATERAL (
			SELECT latitude, longitude, altitude, last_updated
			FROM flights
			WHERE callsign = o.callsign AND logon_time = o.logon_time
			ORDER BY last_updated DESC
			LIMIT 1
		) f ON true
		WHERE o.exit_time IS NULL AND f.last_updated <= $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale occupancies: %w", err)
	}
	defer rows.Close()

	var out []StaleOccupancy
	for rows.Next() {
		var s StaleOccupancy
		o := &s.Occupancy
		f := &s.LastSample
		err := rows.Scan(&o.ID, &o.Callsign, &o.CID, &o.LogonTime, &o.SectorName,
			&o.EntryTime, &o.ExitTime, &o.EntryLatitude, &o.EntryLongitude,
			&o.EntryAltitude, &o.ExitLatitude, &o.ExitLongitude, &o.ExitAltitude,
			&o.DurationSeconds, &f.Latitude, &f.Longitude, &f.Altitude, &f.LastUpdated)
		if err != nil {
			return nil, err
		}
		f.Callsign = o.Callsign
		f.CID = o.CID
		f.LogonTime = o.LogonTime
		out = append(out, s)
	}
	return out, rows.Err()
}

// OccupanciesForFlight returns all occupancy rows of one connection, oldest
// entry first.
func (d *DB) OccupanciesForFlight(ctx context.Context, q Querier, key FlightKey) ([]SectorOccupancy, error) {
	rows, err := q.Query(ctx, `
		SELECT `+occupancyColumns+`
		FROM flight_sector_occupancy
		WHERE callsign = $1 AND cid = $2 AND logon_time = $3
		ORDER BY entry_time
	`, key.Callsign, key.CID, key.LogonTime)
	if err != nil {
		return nil, fmt.Errorf("occupancies for %s: %w", key, err)
	}
	return collectOccupancies(rows)
}

// DeleteOccupanciesForFlight removes a summarized flight's occupancy rows.
func (d *DB) DeleteOccupanciesForFlight(ctx context.Context, q Querier, key FlightKey) error {
	_, err := q.Exec(ctx, `
		DELETE FROM flight_sector_occupancy
		WHERE callsign = $1 AND cid = $2 AND logon_time = $3
	`, key.Callsign, key.CID, key.LogonTime)
	if err != nil {
		return fmt.Errorf("delete occupancies for %s: %w", key, err)
	}
	return nil
}

func collectOccupancies(rows pgx.Rows) ([]SectorOccupancy, error) {
	defer rows.Close()
	var out []SectorOccupancy
	for rows.Next() {
		var o SectorOccupancy
		err := rows.Scan(&o.ID, &o.Callsign, &o.CID, &o.LogonTime, &o.SectorName,
			&o.EntryTime, &o.ExitTime, &o.EntryLatitude, &o.EntryLongitude,
			&o.EntryAltitude, &o.ExitLatitude, &o.ExitLongitude, &o.ExitAltitude,
			&o.DurationSeconds)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
