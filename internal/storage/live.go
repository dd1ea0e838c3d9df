package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertFlightSamples appends flight samples in one batch. A sample whose
// (callsign, logon_time, last_updated) already exists is skipped, so
// re-processing an identical snapshot is a no-op.
func (d *DB) InsertFlightSamples(ctx context.Context, q Querier, samples []FlightSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range samples {
		s := &samples[i]
		batch.Queue(`
			INSERT INTO flights (
				callsign, cid, name, server, latitude, longitude, altitude, heading,
				groundspeed, transponder, flight_rules, aircraft, aircraft_faa,
				aircraft_short, departure, arrival, alternate, cruise_tas,
				planned_altitude, deptime, enroute_time, fuel_time, remarks, route,
				revision_id, assigned_transponder, qnh_i_hg, qnh_mb, logon_time,
				last_updated, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
				$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)
			ON CONFLICT (callsign, logon_time, last_updated) DO NOTHING
		`,
			s.Callsign, s.CID, s.Name, s.Server, s.Latitude, s.Longitude, s.Altitude,
			s.Heading, s.Groundspeed, s.Transponder, s.FlightRules, s.Aircraft,
			s.AircraftFAA, s.AircraftShort, s.Departure, s.Arrival, s.Alternate,
			s.CruiseTAS, s.PlannedAltitude, s.DepTime, s.EnrouteTime, s.FuelTime,
			s.Remarks, s.Route, s.RevisionID, s.AssignedTransponder, s.QNHiHg,
			s.QNHMb, s.LogonTime, s.LastUpdated, s.IngestedAt)
	}

	return sendBatch(ctx, q, batch, "insert flights")
}

// UpsertControllers writes controller rows keyed by (callsign, logon_time);
// an existing connection row is refreshed in place.
func (d *DB) UpsertControllers(ctx context.Context, q Querier, samples []ControllerSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range samples {
		s := &samples[i]
		batch.Queue(`
			INSERT INTO controllers (
				callsign, cid, name, rating, facility, visual_range, text_atis,
				frequency, server, logon_time, last_updated, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (callsign, logon_time) DO UPDATE SET
				cid = EXCLUDED.cid,
				name = EXCLUDED.name,
				rating = EXCLUDED.rating,
				facility = EXCLUDED.facility,
				visual_range = EXCLUDED.visual_range,
				text_atis = EXCLUDED.text_atis,
				frequency = EXCLUDED.frequency,
				server = EXCLUDED.server,
				last_updated = EXCLUDED.last_updated,
				ingested_at = EXCLUDED.ingested_at
		`,
			s.Callsign, s.CID, s.Name, s.Rating, s.Facility, s.VisualRange,
			s.TextATIS, s.Frequency, s.Server, s.LogonTime, s.LastUpdated, s.IngestedAt)
	}

	return sendBatch(ctx, q, batch, "upsert controllers")
}

// InsertTransceivers appends transceiver samples; duplicates for the same
// sample time are skipped.
func (d *DB) InsertTransceivers(ctx context.Context, q Querier, samples []TransceiverSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range samples {
		s := &samples[i]
		batch.Queue(`
			INSERT INTO transceivers (
				callsign, transceiver_id, frequency, latitude, longitude,
				height_msl_m, height_agl_m, entity_type, sample_time, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (entity_type, callsign, transceiver_id, sample_time) DO NOTHING
		`,
			s.Callsign, s.TransceiverID, s.Frequency, s.Latitude, s.Longitude,
			s.HeightMSLM, s.HeightAGLM, s.EntityType, s.SampleTime, s.IngestedAt)
	}

	return sendBatch(ctx, q, batch, "insert transceivers")
}

func sendBatch(ctx context.Context, q Querier, batch *pgx.Batch, what string) error {
	res := q.SendBatch(ctx, batch)
	defer res.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
	}
	return nil
}

const flightColumns = `
	id, callsign, cid, name, server, latitude, longitude, altitude, heading,
	groundspeed, transponder, flight_rules, aircraft, aircraft_faa,
	aircraft_short, departure, arrival, alternate, cruise_tas, planned_altitude,
	deptime, enroute_time, fuel_time, remarks, route, revision_id,
	assigned_transponder, qnh_i_hg, qnh_mb, logon_time, last_updated, ingested_at`

func scanFlight(row pgx.Row) (FlightSample, error) {
	var s FlightSample
	err := row.Scan(
		&s.ID, &s.Callsign, &s.CID, &s.Name, &s.Server, &s.Latitude, &s.Longitude,
		&s.Altitude, &s.Heading, &s.Groundspeed, &s.Transponder, &s.FlightRules,
		&s.Aircraft, &s.AircraftFAA, &s.AircraftShort, &s.Departure, &s.Arrival,
		&s.Alternate, &s.CruiseTAS, &s.PlannedAltitude, &s.DepTime, &s.EnrouteTime,
		&s.FuelTime, &s.Remarks, &s.Route, &s.RevisionID, &s.AssignedTransponder,
		&s.QNHiHg, &s.QNHMb, &s.LogonTime, &s.LastUpdated, &s.IngestedAt)
	return s, err
}

func collectFlights(rows pgx.Rows) ([]FlightSample, error) {
	defer rows.Close()
	var out []FlightSample
	for rows.Next() {
		s, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestFlights returns the newest sample of every live pilot connection.
func (d *DB) LatestFlights(ctx context.Context) ([]FlightSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT DISTINCT ON (callsign, logon_time) `+flightColumns+`
		FROM flights
		ORDER BY callsign, logon_time, last_updated DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("latest flights: %w", err)
	}
	return collectFlights(rows)
}

// FlightHistory returns every stored sample of one connection, oldest first.
func (d *DB) FlightHistory(ctx context.Context, key FlightKey) ([]FlightSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+flightColumns+`
		FROM flights
		WHERE callsign = $1 AND cid = $2 AND logon_time = $3
		ORDER BY last_updated
	`, key.Callsign, key.CID, key.LogonTime)
	if err != nil {
		return nil, fmt.Errorf("flight history for %s: %w", key, err)
	}
	return collectFlights(rows)
}

// CompletedFlightKeys returns the connections whose newest sample is at or
// before the cutoff, i.e. flights that are over and ready to summarize.
func (d *DB) CompletedFlightKeys(ctx context.Context, cutoff time.Time) ([]FlightKey, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, cid, logon_time
		FROM flights
		GROUP BY callsign, cid, logon_time
		HAVING MAX(last_updated) <= $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("completed flight keys: %w", err)
	}
	defer rows.Close()

	var keys []FlightKey
	for rows.Next() {
		var k FlightKey
		if err := rows.Scan(&k.Callsign, &k.CID, &k.LogonTime); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// LiveControllers returns all current controller connection rows.
func (d *DB) LiveControllers(ctx context.Context) ([]ControllerSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, cid, name, rating, facility, visual_range, text_atis,
		       frequency, server, logon_time, last_updated, ingested_at
		FROM controllers
		ORDER BY callsign, logon_time
	`)
	if err != nil {
		return nil, fmt.Errorf("live controllers: %w", err)
	}
	return collectControllers(rows)
}

func collectControllers(rows pgx.Rows) ([]ControllerSample, error) {
	defer rows.Close()
	var out []ControllerSample
	for rows.Next() {
		var s ControllerSample
		err := rows.Scan(&s.Callsign, &s.CID, &s.Name, &s.Rating, &s.Facility,
			&s.VisualRange, &s.TextATIS, &s.Frequency, &s.Server, &s.LogonTime,
			&s.LastUpdated, &s.IngestedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentTransceivers returns transceiver samples for one callsign since the
// given time, newest first, capped at limit.
func (d *DB) RecentTransceivers(ctx context.Context, callsign string, since time.Time, limit int) ([]TransceiverSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, transceiver_id, frequency, latitude, longitude,
		       height_msl_m, height_agl_m, entity_type, sample_time, ingested_at
		FROM transceivers
		WHERE callsign = $1 AND sample_time >= $2
		ORDER BY sample_time DESC
		LIMIT $3
	`, callsign, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transceivers: %w", err)
	}
	return collectTransceivers(rows)
}

func collectTransceivers(rows pgx.Rows) ([]TransceiverSample, error) {
	defer rows.Close()
	var out []TransceiverSample
	for rows.Next() {
		var s TransceiverSample
		err := rows.Scan(&s.Callsign, &s.TransceiverID, &s.Frequency, &s.Latitude,
			&s.Longitude, &s.HeightMSLM, &s.HeightAGLM, &s.EntityType,
			&s.SampleTime, &s.IngestedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FlightTransceivers returns one flight's transceiver samples in a window,
// oldest first.
func (d *DB) FlightTransceivers(ctx context.Context, callsign string, start, end time.Time) ([]TransceiverSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, transceiver_id, frequency, latitude, longitude,
		       height_msl_m, height_agl_m, entity_type, sample_time, ingested_at
		FROM transceivers
		WHERE entity_type = $1 AND callsign = $2
		  AND sample_time >= $3 AND sample_time <= $4
		ORDER BY sample_time
	`, EntityFlight, callsign, start, end)
	if err != nil {
		return nil, fmt.Errorf("flight transceivers for %s: %w", callsign, err)
	}
	return collectTransceivers(rows)
}

// AllFlightTransceivers returns every flight transceiver sample in a
// window, used by the controller summarizer.
func (d *DB) AllFlightTransceivers(ctx context.Context, start, end time.Time) ([]TransceiverSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, transceiver_id, frequency, latitude, longitude,
		       height_msl_m, height_agl_m, entity_type, sample_time, ingested_at
		FROM transceivers
		WHERE entity_type = $1 AND sample_time >= $2 AND sample_time <= $3
		ORDER BY sample_time
	`, EntityFlight, start, end)
	if err != nil {
		return nil, fmt.Errorf("flight transceivers in window: %w", err)
	}
	return collectTransceivers(rows)
}

// ActiveControllerCallsigns is the detector's pre-filter: controller
// callsigns with a real facility whose row was updated at or after start.
// It deliberately avoids joining transceivers against controllers.
func (d *DB) ActiveControllerCallsigns(ctx context.Context, start time.Time) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT DISTINCT callsign FROM controllers
		WHERE facility <> 0 AND last_updated >= $1
	`, start)
	if err != nil {
		return nil, fmt.Errorf("active controller callsigns: %w", err)
	}
	defer rows.Close()

	var callsigns []string
	for rows.Next() {
		var cs string
		if err := rows.Scan(&cs); err != nil {
			return nil, err
		}
		callsigns = append(callsigns, cs)
	}
	return callsigns, rows.Err()
}

// ATCTransceivers returns the transceiver samples of the given controller
// callsigns inside the window, oldest first.
func (d *DB) ATCTransceivers(ctx context.Context, callsigns []string, start, end time.Time) ([]TransceiverSample, error) {
	if len(callsigns) == 0 {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, transceiver_id, frequency, latitude, longitude,
		       height_msl_m, height_agl_m, entity_type, sample_time, ingested_at
		FROM transceivers
		WHERE entity_type = $1 AND callsign = ANY($2)
		  AND sample_time >= $3 AND sample_time <= $4
		ORDER BY sample_time
	`, EntityATC, callsigns, start, end)
	if err != nil {
		return nil, fmt.Errorf("atc transceivers: %w", err)
	}
	return collectTransceivers(rows)
}

// TableCounts reports live-table row counts for the status endpoint.
func (d *DB) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, table := range []string{
		"flights", "controllers", "transceivers",
		"flight_sector_occupancy", "flight_summaries", "controller_summaries",
	} {
		var n int64
		if err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
