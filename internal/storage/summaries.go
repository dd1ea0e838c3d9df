package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertFlightSummary writes one summary row. A replay of the same flight
// overwrites the previous summary rather than duplicating it.
func (d *DB) InsertFlightSummary(ctx context.Context, q Querier, s FlightSummary) error {
	_, err := q.Exec(ctx, `
		INSERT INTO flight_summaries (
			callsign, cid, logon_time, departure, arrival, aircraft_type,
			aircraft_faa, aircraft_short, flight_rules, planned_altitude, route,
			deptime, time_online_minutes, controller_callsigns,
			controller_time_percentage, airborne_controller_time_percentage,
			primary_enroute_sector, total_enroute_sectors,
			total_enroute_time_minutes, sector_breakdown, completion_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (callsign, cid, logon_time) DO UPDATE SET
			time_online_minutes = EXCLUDED.time_online_minutes,
			controller_callsigns = EXCLUDED.controller_callsigns,
			controller_time_percentage = EXCLUDED.controller_time_percentage,
			airborne_controller_time_percentage = EXCLUDED.airborne_controller_time_percentage,
			primary_enroute_sector = EXCLUDED.primary_enroute_sector,
			total_enroute_sectors = EXCLUDED.total_enroute_sectors,
			total_enroute_time_minutes = EXCLUDED.total_enroute_time_minutes,
			sector_breakdown = EXCLUDED.sector_breakdown,
			completion_time = EXCLUDED.completion_time,
			updated_at = NOW()
	`, s.Callsign, s.CID, s.LogonTime, s.Departure, s.Arrival, s.AircraftType,
		s.AircraftFAA, s.AircraftShort, s.FlightRules, s.PlannedAltitude, s.Route,
		s.DepTime, s.TimeOnlineMinutes, s.ControllerCallsigns,
		s.ControllerTimePercentage, s.AirborneControllerTimePct,
		s.PrimaryEnrouteSector, s.TotalEnrouteSectors, s.TotalEnrouteTimeMinutes,
		s.SectorBreakdown, s.CompletionTime)
	if err != nil {
		return fmt.Errorf("insert flight summary %s: %w", s.Callsign, err)
	}
	return nil
}

// ArchiveFlight moves every sample of one connection from the live flights
// table to flights_archive. Meant to run inside the summary transaction so
// the summary and the archive land together.
func (d *DB) ArchiveFlight(ctx context.Context, q Querier, key FlightKey) (int64, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO flights_archive (`+flightColumns+`)
		SELECT `+flightColumns+`
		FROM flights
		WHERE callsign = $1 AND cid = $2 AND logon_time = $3
	`, key.Callsign, key.CID, key.LogonTime)
	if err != nil {
		return 0, fmt.Errorf("archive flight %s: %w", key, err)
	}
	_, err = q.Exec(ctx, `
		DELETE FROM flights
		WHERE callsign = $1 AND cid = $2 AND logon_time = $3
	`, key.Callsign, key.CID, key.LogonTime)
	if err != nil {
		return 0, fmt.Errorf("delete archived flight %s: %w", key, err)
	}
	return tag.RowsAffected(), nil
}

// InsertControllerSummary writes one merged-session summary row.
func (d *DB) InsertControllerSummary(ctx context.Context, q Querier, s ControllerSummary) error {
	_, err := q.Exec(ctx, `
		INSERT INTO controller_summaries (
			callsign, cid, name, rating, facility, server, session_start_time,
			session_end_time, session_duration_minutes, total_aircraft_handled,
			peak_aircraft_count, hourly_aircraft_breakdown, frequencies_used,
			aircraft_details
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (callsign, cid, session_start_time) DO UPDATE SET
			session_end_time = EXCLUDED.session_end_time,
			session_duration_minutes = EXCLUDED.session_duration_minutes,
			total_aircraft_handled = EXCLUDED.total_aircraft_handled,
			peak_aircraft_count = EXCLUDED.peak_aircraft_count,
			hourly_aircraft_breakdown = EXCLUDED.hourly_aircraft_breakdown,
			frequencies_used = EXCLUDED.frequencies_used,
			aircraft_details = EXCLUDED.aircraft_details,
			updated_at = NOW()
	`, s.Callsign, s.CID, s.Name, s.Rating, s.Facility, s.Server,
		s.SessionStartTime, s.SessionEndTime, s.SessionDurationMinutes,
		s.TotalAircraftHandled, s.PeakAircraftCount, s.HourlyAircraftBreakdown,
		s.FrequenciesUsed, s.AircraftDetails)
	if err != nil {
		return fmt.Errorf("insert controller summary %s: %w", s.Callsign, err)
	}
	return nil
}

// ArchiveControllerRows moves the given controller connection rows to
// controllers_archive.
func (d *DB) ArchiveControllerRows(ctx context.Context, q Querier, callsign string, cid int, logonTimes []time.Time) (int64, error) {
	if len(logonTimes) == 0 {
		return 0, nil
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO controllers_archive (
			callsign, cid, name, rating, facility, visual_range, text_atis,
			frequency, server, logon_time, last_updated, ingested_at
		)
		SELECT callsign, cid, name, rating, facility, visual_range, text_atis,
		       frequency, server, logon_time, last_updated, ingested_at
		FROM controllers
		WHERE callsign = $1 AND cid = $2 AND logon_time = ANY($3)
	`, callsign, cid, logonTimes)
	if err != nil {
		return 0, fmt.Errorf("archive controller %s: %w", callsign, err)
	}
	_, err = q.Exec(ctx, `
		DELETE FROM controllers
		WHERE callsign = $1 AND cid = $2 AND logon_time = ANY($3)
	`, callsign, cid, logonTimes)
	if err != nil {
		return 0, fmt.Errorf("delete archived controller %s: %w", callsign, err)
	}
	return tag.RowsAffected(), nil
}

// CompletedControllerRows returns controller connection rows whose newest
// update is at or before the cutoff, ordered so the summarizer can group
// them into sessions.
func (d *DB) CompletedControllerRows(ctx context.Context, cutoff time.Time) ([]ControllerSample, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT callsign, cid, name, rating, facility, visual_range, text_atis,
		       frequency, server, logon_time, last_updated, ingested_at
		FROM controllers
		WHERE last_updated <= $1
		ORDER BY callsign, cid, logon_time
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("completed controller rows: %w", err)
	}
	return collectControllers(rows)
}

// FlightSummaries returns summaries newest first, with optional filtering
// on callsign and route endpoints.
func (d *DB) FlightSummaries(ctx context.Context, callsign, departure, arrival string, limit, offset int) ([]FlightSummary, error) {
	query := `
		SELECT id, callsign, cid, logon_time, departure, arrival, aircraft_type,
		       aircraft_faa, aircraft_short, flight_rules, planned_altitude,
		       route, deptime, time_online_minutes, controller_callsigns,
		       controller_time_percentage, airborne_controller_time_percentage,
		       primary_enroute_sector, total_enroute_sectors,
		       total_enroute_time_minutes, sector_breakdown, completion_time
		FROM flight_summaries`
	args := []any{}
	var where []string
	if callsign != "" {
		args = append(args, callsign)
		where = append(where, fmt.Sprintf("callsign = $%d", len(args)))
	}
	if departure != "" {
		args = append(args, departure)
		where = append(where, fmt.Sprintf("departure = $%d", len(args)))
	}
	if arrival != "" {
		args = append(args, arrival)
		where = append(where, fmt.Sprintf("arrival = $%d", len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY completion_time DESC LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("flight summaries: %w", err)
	}
	defer rows.Close()

	var out []FlightSummary
	for rows.Next() {
		var s FlightSummary
		err := rows.Scan(&s.ID, &s.Callsign, &s.CID, &s.LogonTime, &s.Departure,
			&s.Arrival, &s.AircraftType, &s.AircraftFAA, &s.AircraftShort,
			&s.FlightRules, &s.PlannedAltitude, &s.Route, &s.DepTime,
			&s.TimeOnlineMinutes, &s.ControllerCallsigns,
			&s.ControllerTimePercentage, &s.AirborneControllerTimePct,
			&s.PrimaryEnrouteSector, &s.TotalEnrouteSectors,
			&s.TotalEnrouteTimeMinutes, &s.SectorBreakdown, &s.CompletionTime)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ControllerSummaries returns controller session summaries newest first,
// with optional callsign filtering.
func (d *DB) ControllerSummaries(ctx context.Context, callsign string, limit, offset int) ([]ControllerSummary, error) {
	query := `
		SELECT id, callsign, cid, name, rating, facility, server,
		       session_start_time, session_end_time, session_duration_minutes,
		       total_aircraft_handled, peak_aircraft_count,
		       hourly_aircraft_breakdown, frequencies_used, aircraft_details
		FROM controller_summaries`
	args := []any{}
	if callsign != "" {
		query += ` WHERE callsign = $1`
		args = append(args, callsign)
	}
	query += fmt.Sprintf(` ORDER BY session_end_time DESC LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("controller summaries: %w", err)
	}
	defer rows.Close()

	var out []ControllerSummary
	for rows.Next() {
		var s ControllerSummary
		err := rows.Scan(&s.ID, &s.Callsign, &s.CID, &s.Name, &s.Rating,
			&s.Facility, &s.Server, &s.SessionStartTime, &s.SessionEndTime,
			&s.SessionDurationMinutes, &s.TotalAircraftHandled,
			&s.PeakAircraftCount, &s.HourlyAircraftBreakdown,
			&s.FrequenciesUsed, &s.AircraftDetails)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSummaryTime returns the newest summary write across both summary
// tables, or nil when no summaries exist yet.
func (d *DB) LatestSummaryTime(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT GREATEST(
			(SELECT MAX(created_at) FROM flight_summaries),
			(SELECT MAX(created_at) FROM controller_summaries))
	`).Scan(&t)
	if err != nil {
		return nil, fmt.Errorf("latest summary time: %w", err)
	}
	return t, nil
}

// PurgeArchives deletes archive rows and stale transceiver samples older
// than the retention cutoff. Returns rows removed per table.
func (d *DB) PurgeArchives(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	purged := map[string]int64{}

	tag, err := d.pool.Exec(ctx,
		`DELETE FROM flights_archive WHERE archived_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge flights_archive: %w", err)
	}
	purged["flights_archive"] = tag.RowsAffected()

	tag, err = d.pool.Exec(ctx,
		`DELETE FROM controllers_archive WHERE archived_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge controllers_archive: %w", err)
	}
	purged["controllers_archive"] = tag.RowsAffected()

	tag, err = d.pool.Exec(ctx,
		`DELETE FROM transceivers WHERE sample_time < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge transceivers: %w", err)
	}
	purged["transceivers"] = tag.RowsAffected()

	return purged, nil
}
