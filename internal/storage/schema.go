package storage

import (
	"context"
	"fmt"
)

// CreateSchema creates the tracker's tables and indexes.
func (d *DB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Live: one row per observed sample of a pilot connection.
	CREATE TABLE IF NOT EXISTS flights (
		id                   BIGSERIAL PRIMARY KEY,
		callsign             TEXT NOT NULL,
		cid                  INTEGER NOT NULL,
		name                 TEXT,
		server               TEXT,
		latitude             DOUBLE PRECISION,
		longitude            DOUBLE PRECISION,
		altitude             INTEGER,
		heading              INTEGER,
		groundspeed          INTEGER,
		transponder          TEXT,
		flight_rules         TEXT,
		aircraft             TEXT,
		aircraft_faa         TEXT,
		aircraft_short       TEXT,
		departure            TEXT,
		arrival              TEXT,
		alternate            TEXT,
		cruise_tas           TEXT,
		planned_altitude     TEXT,
		deptime              TEXT,
		enroute_time         TEXT,
		fuel_time            TEXT,
		remarks              TEXT,
		route                TEXT,
		revision_id          INTEGER,
		assigned_transponder TEXT,
		qnh_i_hg             DOUBLE PRECISION,
		qnh_mb               DOUBLE PRECISION,
		logon_time           TIMESTAMPTZ NOT NULL,
		last_updated         TIMESTAMPTZ NOT NULL,
		ingested_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (callsign, logon_time, last_updated)
	);

	CREATE INDEX IF NOT EXISTS idx_flights_callsign ON flights(callsign);
	CREATE INDEX IF NOT EXISTS idx_flights_callsign_updated ON flights(callsign, last_updated);
	CREATE INDEX IF NOT EXISTS idx_flights_dep_arr ON flights(departure, arrival);

	-- Live: one row per raw controller connection, refreshed while connected.
	CREATE TABLE IF NOT EXISTS controllers (
		callsign     TEXT NOT NULL,
		cid          INTEGER NOT NULL,
		name         TEXT,
		rating       INTEGER,
		facility     INTEGER NOT NULL DEFAULT 0,
		visual_range INTEGER,
		text_atis    TEXT,
		frequency    TEXT,
		server       TEXT,
		logon_time   TIMESTAMPTZ NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL,
		ingested_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (callsign, logon_time)
	);

	CREATE INDEX IF NOT EXISTS idx_controllers_callsign ON controllers(callsign);
	CREATE INDEX IF NOT EXISTS idx_controllers_rating_updated ON controllers(rating, last_updated);
	CREATE INDEX IF NOT EXISTS idx_controllers_facility ON controllers(facility);

	-- Live: append-only transceiver samples for flights and ATC.
	CREATE TABLE IF NOT EXISTS transceivers (
		id             BIGSERIAL PRIMARY KEY,
		callsign       TEXT NOT NULL,
		transceiver_id INTEGER NOT NULL,
		frequency      BIGINT NOT NULL CHECK (frequency > 0),
		latitude       DOUBLE PRECISION,
		longitude      DOUBLE PRECISION,
		height_msl_m   DOUBLE PRECISION,
		height_agl_m   DOUBLE PRECISION,
		entity_type    TEXT NOT NULL,
		sample_time    TIMESTAMPTZ NOT NULL,
		ingested_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (entity_type, callsign, transceiver_id, sample_time)
	);

	CREATE INDEX IF NOT EXISTS idx_transceivers_callsign ON transceivers(callsign);
	CREATE INDEX IF NOT EXISTS idx_transceivers_frequency ON transceivers(frequency);
	CREATE INDEX IF NOT EXISTS idx_transceivers_type_callsign ON transceivers(entity_type, callsign);
	CREATE INDEX IF NOT EXISTS idx_transceivers_type_time ON transceivers(entity_type, sample_time);
	CREATE INDEX IF NOT EXISTS idx_transceivers_type_callsign_time ON transceivers(entity_type, callsign, sample_time);

	-- Sector intervals; exit_time NULL means the flight is still inside.
	CREATE TABLE IF NOT EXISTS flight_sector_occupancy (
		id               BIGSERIAL PRIMARY KEY,
		callsign         TEXT NOT NULL,
		cid              INTEGER NOT NULL,
		logon_time       TIMESTAMPTZ NOT NULL,
		sector_name      TEXT NOT NULL,
		entry_time       TIMESTAMPTZ NOT NULL,
		exit_time        TIMESTAMPTZ,
		entry_latitude   DOUBLE PRECISION,
		entry_longitude  DOUBLE PRECISION,
		entry_altitude   INTEGER,
		exit_latitude    DOUBLE PRECISION,
		exit_longitude   DOUBLE PRECISION,
		exit_altitude    INTEGER,
		duration_seconds INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_occupancy_callsign_entry ON flight_sector_occupancy(callsign, entry_time);
	CREATE INDEX IF NOT EXISTS idx_occupancy_sector ON flight_sector_occupancy(sector_name);

	-- One row per completed flight.
	CREATE TABLE IF NOT EXISTS flight_summaries (
		id                                  BIGSERIAL PRIMARY KEY,
		callsign                            TEXT NOT NULL,
		cid                                 INTEGER NOT NULL,
		logon_time                          TIMESTAMPTZ NOT NULL,
		departure                           TEXT,
		arrival                             TEXT,
		aircraft_type                       TEXT,
		aircraft_faa                        TEXT,
		aircraft_short                      TEXT,
		flight_rules                        TEXT,
		planned_altitude                    TEXT,
		route                               TEXT,
		deptime                             TEXT,
		time_online_minutes                 DOUBLE PRECISION NOT NULL,
		controller_callsigns                JSONB,
		controller_time_percentage          DOUBLE PRECISION,
		airborne_controller_time_percentage DOUBLE PRECISION,
		primary_enroute_sector              TEXT,
		total_enroute_sectors               INTEGER NOT NULL DEFAULT 0,
		total_enroute_time_minutes          DOUBLE PRECISION NOT NULL DEFAULT 0,
		sector_breakdown                    JSONB,
		completion_time                     TIMESTAMPTZ NOT NULL,
		created_at                          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (callsign, cid, logon_time)
	);

	CREATE INDEX IF NOT EXISTS idx_flight_summaries_callsign ON flight_summaries(callsign);
	CREATE INDEX IF NOT EXISTS idx_flight_summaries_completion ON flight_summaries(completion_time);
	CREATE INDEX IF NOT EXISTS idx_flight_summaries_dep_arr ON flight_summaries(departure, arrival);

	-- Archived flight sample history.
	CREATE TABLE IF NOT EXISTS flights_archive (
		LIKE flights INCLUDING DEFAULTS,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_flights_archive_callsign ON flights_archive(callsign, logon_time);
	CREATE INDEX IF NOT EXISTS idx_flights_archive_archived ON flights_archive(archived_at);

	-- One row per completed (merged) controller session.
	CREATE TABLE IF NOT EXISTS controller_summaries (
		id                        BIGSERIAL PRIMARY KEY,
		callsign                  TEXT NOT NULL,
		cid                       INTEGER NOT NULL,
		name                      TEXT,
		rating                    INTEGER,
		facility                  INTEGER,
		server                    TEXT,
		session_start_time        TIMESTAMPTZ NOT NULL,
		session_end_time          TIMESTAMPTZ NOT NULL,
		session_duration_minutes  DOUBLE PRECISION NOT NULL,
		total_aircraft_handled    INTEGER NOT NULL DEFAULT 0,
		peak_aircraft_count       INTEGER NOT NULL DEFAULT 0,
		hourly_aircraft_breakdown JSONB,
		frequencies_used          BIGINT[],
		aircraft_details          JSONB,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (callsign, cid, session_start_time)
	);

	CREATE INDEX IF NOT EXISTS idx_controller_summaries_callsign ON controller_summaries(callsign);
	CREATE INDEX IF NOT EXISTS idx_controller_summaries_end ON controller_summaries(session_end_time);

	-- Archived controller connection rows.
	CREATE TABLE IF NOT EXISTS controllers_archive (
		LIKE controllers INCLUDING DEFAULTS,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_controllers_archive_callsign ON controllers_archive(callsign, logon_time);
	CREATE INDEX IF NOT EXISTS idx_controllers_archive_archived ON controllers_archive(archived_at);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// At most one open interval per flight and sector.
	_, err := d.pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_occupancy_open_unique
		ON flight_sector_occupancy(callsign, logon_time, sector_name)
		WHERE exit_time IS NULL
	`)
	if err != nil {
		return fmt.Errorf("create open-occupancy index: %w", err)
	}

	return nil
}
