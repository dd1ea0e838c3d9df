// Package main runs the VATSIM tracker: a daemon that polls the public
// VATSIM data feed, filters it to the Australian FIR, and maintains live
// and summarized flight/controller state in PostgreSQL.
//
// It runs three periodic jobs (ingest tick, flight summarizer, controller
// summarizer) plus a read-only HTTP API.
//
// Usage:
//
//	vatsim_tracker [options]
//
// Options:
//
//	-data-url URL      VATSIM snapshot URL (env: VATSIM_DATA_URL)
//	-fir-path PATH     FIR boundary GeoJSON (env: FIR_POLYGON_PATH, required)
//	-sector-path PATH  Sector GeoJSON (env: SECTOR_DATA_PATH)
//	-database-url URL  PostgreSQL connection string (env: DATABASE_URL)
//	-port N            HTTP API port (env: API_PORT, default 8080)
//	-debug             Verbose logging
//
// All other tunables are environment variables; see internal/config.
//
// API Endpoints:
//
//	GET /api/v1/status                 System, ingest and database health.
//	GET /api/v1/status/filters         Filter admission/rejection counters.
//	GET /api/v1/flights                Latest sample of every live flight.
//	GET /api/v1/controllers            Live controller connections.
//	GET /api/v1/transceivers/{callsign} Recent transceiver samples.
//	GET /api/v1/summaries/flights      Completed flight summaries.
//	GET /api/v1/summaries/controllers  Completed controller sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vatsim_tracker/internal/api"
	"vatsim_tracker/internal/config"
	"vatsim_tracker/internal/detector"
	"vatsim_tracker/internal/pipeline"
	"vatsim_tracker/internal/refdata"
	"vatsim_tracker/internal/scheduler"
	"vatsim_tracker/internal/sectors"
	"vatsim_tracker/internal/storage"
	"vatsim_tracker/internal/summary"
	"vatsim_tracker/internal/sweeper"
	"vatsim_tracker/internal/vatsim"
)

func main() {
	cfg := config.FromEnv()

	flag.StringVar(&cfg.VatsimDataURL, "data-url", cfg.VatsimDataURL, "VATSIM snapshot URL")
	flag.StringVar(&cfg.FIRPolygonPath, "fir-path", cfg.FIRPolygonPath, "FIR boundary GeoJSON path")
	flag.StringVar(&cfg.SectorDataPath, "sector-path", cfg.SectorDataPath, "Sector GeoJSON path")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	flag.IntVar(&cfg.APIPort, "port", cfg.APIPort, "HTTP API port")
	debug := flag.Bool("debug", false, "Verbose logging")
	flag.Parse()

	logger := newLogger(*debug)
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Errorw("fatal", "err", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, err := refdata.Load(cfg)
	if err != nil {
		return fmt.Errorf("reference data: %w", err)
	}
	log.Infow("reference data loaded",
		"sectors", sectorCount(ref),
		"allow_list", ref.AllowListSize())

	db, err := storage.Open(ctx, storage.Config{
		URL:              cfg.DatabaseURL,
		PoolSize:         cfg.DatabasePoolSize,
		MaxOverflow:      cfg.DatabaseMaxOverflow,
		StatementTimeout: cfg.StatementTimeout,
		TxRetries:        cfg.TxRetries,
	})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := db.CreateSchema(ctx); err != nil {
		return err
	}

	client := vatsim.NewClient(cfg.VatsimDataURL, cfg.RequestTimeout, cfg.FetchRetries, log)
	filter := pipeline.NewFilter(ref, cfg)

	var engine *sectors.Engine
	if cfg.SectorTrackingEnabled {
		engine = sectors.NewEngine(ref.Sectors, db, log)
		if err := engine.Recover(ctx); err != nil {
			return fmt.Errorf("sector recovery: %w", err)
		}
	}

	sw := sweeper.New(db, cfg.FlightTimeout, log)
	ingestor := pipeline.NewIngestor(client, filter, db, engine, sw, log)

	det := detector.New(db, detector.Matcher{
		Ranges: detector.Ranges{
			GroundNM:   cfg.ProximityGroundNM,
			TowerNM:    cfg.ProximityTowerNM,
			ApproachNM: cfg.ProximityApproachNM,
			CenterNM:   cfg.ProximityCenterNM,
			FSSNM:      cfg.ProximityFSSNM,
			DefaultNM:  cfg.ProximityDefaultNM,
		},
		TimeWindow:     cfg.MatchTimeWindow,
		GuardFrequency: cfg.GuardFrequencyHz,
	}, log)

	flightSum := summary.NewFlightSummarizer(db, det, engine, summary.FlightSummarizerConfig{
		Completion:      cfg.FlightCompletion,
		Retention:       cfg.FlightRetention,
		AirborneSpeedKt: cfg.AirborneSpeedKt,
		PollInterval:    cfg.PollingInterval,
	}, log)
	controllerSum := summary.NewControllerSummarizer(db, det, summary.ControllerSummarizerConfig{
		Completion:  cfg.ControllerCompletion,
		MergeWindow: cfg.ControllerMergeWindow,
	}, log)

	sched := scheduler.New(log,
		&scheduler.Job{
			Name:       "ingest",
			Interval:   cfg.PollingInterval,
			RunAtStart: true,
			Fn:         ingestor.Tick,
			Fatal:      storage.IsFatal,
		},
		&scheduler.Job{
			Name:     "flight-summaries",
			Interval: cfg.FlightSummaryInterval,
			Fn: func(ctx context.Context) error {
				return flightSum.Run(ctx, time.Now().UTC())
			},
			Fatal: storage.IsFatal,
		},
		&scheduler.Job{
			Name:     "controller-summaries",
			Interval: cfg.ControllerSummaryInterval,
			Fn: func(ctx context.Context) error {
				return controllerSum.Run(ctx, time.Now().UTC())
			},
			Fatal: storage.IsFatal,
		},
	)
	sched.Start()

	srv := api.NewServer(db, ingestor, filter, sched, cfg.APIPort, log).HTTPServer()
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutdown signal received")
	case err := <-serverErr:
		log.Errorw("api server failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("api shutdown incomplete", "err", err)
	}
	if !sched.Stop(cfg.GracePeriod) {
		log.Warnw("jobs did not finish within grace period")
	}
	log.Infow("shutdown complete")
	return nil
}

func sectorCount(ref *refdata.Data) int {
	if ref.Sectors == nil {
		return 0
	}
	return ref.Sectors.Len()
}
