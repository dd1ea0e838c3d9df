package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vatsim_tracker/internal/sectors"
	"vatsim_tracker/internal/storage"
	"vatsim_tracker/internal/sweeper"
	"vatsim_tracker/internal/vatsim"
)

// Ingestor runs one tick end to end: fetch, filter, persist, advance the
// sector engine, then sweep stale intervals.
type Ingestor struct {
	client  *vatsim.Client
	filter  *Filter
	db      *storage.DB
	engine  *sectors.Engine // nil when sector tracking is disabled
	sweeper *sweeper.Sweeper
	log     *zap.SugaredLogger

	mu        sync.Mutex
	lastToken string

	lastIngest atomic.Int64 // unix seconds of the last committed tick
	ticks      atomic.Int64
	skips      atomic.Int64
	failures   atomic.Int64
}

func NewIngestor(client *vatsim.Client, filter *Filter, db *storage.DB, engine *sectors.Engine, sw *sweeper.Sweeper, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{
		client:  client,
		filter:  filter,
		db:      db,
		engine:  engine,
		sweeper: sw,
		log:     log,
	}
}

// Tick fetches one snapshot and commits it. A fetch failure drops the tick
// without touching state; a snapshot whose update token matches the
// previous one is skipped.
func (in *Ingestor) Tick(ctx context.Context) error {
	snap, err := in.client.Fetch(ctx)
	if err != nil {
		in.failures.Add(1)
		in.log.Errorw("snapshot fetch failed", "err", err)
		return err
	}

	if in.seen(snap.General.Update) {
		in.skips.Add(1)
		in.log.Debugw("snapshot unchanged, skipping", "update", snap.General.Update)
		return nil
	}

	norm := Normalize(snap, in.filter)

	start := time.Now()
	err = in.db.WithTx(ctx, func(q storage.Querier) error {
		if err := in.db.InsertFlightSamples(ctx, q, norm.Flights); err != nil {
			return err
		}
		if err := in.db.UpsertControllers(ctx, q, norm.Controllers); err != nil {
			return err
		}
		if err := in.db.InsertTransceivers(ctx, q, norm.Transceivers); err != nil {
			return err
		}
		if in.engine != nil {
			for i := range norm.Flights {
				if err := in.engine.Apply(ctx, q, &norm.Flights[i]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		in.failures.Add(1)
		in.log.Errorw("ingest transaction failed", "err", err)
		return err
	}

	closed, err := in.sweeper.Sweep(ctx, time.Now().UTC())
	if err != nil {
		in.log.Errorw("stale sweep failed", "err", err)
	}
	if in.engine != nil {
		for _, key := range closed {
			in.engine.Drop(key)
		}
	}

	in.ticks.Add(1)
	in.lastIngest.Store(time.Now().Unix())
	in.log.Infow("tick committed",
		"snapshot", norm.Time,
		"flights", len(norm.Flights),
		"controllers", len(norm.Controllers),
		"transceivers", len(norm.Transceivers),
		"elapsed", time.Since(start))
	return nil
}

// seen records the snapshot token and reports whether it was already the
// current one. An empty token never matches.
func (in *Ingestor) seen(token string) bool {
	if token == "" {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if token == in.lastToken {
		return true
	}
	in.lastToken = token
	return false
}

// Status is the ingest health view for the API.
type Status struct {
	LastIngestAt *time.Time `json:"last_ingest_at"`
	Ticks        int64      `json:"ticks"`
	SkippedTicks int64      `json:"skipped_ticks"`
	FailedTicks  int64      `json:"failed_ticks"`
}

func (in *Ingestor) Status() Status {
	s := Status{
		Ticks:        in.ticks.Load(),
		SkippedTicks: in.skips.Load(),
		FailedTicks:  in.failures.Load(),
	}
	if ts := in.lastIngest.Load(); ts > 0 {
		t := time.Unix(ts, 0).UTC()
		s.LastIngestAt = &t
	}
	return s
}
