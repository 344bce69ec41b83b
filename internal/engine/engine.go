// Package engine drives the single-threaded grey-box fuzz loop (spec
// §4.4-§4.7): pop a seed, run a concolic round, classify and enqueue
// its candidates, advance the fairness clock, and periodically sync
// with sibling fuzzer directories. It is the core the CLI entrypoint
// (cmd/eclipserd) and the dashboard (internal/api) wrap without
// altering.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/greybox/eclipser/internal/api"
	"github.com/greybox/eclipser/internal/byteval"
	"github.com/greybox/eclipser/internal/concolic"
	"github.com/greybox/eclipser/internal/config"
	"github.com/greybox/eclipser/internal/db"
	"github.com/greybox/eclipser/internal/dict"
	"github.com/greybox/eclipser/internal/executor"
	"github.com/greybox/eclipser/internal/queue"
	"github.com/greybox/eclipser/internal/scheduler"
	"github.com/greybox/eclipser/internal/seed"
	"github.com/greybox/eclipser/internal/stats"
)

// Engine owns the fuzz loop's state across rounds.
type Engine struct {
	Opt       config.FuzzOption
	DB        *db.PostgresStore
	Hub       *api.Hub
	RunID     string
	Publisher *stats.Publisher
	Dict      *dict.Dict

	q       *queue.SeedQueue
	favored int64
	normal  int64

	rounds, execs, testcases, crashes, hangs int64
}

// New constructs an idle Engine; call Run to start the fuzz loop.
func New(opt config.FuzzOption, dbConn *db.PostgresStore, hub *api.Hub, runID string) *Engine {
	return &Engine{
		Opt:       opt,
		DB:        dbConn,
		Hub:       hub,
		RunID:     runID,
		Publisher: stats.NewPublisher(runID),
		Dict:      dict.New(),
		q:         queue.New(),
	}
}

// Depths is handed to internal/api as a QueueDepths closure so the
// dashboard never touches the queue directly from another goroutine.
func (e *Engine) Depths() (favored, normal int) {
	return int(atomic.LoadInt64(&e.favored)), int(atomic.LoadInt64(&e.normal))
}

func (e *Engine) enqueue(priority queue.Priority, s seed.Seed) {
	e.q.Enqueue(priority, s)
	if priority == queue.Favored {
		atomic.AddInt64(&e.favored, 1)
	} else {
		atomic.AddInt64(&e.normal, 1)
	}
}

func (e *Engine) dequeue() (seed.Seed, bool) {
	s, priority, ok := e.q.Dequeue()
	if !ok {
		return seed.Seed{}, false
	}
	// Dequeue always reports Normal regardless of source tier (see
	// queue.SeedQueue.Dequeue); track the depth decrement against
	// whichever counter is actually non-empty, favoring favoreds first
	// to mirror the pop order.
	if atomic.LoadInt64(&e.favored) > 0 && priority == queue.Normal {
		atomic.AddInt64(&e.favored, -1)
	} else {
		atomic.AddInt64(&e.normal, -1)
	}
	return s, true
}

// loadSeeds seeds the initial queue from opt.InputDir, falling back to
// a single zero-filled InitInputLen seed when no corpus is given.
func (e *Engine) loadSeeds() error {
	src := byteval.StdInput()
	if e.Opt.Source == config.SourceFile {
		src = byteval.FileInput(filepath.Join(e.Opt.OutDir, "work", ".input"))
	}

	if e.Opt.InputDir == "" {
		s, err := seed.New(make([]byte, seed.InitInputLen), src)
		if err != nil {
			return err
		}
		e.enqueue(queue.Normal, s)
		return nil
	}

	entries, err := os.ReadDir(e.Opt.InputDir)
	if err != nil {
		return fmt.Errorf("engine: read input dir: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		bs, err := os.ReadFile(filepath.Join(e.Opt.InputDir, ent.Name()))
		if err != nil || len(bs) == 0 {
			continue
		}
		s, err := seed.New(bs, src)
		if err != nil {
			continue
		}
		e.enqueue(queue.Normal, s)
	}
	if e.q.Len() == 0 {
		return fmt.Errorf("engine: no usable seeds found under %s", e.Opt.InputDir)
	}
	return nil
}

// importSyncEntry turns one AFL-style sibling queue file into a seed
// and enqueues it at Normal. The entry is not executed first: it is
// neither run in coverage mode nor classified against this engine's
// bitmap before it enters the queue.
func (e *Engine) importSyncEntry(src byteval.InputSource, imp scheduler.Import) {
	bs, err := os.ReadFile(imp.Path)
	if err != nil || len(bs) == 0 {
		return
	}
	s, err := seed.New(bs, src)
	if err != nil {
		return
	}
	e.enqueue(queue.Normal, s)
}

// persistCandidate writes a classified candidate's concrete bytes
// under OutDir/queue and records it in the dashboard/DB.
func (e *Engine) persistCandidate(c concolic.Candidate) {
	dir := filepath.Join(e.Opt.OutDir, "queue")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[Engine] mkdir queue dir: %v", err)
		return
	}
	bytes := c.Seed.Concretize()
	id := atomic.AddInt64(&e.testcases, 1)
	name := fmt.Sprintf("id:%06d,%s", id, c.Gain)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		log.Printf("[Engine] write test-case: %v", err)
		return
	}
	if e.Opt.Verbosity > 0 {
		log.Printf("[Engine] new %s test-case %s (%s)", c.Gain, name, c.Priority)
	}

	tc := queue.TestCase{ID: uuid.New(), Bytes: bytes, Gain: c.Gain, Priority: c.Priority, Path: path}
	if e.DB != nil {
		if err := e.DB.SaveTestCase(context.Background(), e.RunID, tc); err != nil {
			log.Printf("[Engine] persist test-case: %v", err)
		}
	}
	if e.Hub != nil {
		evtType := api.EventNewFavored
		if c.Priority != queue.Favored {
			evtType = api.EventRoundComplete
		}
		if payload, err := jsonEvent(evtType, tc); err == nil {
			e.Hub.Broadcast(payload)
		}
	}
}

// persistAbnormal saves a crashing or hanging candidate's concrete
// bytes under OutDir/crashes or OutDir/hangs (spec §4.4 step 6:
// crashes and timeouts are saved but never enqueued for further
// fuzzing).
func (e *Engine) persistAbnormal(c concolic.Candidate) {
	sub := "crashes"
	counter := &e.crashes
	evtType := api.EventCrash
	if c.Status == executor.StatusTimeout {
		sub = "hangs"
		counter = &e.hangs
		evtType = api.EventHang
	}

	dir := filepath.Join(e.Opt.OutDir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[Engine] mkdir %s dir: %v", sub, err)
		return
	}
	id := atomic.AddInt64(counter, 1)
	path := filepath.Join(dir, fmt.Sprintf("id:%06d", id))
	if err := os.WriteFile(path, c.Seed.Concretize(), 0o644); err != nil {
		log.Printf("[Engine] write %s entry: %v", sub, err)
		return
	}
	log.Printf("[Engine] saved %s entry %s", sub, path)

	if e.Hub != nil {
		if payload, err := jsonEvent(evtType, map[string]string{"path": path}); err == nil {
			e.Hub.Broadcast(payload)
		}
	}
}

func (e *Engine) publish() {
	e.Publisher.Publish(stats.RunStats{
		RunID:      e.RunID,
		Rounds:     atomic.LoadInt64(&e.rounds),
		Execs:      atomic.LoadInt64(&e.execs),
		TestCases:  atomic.LoadInt64(&e.testcases),
		Favored:    atomic.LoadInt64(&e.favored),
		Normal:     atomic.LoadInt64(&e.normal),
		Crashes:    atomic.LoadInt64(&e.crashes),
		Hangs:      atomic.LoadInt64(&e.hangs),
		Efficiency: efficiency(atomic.LoadInt64(&e.testcases), atomic.LoadInt64(&e.execs)),
		LastSync:   time.Now(),
	})
	if e.DB != nil {
		if err := e.DB.SaveRunStats(context.Background(), e.Publisher.Snapshot()); err != nil {
			log.Printf("[Engine] persist run stats: %v", err)
		}
	}
}

// jsonEvent marshals one dashboard event for broadcast over the
// websocket Hub (spec §4.8's /ws feed).
func jsonEvent(evtType api.EventType, data interface{}) ([]byte, error) {
	return json.Marshal(api.Event{Type: evtType, Data: data})
}

func efficiency(testcases, execs int64) float64 {
	if execs == 0 {
		return 0
	}
	return float64(testcases) / float64(execs)
}

// Run drives the fuzz loop until ctx is cancelled or opt.TimeLimit
// elapses (zero TimeLimit means unbounded).
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("[Engine] fuzzing %s (%s, fork-server=%t)", e.Opt.Target, e.Opt.Arch, e.Opt.ForkServer)
	if err := e.loadSeeds(); err != nil {
		return err
	}

	tracer, err := executor.NewTracerExecutor(e.Opt.Target, e.Opt.Args, e.Opt.Source, e.Opt.ExecTimeout, filepath.Join(e.Opt.OutDir, "work"), e.Opt.ForkServer)
	if err != nil {
		return err
	}
	defer tracer.Close()

	round := &concolic.Round{Exec: tracer, Rand: rand.New(rand.NewSource(time.Now().UnixNano())), NSpawn: e.Opt.NSpawn, NSolve: e.Opt.NSolve, Dict: e.Dict}
	clock := scheduler.NewFairnessClock()

	var syncer *scheduler.Syncer
	src := byteval.StdInput()
	if e.Opt.Source == config.SourceFile {
		src = byteval.FileInput(filepath.Join(e.Opt.OutDir, "work", ".input"))
	}
	if e.Opt.SyncDir != "" {
		syncer = scheduler.NewSyncer(e.Opt.SyncDir, e.Opt.OutDir)
		if e.DB != nil {
			if saved, err := e.DB.LoadWatermarks(ctx, e.RunID); err == nil {
				syncer.LoadWatermarks(saved)
			}
		}
	}

	deadline := time.Time{}
	if e.Opt.TimeLimit > 0 {
		deadline = time.Now().Add(e.Opt.TimeLimit)
	}

	// Publish once up front so a DB-backed run has its fuzz_runs row
	// before the first persisted test-case's foreign key needs it.
	e.publish()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}

		// The sync cadence is counted in rounds; Tick gates the actual
		// directory scan on SyncN internally.
		if syncer != nil {
			if imports, err := syncer.Tick(); err == nil && len(imports) > 0 {
				for _, imp := range imports {
					e.importSyncEntry(src, imp)
				}
				if e.DB != nil {
					for sibling, id := range syncer.Watermarks() {
						if err := e.DB.SaveWatermark(ctx, e.RunID, sibling, id); err != nil {
							log.Printf("[Engine] persist sync watermark: %v", err)
						}
					}
				}
			}
		}

		s, ok := e.dequeue()
		if !ok {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		outcome, err := round.Run(ctx, s)
		if err != nil {
			log.Printf("[Engine] round error: %v", err)
			continue
		}

		atomic.AddInt64(&e.rounds, 1)
		atomic.AddInt64(&e.execs, int64(outcome.Execs))

		newTCs := 0
		for _, c := range outcome.Candidates {
			if c.Status != executor.StatusNormal {
				e.persistAbnormal(c)
				continue
			}
			e.persistCandidate(c)
			e.enqueue(c.Priority, c.Seed)
			newTCs++
		}
		if outcome.Requeue != nil {
			e.enqueue(queue.Normal, *outcome.Requeue)
		}

		clock.Record(outcome.Execs, newTCs)
		e.publish()
	}
}
