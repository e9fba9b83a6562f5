// Package engine drives the migration pipeline: one enumerator feeding a
// bounded queue, a fixed pool of transfer workers, and the shared rate and
// memory controls bounding their progress.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ledger"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/membudget"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// State is the engine lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	case StateCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures an engine run beyond what the config file carries.
type Options struct {
	// RetryFailed clears persisted failure records before enumeration so
	// permanently failed coordinates are attempted again.
	RetryFailed bool
}

// Engine owns one migration run. Create with New, run once with Run.
type Engine struct {
	cfg     *types.Config
	source  adapter.Source
	dest    adapter.Destination
	limiter *ratelimit.Limiter
	budget  *membudget.Budget
	opts    Options
	logger  zerolog.Logger

	state atomic.Int32

	queue chan *types.TransferTask

	ledgerMu sync.Mutex
	ledgers  map[string]*ledger.Ledger

	stats stats

	failMu   sync.Mutex
	failures []types.FailureDetail

	migratedMu sync.Mutex
	migrated   map[string][]string

	// consecutivePermanent aborts the run when too many permanent failures
	// arrive back to back, a sign of misconfiguration rather than bad data.
	consecutivePermanent atomic.Int64
	abort                func(cause error)
}

type stats struct {
	done       atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	cancelled  atomic.Int64
	bytes      atomic.Int64
	unverified atomic.Int64
}

// New wires an engine from its collaborators. The limiter is shared with the
// source adapter so listing and download calls drain the same bucket.
func New(cfg *types.Config, source adapter.Source, dest adapter.Destination,
	limiter *ratelimit.Limiter, logger zerolog.Logger, opts Options) *Engine {
	return &Engine{
		cfg:     cfg,
		source:  source,
		dest:    dest,
		limiter: limiter,
		budget:  membudget.New(cfg.Memory.Limit.Bytes()),
		opts:    opts,
		logger: logger.With().Str("component", "engine").
			Str("run", uuid.NewString()[:8]).Logger(),
		queue:    make(chan *types.TransferTask, cfg.Migration.QueueSize),
		ledgers:  make(map[string]*ledger.Ledger),
		migrated: make(map[string][]string),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// InFlightBytes returns the bytes currently reserved against the budget.
func (e *Engine) InFlightBytes() int64 {
	return e.budget.InFlight()
}

// Snapshot returns a point-in-time view of the run counters, safe to call
// while the run is in progress. Failure details are not included.
func (e *Engine) Snapshot() types.Summary {
	return types.Summary{
		Done:       e.stats.done.Load(),
		Skipped:    e.stats.skipped.Load(),
		Failed:     e.stats.failed.Load(),
		Cancelled:  e.stats.cancelled.Load(),
		Bytes:      e.stats.bytes.Load(),
		Unverified: e.stats.unverified.Load(),
	}
}

// Run executes the migration until the source is exhausted or ctx is
// cancelled. It returns the run summary; the error is non-nil only for setup
// failures and aborts, individual artifact failures land in the summary.
func (e *Engine) Run(ctx context.Context) (types.Summary, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return types.Summary{}, errors.New("engine already ran")
	}
	start := time.Now()

	// Transfers run on their own context so cancellation can grant in-flight
	// work a drain grace period before cutting it off.
	transferCtx, cancelTransfers := context.WithCancelCause(context.Background())
	defer cancelTransfers(nil)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Aborting stops enumeration and in-flight transfers alike; there is no
	// point listing pages for tasks that will only be discarded.
	e.abort = func(cause error) {
		cancelTransfers(cause)
		cancelRun()
	}

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		select {
		case <-runCtx.Done():
			if ctx.Err() == nil {
				return
			}
		case <-transferCtx.Done():
			return
		}
		e.state.Store(int32(StateDraining))
		e.logger.Warn().Dur("grace", e.cfg.Migration.DrainTimeout.Std()).Msg("Cancellation requested, draining in-flight transfers")
		select {
		case <-time.After(e.cfg.Migration.DrainTimeout.Std()):
			cancelTransfers(context.Canceled)
		case <-transferCtx.Done():
		}
	}()

	flushDone := make(chan struct{})
	go e.flushLoop(transferCtx, flushDone)

	var workers sync.WaitGroup
	for i := 0; i < e.cfg.Migration.Concurrency; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			e.workerLoop(runCtx, transferCtx, id)
		}(i)
	}

	enumErr := e.enumerate(runCtx)
	close(e.queue)
	workers.Wait()

	cancelRun()
	cancelTransfers(nil)
	<-drainDone
	<-flushDone

	if err := e.flushAll(); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist migration records")
	}

	cancelled := ctx.Err() != nil
	aborted := context.Cause(transferCtx) != nil &&
		errors.Is(context.Cause(transferCtx), types.ErrRunAborted)

	if cancelled || aborted {
		e.state.Store(int32(StateStopped))
	} else {
		e.state.Store(int32(StateCompleted))
	}

	e.logMigratedGroups()

	summary := e.summary(time.Since(start))
	e.logger.Info().
		Int64("done", summary.Done).
		Int64("skipped", summary.Skipped).
		Int64("failed", summary.Failed).
		Int64("cancelled", summary.Cancelled).
		Str("transferred", fmt.Sprintf("%d bytes", summary.Bytes)).
		Str("state", e.State().String()).
		Msg("Run finished")

	switch {
	case aborted:
		return summary, types.ErrRunAborted
	case cancelled:
		return summary, ctx.Err()
	case enumErr != nil && !errors.Is(enumErr, context.Canceled):
		return summary, fmt.Errorf("enumeration: %w", enumErr)
	}
	return summary, nil
}

// ledgerFor returns the per-project records file, opening it on first use.
func (e *Engine) ledgerFor(project string) (*ledger.Ledger, error) {
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()
	if l, ok := e.ledgers[project]; ok {
		return l, nil
	}
	l, err := ledger.Open(ledger.FilePath(e.cfg.Ledger.Dir, project), e.logger)
	if err != nil {
		return nil, err
	}
	if e.opts.RetryFailed {
		if removed := l.ClearFailures(); removed > 0 {
			e.logger.Info().Str("project", project).Int("cleared", removed).Msg("Cleared failure records for retry")
		}
	}
	e.ledgers[project] = l
	return l, nil
}

func (e *Engine) flushLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.cfg.Migration.FlushInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.flushAll(); err != nil {
				e.logger.Warn().Err(err).Msg("Periodic record flush failed")
			}
		}
	}
}

func (e *Engine) flushAll() error {
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()
	var errs []error
	for _, l := range e.ledgers {
		if err := l.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// noteOutcome updates the abort counter and collects failure details.
func (e *Engine) noteOutcome(task *types.TransferTask) {
	switch task.State {
	case types.StateDone, types.StateSkipped:
		e.consecutivePermanent.Store(0)
	case types.StateFailed:
		if task.LastErrorKind == types.KindPermanent || task.LastErrorKind == types.KindResource {
			if n := e.consecutivePermanent.Add(1); n >= int64(e.cfg.Migration.AbortThreshold) {
				e.logger.Error().Int64("consecutiveFailures", n).Msg("Aborting run, consecutive permanent failures exceeded threshold")
				e.abort(types.ErrRunAborted)
			}
		} else {
			e.consecutivePermanent.Store(0)
		}
		e.failMu.Lock()
		e.failures = append(e.failures, types.FailureDetail{
			Key:      task.Ref.Key(),
			Kind:     task.LastErrorKind,
			Attempts: task.Attempts,
			Reason:   errString(task.LastError),
		})
		e.failMu.Unlock()
	}
}

func (e *Engine) recordMigrated(ref types.ArtifactRef) {
	e.migratedMu.Lock()
	e.migrated[ref.GroupID] = append(e.migrated[ref.GroupID], ref.ArtifactID+":"+ref.Version)
	e.migratedMu.Unlock()
}

// migratedByGroup returns the uploaded coordinates grouped by group ID,
// each group's artifact list sorted.
func (e *Engine) migratedByGroup() map[string][]string {
	e.migratedMu.Lock()
	defer e.migratedMu.Unlock()
	groups := make(map[string][]string, len(e.migrated))
	for group, artifacts := range e.migrated {
		list := make([]string, len(artifacts))
		copy(list, artifacts)
		sort.Strings(list)
		groups[group] = list
	}
	return groups
}

// logMigratedGroups emits the uploaded coordinates grouped by group ID at
// debug level, one line per group.
func (e *Engine) logMigratedGroups() {
	groups := e.migratedByGroup()
	if len(groups) == 0 {
		return
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.logger.Debug().Str("group", name).Strs("artifacts", groups[name]).Msg("Uploaded")
	}
}

func (e *Engine) summary(elapsed time.Duration) types.Summary {
	e.failMu.Lock()
	failures := make([]types.FailureDetail, len(e.failures))
	copy(failures, e.failures)
	e.failMu.Unlock()

	return types.Summary{
		Done:       e.stats.done.Load(),
		Skipped:    e.stats.skipped.Load(),
		Failed:     e.stats.failed.Load(),
		Cancelled:  e.stats.cancelled.Load(),
		Bytes:      e.stats.bytes.Load(),
		Unverified: e.stats.unverified.Load(),
		Elapsed:    elapsed,
		Failures:   failures,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
