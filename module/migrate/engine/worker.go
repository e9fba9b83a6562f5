package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ledger"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// workerLoop consumes tasks until the queue closes. Retries happen inside the
// worker holding the task; a task never re-enters the queue. Once the run
// context ends, no new task starts: everything still queued is marked
// cancelled, only the transfer already in flight rides out the drain grace.
func (e *Engine) workerLoop(runCtx, transferCtx context.Context, id int) {
	logger := e.logger.With().Int("worker", id).Logger()
	for task := range e.queue {
		if err := runCtx.Err(); err != nil {
			e.finishCancelled(task, err)
			e.noteOutcome(task)
			continue
		}
		e.process(transferCtx, logger, task)
		e.noteOutcome(task)
	}
}

func (e *Engine) process(ctx context.Context, logger zerolog.Logger, task *types.TransferTask) {
	task.StartedAt = time.Now()
	defer func() { task.FinishedAt = time.Now() }()
	key := task.Ref.Key()
	logger = logger.With().Str("artifact", key).Logger()

	if err := ctx.Err(); err != nil {
		e.finishCancelled(task, err)
		return
	}

	// A broken records file degrades dedup, it does not fail the artifact.
	led, err := e.ledgerFor(task.Ref.Project)
	if err != nil {
		logger.Warn().Err(err).Msg("Cannot open migration records, transferring without them")
		led = nil
	}

	if led != nil && led.IsMigrated(key) {
		e.finishSkipped(task)
		logger.Debug().Msg("Already migrated, skipping")
		return
	}
	if led != nil && led.IsPermanentlyFailed(key) {
		e.finishSkipped(task)
		logger.Debug().Msg("Previously failed permanently, skipping")
		return
	}

	repository, err := e.dest.ResolveRepository(ctx, task.Ref.IsSnapshot())
	if err != nil {
		e.finishFailed(led, task, err)
		logger.Error().Err(err).Msg("Cannot resolve destination repository")
		return
	}

	if hash, found, err := e.dest.Exists(ctx, repository, task.Ref); err == nil && found {
		if led != nil {
			led.RecordSuccess(key, hash, repository)
		}
		e.finishSkipped(task)
		logger.Debug().Str("repository", repository).Msg("Already present at destination, skipping")
		return
	} else if err != nil {
		logger.Warn().Err(err).Msg("Existence check failed, transferring anyway")
	}

	if e.cfg.Migration.DryRun {
		task.State = types.StateDone
		e.stats.done.Add(1)
		logger.Info().Str("repository", repository).Msg("Dry run, would migrate")
		return
	}

	var result transferResult
	var integrityRetried bool
	for attempt := 1; attempt <= e.cfg.Migration.MaxAttempts; attempt++ {
		task.Attempts = attempt
		result, err = e.transfer(ctx, task, repository)
		if err == nil {
			break
		}

		kind := types.KindOf(err)
		task.LastError = err
		task.LastErrorKind = kind

		if kind == types.KindCancelled {
			e.finishCancelled(task, err)
			logger.Warn().Int("attempt", attempt).Msg("Transfer cancelled")
			return
		}
		if !retryable(kind) || attempt == e.cfg.Migration.MaxAttempts {
			break
		}
		if kind == types.KindIntegrity {
			if integrityRetried {
				break
			}
			integrityRetried = true
		}

		delay := e.backoff(attempt)
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("Transfer failed, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			e.finishCancelled(task, ctx.Err())
			return
		}
	}

	if err != nil {
		e.finishFailed(led, task, err)
		logger.Error().Err(err).Int("attempts", task.Attempts).Msg("Transfer failed permanently")
		return
	}

	task.State = types.StateDone
	task.Hash = result.hash
	if led != nil {
		led.RecordSuccess(key, result.hash, repository)
	}
	e.recordMigrated(task.Ref)
	e.stats.done.Add(1)
	e.stats.bytes.Add(result.bytes)
	if !result.verified {
		e.stats.unverified.Add(1)
	}
	logger.Info().
		Str("repository", repository).
		Int64("bytes", result.bytes).
		Bool("verified", result.verified).
		Msg("Migrated")
}

// retryable reports whether another attempt can change the outcome.
// Integrity mismatches get exactly one re-download, a corrupted stream
// usually heals but a wrong checksum upstream never will; permanent and
// resource errors never retry.
func retryable(kind types.ErrorKind) bool {
	return kind == types.KindTransient || kind == types.KindIntegrity
}

type transferResult struct {
	bytes    int64
	hash     string
	verified bool
}

// transfer moves one artifact source to destination. The memory reservation
// happens before any network I/O and is released on every exit path. It is
// sized from the enumerated size, or the configured average when unknown,
// and is never resized mid-transfer; a Content-Length discovered after the
// download opens arrives too late to bound anything.
func (e *Engine) transfer(ctx context.Context, task *types.TransferTask, repository string) (transferResult, error) {
	reservation := task.Ref.Size
	if reservation <= 0 {
		reservation = e.cfg.Memory.AverageObjectSize.Bytes()
	}
	if err := e.budget.Acquire(ctx, reservation); err != nil {
		return transferResult{}, err
	}
	defer e.budget.Release(reservation)

	if err := e.limiter.Acquire(ctx); err != nil {
		return transferResult{}, err
	}

	task.State = types.StateDownloading
	body, info, err := e.source.OpenDownload(ctx, task.Ref)
	if err != nil {
		return transferResult{}, fmt.Errorf("open download: %w", err)
	}
	defer body.Close()

	size := info.ContentLength
	if size <= 0 && task.Ref.Size > 0 {
		size = task.Ref.Size
	}
	task.ContentLength = size

	expected := strings.ToLower(info.SHA256)
	if expected == "" {
		expected = strings.ToLower(task.Ref.SHA256)
	}

	if size <= 0 && e.dest.RequiresContentLength() {
		return e.transferBuffered(ctx, task, repository, body, reservation, expected)
	}
	return e.transferStreamed(ctx, task, repository, body, size, expected)
}

// transferStreamed pipes the download straight into the upload, hashing the
// bytes as they pass. A hash mismatch is detected only after the upload; the
// retry overwrites the bad deployment.
func (e *Engine) transferStreamed(ctx context.Context, task *types.TransferTask, repository string,
	body io.Reader, size int64, expected string) (transferResult, error) {

	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(body, hasher)}

	task.State = types.StateUploading
	uploadSize := size
	if uploadSize <= 0 {
		uploadSize = -1
	}
	if err := e.dest.Upload(ctx, repository, task.Ref, counter, uploadSize); err != nil {
		return transferResult{}, fmt.Errorf("upload: %w", err)
	}

	task.State = types.StateHashing
	return verify(counter.n, hasher.Sum(nil), expected)
}

// transferBuffered reads the whole artifact into memory first, for
// destinations that must know the length up front. The buffer is capped at
// the reservation; an artifact that outgrows it can never fit and fails
// without retry.
func (e *Engine) transferBuffered(ctx context.Context, task *types.TransferTask, repository string,
	body io.Reader, reservation int64, expected string) (transferResult, error) {

	// The Writer wrapper hides bytes.Buffer's ReadFrom so the copy really
	// moves through the chunk-sized intermediate buffer.
	var buf bytes.Buffer
	chunk := make([]byte, e.cfg.Memory.ChunkSize.Bytes())
	n, err := io.CopyBuffer(struct{ io.Writer }{&buf}, io.LimitReader(body, reservation+1), chunk)
	if err != nil {
		return transferResult{}, types.Transient(fmt.Errorf("read download: %w", err))
	}
	if n > reservation {
		return transferResult{}, types.Resource(fmt.Errorf("%w: artifact exceeds %d byte reservation",
			types.ErrSizeExceedsBudget, reservation))
	}

	task.State = types.StateHashing
	sum := sha256.Sum256(buf.Bytes())
	if expected != "" && hex.EncodeToString(sum[:]) != expected {
		return transferResult{}, types.Integrity(fmt.Errorf("%w: hash mismatch before upload", types.ErrDataIntegrity))
	}

	task.State = types.StateUploading
	if err := e.dest.Upload(ctx, repository, task.Ref, bytes.NewReader(buf.Bytes()), n); err != nil {
		return transferResult{}, fmt.Errorf("upload: %w", err)
	}

	return verify(n, sum[:], expected)
}

func verify(n int64, sum []byte, expected string) (transferResult, error) {
	actual := hex.EncodeToString(sum)
	if expected == "" {
		return transferResult{bytes: n, hash: actual, verified: false}, nil
	}
	if actual != expected {
		return transferResult{}, types.Integrity(fmt.Errorf("%w: got %s, want %s",
			types.ErrDataIntegrity, actual, expected))
	}
	return transferResult{bytes: n, hash: actual, verified: true}, nil
}

func (e *Engine) backoff(attempt int) time.Duration {
	delay := e.cfg.Migration.RetryBaseDelay.Std() << (attempt - 1)
	if delay > e.cfg.Migration.RetryMaxDelay.Std() || delay <= 0 {
		delay = e.cfg.Migration.RetryMaxDelay.Std()
	}
	// Up to 25% jitter keeps retries from synchronizing across workers.
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

func (e *Engine) finishSkipped(task *types.TransferTask) {
	task.State = types.StateSkipped
	e.stats.skipped.Add(1)
}

func (e *Engine) finishCancelled(task *types.TransferTask, err error) {
	task.State = types.StateCancelled
	task.LastError = err
	task.LastErrorKind = types.KindCancelled
	e.stats.cancelled.Add(1)
}

func (e *Engine) finishFailed(led *ledger.Ledger, task *types.TransferTask, err error) {
	task.State = types.StateFailed
	task.LastError = err
	task.LastErrorKind = types.KindOf(err)
	if task.Attempts == 0 {
		task.Attempts = 1
	}
	e.stats.failed.Add(1)
	if led != nil {
		led.RecordFailure(task.Ref.Key(), task.LastErrorKind, task.Attempts, err.Error())
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, types.Transient(err)
	}
	return n, err
}
