// Package sync provides the reconciliation engine: it drains the offline
// mutation queue against the remote service with dependency-respecting
// ordering, bounded retries, and placeholder id resolution.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/stridefit/stride/internal/kv"
	"github.com/stridefit/stride/internal/queue"
	"github.com/stridefit/stride/internal/remote"
)

// ErrSyncRunning is returned when a pass is requested while another is
// in flight. Callers treat it as a no-op, not a failure.
var ErrSyncRunning = errors.New("sync: pass already running")

// ErrUnresolvedRef is returned by a handler whose operation references a
// placeholder id with no recorded resolution. The operation stays queued
// and burns a retry; the parent create that resolves it normally runs
// earlier in the same pass.
var ErrUnresolvedRef = errors.New("sync: unresolved placeholder reference")

// lastSyncKey is where the completion time of the most recent pass is
// persisted, so the UI can show sync recency even after total failure.
const lastSyncKey = "sync:last_sync_time"

// OpError records one failed operation within a pass.
type OpError struct {
	OperationID string `json:"operation_id"`
	Error       string `json:"error"`
}

// Result summarizes a reconciliation pass.
type Result struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Errors    []OpError     `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Engine drains the mutation queue against the remote service.
//
// A pass operates on the queue snapshot taken at its start; operations
// enqueued mid-pass wait for the next pass. At most one pass runs at a
// time, enforced by an atomic guard — a second trigger is a silent no-op
// at the caller's discretion (ErrSyncRunning).
type Engine struct {
	queue  *queue.Store
	remote remote.Service
	store  *kv.Store
	logger *log.Logger

	running atomic.Bool
	ids     *idMap
}

// New creates an engine. If logger is nil, a default logger writing to
// stderr is used.
func New(q *queue.Store, svc remote.Service, store *kv.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		queue:  q,
		remote: svc,
		store:  store,
		logger: logger,
		ids:    newIDMap(),
	}
}

// Running reports whether a pass is currently in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Sync runs one reconciliation pass over the current queue snapshot.
//
// Per-operation failures never abort the pass: each operation is either
// applied and dequeued, left queued with its retry count bumped, or
// moved to the failed list once its budget is exhausted. The pass is not
// preemptible mid-operation — ctx bounds the individual remote calls,
// and the pass runs its snapshot to completion.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncRunning
	}
	defer e.running.Store(false)

	start := time.Now()
	snapshot := e.queue.Pending()
	result := &Result{}

	e.logger.Printf("Starting pass: %d pending operations", len(snapshot))

	for _, op := range snapshot {
		if op.RetryCount >= queue.MaxRetries {
			// Shouldn't normally be reachable (the exhausting attempt moves
			// the op itself), but a snapshot written by an older build could
			// still carry one.
			e.moveToFailed(op, "exceeded max retries", result)
			continue
		}

		if err := e.apply(ctx, op); err != nil {
			result.Errors = append(result.Errors, OpError{OperationID: op.ID, Error: err.Error()})

			if op.RetryCount+1 >= queue.MaxRetries {
				e.moveToFailed(op, err.Error(), result)
				continue
			}

			if qerr := e.queue.IncrementRetry(op.ID); qerr != nil {
				e.logger.Printf("WARNING: failed to bump retry for %s: %v", op.ID, qerr)
			}
			e.logger.Printf("Operation %s failed (attempt %d/%d): %v",
				op.ID, op.RetryCount+1, queue.MaxRetries, err)
			continue
		}

		if err := e.queue.Dequeue(op.ID); err != nil {
			e.logger.Printf("WARNING: failed to dequeue %s: %v", op.ID, err)
		}
		result.Processed++
	}

	// Recorded on success and partial failure alike.
	e.persistLastSync(time.Now())

	result.Duration = time.Since(start)
	e.logger.Printf("Pass complete: processed=%d failed=%d remaining=%d (%s)",
		result.Processed, result.Failed, e.queue.Len(), result.Duration.Round(time.Millisecond))

	return result, nil
}

// moveToFailed demotes an operation to the failed list.
func (e *Engine) moveToFailed(op queue.Op, msg string, result *Result) {
	if err := e.queue.Fail(op.ID, msg); err != nil {
		e.logger.Printf("WARNING: failed to record failure for %s: %v", op.ID, err)
		return
	}
	result.Failed++
}

// apply dispatches one operation to its type-specific handler.
func (e *Engine) apply(ctx context.Context, op queue.Op) error {
	payload, err := queue.DecodePayload(op)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *queue.WaterLogPayload:
		return e.applyWaterLog(ctx, op, p)
	case *queue.StepLogPayload:
		return e.applyStepLog(ctx, op, p)
	case *queue.MealLogPayload:
		return e.applyMealLog(ctx, op, p)
	case *queue.SupplementLogPayload:
		return e.applySupplementLog(ctx, op, p)
	case *queue.WorkoutSessionPayload:
		return e.applyWorkoutSession(ctx, op, p)
	case *queue.WorkoutSetPayload:
		return e.applyWorkoutSet(ctx, op, p)
	default:
		return fmt.Errorf("no handler for operation type %q", op.Type)
	}
}

// persistLastSync stores the pass completion time.
func (e *Engine) persistLastSync(t time.Time) {
	if err := e.store.Set(lastSyncKey, t.UTC().Format(time.RFC3339)); err != nil {
		e.logger.Printf("WARNING: failed to persist last sync time: %v", err)
	}
}

// LastSyncTime returns the completion time of the most recent pass, or
// the zero time if no pass has ever completed.
func (e *Engine) LastSyncTime() time.Time {
	raw, ok, err := e.store.Get(lastSyncKey)
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
