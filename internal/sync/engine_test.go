package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stridefit/stride/internal/kv"
	"github.com/stridefit/stride/internal/queue"
	"github.com/stridefit/stride/internal/remote"
)

// stubService wraps another Service and lets individual calls be
// overridden with failing or instrumented versions.
type stubService struct {
	remote.Service

	upsertWater func(ctx context.Context, log remote.WaterLog) error
	upsertSteps func(ctx context.Context, log remote.StepLog) error
	createSet   func(ctx context.Context, set remote.WorkoutSet) error
}

func (s *stubService) UpsertWaterLog(ctx context.Context, log remote.WaterLog) error {
	if s.upsertWater != nil {
		return s.upsertWater(ctx, log)
	}
	return s.Service.UpsertWaterLog(ctx, log)
}

func (s *stubService) UpsertStepLog(ctx context.Context, log remote.StepLog) error {
	if s.upsertSteps != nil {
		return s.upsertSteps(ctx, log)
	}
	return s.Service.UpsertStepLog(ctx, log)
}

func (s *stubService) CreateWorkoutSet(ctx context.Context, set remote.WorkoutSet) error {
	if s.createSet != nil {
		return s.createSet(ctx, set)
	}
	return s.Service.CreateWorkoutSet(ctx, set)
}

// setupEngine builds a full engine over a temp store and the given service.
func setupEngine(t *testing.T, svc remote.Service) (*Engine, *queue.Store, *kv.Store) {
	t.Helper()

	store, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	discard := log.New(io.Discard, "", 0)
	q := queue.New(store, discard)
	if err := q.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	return New(q, svc, store, discard), q, store
}

func TestSync_HappyPath(t *testing.T) {
	mem := remote.NewMemory()
	engine, q, _ := setupEngine(t, mem)

	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", queue.WaterLogPayload{Date: "2026-08-25", Glasses: 5})
	_, _ = q.Enqueue(queue.TypeStepLog, queue.ActionUpdate, "user-1", queue.StepLogPayload{Date: "2026-08-25", Steps: 9000})
	_, _ = q.Enqueue(queue.TypeSupplementLog, queue.ActionCreate, "user-1", queue.SupplementLogPayload{SupplementID: "creatine", Date: "2026-08-25", Taken: true})

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if result.Processed != 3 || result.Failed != 0 {
		t.Errorf("result = {processed:%d failed:%d}, want {3 0}", result.Processed, result.Failed)
	}
	if q.Len() != 0 {
		t.Errorf("pending = %d after pass, want 0", q.Len())
	}

	water, err := mem.FetchWaterLog(context.Background(), "user-1", "2026-08-25")
	if err != nil {
		t.Fatalf("FetchWaterLog() failed: %v", err)
	}
	if water.Glasses != 5 {
		t.Errorf("glasses = %d, want 5", water.Glasses)
	}
}

func TestSync_OrderingResolvesSessionBeforeSet(t *testing.T) {
	mem := remote.NewMemory()
	engine, q, _ := setupEngine(t, mem)

	// Enqueued in the wrong order on purpose: the set arrives first. The
	// in-memory remote rejects a set whose session doesn't exist, so the
	// pass only succeeds if the session create replays first.
	_, _ = q.Enqueue(queue.TypeWorkoutSet, queue.ActionCreate, "user-1", queue.WorkoutSetPayload{
		SessionID: "local-abc", ExerciseID: "squat", SetNumber: 1, Reps: 8, WeightKg: 100,
	})
	_, _ = q.Enqueue(queue.TypeWorkoutSession, queue.ActionUpdate, "user-1", queue.WorkoutSessionPayload{
		LocalID: "local-abc", WorkoutID: "w-1", Completed: true,
	})
	_, _ = q.Enqueue(queue.TypeWorkoutSession, queue.ActionCreate, "user-1", queue.WorkoutSessionPayload{
		LocalID: "local-abc", WorkoutID: "w-1", StartedAt: "2026-08-25T10:00:00Z",
	})

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	if result.Processed != 3 || result.Failed != 0 {
		t.Fatalf("result = {processed:%d failed:%d errors:%v}, want {3 0}", result.Processed, result.Failed, result.Errors)
	}
	if mem.SetCount() != 1 {
		t.Errorf("set count = %d, want 1", mem.SetCount())
	}

	// The update must have landed on the server-assigned session.
	serverID, ok := engine.ids.Resolve("local-abc")
	if !ok {
		t.Fatal("placeholder never resolved")
	}
	session, ok := mem.Session(serverID)
	if !ok {
		t.Fatal("session not stored under server id")
	}
	if !session.Completed {
		t.Error("session update did not apply after placeholder resolution")
	}
}

func TestSync_RetryExhaustion(t *testing.T) {
	var attempts int32
	svc := &stubService{
		Service: remote.NewMemory(),
		upsertWater: func(ctx context.Context, log remote.WaterLog) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("remote unavailable")
		},
	}
	engine, q, _ := setupEngine(t, svc)

	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", queue.WaterLogPayload{Date: "2026-08-25", Glasses: 2})
	before := q.Len()

	// Each pass consumes one attempt; the third attempt exhausts the budget.
	for i := 0; i < queue.MaxRetries; i++ {
		if _, err := engine.Sync(context.Background()); err != nil {
			t.Fatalf("Sync() pass %d failed: %v", i+1, err)
		}
	}

	if got := atomic.LoadInt32(&attempts); got != queue.MaxRetries {
		t.Errorf("handler attempts = %d, want exactly %d", got, queue.MaxRetries)
	}
	if q.Len() != before-1 {
		t.Errorf("pending = %d, want %d", q.Len(), before-1)
	}

	failed := q.Failed()
	if len(failed) != 1 {
		t.Fatalf("failed list = %d entries, want 1", len(failed))
	}
	if failed[0].Error != "remote unavailable" {
		t.Errorf("failed error = %q", failed[0].Error)
	}

	// A further pass must not retry the exhausted operation.
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("extra Sync() failed: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != queue.MaxRetries {
		t.Errorf("exhausted operation was retried: attempts = %d", got)
	}
}

func TestSync_PartialFailure(t *testing.T) {
	svc := &stubService{
		Service: remote.NewMemory(),
		upsertSteps: func(ctx context.Context, log remote.StepLog) error {
			return errors.New("boom")
		},
	}
	engine, q, _ := setupEngine(t, svc)

	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", queue.WaterLogPayload{Date: "2026-08-25", Glasses: 3})
	_, _ = q.Enqueue(queue.TypeStepLog, queue.ActionUpdate, "user-1", queue.StepLogPayload{Date: "2026-08-25", Steps: 100})

	first, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	// One failing operation must not abort the pass for the other.
	if first.Processed != 1 {
		t.Errorf("first pass processed = %d, want 1", first.Processed)
	}
	if len(first.Errors) != 1 {
		t.Errorf("first pass errors = %d, want 1", len(first.Errors))
	}

	for i := 0; i < queue.MaxRetries-1; i++ {
		if _, err := engine.Sync(context.Background()); err != nil {
			t.Fatalf("Sync() failed: %v", err)
		}
	}

	if q.Len() != 0 {
		t.Errorf("pending = %d, want 0", q.Len())
	}
	if len(q.Failed()) != 1 {
		t.Errorf("failed list = %d, want 1", len(q.Failed()))
	}
}

func TestSync_UnresolvedReferenceFailsLoudly(t *testing.T) {
	engine, q, _ := setupEngine(t, remote.NewMemory())

	// A set referencing a placeholder with no session create in the queue.
	_, _ = q.Enqueue(queue.TypeWorkoutSet, queue.ActionCreate, "user-1", queue.WorkoutSetPayload{
		SessionID: "local-orphan", ExerciseID: "bench", SetNumber: 1, Reps: 5,
	})

	for i := 0; i < queue.MaxRetries; i++ {
		if _, err := engine.Sync(context.Background()); err != nil {
			t.Fatalf("Sync() failed: %v", err)
		}
	}

	failed := q.Failed()
	if len(failed) != 1 {
		t.Fatalf("failed list = %d, want 1", len(failed))
	}
	if !strings.Contains(failed[0].Error, "unresolved placeholder reference") {
		t.Errorf("failed error = %q, want unresolved reference", failed[0].Error)
	}
}

func TestSync_SingleFlight(t *testing.T) {
	var concurrent, maxConcurrent int32
	release := make(chan struct{})

	svc := &stubService{
		Service: remote.NewMemory(),
		upsertWater: func(ctx context.Context, log remote.WaterLog) error {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				max := atomic.LoadInt32(&maxConcurrent)
				if cur <= max || atomic.CompareAndSwapInt32(&maxConcurrent, max, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&concurrent, -1)
			return nil
		},
	}
	engine, q, _ := setupEngine(t, svc)

	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", queue.WaterLogPayload{Date: "2026-08-25", Glasses: 1})

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = engine.Sync(context.Background())
	}()

	// Wait for the first pass to be mid-operation, then flicker.
	for atomic.LoadInt32(&concurrent) == 0 {
		time.Sleep(time.Millisecond)
	}
	_, err := engine.Sync(context.Background())
	if !errors.Is(err, ErrSyncRunning) {
		t.Errorf("second Sync() error = %v, want ErrSyncRunning", err)
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&maxConcurrent); got > 1 {
		t.Errorf("max concurrent handler entries = %d, want <= 1", got)
	}
}

func TestSync_IdempotentRedelivery(t *testing.T) {
	mem := remote.NewMemory()
	engine, q, _ := setupEngine(t, mem)

	payload := queue.WaterLogPayload{Date: "2026-08-25", Glasses: 7}

	// First delivery.
	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", payload)
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	// Simulated redelivery after a crash mid-sync: same payload replays.
	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", payload)
	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}

	if count := mem.WaterRowCount("user-1"); count != 1 {
		t.Errorf("water rows = %d after redelivery, want 1", count)
	}
}

func TestSync_PersistsLastSyncTimeOnTotalFailure(t *testing.T) {
	svc := &stubService{
		Service: remote.NewMemory(),
		upsertWater: func(ctx context.Context, log remote.WaterLog) error {
			return errors.New("down")
		},
	}
	engine, q, _ := setupEngine(t, svc)

	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", queue.WaterLogPayload{Date: "2026-08-25", Glasses: 1})

	if !engine.LastSyncTime().IsZero() {
		t.Fatal("LastSyncTime() non-zero before any pass")
	}

	if _, err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if engine.LastSyncTime().IsZero() {
		t.Error("LastSyncTime() zero after a (failing) pass")
	}
}

func TestSync_MidPassEnqueueWaitsForNextPass(t *testing.T) {
	mem := remote.NewMemory()
	var q *queue.Store

	enqueued := false
	svc := &stubService{
		Service: mem,
		upsertWater: func(ctx context.Context, log remote.WaterLog) error {
			// Enqueue from inside the pass: must not join this snapshot.
			if !enqueued {
				enqueued = true
				_, _ = q.Enqueue(queue.TypeStepLog, queue.ActionUpdate, "user-1", queue.StepLogPayload{Date: "2026-08-25", Steps: 50})
			}
			return nil
		},
	}

	engine, qq, _ := setupEngine(t, svc)
	q = qq

	_, _ = q.Enqueue(queue.TypeWaterLog, queue.ActionUpdate, "user-1", queue.WaterLogPayload{Date: "2026-08-25", Glasses: 1})

	result, err := engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1 (mid-pass enqueue must wait)", result.Processed)
	}
	if q.Len() != 1 {
		t.Errorf("pending = %d, want 1", q.Len())
	}
}
