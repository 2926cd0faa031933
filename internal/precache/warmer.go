// Package precache warms the offline cache right after login, while
// connectivity is still good.
//
// The warmer pulls every view the app needs for a normal day — the
// assigned program with its workouts and prior set history, today's
// nutrition, supplements, water and steps, and the dashboard counters —
// and stores each under its deterministic cache key. Tasks are
// independent: one failing fetch is recorded and the rest still run, so
// a partial warm is always better than none.
package precache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/stridefit/stride/internal/cache"
	"github.com/stridefit/stride/internal/remote"
)

// ProgressFunc is called after each task finishes, successfully or not.
// done counts finished tasks, total is the task count for this warm.
type ProgressFunc func(task string, done, total int)

// Result summarizes one warm.
type Result struct {
	// Success is true when every task completed without error.
	Success bool

	// Skipped is true when the once-per-session guard suppressed the
	// warm; no fetches were made.
	Skipped bool

	// CachedCount is the number of cache entries written.
	CachedCount int

	// Errors holds one message per failed task.
	Errors []string
}

// Warmer populates the cache from the remote service.
type Warmer struct {
	remote remote.Service
	cache  *cache.Store
	online func() bool
	logger *log.Logger
	now    func() time.Time

	mu     sync.Mutex
	warmed map[string]bool
}

// New creates a warmer. online reports current connectivity (typically
// the controller's Online method); if logger is nil, a default logger
// writing to stderr is used.
func New(svc remote.Service, c *cache.Store, online func() bool, logger *log.Logger) *Warmer {
	if logger == nil {
		logger = log.New(os.Stderr, "[precache] ", log.LstdFlags)
	}
	return &Warmer{
		remote: svc,
		cache:  c,
		online: online,
		logger: logger,
		now:    time.Now,
		warmed: make(map[string]bool),
	}
}

// task is one independent unit of warming. run returns how many cache
// entries it wrote.
type task struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// WarmAll runs every warm task for the given user. It warms at most
// once per process session per user; Reset lifts the guard (sign-out,
// or an explicit re-warm from the CLI). onProgress may be nil.
//
// Offline, the warm is a no-op: the cache already holds whatever the
// last online session left, and fetching would only burn the retry
// budget of nothing.
func (w *Warmer) WarmAll(ctx context.Context, userID, profileID string, onProgress ProgressFunc) Result {
	if !w.online() {
		w.logger.Printf("Skipping precache for %s: offline", userID)
		return Result{Skipped: true, Errors: []string{"offline"}}
	}

	w.mu.Lock()
	if w.warmed[userID] {
		w.mu.Unlock()
		return Result{Success: true, Skipped: true}
	}
	w.warmed[userID] = true
	w.mu.Unlock()

	today := w.now().Format("2006-01-02")
	tasks := []task{
		{"program", func(ctx context.Context) (int, error) {
			return w.warmProgram(ctx, userID, profileID)
		}},
		{"nutrition", func(ctx context.Context) (int, error) {
			return w.warmNutrition(ctx, userID, profileID, today)
		}},
		{"supplements", func(ctx context.Context) (int, error) {
			return w.warmSupplements(ctx, userID, today)
		}},
		{"water", func(ctx context.Context) (int, error) {
			return w.warmWater(ctx, userID, today)
		}},
		{"steps", func(ctx context.Context) (int, error) {
			return w.warmSteps(ctx, userID, today)
		}},
		{"dashboard", func(ctx context.Context) (int, error) {
			return w.warmDashboard(ctx, userID)
		}},
	}

	start := w.now()
	result := Result{Success: true}
	for i, tk := range tasks {
		cached, err := tk.run(ctx)
		result.CachedCount += cached
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", tk.name, err))
			w.logger.Printf("WARNING: precache task %s failed: %v", tk.name, err)
		}
		if onProgress != nil {
			onProgress(tk.name, i+1, len(tasks))
		}
	}

	w.logger.Printf("Precache for %s: %d entries, %d errors in %v",
		userID, result.CachedCount, len(result.Errors), time.Since(start).Round(time.Millisecond))
	return result
}

// Reset lifts the once-per-session guard for a user.
func (w *Warmer) Reset(userID string) {
	w.mu.Lock()
	delete(w.warmed, userID)
	w.mu.Unlock()
}

// warmProgram caches the assigned program and the prior set history for
// each of its workouts.
func (w *Warmer) warmProgram(ctx context.Context, userID, profileID string) (int, error) {
	program, err := w.remote.FetchProgram(ctx, profileID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return 0, nil // no program assigned yet
		}
		return 0, err
	}

	cached := 0
	if err := w.cache.Set(cache.Key(cache.DomainProgram, userID), program); err != nil {
		return cached, err
	}
	cached++

	for _, workout := range program.Workouts {
		history, err := w.remote.FetchSetHistory(ctx, userID, workout.ID)
		if err != nil {
			return cached, fmt.Errorf("set history for workout %s: %w", workout.ID, err)
		}
		if len(history) == 0 {
			continue
		}
		if err := w.cache.Set(cache.SubKey(cache.DomainSetHistory, userID, workout.ID), history); err != nil {
			return cached, err
		}
		cached++
	}
	return cached, nil
}

// warmNutrition caches the macro targets and today's meals.
func (w *Warmer) warmNutrition(ctx context.Context, userID, profileID, today string) (int, error) {
	cached := 0

	plan, err := w.remote.FetchNutritionPlan(ctx, profileID)
	switch {
	case err == nil:
		if err := w.cache.Set(cache.Key(cache.DomainNutrition, userID), plan); err != nil {
			return cached, err
		}
		cached++
	case !errors.Is(err, remote.ErrNotFound):
		return cached, err
	}

	meals, err := w.remote.FetchMeals(ctx, userID, today)
	if err != nil {
		return cached, err
	}
	if err := w.cache.Set(cache.SubKey(cache.DomainMeals, userID, today), meals); err != nil {
		return cached, err
	}
	return cached + 1, nil
}

func (w *Warmer) warmSupplements(ctx context.Context, userID, today string) (int, error) {
	logs, err := w.remote.FetchSupplements(ctx, userID, today)
	if err != nil {
		return 0, err
	}
	if err := w.cache.Set(cache.SubKey(cache.DomainSupplements, userID, today), logs); err != nil {
		return 0, err
	}
	return 1, nil
}

func (w *Warmer) warmWater(ctx context.Context, userID, today string) (int, error) {
	log, err := w.remote.FetchWaterLog(ctx, userID, today)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return 0, nil // nothing logged today
		}
		return 0, err
	}
	if err := w.cache.Set(cache.Key(cache.DomainWater, userID), log); err != nil {
		return 0, err
	}
	return 1, nil
}

// warmSteps caches today's step count and the trailing-week stats.
func (w *Warmer) warmSteps(ctx context.Context, userID, today string) (int, error) {
	cached := 0

	steps, err := w.remote.FetchStepLog(ctx, userID, today)
	switch {
	case err == nil:
		if err := w.cache.Set(cache.Key(cache.DomainSteps, userID), steps); err != nil {
			return cached, err
		}
		cached++
	case !errors.Is(err, remote.ErrNotFound):
		return cached, err
	}

	weekly, err := w.remote.FetchWeeklySteps(ctx, userID)
	if err != nil {
		return cached, err
	}
	if err := w.cache.Set(cache.SubKey(cache.DomainSteps, userID, "weekly"), weekly); err != nil {
		return cached, err
	}
	return cached + 1, nil
}

func (w *Warmer) warmDashboard(ctx context.Context, userID string) (int, error) {
	counters, err := w.remote.FetchDashboard(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := w.cache.Set(cache.Key(cache.DomainDashboard, userID), counters); err != nil {
		return 0, err
	}
	return 1, nil
}
