package precache

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stridefit/stride/internal/cache"
	"github.com/stridefit/stride/internal/kv"
	"github.com/stridefit/stride/internal/remote"
)

const (
	testUser    = "user-1"
	testProfile = "profile-1"
	testDate    = "2026-08-25"
)

// setupWarmer builds a warmer over a fresh cache with a fixed clock and
// an always-online connectivity answer.
func setupWarmer(t *testing.T, svc remote.Service) (*Warmer, *cache.Store) {
	t.Helper()

	store, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	discard := log.New(io.Discard, "", 0)
	c := cache.New(store, discard)
	w := New(svc, c, func() bool { return true }, discard)
	w.now = func() time.Time {
		return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	}
	return w, c
}

// seedMemory fills the in-memory backend with one of everything.
func seedMemory(t *testing.T) *remote.Memory {
	t.Helper()
	ctx := context.Background()
	mem := remote.NewMemory()

	mem.SeedProgram(testProfile, remote.Program{
		ID:   "prog-1",
		Name: "Strength Block A",
		Workouts: []remote.Workout{
			{ID: "wk-1", Name: "Push Day", DayOfWeek: 1},
			{ID: "wk-2", Name: "Pull Day", DayOfWeek: 3},
		},
	})
	mem.SeedNutritionPlan(testProfile, remote.NutritionPlan{ID: "np-1", Calories: 2400, Protein: 180})

	sessionID, err := mem.CreateWorkoutSession(ctx, remote.WorkoutSession{
		OwnerID: testUser, ProgramID: "prog-1", WorkoutID: "wk-1", StartedAt: testDate, Completed: true,
	})
	if err != nil {
		t.Fatalf("CreateWorkoutSession() failed: %v", err)
	}
	if err := mem.CreateWorkoutSet(ctx, remote.WorkoutSet{
		SessionID: sessionID, OwnerID: testUser, WorkoutID: "wk-1",
		ExerciseID: "ex-1", SetNumber: 1, Reps: 8, WeightKg: 60,
	}); err != nil {
		t.Fatalf("CreateWorkoutSet() failed: %v", err)
	}

	if err := mem.UpsertWaterLog(ctx, remote.WaterLog{OwnerID: testUser, Date: testDate, Glasses: 5}); err != nil {
		t.Fatalf("UpsertWaterLog() failed: %v", err)
	}
	if err := mem.UpsertStepLog(ctx, remote.StepLog{OwnerID: testUser, Date: testDate, Steps: 7500}); err != nil {
		t.Fatalf("UpsertStepLog() failed: %v", err)
	}
	if err := mem.UpsertMealLog(ctx, remote.MealLog{MealID: "meal-1", OwnerID: testUser, Date: testDate, Name: "Oats", Calories: 400}); err != nil {
		t.Fatalf("UpsertMealLog() failed: %v", err)
	}
	if err := mem.UpsertSupplementLog(ctx, remote.SupplementLog{OwnerID: testUser, SupplementID: "creatine", Date: testDate, Taken: true}); err != nil {
		t.Fatalf("UpsertSupplementLog() failed: %v", err)
	}
	return mem
}

func TestWarmAll_PopulatesEveryDomain(t *testing.T) {
	w, c := setupWarmer(t, seedMemory(t))

	result := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if !result.Success {
		t.Fatalf("WarmAll() errors: %v", result.Errors)
	}
	if result.CachedCount == 0 {
		t.Fatal("CachedCount = 0")
	}

	var program remote.Program
	if !c.Get(cache.Key(cache.DomainProgram, testUser), &program) {
		t.Error("program not cached")
	} else if len(program.Workouts) != 2 {
		t.Errorf("cached program has %d workouts, want 2", len(program.Workouts))
	}

	// Set history is cached per workout: wk-1 has the logged set, wk-2
	// has none and must not inherit wk-1's.
	var history []remote.WorkoutSet
	if !c.Get(cache.SubKey(cache.DomainSetHistory, testUser, "wk-1"), &history) {
		t.Error("set history for wk-1 not cached")
	} else if len(history) != 1 || history[0].WorkoutID != "wk-1" {
		t.Errorf("wk-1 history = %+v, want 1 set for wk-1", history)
	}
	if c.Get(cache.SubKey(cache.DomainSetHistory, testUser, "wk-2"), &history) {
		t.Error("set history cached for wk-2, which has no sets")
	}

	var plan remote.NutritionPlan
	if !c.Get(cache.Key(cache.DomainNutrition, testUser), &plan) {
		t.Error("nutrition plan not cached")
	}

	var meals []remote.MealLog
	if !c.Get(cache.SubKey(cache.DomainMeals, testUser, testDate), &meals) {
		t.Error("meals not cached")
	} else if len(meals) != 1 {
		t.Errorf("cached %d meals, want 1", len(meals))
	}

	var water remote.WaterLog
	if !c.Get(cache.Key(cache.DomainWater, testUser), &water) {
		t.Error("water log not cached")
	} else if water.Glasses != 5 {
		t.Errorf("cached glasses = %d, want 5", water.Glasses)
	}

	var weekly remote.WeeklySteps
	if !c.Get(cache.SubKey(cache.DomainSteps, testUser, "weekly"), &weekly) {
		t.Error("weekly steps not cached")
	} else if weekly.Total != 7500 {
		t.Errorf("weekly total = %d, want 7500", weekly.Total)
	}

	var counters remote.DashboardCounters
	if !c.Get(cache.Key(cache.DomainDashboard, testUser), &counters) {
		t.Error("dashboard not cached")
	} else if counters.WorkoutsCompleted != 1 {
		t.Errorf("workouts completed = %d, want 1", counters.WorkoutsCompleted)
	}
}

func TestWarmAll_EmptyAccount(t *testing.T) {
	// Brand-new user: no program, no logs. Absent rows are "no data",
	// not failures.
	w, _ := setupWarmer(t, remote.NewMemory())

	result := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if !result.Success {
		t.Errorf("WarmAll() errors for empty account: %v", result.Errors)
	}
}

// faultyService fails the dashboard fetch only.
type faultyService struct {
	remote.Service
}

func (s *faultyService) FetchDashboard(ctx context.Context, ownerID string) (*remote.DashboardCounters, error) {
	return nil, errors.New("backend timeout")
}

func TestWarmAll_OneFailureDoesNotAbortRest(t *testing.T) {
	w, c := setupWarmer(t, &faultyService{Service: seedMemory(t)})

	result := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if result.Success {
		t.Error("Success = true despite failed task")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly 1", result.Errors)
	}

	// Everything else still landed.
	var program remote.Program
	if !c.Get(cache.Key(cache.DomainProgram, testUser), &program) {
		t.Error("program not cached after dashboard failure")
	}
	var water remote.WaterLog
	if !c.Get(cache.Key(cache.DomainWater, testUser), &water) {
		t.Error("water not cached after dashboard failure")
	}
}

func TestWarmAll_OncePerSession(t *testing.T) {
	w, _ := setupWarmer(t, seedMemory(t))

	first := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if first.Skipped {
		t.Fatal("first warm skipped")
	}

	second := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if !second.Skipped {
		t.Error("second warm not suppressed")
	}
	if second.CachedCount != 0 {
		t.Errorf("second warm cached %d entries, want 0", second.CachedCount)
	}

	// Another user is not affected by the guard.
	other := w.WarmAll(context.Background(), "user-2", "profile-2", nil)
	if other.Skipped {
		t.Error("warm for a different user was suppressed")
	}

	w.Reset(testUser)
	third := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if third.Skipped {
		t.Error("warm after Reset was suppressed")
	}
}

func TestWarmAll_OfflineIsNoOp(t *testing.T) {
	store, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open kv store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	discard := log.New(io.Discard, "", 0)
	w := New(seedMemory(t), cache.New(store, discard), func() bool { return false }, discard)

	result := w.WarmAll(context.Background(), testUser, testProfile, nil)
	if !result.Skipped {
		t.Error("offline warm not skipped")
	}
	if result.CachedCount != 0 {
		t.Errorf("offline warm cached %d entries", result.CachedCount)
	}

	// A skipped warm must not latch the once-per-session guard.
	w.online = func() bool { return true }
	if again := w.WarmAll(context.Background(), testUser, testProfile, nil); again.Skipped {
		t.Error("warm after connectivity returned was suppressed")
	}
}

func TestWarmAll_ProgressCallback(t *testing.T) {
	w, _ := setupWarmer(t, seedMemory(t))

	var names []string
	var lastDone, total int
	w.WarmAll(context.Background(), testUser, testProfile, func(task string, done, tot int) {
		names = append(names, task)
		lastDone, total = done, tot
	})

	if len(names) != 6 {
		t.Fatalf("progress calls = %d (%v), want 6", len(names), names)
	}
	if lastDone != total {
		t.Errorf("final progress %d/%d, want done == total", lastDone, total)
	}
	if names[0] != "program" || names[len(names)-1] != "dashboard" {
		t.Errorf("task order = %v", names)
	}
}
