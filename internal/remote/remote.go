// Package remote defines the boundary to the hosted backend.
//
// The core treats the backend as a set of per-domain typed calls against
// a relational store with row-level security. Writes for daily logs are
// upserts keyed by a natural composite key (owner+date, or
// owner+date+supplement) so that redelivery after a crash mid-sync can
// never duplicate rows; session and set creation are ordinary inserts,
// with session creation returning the server-assigned id.
//
// Two implementations ship: Client speaks PostgREST-style REST to the
// real backend, and Memory keeps everything in-process with the same
// upsert semantics (tests, and `stride daemon --dev`).
package remote

import (
	"context"
	"errors"
)

// ErrNotFound is returned by fetch calls when the requested row does not
// exist. Callers treat it as "no data", not as a failure.
var ErrNotFound = errors.New("remote: not found")

// WaterLog is the running water total for an owner and day.
type WaterLog struct {
	OwnerID string `json:"owner_id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Glasses int    `json:"glasses"`
}

// StepLog is the step count for an owner and day.
type StepLog struct {
	OwnerID string `json:"owner_id"`
	Date    string `json:"date"`
	Steps   int    `json:"steps"`
}

// MealLog is one logged meal.
type MealLog struct {
	MealID   string  `json:"meal_id"`
	OwnerID  string  `json:"owner_id"`
	Date     string  `json:"date"`
	Name     string  `json:"name"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
}

// SupplementLog marks a supplement taken (or untaken) for a day.
type SupplementLog struct {
	OwnerID      string `json:"owner_id"`
	SupplementID string `json:"supplement_id"`
	Date         string `json:"date"`
	Taken        bool   `json:"taken"`
}

// WorkoutSession is a workout session aggregate.
//
// String fields are omitempty so a partial update (e.g. marking the
// session complete) patches only the fields it carries instead of
// zeroing stored columns. Completed is always sent.
type WorkoutSession struct {
	ID        string `json:"id,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
	ProgramID string `json:"program_id,omitempty"`
	WorkoutID string `json:"workout_id,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	EndedAt   string `json:"ended_at,omitempty"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

// WorkoutSet is one set performed inside a session. WorkoutID
// denormalizes the owning session's workout so that prior-set-history
// queries filter on it directly.
type WorkoutSet struct {
	SessionID  string  `json:"session_id"`
	OwnerID    string  `json:"owner_id"`
	WorkoutID  string  `json:"workout_id"`
	ExerciseID string  `json:"exercise_id"`
	SetNumber  int     `json:"set_number"`
	Reps       int     `json:"reps"`
	WeightKg   float64 `json:"weight_kg"`
}

// Program is a coach-assigned training program with its workouts.
type Program struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Workouts []Workout `json:"workouts"`
}

// Workout is one workout within a program.
type Workout struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DayOfWeek int    `json:"day_of_week"`
	Completed bool   `json:"completed"`
}

// NutritionPlan is the coach-assigned macro targets.
type NutritionPlan struct {
	ID       string  `json:"id"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
}

// DashboardCounters are the aggregated counters for the home screen.
type DashboardCounters struct {
	WorkoutsCompleted int `json:"workouts_completed"`
	CurrentStreak     int `json:"current_streak"`
	MealsLoggedToday  int `json:"meals_logged_today"`
}

// WeeklySteps is the step totals for the trailing week.
type WeeklySteps struct {
	Days  []StepLog `json:"days"`
	Total int       `json:"total"`
}

// Service is the full remote surface the core depends on.
type Service interface {
	// Daily-log writes: idempotent upserts by natural composite key.
	UpsertWaterLog(ctx context.Context, log WaterLog) error
	UpsertStepLog(ctx context.Context, log StepLog) error
	UpsertMealLog(ctx context.Context, meal MealLog) error
	DeleteMealLog(ctx context.Context, ownerID, mealID string) error
	UpsertSupplementLog(ctx context.Context, log SupplementLog) error

	// Workout writes. CreateWorkoutSession returns the server-assigned id.
	CreateWorkoutSession(ctx context.Context, session WorkoutSession) (string, error)
	UpdateWorkoutSession(ctx context.Context, session WorkoutSession) error
	CreateWorkoutSet(ctx context.Context, set WorkoutSet) error

	// Reads, used by the precache warmer and the online read path.
	FetchProgram(ctx context.Context, profileID string) (*Program, error)
	FetchSetHistory(ctx context.Context, ownerID, workoutID string) ([]WorkoutSet, error)
	FetchNutritionPlan(ctx context.Context, profileID string) (*NutritionPlan, error)
	FetchMeals(ctx context.Context, ownerID, date string) ([]MealLog, error)
	FetchSupplements(ctx context.Context, ownerID, date string) ([]SupplementLog, error)
	FetchWaterLog(ctx context.Context, ownerID, date string) (*WaterLog, error)
	FetchStepLog(ctx context.Context, ownerID, date string) (*StepLog, error)
	FetchWeeklySteps(ctx context.Context, ownerID string) (*WeeklySteps, error)
	FetchDashboard(ctx context.Context, ownerID string) (*DashboardCounters, error)
}
