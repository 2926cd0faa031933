package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Service with the same natural-key upsert
// semantics as the real backend. It backs the test suite and the
// `stride daemon --dev` loop.
type Memory struct {
	mu sync.Mutex

	water       map[string]WaterLog      // owner|date
	steps       map[string]StepLog       // owner|date
	meals       map[string]MealLog       // owner|meal_id
	supplements map[string]SupplementLog // owner|supplement_id|date
	sessions    map[string]WorkoutSession
	sets        []WorkoutSet

	programs  map[string]Program       // profile id
	nutrition map[string]NutritionPlan // profile id
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		water:       make(map[string]WaterLog),
		steps:       make(map[string]StepLog),
		meals:       make(map[string]MealLog),
		supplements: make(map[string]SupplementLog),
		sessions:    make(map[string]WorkoutSession),
		programs:    make(map[string]Program),
		nutrition:   make(map[string]NutritionPlan),
	}
}

func (m *Memory) UpsertWaterLog(ctx context.Context, log WaterLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.water[log.OwnerID+"|"+log.Date] = log
	return nil
}

func (m *Memory) UpsertStepLog(ctx context.Context, log StepLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[log.OwnerID+"|"+log.Date] = log
	return nil
}

func (m *Memory) UpsertMealLog(ctx context.Context, meal MealLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meals[meal.OwnerID+"|"+meal.MealID] = meal
	return nil
}

func (m *Memory) DeleteMealLog(ctx context.Context, ownerID, mealID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meals, ownerID+"|"+mealID)
	return nil
}

func (m *Memory) UpsertSupplementLog(ctx context.Context, log SupplementLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supplements[log.OwnerID+"|"+log.SupplementID+"|"+log.Date] = log
	return nil
}

func (m *Memory) CreateWorkoutSession(ctx context.Context, session WorkoutSession) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.ID = uuid.NewString()
	m.sessions[session.ID] = session
	return session.ID, nil
}

func (m *Memory) UpdateWorkoutSession(ctx context.Context, session WorkoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[session.ID]
	if !ok {
		return fmt.Errorf("workout session %s: %w", session.ID, ErrNotFound)
	}

	// Patch semantics, matching what the REST backend receives: string
	// fields the update doesn't carry keep their stored value.
	if session.OwnerID != "" {
		cur.OwnerID = session.OwnerID
	}
	if session.ProgramID != "" {
		cur.ProgramID = session.ProgramID
	}
	if session.WorkoutID != "" {
		cur.WorkoutID = session.WorkoutID
	}
	if session.StartedAt != "" {
		cur.StartedAt = session.StartedAt
	}
	if session.EndedAt != "" {
		cur.EndedAt = session.EndedAt
	}
	if session.Notes != "" {
		cur.Notes = session.Notes
	}
	cur.Completed = session.Completed

	m.sessions[session.ID] = cur
	return nil
}

func (m *Memory) CreateWorkoutSet(ctx context.Context, set WorkoutSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[set.SessionID]; !ok {
		return fmt.Errorf("workout session %s: %w", set.SessionID, ErrNotFound)
	}
	m.sets = append(m.sets, set)
	return nil
}

func (m *Memory) FetchProgram(ctx context.Context, profileID string) (*Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.programs[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) FetchSetHistory(ctx context.Context, ownerID, workoutID string) ([]WorkoutSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var history []WorkoutSet
	for _, set := range m.sets {
		if set.OwnerID == ownerID && set.WorkoutID == workoutID {
			history = append(history, set)
		}
	}
	return history, nil
}

func (m *Memory) FetchNutritionPlan(ctx context.Context, profileID string) (*NutritionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.nutrition[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) FetchMeals(ctx context.Context, ownerID, date string) ([]MealLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var meals []MealLog
	for _, meal := range m.meals {
		if meal.OwnerID == ownerID && meal.Date == date {
			meals = append(meals, meal)
		}
	}
	return meals, nil
}

func (m *Memory) FetchSupplements(ctx context.Context, ownerID, date string) ([]SupplementLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var logs []SupplementLog
	for _, log := range m.supplements {
		if log.OwnerID == ownerID && log.Date == date {
			logs = append(logs, log)
		}
	}
	return logs, nil
}

func (m *Memory) FetchWaterLog(ctx context.Context, ownerID, date string) (*WaterLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.water[ownerID+"|"+date]
	if !ok {
		return nil, ErrNotFound
	}
	return &log, nil
}

func (m *Memory) FetchStepLog(ctx context.Context, ownerID, date string) (*StepLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.steps[ownerID+"|"+date]
	if !ok {
		return nil, ErrNotFound
	}
	return &log, nil
}

func (m *Memory) FetchWeeklySteps(ctx context.Context, ownerID string) (*WeeklySteps, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	weekly := &WeeklySteps{}
	for _, log := range m.steps {
		if log.OwnerID == ownerID {
			weekly.Days = append(weekly.Days, log)
			weekly.Total += log.Steps
		}
	}
	return weekly, nil
}

func (m *Memory) FetchDashboard(ctx context.Context, ownerID string) (*DashboardCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := &DashboardCounters{}
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && s.Completed {
			counters.WorkoutsCompleted++
		}
	}
	for _, meal := range m.meals {
		if meal.OwnerID == ownerID {
			counters.MealsLoggedToday++
		}
	}
	return counters, nil
}

// SeedProgram installs a program for a profile (test/dev setup).
func (m *Memory) SeedProgram(profileID string, p Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs[profileID] = p
}

// SeedNutritionPlan installs a nutrition plan for a profile.
func (m *Memory) SeedNutritionPlan(profileID string, p NutritionPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nutrition[profileID] = p
}

// WaterRowCount reports how many water rows exist for an owner. Test
// hook for the idempotent-redelivery property.
func (m *Memory) WaterRowCount(ownerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.water {
		if log := m.water[key]; log.OwnerID == ownerID {
			count++
		}
	}
	return count
}

// Session returns a stored session by id. Test hook.
func (m *Memory) Session(id string) (WorkoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// SetCount returns the number of stored workout sets. Test hook.
func (m *Memory) SetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets)
}
