// Package queue provides the durable offline mutation queue.
//
// User actions taken while the device is offline are recorded here as
// operations and replayed against the remote service once connectivity
// returns. The queue keeps an in-memory mirror for fast access during a
// session and writes the full pending/failed snapshots back to the kv
// store on every mutation, so a crash or restart never loses an intent.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxRetries is the retry budget for a single operation. The attempt that
// would reach this count moves the operation to the failed list instead.
const MaxRetries = 3

// Type identifies the kind of domain mutation an operation carries.
//
// This is a closed set: every type has a dedicated handler in the sync
// engine and a dedicated payload struct. There is no generic fallback —
// adding a type means adding explicit engine support.
type Type string

const (
	TypeMealLog        Type = "meal_log"
	TypeWaterLog       Type = "water_log"
	TypeStepLog        Type = "step_log"
	TypeSupplementLog  Type = "supplement_log"
	TypeWorkoutSession Type = "workout_session"
	TypeWorkoutSet     Type = "workout_set"
)

// Action is what the operation does to its target entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Op is one pending client-side intent.
type Op struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	Action     Action          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	OwnerID    string          `json:"owner_id"`
}

// FailedOp is an operation that exhausted its retry budget. It is kept
// until the user clears the failed list; it is never retried
// automatically.
type FailedOp struct {
	Op
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// NewOpID generates a unique operation id: millisecond timestamp plus a
// random suffix. The timestamp prefix keeps ids roughly sortable in logs;
// uniqueness comes from the suffix.
func NewOpID(now time.Time) string {
	return fmt.Sprintf("op-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Priority returns the replay priority for a type/action pair. Lower
// values replay first within a reconciliation pass; ties break on
// CreatedAt ascending.
//
// The order exists because workout sets reference their session by a
// client-generated placeholder id: the session create must run first so
// the placeholder can be resolved, and the session update (completion)
// must not race ahead of the sets it logically follows.
//
//	0  workout_session create  (parent aggregate, resolves placeholders)
//	1  workout_set create      (child rows referencing the parent)
//	2  workout_session update  (e.g. marking the session complete)
//	3  everything else         (self-contained daily logs)
func Priority(typ Type, action Action) int {
	switch {
	case typ == TypeWorkoutSession && action == ActionCreate:
		return 0
	case typ == TypeWorkoutSet && action == ActionCreate:
		return 1
	case typ == TypeWorkoutSession && action == ActionUpdate:
		return 2
	default:
		return 3
	}
}

// MealLogPayload records one logged meal for a day.
type MealLogPayload struct {
	MealID   string  `json:"meal_id"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Name     string  `json:"name"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
}

// WaterLogPayload is the running water total for a day.
type WaterLogPayload struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Glasses int    `json:"glasses"`
}

// StepLogPayload is the step count for a day.
type StepLogPayload struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Steps int    `json:"steps"`
}

// SupplementLogPayload marks one supplement taken (or untaken) for a day.
type SupplementLogPayload struct {
	SupplementID string `json:"supplement_id"`
	Date         string `json:"date"` // YYYY-MM-DD
	Taken        bool   `json:"taken"`
}

// WorkoutSessionPayload describes a workout session aggregate.
//
// LocalID is the client-generated placeholder id; other queued operations
// reference the session through it until the create succeeds and the
// server assigns a real id.
type WorkoutSessionPayload struct {
	LocalID   string `json:"local_id"`
	ProgramID string `json:"program_id"`
	WorkoutID string `json:"workout_id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

// WorkoutSetPayload describes one set performed inside a session.
//
// SessionID may be a placeholder id (the session was created offline) or
// a real server id (the session already synced). WorkoutID carries the
// session's workout so synced sets land in the right prior-history view.
type WorkoutSetPayload struct {
	SessionID  string  `json:"session_id"`
	WorkoutID  string  `json:"workout_id"`
	ExerciseID string  `json:"exercise_id"`
	SetNumber  int     `json:"set_number"`
	Reps       int     `json:"reps"`
	WeightKg   float64 `json:"weight_kg"`
}

// DecodePayload unmarshals an operation's payload into the concrete
// struct for its type. The returned value is one of the *Payload structs
// above; callers switch on the operation type.
func DecodePayload(op Op) (any, error) {
	var dst any
	switch op.Type {
	case TypeMealLog:
		dst = &MealLogPayload{}
	case TypeWaterLog:
		dst = &WaterLogPayload{}
	case TypeStepLog:
		dst = &StepLogPayload{}
	case TypeSupplementLog:
		dst = &SupplementLogPayload{}
	case TypeWorkoutSession:
		dst = &WorkoutSessionPayload{}
	case TypeWorkoutSet:
		dst = &WorkoutSetPayload{}
	default:
		return nil, fmt.Errorf("unknown operation type %q", op.Type)
	}
	if err := json.Unmarshal(op.Payload, dst); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", op.Type, err)
	}
	return dst, nil
}

// EncodePayload marshals a payload struct for enqueueing.
func EncodePayload(payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
