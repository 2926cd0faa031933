package sync

import (
	"context"
	"fmt"

	"github.com/stridefit/stride/internal/queue"
	"github.com/stridefit/stride/internal/remote"
)

// The handlers below translate queued payloads into remote calls. Daily
// logs (water, steps, meals, supplements) are natural-key upserts: both
// create and update collapse into the same idempotent write, so a crash
// between applying an operation and dequeueing it cannot duplicate rows.

func (e *Engine) applyWaterLog(ctx context.Context, op queue.Op, p *queue.WaterLogPayload) error {
	switch op.Action {
	case queue.ActionCreate, queue.ActionUpdate:
		return e.remote.UpsertWaterLog(ctx, remote.WaterLog{
			OwnerID: op.OwnerID,
			Date:    p.Date,
			Glasses: p.Glasses,
		})
	default:
		return fmt.Errorf("unsupported action %q for water_log", op.Action)
	}
}

func (e *Engine) applyStepLog(ctx context.Context, op queue.Op, p *queue.StepLogPayload) error {
	switch op.Action {
	case queue.ActionCreate, queue.ActionUpdate:
		return e.remote.UpsertStepLog(ctx, remote.StepLog{
			OwnerID: op.OwnerID,
			Date:    p.Date,
			Steps:   p.Steps,
		})
	default:
		return fmt.Errorf("unsupported action %q for step_log", op.Action)
	}
}

func (e *Engine) applyMealLog(ctx context.Context, op queue.Op, p *queue.MealLogPayload) error {
	switch op.Action {
	case queue.ActionCreate, queue.ActionUpdate:
		return e.remote.UpsertMealLog(ctx, remote.MealLog{
			MealID:   p.MealID,
			OwnerID:  op.OwnerID,
			Date:     p.Date,
			Name:     p.Name,
			Calories: p.Calories,
			Protein:  p.Protein,
			Carbs:    p.Carbs,
			Fat:      p.Fat,
		})
	case queue.ActionDelete:
		return e.remote.DeleteMealLog(ctx, op.OwnerID, p.MealID)
	default:
		return fmt.Errorf("unsupported action %q for meal_log", op.Action)
	}
}

func (e *Engine) applySupplementLog(ctx context.Context, op queue.Op, p *queue.SupplementLogPayload) error {
	switch op.Action {
	case queue.ActionCreate, queue.ActionUpdate:
		return e.remote.UpsertSupplementLog(ctx, remote.SupplementLog{
			OwnerID:      op.OwnerID,
			SupplementID: p.SupplementID,
			Date:         p.Date,
			Taken:        p.Taken,
		})
	default:
		return fmt.Errorf("unsupported action %q for supplement_log", op.Action)
	}
}

func (e *Engine) applyWorkoutSession(ctx context.Context, op queue.Op, p *queue.WorkoutSessionPayload) error {
	session := remote.WorkoutSession{
		OwnerID:   op.OwnerID,
		ProgramID: p.ProgramID,
		WorkoutID: p.WorkoutID,
		StartedAt: p.StartedAt,
		EndedAt:   p.EndedAt,
		Completed: p.Completed,
		Notes:     p.Notes,
	}

	switch op.Action {
	case queue.ActionCreate:
		serverID, err := e.remote.CreateWorkoutSession(ctx, session)
		if err != nil {
			return err
		}
		// Resolves every queued set/update referencing this placeholder.
		e.ids.Put(p.LocalID, serverID)
		return nil

	case queue.ActionUpdate:
		id, ok := e.ids.Resolve(p.LocalID)
		if !ok {
			return fmt.Errorf("%w: workout_session %s", ErrUnresolvedRef, p.LocalID)
		}
		session.ID = id
		return e.remote.UpdateWorkoutSession(ctx, session)

	default:
		return fmt.Errorf("unsupported action %q for workout_session", op.Action)
	}
}

func (e *Engine) applyWorkoutSet(ctx context.Context, op queue.Op, p *queue.WorkoutSetPayload) error {
	if op.Action != queue.ActionCreate {
		return fmt.Errorf("unsupported action %q for workout_set", op.Action)
	}

	sessionID, ok := e.ids.Resolve(p.SessionID)
	if !ok {
		return fmt.Errorf("%w: workout_set references session %s", ErrUnresolvedRef, p.SessionID)
	}

	return e.remote.CreateWorkoutSet(ctx, remote.WorkoutSet{
		SessionID:  sessionID,
		OwnerID:    op.OwnerID,
		WorkoutID:  p.WorkoutID,
		ExerciseID: p.ExerciseID,
		SetNumber:  p.SetNumber,
		Reps:       p.Reps,
		WeightKg:   p.WeightKg,
	})
}
