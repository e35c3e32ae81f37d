package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/events"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/shopspring/decimal"
)

func (e *Engine) CreateTask(
	ctx context.Context, text string, reward decimal.Decimal, visibleHours, holdDays int,
) (*tasks.Task, error) {
	task, err := tasks.NewTask(text, reward, visibleHours, holdDays, e.now())
	if err != nil {
		return nil, fmt.Errorf("tasks.NewTask: %w", err)
	}

	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("store.CreateTask: %w", err)
	}

	e.metrics.TaskCreated()
	e.log.Info("task created", slog.Int64("task_id", task.ID()), slog.String("reward", task.Reward().String()))

	e.publish(ctx, events.New(events.TypeTaskCreated, 0, map[string]any{
		"task_id":    task.ID(),
		"reward":     task.Reward().String(),
		"expires_at": task.ExpiresAt(),
		"hold_until": task.HoldUntil(),
	}, task.CreatedAt()))

	return task, nil
}

// AssignTask hands the oldest claimable task to userID. Concurrent callers
// never receive the same task; when nothing qualifies the error matches
// storage.ErrNoTaskAvailable.
func (e *Engine) AssignTask(ctx context.Context, userID int64) (*tasks.Task, error) {
	if _, err := e.EnsureAccount(ctx, userID, nil); err != nil {
		return nil, err
	}

	now := e.now()

	task, err := e.store.AssignTask(ctx, userID, now)
	if err != nil {
		if errors.Is(err, storage.ErrNoTaskAvailable) {
			e.metrics.AssignMissed()
		}

		return nil, fmt.Errorf("store.AssignTask: %w", err)
	}

	e.metrics.TaskAssigned()
	e.log.Info("task assigned", slog.Int64("task_id", task.ID()), slog.Int64("user_id", userID))

	e.publish(ctx, events.New(events.TypeTaskAssigned, userID, map[string]any{
		"task_id": task.ID(),
	}, now))

	return task, nil
}

// ListHeldTasks returns the tasks assigned to userID that are still inside
// their hold period.
func (e *Engine) ListHeldTasks(ctx context.Context, userID int64) ([]*tasks.Task, error) {
	held, err := e.store.GetTasksHeldBy(ctx, userID, e.now())
	if err != nil {
		return nil, fmt.Errorf("store.GetTasksHeldBy: %w", err)
	}

	return held, nil
}

// TaskStats summarizes the pool as of now. Expired unassigned tasks are
// simply no longer selectable, so reading them requires no mutation.
func (e *Engine) TaskStats(ctx context.Context) (tasks.Stats, error) {
	stats, err := e.store.GetTaskStats(ctx, e.now())
	if err != nil {
		return tasks.Stats{}, fmt.Errorf("store.GetTaskStats: %w", err)
	}

	return stats, nil
}

func (e *Engine) GetTask(ctx context.Context, taskID int64) (*tasks.Task, error) {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("store.GetTask: %w", err)
	}

	return task, nil
}
