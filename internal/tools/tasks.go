package tools

import (
	"context"
	"errors"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

func getTasks(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	list, err := h.ListTasks(ctx, store.TaskFilter{
		AssignedTo: intArg(call.Args, "assigned_to"),
		Status:     stringArg(call.Args, "status"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"tasks": list, "count": len(list)}, nil
}

func createTask(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	due, err := dateArg(call.Args, "due_date", false)
	if err != nil {
		return nil, err
	}
	t, err := h.CreateTask(ctx, store.NewTask{
		AssignedTo:  intArg(call.Args, "assigned_to"),
		CreatedBy:   call.CallerID,
		CreatedByAI: true,
		Title:       stringArg(call.Args, "title"),
		Description: stringArg(call.Args, "description"),
		Priority:    stringArg(call.Args, "priority"),
		DueDate:     due,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("User not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": t.ID, "title": t.Title, "message": "Task created"}, nil
}

// updateTaskStatus treats a non-zero assigned_to as an ownership guard: the
// task must belong to that user.
func updateTaskStatus(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	id := intArg(call.Args, "task_id")
	status := stringArg(call.Args, "status")
	err := h.UpdateTaskStatus(ctx, id, status, intArg(call.Args, "assigned_to"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("Task not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "status": status, "message": "Task status updated"}, nil
}
