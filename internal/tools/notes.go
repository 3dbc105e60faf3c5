package tools

import (
	"context"
	"errors"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// subject returns the user a self-scoped tool acts on: the user_id argument
// when given, otherwise the caller.
func subject(call Call) int64 {
	if id := intArg(call.Args, "user_id"); id != 0 {
		return id
	}
	return call.CallerID
}

func sendNotification(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	n, err := h.CreateNotification(ctx, store.Notification{
		UserID:  intArg(call.Args, "user_id"),
		Title:   stringArg(call.Args, "title"),
		Message: stringArg(call.Args, "message"),
		Type:    stringArg(call.Args, "type"),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("User not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": n.ID, "message": "Notification sent"}, nil
}

func getNotifications(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	list, err := h.ListNotifications(ctx, subject(call), boolArg(call.Args, "unread_only"), 50)
	if err != nil {
		return nil, err
	}
	return map[string]any{"notifications": list, "count": len(list)}, nil
}

func createNote(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	owner := subject(call)
	if _, err := h.GetUser(ctx, owner); errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("User not found")
	} else if err != nil {
		return nil, err
	}
	n, err := h.CreateNote(ctx, store.Note{
		UserID:  owner,
		Title:   stringArg(call.Args, "title"),
		Content: stringArg(call.Args, "content"),
		Color:   stringArg(call.Args, "color"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": n.ID, "title": n.Title, "message": "Note created"}, nil
}

func getNotes(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	list, err := h.ListNotes(ctx, subject(call))
	if err != nil {
		return nil, err
	}
	return map[string]any{"notes": list, "count": len(list)}, nil
}
