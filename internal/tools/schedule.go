package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

func getSchedule(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	from, err := dateArg(call.Args, "date_from", false)
	if err != nil {
		return nil, err
	}
	to, err := dateArg(call.Args, "date_to", false)
	if err != nil {
		return nil, err
	}
	list, err := h.ListSchedules(ctx, store.ScheduleFilter{
		UserID:   intArg(call.Args, "user_id"),
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"schedules": list, "count": len(list)}, nil
}

func createSchedule(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	date, err := dateArg(call.Args, "date", true)
	if err != nil {
		return nil, err
	}
	start, err := clockArg(call.Args, "shift_start")
	if err != nil {
		return nil, err
	}
	end, err := clockArg(call.Args, "shift_end")
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("shift_end %s must be after shift_start %s", end, start)
	}
	s, err := h.CreateSchedule(ctx, store.Schedule{
		UserID:     intArg(call.Args, "user_id"),
		Date:       date,
		ShiftStart: start,
		ShiftEnd:   end,
		Location:   stringArg(call.Args, "location"),
		Notes:      stringArg(call.Args, "notes"),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("User not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": s.ID, "message": "Schedule created for " + date}, nil
}

func updateScheduleStatus(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	id := intArg(call.Args, "schedule_id")
	status := stringArg(call.Args, "status")
	err := h.UpdateScheduleStatus(ctx, id, status)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("Schedule not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "status": status, "message": "Schedule updated"}, nil
}

func createScheduleChangeRequest(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	date, err := dateArg(call.Args, "requested_date", true)
	if err != nil {
		return nil, err
	}
	cr, err := h.CreateChangeRequest(ctx,
		intArg(call.Args, "user_id"), intArg(call.Args, "schedule_id"), date, stringArg(call.Args, "reason"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("Schedule not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": cr.ID, "message": "Change request created"}, nil
}
