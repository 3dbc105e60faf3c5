package tools

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

type fixture struct {
	db    *store.DB
	h     *store.Handle
	reg   *Registry
	owner *store.User
	chef  *store.User
	maid  *store.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "tools.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	h, err := db.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Release() })

	mk := func(email string, role store.Role) *store.User {
		u, err := h.CreateUser(ctx, store.NewUser{Email: email, Password: "pw", FullName: email, Role: role})
		if err != nil {
			t.Fatal(err)
		}
		return u
	}
	return &fixture{
		db:    db,
		h:     h,
		reg:   NewDefaultRegistry(nil),
		owner: mk("owner@example.com", store.RoleOwner),
		chef:  mk("chef@example.com", store.RoleChef),
		maid:  mk("maid@example.com", store.RoleCleaner),
	}
}

func (f *fixture) call(name Name, caller int64, args map[string]any) map[string]any {
	return f.reg.Dispatch(context.Background(), f.h, Call{Name: name, Args: args, CallerID: caller})
}

func errorOf(result map[string]any) string {
	s, _ := result["error"].(string)
	return s
}

func TestDispatch_UnknownTool(t *testing.T) {
	f := newFixture(t)
	got := f.call("drop_database", f.owner.ID, nil)
	if errorOf(got) != "Unknown tool: drop_database" {
		t.Errorf("got %v", got)
	}
}

func TestDispatch_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		tool    Name
		args    map[string]any
		wantErr string
	}{
		{"missing required", CreateTask, map[string]any{"assigned_to": float64(f.chef.ID)}, "missing required argument: title"},
		{"bad enum", GetTasks, map[string]any{"status": "archived"}, `invalid value for status: "archived"`},
		{"non-integer id", GetStaffByID, map[string]any{"user_id": 1.5}, "argument user_id: expected integer"},
		{"string for number", CreatePayroll, map[string]any{"user_id": float64(f.chef.ID), "period_start": "2026-01-01", "period_end": "2026-01-31", "base_salary": "много"}, "argument base_salary"},
		{"bad date", GetSchedule, map[string]any{"date_from": "01.02.2026"}, "invalid date for date_from"},
		{"bad clock", CreateSchedule, map[string]any{"user_id": float64(f.chef.ID), "date": "2026-02-01", "shift_start": "9am", "shift_end": "18:00", "location": "Дом"}, "invalid time for shift_start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.call(tt.tool, f.owner.ID, tt.args)
			if !strings.Contains(errorOf(got), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", errorOf(got), tt.wantErr)
			}
		})
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&Tool{
		Name:   "boom",
		Access: AccessPrivileged,
		Handler: func(context.Context, *store.Handle, Call) (map[string]any, error) {
			panic("kaboom")
		},
	}); err != nil {
		t.Fatal(err)
	}
	got := r.Dispatch(context.Background(), nil, Call{Name: "boom"})
	if errorOf(got) != "internal tool failure" {
		t.Errorf("got %v", got)
	}
}

func TestRegister_Rejects(t *testing.T) {
	r := NewRegistry(nil)
	noop := func(context.Context, *store.Handle, Call) (map[string]any, error) { return nil, nil }
	if err := r.Register(&Tool{Name: "a", Handler: noop}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&Tool{Name: "a", Handler: noop}); err == nil {
		t.Error("expected duplicate error")
	}
	if err := r.Register(&Tool{Name: "b", Handler: noop, Pinned: []string{"user_id"}}); err == nil {
		t.Error("expected undeclared pinned param error")
	}
}

func TestBuiltin_AllNamesRegistered(t *testing.T) {
	r := NewDefaultRegistry(nil)
	if got := len(r.Tools()); got != 19 {
		t.Errorf("registered %d tools, want 19", got)
	}
	for _, name := range []Name{ListStaff, GetTasks, CreateScheduleChangeRequest, GetNotes} {
		if _, ok := r.Lookup(string(name)); !ok {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestDefinition_SchemaFromParams(t *testing.T) {
	r := NewDefaultRegistry(nil)
	tool, _ := r.Lookup(string(GetTasks))

	priv := tool.Definition(false)
	props := priv.Function.Parameters["properties"].(map[string]any)
	if _, ok := props["assigned_to"]; !ok {
		t.Error("privileged schema should expose assigned_to")
	}
	status := props["status"].(map[string]any)
	if !slices.Equal(status["enum"].([]string), store.TaskStatuses) {
		t.Errorf("status enum = %v", status["enum"])
	}

	staff := tool.Definition(true)
	props = staff.Function.Parameters["properties"].(map[string]any)
	if _, ok := props["assigned_to"]; ok {
		t.Error("restricted schema must hide pinned assigned_to")
	}
	if staff.Function.Description != "Получить мои задачи. Можно фильтровать по статусу." {
		t.Errorf("staff description = %q", staff.Function.Description)
	}
}

func TestHandlers_TaskLifecycle(t *testing.T) {
	f := newFixture(t)

	created := f.call(CreateTask, f.owner.ID, map[string]any{
		"assigned_to": float64(f.chef.ID), "title": "Приготовить ужин", "priority": "high", "due_date": "2026-03-08",
	})
	if core.IsToolError(created) {
		t.Fatalf("create_task: %v", created)
	}
	taskID := created["id"].(int64)

	// Ownership guard: the cleaner cannot touch the chef's task.
	got := f.call(UpdateTaskStatus, f.maid.ID, map[string]any{"task_id": float64(taskID), "status": "done", "assigned_to": f.maid.ID})
	if errorOf(got) != "Task not found" {
		t.Errorf("foreign update = %v", got)
	}
	got = f.call(UpdateTaskStatus, f.chef.ID, map[string]any{"task_id": float64(taskID), "status": "done", "assigned_to": f.chef.ID})
	if core.IsToolError(got) {
		t.Fatalf("own update: %v", got)
	}

	list := f.call(GetTasks, f.chef.ID, map[string]any{"assigned_to": f.chef.ID, "status": "done"})
	tasks := list["tasks"].([]store.Task)
	if list["count"] != 1 || tasks[0].Priority != "high" || !tasks[0].CreatedByAI || tasks[0].CreatedBy != f.owner.ID {
		t.Errorf("get_tasks = %+v", list)
	}

	missing := f.call(CreateTask, f.owner.ID, map[string]any{"assigned_to": float64(9999), "title": "x"})
	if errorOf(missing) != "User not found" {
		t.Errorf("unknown assignee = %v", missing)
	}
}

func TestHandlers_CreateStaff(t *testing.T) {
	f := newFixture(t)

	got := f.call(CreateStaff, f.owner.ID, map[string]any{"email": "driver@example.com", "full_name": "Иван", "role": "driver"})
	if core.IsToolError(got) {
		t.Fatalf("create_staff: %v", got)
	}
	pw, _ := got["temporary_password"].(string)
	if len(pw) != 12 {
		t.Errorf("temporary_password = %q", pw)
	}
	u, err := f.h.UserByEmail(context.Background(), "driver@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !u.CheckPassword(pw) {
		t.Error("temporary password does not authenticate")
	}

	dup := f.call(CreateStaff, f.owner.ID, map[string]any{"email": "driver@example.com", "full_name": "Иван", "role": "driver", "password": "x"})
	if errorOf(dup) != "Email already registered" {
		t.Errorf("duplicate = %v", dup)
	}

	owner := f.call(CreateStaff, f.owner.ID, map[string]any{"email": "o2@example.com", "full_name": "x", "role": "owner"})
	if !strings.Contains(errorOf(owner), "invalid value for role") {
		t.Errorf("owner role should be rejected by enum: %v", owner)
	}
}

func TestHandlers_ScheduleAndChangeRequest(t *testing.T) {
	f := newFixture(t)

	s := f.call(CreateSchedule, f.owner.ID, map[string]any{
		"user_id": float64(f.chef.ID), "date": "2026-04-01", "shift_start": "09:00", "shift_end": "17:00:00", "location": "Кухня",
	})
	if core.IsToolError(s) {
		t.Fatalf("create_schedule: %v", s)
	}
	schedID := s["id"].(int64)

	bad := f.call(CreateSchedule, f.owner.ID, map[string]any{
		"user_id": float64(f.chef.ID), "date": "2026-04-01", "shift_start": "18:00", "shift_end": "09:00", "location": "Кухня",
	})
	if !strings.Contains(errorOf(bad), "must be after") {
		t.Errorf("inverted shift = %v", bad)
	}

	foreign := f.call(CreateScheduleChangeRequest, f.maid.ID, map[string]any{
		"user_id": f.maid.ID, "schedule_id": float64(schedID), "requested_date": "2026-04-02", "reason": "x",
	})
	if errorOf(foreign) != "Schedule not found" {
		t.Errorf("foreign change request = %v", foreign)
	}
	ok := f.call(CreateScheduleChangeRequest, f.chef.ID, map[string]any{
		"user_id": f.chef.ID, "schedule_id": float64(schedID), "requested_date": "2026-04-02", "reason": "врач",
	})
	if core.IsToolError(ok) {
		t.Errorf("own change request = %v", ok)
	}

	list := f.call(GetSchedule, f.chef.ID, map[string]any{"user_id": f.chef.ID})
	if list["count"] != 1 {
		t.Errorf("get_schedule = %v", list)
	}
	sched := list["schedules"].([]store.Schedule)[0]
	if sched.ShiftEnd != "17:00" {
		t.Errorf("shift_end not normalised: %q", sched.ShiftEnd)
	}

	upd := f.call(UpdateScheduleStatus, f.owner.ID, map[string]any{"schedule_id": float64(4242), "status": "completed"})
	if errorOf(upd) != "Schedule not found" {
		t.Errorf("missing schedule = %v", upd)
	}
}

func TestHandlers_Finance(t *testing.T) {
	f := newFixture(t)

	p := f.call(CreatePayroll, f.owner.ID, map[string]any{
		"user_id": float64(f.chef.ID), "period_start": "2026-02-01", "period_end": "2026-02-28",
		"base_salary": float64(80000), "bonuses": float64(5000), "deductions": float64(2000),
	})
	if p["net_amount"] != float64(83000) {
		t.Errorf("create_payroll = %v", p)
	}
	if e := f.call(CreateExpense, f.owner.ID, map[string]any{"category": "food", "description": "продукты", "amount": float64(3000), "date": "2026-02-10"}); core.IsToolError(e) {
		t.Fatal(e)
	}
	if in := f.call(CreateIncome, f.owner.ID, map[string]any{"source": "аренда", "amount": float64(100000), "date": "2026-02-15"}); core.IsToolError(in) {
		t.Fatal(in)
	}
	if neg := f.call(CreateExpense, f.owner.ID, map[string]any{"category": "food", "description": "x", "amount": float64(-1)}); errorOf(neg) == "" {
		t.Error("negative expense accepted")
	}

	sum := f.call(GetFinanceSummary, f.owner.ID, map[string]any{"period_start": "2026-02-01", "period_end": "2026-02-28"})
	if sum["net"] != float64(100000-3000-83000) || sum["period"] != "2026-02-01 - 2026-02-28" {
		t.Errorf("summary = %v", sum)
	}

	mine := f.call(GetPayroll, f.chef.ID, map[string]any{"user_id": f.chef.ID})
	if mine["count"] != 1 {
		t.Errorf("get_payroll = %v", mine)
	}
}

func TestHandlers_NotesAndNotifications(t *testing.T) {
	f := newFixture(t)

	sent := f.call(SendNotification, f.owner.ID, map[string]any{"user_id": float64(f.chef.ID), "title": "Смена", "message": "Завтра в 9"})
	if core.IsToolError(sent) {
		t.Fatal(sent)
	}
	notes := f.call(GetNotifications, f.chef.ID, map[string]any{"user_id": f.chef.ID, "unread_only": true})
	if notes["count"] != 1 {
		t.Errorf("get_notifications = %v", notes)
	}

	// Privileged callers default to themselves.
	if n := f.call(CreateNote, f.owner.ID, map[string]any{"title": "Купить цветы"}); core.IsToolError(n) {
		t.Fatal(n)
	}
	own := f.call(GetNotes, f.owner.ID, map[string]any{})
	list := own["notes"].([]store.Note)
	if len(list) != 1 || list[0].Color != "yellow" || list[0].UserID != f.owner.ID {
		t.Errorf("get_notes = %+v", own)
	}
	if other := f.call(GetNotes, f.chef.ID, map[string]any{"user_id": f.chef.ID}); other["count"] != 0 {
		t.Errorf("chef notes = %v", other)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"{not json", 0},
		{"null", 0},
		{"[1,2]", 0},
		{`{"status":"done","task_id":3}`, 2},
	}
	for _, tt := range tests {
		got := ParseArgs(tt.raw)
		if got == nil || len(got) != tt.want {
			t.Errorf("ParseArgs(%q) = %v", tt.raw, got)
		}
	}
}
