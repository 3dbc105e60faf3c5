package tools

import (
	"slices"
	"testing"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

func TestSelectTools(t *testing.T) {
	g := NewGate(NewDefaultRegistry(nil))

	restrictedNames := []string{"get_schedule", "get_tasks", "update_task_status", "get_payroll",
		"create_schedule_change_request", "get_notifications", "create_note", "get_notes"}

	tests := []struct {
		role     store.Role
		want     Capability
		has      []string
		hasNot   []string
		defCount int
	}{
		{store.RoleOwner, Privileged, []string{"list_staff", "create_payroll", "get_tasks"}, []string{"create_schedule_change_request"}, 18},
		{store.RoleManager, Privileged, []string{"send_notification"}, nil, 18},
		{store.RoleChef, Restricted, restrictedNames, []string{"list_staff", "create_task", "get_finance_summary"}, 8},
		{store.RoleDriver, Restricted, []string{"get_tasks"}, []string{"create_staff"}, 8},
		{store.Role("unknown"), Restricted, nil, []string{"create_expense"}, 8},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			c := g.SelectTools(tt.role)
			if c.Capability() != tt.want {
				t.Errorf("capability = %s, want %s", c.Capability(), tt.want)
			}
			if len(c.Definitions()) != tt.defCount {
				t.Errorf("definitions = %d, want %d", len(c.Definitions()), tt.defCount)
			}
			for _, n := range tt.has {
				if !c.Allows(n) || !slices.Contains(c.Names(), n) {
					t.Errorf("%s should be in %s catalog", n, tt.want)
				}
			}
			for _, n := range tt.hasNot {
				if c.Allows(n) || slices.Contains(c.Names(), n) {
					t.Errorf("%s must not be in %s catalog", n, tt.want)
				}
			}
		})
	}
}

func TestRestrictedDefinitions_HidePinned(t *testing.T) {
	g := NewGate(NewDefaultRegistry(nil))
	for _, d := range g.SelectTools(store.RoleCleaner).Definitions() {
		props := d.Function.Parameters["properties"].(map[string]any)
		for _, pinned := range []string{"user_id", "assigned_to"} {
			if _, ok := props[pinned]; ok {
				t.Errorf("%s advertises pinned %s to restricted callers", d.Function.Name, pinned)
			}
		}
		if req, ok := d.Function.Parameters["required"].([]string); ok {
			for _, r := range req {
				if r == "user_id" {
					t.Errorf("%s requires hidden user_id", d.Function.Name)
				}
			}
		}
	}
}

func TestEnforceOverrides(t *testing.T) {
	g := NewGate(NewDefaultRegistry(nil))
	const caller = int64(7)

	tests := []struct {
		name string
		role store.Role
		tool string
		args map[string]any
		want map[string]any
	}{
		{
			name: "restricted foreign user_id is replaced",
			role: store.RoleChef, tool: "get_payroll",
			args: map[string]any{"user_id": float64(1)},
			want: map[string]any{"user_id": caller},
		},
		{
			name: "restricted missing arg is injected",
			role: store.RoleChef, tool: "get_tasks",
			args: map[string]any{},
			want: map[string]any{"assigned_to": caller},
		},
		{
			name: "restricted alias arguments are dropped",
			role: store.RoleDriver, tool: "get_tasks",
			args: map[string]any{"status": "done", "user_id": float64(1), "assignee": float64(1)},
			want: map[string]any{"status": "done", "assigned_to": caller},
		},
		{
			name: "restricted ownership guard on update",
			role: store.RoleCleaner, tool: "update_task_status",
			args: map[string]any{"task_id": float64(3), "status": "done", "assigned_to": float64(1)},
			want: map[string]any{"task_id": float64(3), "status": "done", "assigned_to": caller},
		},
		{
			name: "restricted change request pinned",
			role: store.RoleChef, tool: "create_schedule_change_request",
			args: map[string]any{"user_id": float64(2), "schedule_id": float64(5), "requested_date": "2026-01-02", "reason": "x"},
			want: map[string]any{"user_id": caller, "schedule_id": float64(5), "requested_date": "2026-01-02", "reason": "x"},
		},
		{
			name: "restricted tool outside catalog gets no args",
			role: store.RoleChef, tool: "list_staff",
			args: map[string]any{"role": "chef"},
			want: map[string]any{},
		},
		{
			name: "privileged passes through",
			role: store.RoleOwner, tool: "get_tasks",
			args: map[string]any{"assigned_to": float64(1), "extra": true},
			want: map[string]any{"assigned_to": float64(1), "extra": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(tt.args)
			got := g.EnforceOverrides(tt.role, tt.tool, tt.args, caller)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v (%T), want %v (%T)", k, got[k], got[k], v, v)
				}
			}
			if len(tt.args) != before {
				t.Error("input args were modified")
			}
		})
	}
}

func TestRefusalResult(t *testing.T) {
	got := RefusalResult("create_payroll", store.RoleChef)
	if got["error"] != "Tool create_payroll is not available for role chef" {
		t.Errorf("got %v", got)
	}
}
