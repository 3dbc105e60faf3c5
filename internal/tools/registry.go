// Package tools holds the assistant's tool catalog: declarative parameter
// lists, the handlers behind them, and the capability gate that scopes both
// to the caller's role.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sort"
	"strings"

	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// Name identifies a tool. The set is closed: every valid name is a constant below.
type Name string

const (
	ListStaff                   Name = "list_staff"
	GetStaffByID                Name = "get_staff_by_id"
	CreateStaff                 Name = "create_staff"
	GetSchedule                 Name = "get_schedule"
	CreateSchedule              Name = "create_schedule"
	UpdateScheduleStatus        Name = "update_schedule_status"
	GetTasks                    Name = "get_tasks"
	CreateTask                  Name = "create_task"
	UpdateTaskStatus            Name = "update_task_status"
	GetPayroll                  Name = "get_payroll"
	CreatePayroll               Name = "create_payroll"
	GetFinanceSummary           Name = "get_finance_summary"
	SendNotification            Name = "send_notification"
	CreateScheduleChangeRequest Name = "create_schedule_change_request"
	CreateExpense               Name = "create_expense"
	CreateIncome                Name = "create_income"
	GetNotifications            Name = "get_notifications"
	CreateNote                  Name = "create_note"
	GetNotes                    Name = "get_notes"
)

// JSON Schema types used in parameter declarations.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Param declares one tool argument. The advertised schema and the argument
// validation in Dispatch are both derived from it.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// Access says which capability sets include a tool.
type Access uint8

const (
	AccessPrivileged Access = 1 << iota
	AccessRestricted
)

// Call is one tool invocation after the capability gate has run.
type Call struct {
	Name     Name
	Args     map[string]any
	CallerID int64
}

// HandlerFunc executes a tool against the turn's data-access handle. A
// returned error becomes an {"error": ...} result; it never aborts the turn.
type HandlerFunc func(ctx context.Context, h *store.Handle, call Call) (map[string]any, error)

// Tool is a registered tool.
type Tool struct {
	Name Name
	// Description is shown to privileged callers.
	Description string
	// StaffDescription is the first-person phrasing shown to restricted callers.
	// Empty means Description is used.
	StaffDescription string
	Params           []Param
	Access           Access
	// Pinned params are forced to the caller's id for restricted callers and
	// hidden from the schema they are shown.
	Pinned  []string
	Handler HandlerFunc
}

// param returns the declaration of the named parameter.
func (t *Tool) param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (t *Tool) pinned(name string) bool {
	return slices.Contains(t.Pinned, name)
}

// Definition builds the model-facing definition. For restricted callers the
// pinned parameters are omitted and the staff phrasing is used.
func (t *Tool) Definition(restricted bool) core.ToolDefinition {
	desc := t.Description
	if restricted && t.StaffDescription != "" {
		desc = t.StaffDescription
	}
	props := map[string]any{}
	required := []string{}
	for _, p := range t.Params {
		if restricted && t.pinned(p.Name) {
			continue
		}
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return core.ToolDefinition{
		Type: "function",
		Function: core.FunctionSpec{
			Name:        string(t.Name),
			Description: desc,
			Parameters:  schema,
		},
	}
}

// Registry maps tool names to tools.
type Registry struct {
	tools  map[Name]*Tool
	order  []Name
	logger *slog.Logger
}

// NewRegistry returns an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{tools: make(map[Name]*Tool), logger: logger}
}

// NewDefaultRegistry returns a registry holding every built-in tool.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, t := range Builtin() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a tool. Names must be unique and every pinned parameter must be declared.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool %q: name and handler are required", t.Name)
	}
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	for _, name := range t.Pinned {
		if p, ok := t.param(name); !ok || p.Type != TypeInteger {
			return fmt.Errorf("tool %q: pinned param %q must be a declared integer", t.Name, name)
		}
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[Name(name)]
	return t, ok
}

// Tools returns registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Dispatch validates call.Args against the tool's declared parameters and runs
// its handler. It always returns a result payload: unknown names, validation
// failures, handler errors and handler panics all become {"error": ...}.
func (r *Registry) Dispatch(ctx context.Context, h *store.Handle, call Call) (result map[string]any) {
	t, ok := r.tools[call.Name]
	if !ok {
		return core.ErrorResult(fmt.Sprintf("Unknown tool: %s", call.Name))
	}
	if err := t.validate(call.Args); err != nil {
		return core.ErrorResult(err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked",
				"tool", call.Name, "panic", p, "stack", string(debug.Stack()))
			result = core.ErrorResult("internal tool failure")
		}
	}()

	out, err := t.Handler(ctx, h, call)
	if err != nil {
		r.logger.Debug("tool returned error", "tool", call.Name, "error", err)
		return core.ErrorResult(err.Error())
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// validate checks required arguments, argument types and enum membership.
// Arguments the tool does not declare are ignored here; the gate drops them
// for restricted callers.
func (t *Tool) validate(args map[string]any) error {
	for _, p := range t.Params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				return fmt.Errorf("missing required argument: %s", p.Name)
			}
			continue
		}
		switch p.Type {
		case TypeInteger:
			if _, err := toInt(v); err != nil {
				return fmt.Errorf("argument %s: %w", p.Name, err)
			}
		case TypeNumber:
			if _, err := toFloat(v); err != nil {
				return fmt.Errorf("argument %s: %w", p.Name, err)
			}
		case TypeBoolean:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("argument %s: expected boolean, got %T", p.Name, v)
			}
		case TypeString:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("argument %s: expected string, got %T", p.Name, v)
			}
			if len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
				return fmt.Errorf("invalid value for %s: %q (allowed: %s)", p.Name, s, strings.Join(p.Enum, ", "))
			}
		}
	}
	return nil
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for n := range r.tools {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}
