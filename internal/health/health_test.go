package health

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixed(status string) HealthChecker {
	return CheckerFunc(func() ComponentHealth {
		return ComponentHealth{Name: "x", Status: status}
	})
}

func TestRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"empty", nil, StatusOK},
		{"all ok", []string{StatusOK, StatusOK}, StatusOK},
		{"one degraded", []string{StatusOK, StatusDegraded}, StatusDegraded},
		{"error wins", []string{StatusDegraded, StatusError, StatusOK}, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for i, s := range tt.statuses {
				r.Register(string(rune('a'+i)), fixed(s))
			}
			report := r.Check()
			if report.Status != tt.want {
				t.Errorf("Status = %q, want %q", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.statuses) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.statuses))
			}
		})
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("model", fixed(StatusOK))
	r.Register("database", fixed(StatusOK))
	names := r.Names()
	if len(names) != 2 || names[0] != "database" || names[1] != "model" {
		t.Errorf("Names() = %v", names)
	}
}

func TestComponentHealth_OmitsUnsetTimes(t *testing.T) {
	b, err := json.Marshal(ComponentHealth{Name: "model", Status: StatusDegraded, LastOK: Stamp(time.Time{})})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "last_ok") || strings.Contains(string(b), "last_error") {
		t.Errorf("zero times rendered: %s", b)
	}

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b, err = json.Marshal(ComponentHealth{Name: "store", Status: StatusOK, LastOK: Stamp(at)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"last_ok":"2026-03-02T10:00:00Z"`) {
		t.Errorf("last_ok missing: %s", b)
	}
}
