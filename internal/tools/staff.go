package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

func staffRecord(u store.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"full_name": u.FullName,
		"role":      string(u.Role),
		"phone":     u.Phone,
		"email":     u.Email,
	}
}

func listStaff(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	users, err := h.ListActiveUsers(ctx, store.Role(stringArg(call.Args, "role")))
	if err != nil {
		return nil, err
	}
	staff := make([]map[string]any, 0, len(users))
	for _, u := range users {
		staff = append(staff, staffRecord(u))
	}
	return map[string]any{"staff": staff, "count": len(staff)}, nil
}

func getStaffByID(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	u, err := h.GetUser(ctx, intArg(call.Args, "user_id"))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("User not found")
	}
	if err != nil {
		return nil, err
	}
	return staffRecord(*u), nil
}

// temporaryPassword returns a random 12-character password.
func temporaryPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func createStaff(ctx context.Context, h *store.Handle, call Call) (map[string]any, error) {
	email := stringArg(call.Args, "email")
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %q", email)
	}
	password := stringArg(call.Args, "password")
	generated := password == ""
	if generated {
		password = temporaryPassword()
	}
	u, err := h.CreateUser(ctx, store.NewUser{
		Email:    email,
		Password: password,
		FullName: stringArg(call.Args, "full_name"),
		Role:     store.Role(stringArg(call.Args, "role")),
		Phone:    stringArg(call.Args, "phone"),
	})
	if errors.Is(err, store.ErrDuplicateEmail) {
		return nil, errors.New("Email already registered")
	}
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"id":        u.ID,
		"full_name": u.FullName,
		"role":      string(u.Role),
		"message":   "Staff created successfully",
	}
	if generated {
		out["temporary_password"] = password
	}
	return out, nil
}
