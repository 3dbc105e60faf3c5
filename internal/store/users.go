package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is a user's position in the household.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleManager   Role = "manager"
	RoleDriver    Role = "driver"
	RoleChef      Role = "chef"
	RoleAssistant Role = "assistant"
	RoleCleaner   Role = "cleaner"
)

// StaffRoles are the roles that can be given to staff created by an owner or manager.
var StaffRoles = []string{"driver", "chef", "assistant", "cleaner", "manager"}

// Privileged reports whether the role sees the full assistant tool catalog.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleManager
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleDriver, RoleChef, RoleAssistant, RoleCleaner:
		return true
	}
	return false
}

// User is a household member who can log in.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser carries the fields for CreateUser. Password is plain text and is
// hashed before it is stored.
type NewUser struct {
	Email    string
	Password string
	FullName string
	Role     Role
	Phone    string
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether password matches the user's stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

const userColumns = `id, email, password_hash, full_name, role, COALESCE(phone, ''), is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u       User
		role    string
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.Phone, &u.Active, &created); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

// CreateUser inserts a user. Returns ErrDuplicateEmail when the email is taken.
func (h *Handle) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !nu.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", nu.Role)
	}
	if _, err := h.UserByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return nil, err
	}
	res, err := h.q.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, full_name, role, phone, is_active, created_at) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		email, hash, nu.FullName, string(nu.Role), nullString(nu.Phone), formatTime(nowFunc()),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return h.GetUser(ctx, id)
}

// GetUser retrieves a user by ID.
func (h *Handle) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(h.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// UserByEmail retrieves a user by email (case-insensitive).
func (h *Handle) UserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(h.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListActiveUsers returns active users ordered by id, optionally filtered by role.
func (h *Handle) ListActiveUsers(ctx context.Context, role Role) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = 1`
	var args []any
	if role != "" {
		query += ` AND role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY id`
	rows, err := h.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// CountUsersWithRole returns how many users hold role.
func (h *Handle) CountUsersWithRole(ctx context.Context, role Role) (int, error) {
	var n int
	err := h.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n)
	return n, err
}

// SetUserActive enables or disables a user's login.
func (h *Handle) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := h.q.ExecContext(ctx, `UPDATE users SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
