package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name,omitempty"`
	PasswordHash string     `json:"-"`
	Salt         string     `json:"-"`
	Active       bool       `json:"active"`
	Roles        []string   `json:"roles,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type UsersStore interface {
	Create(ctx context.Context, user *User, roles []string) (int64, error)
	FindByUsername(ctx context.Context, username string) (*User, []string, error)
	Get(ctx context.Context, id int64) (*User, []string, error)
	Update(ctx context.Context, user *User) error
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

func (s *usersStore) Create(ctx context.Context, user *User, roles []string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users(username, full_name, password_hash, salt, roles, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		strings.ToLower(strings.TrimSpace(user.Username)), user.FullName, user.PasswordHash, user.Salt,
		rolesToJSON(roles), boolToInt(user.Active), now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return id, nil
}

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, []string, error) {
	row := s.db.QueryRowContext(ctx, selectUser+` WHERE username=?`, strings.ToLower(strings.TrimSpace(username)))
	return scanUser(row)
}

func (s *usersStore) Get(ctx context.Context, id int64) (*User, []string, error) {
	row := s.db.QueryRowContext(ctx, selectUser+` WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name=?, password_hash=?, salt=?, active=?, last_login_at=?, updated_at=? WHERE id=?`,
		user.FullName, user.PasswordHash, user.Salt, boolToInt(user.Active), nullableTime(user.LastLoginAt), now, user.ID)
	return err
}

func (s *usersStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, selectUser+` ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		var u User
		var rolesRaw string
		var active int
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Salt, &rolesRaw, &active, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Active = active != 0
		if lastLogin.Valid {
			u.LastLoginAt = &lastLogin.Time
		}
		_ = json.Unmarshal([]byte(rolesRaw), &u.Roles)
		u.PasswordHash = ""
		u.Salt = ""
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *usersStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

const selectUser = `
	SELECT id, username, full_name, password_hash, salt, roles, active, last_login_at, created_at, updated_at
	FROM users`

func scanUser(row *sql.Row) (*User, []string, error) {
	var u User
	var rolesRaw string
	var active int
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Salt, &rolesRaw, &active, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	u.Active = active != 0
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	var roles []string
	_ = json.Unmarshal([]byte(rolesRaw), &roles)
	return &u, roles, nil
}

func rolesToJSON(roles []string) string {
	if len(roles) == 0 {
		return "[]"
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
