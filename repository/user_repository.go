package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cityServiceDesk/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Role defaults to CITIZEN.
// A duplicate login is reported as models.ErrValidation.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u == nil {
		return nil, errors.New("user is nil")
	}
	login := strings.TrimSpace(u.Login)
	if login == "" {
		return nil, fmt.Errorf("%w: login is required", models.ErrValidation)
	}
	role := u.Role
	if role == "" {
		role = models.RoleCitizen
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO users (full_name, login, email, role) VALUES (?,?,?,?)`,
		strings.TrimSpace(u.FullName), login, strings.TrimSpace(u.Email), string(role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: login %q is taken", models.ErrValidation, login)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, full_name, login, email, role FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, full_name, login, email, role FROM users WHERE login = ?`, strings.TrimSpace(login))
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u models.User
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.FullName, &u.Login, &u.Email, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, full_name, login, email, role FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var u models.User
		var role string
		if err := rows.Scan(&u.ID, &u.FullName, &u.Login, &u.Email, &role); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRole sets the role for the given user id.
// Intended for administrative bootstrap and tests.
func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return nil
}
