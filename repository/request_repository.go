package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cityServiceDesk/models"
)

// timestampLayout is fixed width so that created_at sorts lexically.
const timestampLayout = "2006-01-02 15:04:05.000000000"

const requestColumns = `r.id, r.title, r.description, r.category_id, c.name, r.status, r.photo_url, r.rejection_reason, r.created_at, r.owner_id, r.version`

const requestFrom = ` FROM requests r JOIN categories c ON c.id = r.category_id`

// RequestRepository is the core repository for Request entities.
// Writes that depend on the current state are compare-and-swap on version.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request with status NEW. CreatedAt must be set by the caller.
// A missing category or owner is reported as models.ErrNotFound.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO requests (title, description, category_id, status, photo_url, created_at, owner_id, version) VALUES (?,?,?,?,?,?,?,1)`,
		req.Title, req.Description, req.CategoryID, string(models.StatusNew), nullString(req.PhotoURL), formatTime(req.CreatedAt), req.OwnerID)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("%w: category %d or owner %d does not exist", models.ErrNotFound, req.CategoryID, req.OwnerID)
		case isCheckViolation(err):
			return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("created request not found: id=%d", id)
	}
	return created, nil
}

// GetByID fetches a request by its ID. It returns (nil, nil) when absent.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*models.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+requestFrom+` WHERE r.id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// UpdateStatus writes status, photo_url and rejection_reason of req if the
// stored version still equals req.Version. A stale or vanished row yields
// models.ErrConflict and leaves the store untouched.
func (r *RequestRepository) UpdateStatus(ctx context.Context, req *models.Request) (*models.Request, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE requests SET status = ?, photo_url = ?, rejection_reason = ?, version = version + 1 WHERE id = ? AND version = ?`,
		string(req.Status), nullString(req.PhotoURL), nullString(req.RejectionReason), req.ID, req.Version)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, fmt.Errorf("%w: request %d was modified concurrently", models.ErrConflict, req.ID)
	}
	updated, err := r.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: request %d was deleted concurrently", models.ErrConflict, req.ID)
	}
	return updated, nil
}

// Delete removes a request that is still NEW at the given version.
func (r *RequestRepository) Delete(ctx context.Context, id, version int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ? AND version = ? AND status = ?`, id, version, string(models.StatusNew))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: request %d is no longer deletable", models.ErrConflict, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var req models.Request
	var status, createdAt string
	var photo, reason sql.NullString
	if err := row.Scan(&req.ID, &req.Title, &req.Description, &req.CategoryID, &req.CategoryName, &status, &photo, &reason, &createdAt, &req.OwnerID, &req.Version); err != nil {
		return nil, err
	}
	req.Status = models.RequestStatus(status)
	if photo.Valid {
		v := photo.String
		req.PhotoURL = &v
	}
	if reason.Valid {
		v := reason.String
		req.RejectionReason = &v
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("request %d: created_at: %w", req.ID, err)
	}
	req.CreatedAt = t
	return &req, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
