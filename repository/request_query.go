package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"cityServiceDesk/models"
)

const newestFirst = ` ORDER BY r.created_at DESC, r.id DESC`

// ListAll returns every request, newest first.
func (r *RequestRepository) ListAll(ctx context.Context) ([]models.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+requestFrom+newestFirst)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequestRows(rows)
}

// ListByOwner returns all requests of a user, newest first.
func (r *RequestRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+requestFrom+` WHERE r.owner_id = ?`+newestFirst, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequestRows(rows)
}

// ListRequestsParams represents filters and pagination for List.
type ListRequestsParams struct {
	Statuses   []models.RequestStatus
	OwnerID    *int64
	CategoryID *int64
	PageSize   int       // 0 means no limit
	AfterTime  time.Time // keyset cursor: created_at of the last row seen
	AfterID    int64     // keyset cursor: id of the last row seen
}

// List returns requests matching filters ordered newest first with optional
// keyset pagination.
func (r *RequestRepository) List(ctx context.Context, p ListRequestsParams) ([]models.Request, error) {
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any

	if len(p.Statuses) > 0 {
		placeholders := make([]string, len(p.Statuses))
		for i, s := range p.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "r.status IN ("+strings.Join(placeholders, ",")+")")
	}
	if p.OwnerID != nil {
		where = append(where, "r.owner_id = ?")
		args = append(args, *p.OwnerID)
	}
	if p.CategoryID != nil {
		where = append(where, "r.category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if !p.AfterTime.IsZero() && p.AfterID > 0 {
		after := formatTime(p.AfterTime)
		where = append(where, "(r.created_at < ? OR (r.created_at = ? AND r.id < ?))")
		args = append(args, after, after, p.AfterID)
	}

	query := `SELECT ` + requestColumns + requestFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += newestFirst
	if p.PageSize > 0 {
		query += " LIMIT ?"
		args = append(args, p.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequestRows(rows)
}

// scanRequestRows scans rows into Request values. It never returns a nil slice.
func scanRequestRows(rows *sql.Rows) ([]models.Request, error) {
	out := []models.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
