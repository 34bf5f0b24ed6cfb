package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RequestStatus represents where a request is in its lifecycle.
type RequestStatus string

const (
	StatusNew        RequestStatus = "NEW"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusRejected   RequestStatus = "REJECTED"
)

// legacyStatus maps the keys used by the existing web front end.
var legacyStatus = map[string]RequestStatus{
	"new":         StatusNew,
	"inprogress":  StatusInProgress,
	"in_progress": StatusInProgress,
	"completed":   StatusCompleted,
	"rejected":    StatusRejected,
}

// ParseStatus accepts canonical names (NEW, IN_PROGRESS, ...) as well as the
// front end's camelCase keys (new, inProgress, ...).
func ParseStatus(s string) (RequestStatus, bool) {
	s = strings.TrimSpace(s)
	switch RequestStatus(s) {
	case StatusNew, StatusInProgress, StatusCompleted, StatusRejected:
		return RequestStatus(s), true
	}
	st, ok := legacyStatus[strings.ToLower(s)]
	return st, ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Request is a resident-submitted service issue.
// PhotoURL and RejectionReason are nullable in DB; pointers distinguish null vs empty.
type Request struct {
	ID              int64         `db:"id" json:"id"`
	Title           string        `db:"title" json:"title"`
	Description     string        `db:"description" json:"description"`
	CategoryID      int64         `db:"category_id" json:"categoryId"`
	CategoryName    string        `db:"-" json:"categoryName"`
	Status          RequestStatus `db:"status" json:"status"`
	PhotoURL        *string       `db:"photo_url" json:"photoUrl"`
	RejectionReason *string       `db:"rejection_reason" json:"rejectionReason"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	OwnerID         int64         `db:"owner_id" json:"userId"`
	// Version is bumped on every write and used for compare-and-swap updates.
	Version int64 `db:"version" json:"-"`
}

// Photo returns the evidence URL or "" when none is stored.
func (r *Request) Photo() string {
	if r.PhotoURL == nil {
		return ""
	}
	return *r.PhotoURL
}

// Reason returns the rejection reason or "" when none is stored.
func (r *Request) Reason() string {
	if r.RejectionReason == nil {
		return ""
	}
	return *r.RejectionReason
}

// MarshalJSON adds the nested category object and the date field read by the
// web front end next to the flat fields.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	return json.Marshal(struct {
		plain
		Category Category  `json:"category"`
		Date     time.Time `json:"date"`
	}{
		plain:    plain(r),
		Category: Category{ID: r.CategoryID, Name: r.CategoryName},
		Date:     r.CreatedAt,
	})
}
