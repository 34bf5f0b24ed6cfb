// Package service is the request desk core: category registry, request store
// operations, lifecycle transitions and the access gate around them. It never
// logs; every failure is returned as an error wrapping one of the kinds in
// models/errors.go.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cityServiceDesk/internal/auth"
	"cityServiceDesk/internal/filter"
	"cityServiceDesk/internal/lifecycle"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

// Manager wires the repositories to the lifecycle engine and access gate.
type Manager struct {
	categories repository.CategoryRepositoryI
	requests   repository.RequestRepositoryI
	now        func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(categories repository.CategoryRepositoryI, requests repository.RequestRepositoryI, opts ...Option) *Manager {
	m := &Manager{categories: categories, requests: requests, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// --- Category registry ---

func (m *Manager) CreateCategory(ctx context.Context, caller *auth.Principal, name string) (*models.Category, error) {
	if err := auth.Authorize(auth.OpCreateCategory, caller, auth.Target{}); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", models.ErrValidation)
	}
	return m.categories.Create(ctx, name)
}

func (m *Manager) ListCategories(ctx context.Context, caller *auth.Principal) ([]models.Category, error) {
	if err := auth.Authorize(auth.OpListCategories, caller, auth.Target{}); err != nil {
		return nil, err
	}
	return m.categories.List(ctx)
}

// ResolveCategory finds a category by exact name or decimal id.
func (m *Manager) ResolveCategory(ctx context.Context, ref string) (*models.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: category is required", models.ErrValidation)
	}
	list, err := m.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for i := range list {
		if list[i].Name == ref {
			return &list[i], nil
		}
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for i := range list {
			if list[i].ID == id {
				return &list[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: category %q", models.ErrNotFound, ref)
}

// --- Request store ---

// NewRequest is the input of CreateRequest.
type NewRequest struct {
	OwnerID     int64
	Title       string
	Description string
	CategoryID  int64
	Category    string // name or decimal id; used when CategoryID is zero
	PhotoURL    string
}

func (m *Manager) CreateRequest(ctx context.Context, caller *auth.Principal, in NewRequest) (*models.Request, error) {
	if err := auth.Authorize(auth.OpCreateRequest, caller, auth.Target{OwnerID: in.OwnerID}); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", models.ErrValidation)
	}
	cat, err := m.category(ctx, in)
	if err != nil {
		return nil, err
	}
	req := &models.Request{
		Title:       title,
		Description: description,
		CategoryID:  cat.ID,
		Status:      models.StatusNew,
		OwnerID:     in.OwnerID,
		CreatedAt:   m.now(),
	}
	if photo := strings.TrimSpace(in.PhotoURL); photo != "" {
		req.PhotoURL = &photo
	}
	return m.requests.Create(ctx, req)
}

func (m *Manager) category(ctx context.Context, in NewRequest) (*models.Category, error) {
	if in.CategoryID == 0 {
		return m.ResolveCategory(ctx, in.Category)
	}
	cat, err := m.categories.GetByID(ctx, in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if cat == nil {
		return nil, fmt.Errorf("%w: category %d", models.ErrNotFound, in.CategoryID)
	}
	return cat, nil
}

func (m *Manager) GetRequest(ctx context.Context, caller *auth.Principal, id int64) (*models.Request, error) {
	req, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.OpGetRequest, caller, auth.Target{OwnerID: req.OwnerID}); err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns every request, newest first.
func (m *Manager) ListRequests(ctx context.Context, caller *auth.Principal) ([]models.Request, error) {
	if err := auth.Authorize(auth.OpListRequests, caller, auth.Target{}); err != nil {
		return nil, err
	}
	return m.requests.ListAll(ctx)
}

// ListByOwner returns the requests of ownerID, newest first.
func (m *Manager) ListByOwner(ctx context.Context, caller *auth.Principal, ownerID int64) ([]models.Request, error) {
	if err := auth.Authorize(auth.OpListByOwner, caller, auth.Target{OwnerID: ownerID}); err != nil {
		return nil, err
	}
	return m.requests.ListByOwner(ctx, ownerID)
}

// Query describes a filtered listing. A nil OwnerID lists all owners.
type Query struct {
	OwnerID *int64
	filter.Criteria
}

// Search lists requests (all or one owner's) and applies the status/category
// criteria on the fresh result.
func (m *Manager) Search(ctx context.Context, caller *auth.Principal, q Query) ([]models.Request, error) {
	var (
		list []models.Request
		err  error
	)
	if q.OwnerID != nil {
		list, err = m.ListByOwner(ctx, caller, *q.OwnerID)
	} else {
		list, err = m.ListRequests(ctx, caller)
	}
	if err != nil {
		return nil, err
	}
	return filter.Apply(list, q.Criteria), nil
}

// ListPage returns one page of requests filtered in the store, newest first.
// A set OwnerID is gated like ListByOwner.
func (m *Manager) ListPage(ctx context.Context, caller *auth.Principal, p repository.ListRequestsParams) ([]models.Request, error) {
	op, target := auth.OpListRequests, auth.Target{}
	if p.OwnerID != nil {
		op, target.OwnerID = auth.OpListByOwner, *p.OwnerID
	}
	if err := auth.Authorize(op, caller, target); err != nil {
		return nil, err
	}
	return m.requests.List(ctx, p)
}

// DeleteRequest permanently removes a request. Only the owner may delete,
// and only while the request is NEW.
func (m *Manager) DeleteRequest(ctx context.Context, caller *auth.Principal, id int64) error {
	req, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(auth.OpDeleteRequest, caller, auth.Target{OwnerID: req.OwnerID}); err != nil {
		return err
	}
	if req.Status != models.StatusNew {
		return fmt.Errorf("%w: request %d is %s; only NEW requests can be deleted", models.ErrConflict, id, req.Status)
	}
	return m.requests.Delete(ctx, req.ID, req.Version)
}

// --- Lifecycle ---

// TransitionInput is the input of Transition.
type TransitionInput struct {
	Status          models.RequestStatus
	PhotoURL        string
	RejectionReason string
}

// Transition moves a request to a new status. Idempotent replays return the
// stored record without writing.
func (m *Manager) Transition(ctx context.Context, caller *auth.Principal, id int64, in TransitionInput) (*models.Request, error) {
	if err := auth.Authorize(auth.OpTransition, caller, auth.Target{}); err != nil {
		return nil, err
	}
	req, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, changed, err := lifecycle.Apply(req, in.Status, lifecycle.Payload{
		PhotoURL:        in.PhotoURL,
		RejectionReason: in.RejectionReason,
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return req, nil
	}
	return m.requests.UpdateStatus(ctx, next)
}

func (m *Manager) load(ctx context.Context, id int64) (*models.Request, error) {
	req, err := m.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %d", models.ErrNotFound, id)
	}
	return req, nil
}
