package repository

import (
	"context"

	"cityServiceDesk/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	UpdateRole(ctx context.Context, id int64, role models.Role) error
}

// CategoryRepositoryI defines operations on Category entities.
type CategoryRepositoryI interface {
	Create(ctx context.Context, name string) (*models.Category, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
}

// RequestRepositoryI defines operations on Request entities.
// UpdateStatus and Delete are compare-and-swap on Version and return
// models.ErrConflict when the stored row moved on.
type RequestRepositoryI interface {
	Create(ctx context.Context, r *models.Request) (*models.Request, error)
	GetByID(ctx context.Context, id int64) (*models.Request, error)
	ListAll(ctx context.Context) ([]models.Request, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Request, error)
	List(ctx context.Context, p ListRequestsParams) ([]models.Request, error)
	UpdateStatus(ctx context.Context, r *models.Request) (*models.Request, error)
	Delete(ctx context.Context, id, version int64) error
}

var (
	_ UserRepositoryI     = (*UserRepository)(nil)
	_ CategoryRepositoryI = (*CategoryRepository)(nil)
	_ RequestRepositoryI  = (*RequestRepository)(nil)
)
