package repository

import (
	"context"

	"requisiciones/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserFilter narrows List. Zero fields match every user.
type UserFilter struct {
	Role model.Role
	Area string
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, filter UserFilter, page, limit int) ([]model.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

// findBy returns gorm.ErrRecordNotFound when no user has column = value.
func (r *userRepository) findBy(ctx context.Context, column string, value interface{}) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Where(column+" = ?", value).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findBy(ctx, "id", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, page, limit int) ([]model.User, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Area != "" {
		query = query.Where("area ILIKE ?", "%"+filter.Area+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	if err := query.Order("role ASC, username ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
