package user

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
)

// Repository handles user persistence.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUserID(ctx context.Context, userID int) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("user.create", db.Create(u).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var u User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var u User
	if err := db.First(&u, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID int) (*User, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var u User
	if err := db.First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	db := database.GetTxFromContext(ctx, r.db)
	err := db.Model(&User{}).Where("id = ?", id).Update("password_hash", passwordHash).Error
	return database.WrapStorage("user.update_password", err)
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	db := database.GetTxFromContext(ctx, r.db)
	err := db.Model(&User{}).Where("id = ?", id).Update("is_active", false).Error
	return database.WrapStorage("user.deactivate", err)
}
