package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUserByEmail returns nil, nil when no user has that email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID returns nil, nil when the user does not exist
func (r *Repository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// PromoteIfFirst makes id an admin when it is the oldest account. The
// check and the update are one statement, so at most one account is
// promoted however many register at once.
func (r *Repository) PromoteIfFirst(ctx context.Context, id int) (bool, error) {
	db := r.db.WithContext(ctx)
	oldest := db.Model(&models.User{}).Select("MIN(id)")
	result := db.Model(&models.User{}).
		Where("id = ? AND id = (?)", id, oldest).
		Update("role", models.RoleAdmin)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
