package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campuschat/internal/domain/entity"
	"campuschat/internal/domain/repository"
	"campuschat/pkg/errors"
)

type gormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) repository.UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *entity.User) error {
	record := userRecord{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Profile:      user.Profile,
		PasswordHash: user.PasswordHash,
		LastSeen:     user.LastSeen,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Internal("Failed to create user", err)
	}
	return nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var record userRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}
	return record.toEntity(), nil
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var record userRecord
	if err := r.db.WithContext(ctx).First(&record, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}
	return record.toEntity(), nil
}

func (r *gormUserRepository) Search(ctx context.Context, query string, limit int) ([]*entity.User, error) {
	var records []userRecord
	tx := r.db.WithContext(ctx).Order("name")
	if query != "" {
		pattern := "%" + query + "%"
		tx = tx.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&records).Error; err != nil {
		return nil, errors.Internal("Failed to search users", err)
	}

	users := make([]*entity.User, 0, len(records))
	for i := range records {
		users = append(users, records[i].toEntity())
	}
	return users, nil
}

func (r *gormUserRepository) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	result := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", userID).Update("last_seen", lastSeen)
	if result.Error != nil {
		return errors.Internal("Failed to update last seen", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFound("User", nil)
	}
	return nil
}

func (r *gormUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userRecord{}).Count(&count).Error; err != nil {
		return 0, errors.Internal("Failed to count users", err)
	}
	return count, nil
}

func (record *userRecord) toEntity() *entity.User {
	return &entity.User{
		ID:           record.ID,
		Name:         record.Name,
		Email:        record.Email,
		Profile:      record.Profile,
		LastSeen:     record.LastSeen,
		PasswordHash: record.PasswordHash,
	}
}
