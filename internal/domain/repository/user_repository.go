package repository

import (
	"context"
	"time"

	"campuschat/internal/domain/entity"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Search(ctx context.Context, query string, limit int) ([]*entity.User, error)
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
	Count(ctx context.Context) (int64, error)
}
