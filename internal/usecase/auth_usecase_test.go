package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/adapter/repository"
	"campuschat/internal/domain/entity"
	"campuschat/internal/infrastructure/auth"
	"campuschat/pkg/errors"
)

func newTestAuthUseCase(t *testing.T) *AuthUseCase {
	t.Helper()

	db, err := repository.Open(fmt.Sprintf("file:uc_auth_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	userRepo := repository.NewGormUserRepository(db)

	hash, err := auth.HashPassword("jane123")
	require.NoError(t, err)
	require.NoError(t, userRepo.Create(context.Background(), &entity.User{
		ID:           "u-jane",
		Name:         "Jane Smith",
		Email:        "jane@campus.local",
		PasswordHash: hash,
	}))

	return NewAuthUseCase(userRepo, auth.NewTokenManager("test-secret", 3600))
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	uc := newTestAuthUseCase(t)
	ctx := context.Background()

	result, err := uc.Login(ctx, "jane@campus.local", "jane123")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, "u-jane", result.User.ID)
	assert.Empty(t, result.User.PasswordHash, "login response must not leak the hash")

	userID, err := uc.VerifyToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-jane", userID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	uc := newTestAuthUseCase(t)
	ctx := context.Background()

	_, err := uc.Login(ctx, "jane@campus.local", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	_, err = uc.Login(ctx, "nobody@campus.local", "jane123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	// Both failures read identically to the caller.
	assert.Contains(t, err.Error(), "Invalid email or password")
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	uc := newTestAuthUseCase(t)

	_, err := uc.VerifyToken(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))
}
