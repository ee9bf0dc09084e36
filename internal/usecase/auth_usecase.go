package usecase

import (
	"context"
	"log"

	"campuschat/internal/domain/entity"
	"campuschat/internal/domain/repository"
	"campuschat/internal/infrastructure/auth"
	"campuschat/pkg/errors"
)

type AuthUseCase struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenManager
}

func NewAuthUseCase(userRepo repository.UserRepository, tokens *auth.TokenManager) *AuthUseCase {
	return &AuthUseCase{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Printf("Login Error: User %s not found: %v", email, err)
		return nil, errors.Unauthorized("Invalid email or password", nil)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		log.Printf("Login Error: Invalid password for user %s", email)
		return nil, errors.Unauthorized("Invalid email or password", nil)
	}

	token, err := uc.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &LoginResult{Token: token, User: user}, nil
}

// VerifyToken resolves a bearer token to a user id. Used by the REST
// middleware and by the live-channel handshake.
func (uc *AuthUseCase) VerifyToken(ctx context.Context, token string) (string, error) {
	claims, err := uc.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
