package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"campuschat/internal/adapter/api"
	"campuschat/internal/adapter/api/handler"
	apimiddleware "campuschat/internal/adapter/api/middleware"
	"campuschat/internal/adapter/api/router"
	"campuschat/internal/adapter/repository"
	"campuschat/internal/domain/entity"
	domainrepo "campuschat/internal/domain/repository"
	"campuschat/internal/infrastructure/auth"
	ws "campuschat/internal/infrastructure/websocket"
	"campuschat/internal/usecase"
	"campuschat/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", cfg.DatabaseDSN, err)
	}

	userRepo := repository.NewGormUserRepository(db)
	chatRepo := repository.NewGormChatRepository(db)

	if err := seedUsers(ctx, userRepo, cfg.Environment); err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	authUseCase := usecase.NewAuthUseCase(userRepo, tokenManager)

	hub := ws.NewHub()
	hub.OnDisconnect = func(userID string, at time.Time) {
		if err := userRepo.UpdateLastSeen(context.Background(), userID, at); err != nil {
			log.Printf("Failed to update last seen for %s: %v", userID, err)
		}
	}
	hub.Start(ctx)

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, hub)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authUseCase)
	authHandler := handler.NewAuthHandler(authUseCase)
	chatHandler := handler.NewChatHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(hub, authUseCase)

	router.Setup(e, authHandler, chatHandler, wsHandler, authMiddleware)

	go func() {
		log.Printf("Starting chatd on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// seedUsers creates a handful of dev accounts on an empty database so
// the chat widget has counterparts to talk to.
func seedUsers(ctx context.Context, userRepo domainrepo.UserRepository, environment string) error {
	if environment != "development" {
		return nil
	}

	count, err := userRepo.Count(ctx)
	if err != nil || count > 0 {
		return err
	}

	seeds := []struct {
		id, name, email, password string
	}{
		{"u-admin", "Admin", "admin@campus.local", "admin123"},
		{"u-jane", "Jane Smith", "jane@campus.local", "jane123"},
		{"u-omar", "Omar Reyes", "omar@campus.local", "omar123"},
	}

	for _, seed := range seeds {
		hash, err := auth.HashPassword(seed.password)
		if err != nil {
			return err
		}
		user := &entity.User{
			ID:           seed.id,
			Name:         seed.name,
			Email:        seed.email,
			PasswordHash: hash,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			return err
		}
		log.Printf("Seeded dev user %s (%s)", seed.name, seed.email)
	}
	return nil
}
