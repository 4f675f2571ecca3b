package ports

import (
	"context"

	"github.com/taskapp/taskstream/internal/core/domain"
)

// AuthService implements registration, login, and token renewal.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (string, *domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	// Refresh issues a fresh token for a still-authenticated user.
	Refresh(ctx context.Context, username string) (string, *domain.User, error)
}
