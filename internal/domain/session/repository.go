package session

import (
	"context"
	"time"
)

// Repository хранит хеши токенов устройств.
type Repository interface {
	Create(ctx context.Context, deviceID string, tokenHash string, expiresAt time.Time) error
	// Validate возвращает устройство по хешу действующего токена или ErrInvalidToken.
	Validate(ctx context.Context, tokenHash string) (string, error)
}
