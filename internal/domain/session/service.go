package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultTokenTTL = 365 * 24 * time.Hour

type Servicer interface {
	Create(ctx context.Context, deviceID string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
}

// Service выдает устройствам bearer-токены. В хранилище попадает только sha256 токена.
type Service struct {
	repo Repository
	ttl  time.Duration
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		repo: repo,
		ttl:  ttl,
		log:  log,
		now:  time.Now,
	}
}

func (s *Service) Create(ctx context.Context, deviceID string) (string, error) {
	if deviceID == "" {
		return "", ErrEmptyDeviceID
	}

	// Генерация токена
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	token := base64.URLEncoding.EncodeToString(tokenBytes)

	expiresAt := s.now().Add(s.ttl)
	if err := s.repo.Create(ctx, deviceID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	s.log.Info("device token issued", "device_id", deviceID, "expires_at", expiresAt)
	return token, nil
}

func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	return s.repo.Validate(ctx, hashToken(token))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
