package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16

	MinPINLength = 4
	MaxPINLength = 12
)

var (
	ErrInvalidHash = errors.New("invalid pin hash format")
	ErrWeakPIN     = errors.New("pin must be 4-12 digits")
)

// GenerateRandomBytes генерирует криптографически безопасные случайные байты
func GenerateRandomBytes(size int) ([]byte, error) {
	bytes := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return bytes, nil
}

// ValidatePIN проверяет формат PIN: только цифры, от 4 до 12 знаков
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return ErrWeakPIN
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return ErrWeakPIN
		}
	}
	return nil
}

// HashPIN создает argon2id хеш PIN. Соль и хеш хранятся вместе в base64.
func HashPIN(pin string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}

	salt, err := GenerateRandomBytes(saltLen)
	if err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(pin), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Сохраняем соль и хеш вместе
	result := make([]byte, len(salt)+len(hash))
	copy(result, salt)
	copy(result[len(salt):], hash)

	return base64.StdEncoding.EncodeToString(result), nil
}

// VerifyPIN проверяет PIN против хеша
func VerifyPIN(hash, pin string) (bool, error) {
	decoded, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	if len(decoded) != saltLen+argon2KeyLen { // 16 байт соль + 32 байта хеш
		return false, ErrInvalidHash
	}

	salt := decoded[:saltLen]
	storedHash := decoded[saltLen:]

	computedHash := argon2.IDKey([]byte(pin), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Сравнение с постоянным временем выполнения
	return subtle.ConstantTimeCompare(computedHash, storedHash) == 1, nil
}

// PINVerifier проверяет резервный PIN сотрудника.
type PINVerifier struct{}

func (PINVerifier) VerifyPIN(hash, pin string) (bool, error) {
	return VerifyPIN(hash, pin)
}
