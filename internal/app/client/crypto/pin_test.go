package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin     string
		wantErr bool
	}{
		{"1234", false},
		{"123456789012", false},
		{"123", true},
		{"1234567890123", true},
		{"12a4", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run("pin_"+tt.pin, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPIN)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashPIN_VerifyPIN(t *testing.T) {
	hashed, err := HashPIN("4821")
	require.NoError(t, err)

	ok, err := VerifyPIN(hashed, "4821")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Неправильный PIN
	ok, err = VerifyPIN(hashed, "4822")
	assert.NoError(t, err)
	assert.False(t, ok)

	// Тот же PIN дает другой хеш из-за соли
	again, err := HashPIN("4821")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again)

	// Неверный формат
	ok, err = VerifyPIN("invalid$format", "4821")
	assert.ErrorIs(t, err, ErrInvalidHash)
	assert.False(t, ok)

	ok, err = VerifyPIN("c2hvcnQ=", "4821")
	assert.ErrorIs(t, err, ErrInvalidHash)
	assert.False(t, ok)
}

func TestHashPIN_RejectsWeak(t *testing.T) {
	_, err := HashPIN("12")
	assert.ErrorIs(t, err, ErrWeakPIN)
}

func TestPINVerifier(t *testing.T) {
	hashed, err := HashPIN("0000")
	require.NoError(t, err)

	ok, err := PINVerifier{}.VerifyPIN(hashed, "0000")
	require.NoError(t, err)
	assert.True(t, ok)
}
