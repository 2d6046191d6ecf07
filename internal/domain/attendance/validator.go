package attendance

import (
	"fmt"
	"unicode"
)

const (
	MinEmployeeIDLen = 2
	MaxEmployeeIDLen = 64
)

// ValidateEmployeeID проверяет табельный идентификатор: буквы, цифры и '_', '-', '.'.
func ValidateEmployeeID(id string) error {
	if id == "" {
		return ErrEmptyEmployeeID
	}

	if len(id) < MinEmployeeIDLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidEmployeeID, MinEmployeeIDLen)
	}

	if len(id) > MaxEmployeeIDLen {
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidEmployeeID, MaxEmployeeIDLen)
	}

	for _, r := range id {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return fmt.Errorf("%w: can only contain letters, digits, '_', '-', '.'", ErrInvalidEmployeeID)
		}
	}

	return nil
}
