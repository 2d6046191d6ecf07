package verification

import (
	"errors"
	"fmt"
)

// Category - класс ошибки, по которому клиент выбирает UX.
type Category string

const (
	CategoryCapabilityUnavailable   Category = "capability_unavailable"
	CategoryPolicyViolation         Category = "policy_violation"
	CategoryVerificationFailed      Category = "verification_failed"
	CategoryQueuePersistenceFailure Category = "queue_persistence_failure"
	CategoryCancelled               Category = "cancelled"
)

type Reason string

const (
	ReasonVerificationInProgress  Reason = "verification_in_progress"
	ReasonInvalidRequest          Reason = "invalid_request"
	ReasonMethodNotAllowed        Reason = "method_not_allowed"
	ReasonSiteMismatch            Reason = "site_mismatch"
	ReasonCredentialInvalid       Reason = "credential_invalid"
	ReasonLocationUnavailable     Reason = "location_unavailable"
	ReasonOutsideGeofence         Reason = "outside_geofence"
	ReasonBiometricFailed         Reason = "biometric_failed"
	ReasonCapabilityUnavailable   Reason = "capability_unavailable"
	ReasonQueuePersistenceFailure Reason = "queue_persistence_failure"
	ReasonCancelled               Reason = "cancelled"
)

func (r Reason) Category() Category {
	switch r {
	case ReasonLocationUnavailable, ReasonCapabilityUnavailable:
		return CategoryCapabilityUnavailable
	case ReasonOutsideGeofence, ReasonMethodNotAllowed, ReasonSiteMismatch,
		ReasonVerificationInProgress, ReasonInvalidRequest:
		return CategoryPolicyViolation
	case ReasonBiometricFailed, ReasonCredentialInvalid:
		return CategoryVerificationFailed
	case ReasonQueuePersistenceFailure:
		return CategoryQueuePersistenceFailure
	case ReasonCancelled:
		return CategoryCancelled
	default:
		return CategoryPolicyViolation
	}
}

// Retryable - имеет ли смысл повторить тот же способ отметки.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonVerificationInProgress, ReasonLocationUnavailable, ReasonBiometricFailed,
		ReasonCredentialInvalid, ReasonCancelled, ReasonQueuePersistenceFailure:
		return true
	default:
		return false
	}
}

// Guidance - подсказка пользователю.
func (r Reason) Guidance() string {
	switch r {
	case ReasonVerificationInProgress:
		return "отметка уже выполняется, дождитесь завершения"
	case ReasonInvalidRequest:
		return "некорректный запрос отметки"
	case ReasonMethodNotAllowed:
		return "этот способ отметки запрещен на площадке, выберите другой"
	case ReasonSiteMismatch:
		return "QR-код относится к другой площадке"
	case ReasonCredentialInvalid:
		return "неверный PIN"
	case ReasonLocationUnavailable:
		return "не удалось точно определить местоположение, выйдите на открытое место или используйте киоск"
	case ReasonOutsideGeofence:
		return "вы вне разрешенной зоны, обратитесь к руководителю"
	case ReasonBiometricFailed:
		return "лицо не распознано, повторите попытку или введите PIN"
	case ReasonCapabilityUnavailable:
		return "нет доступа к датчику, проверьте разрешения приложения"
	case ReasonQueuePersistenceFailure:
		return "не удалось сохранить отметку на устройстве, отметка не принята"
	case ReasonCancelled:
		return "отметка отменена"
	default:
		return string(r)
	}
}

// Rejection - типизированный отказ машины состояний.
type Rejection struct {
	Reason Reason
	Cause  error
}

func reject(reason Reason, cause error) *Rejection {
	return &Rejection{Reason: reason, Cause: cause}
}

func (r *Rejection) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("punch rejected: %s: %v", r.Reason, r.Cause)
	}
	return fmt.Sprintf("punch rejected: %s", r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Cause
}

// ReasonOf извлекает причину отказа из цепочки ошибок.
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
