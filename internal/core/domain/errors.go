package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("entity not found")

// TransientStoreError - сетевая ошибка или таймаут удаленного стора.
// Ядро не ретраит записи само, ретрай остается за вызывающим
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error on %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// ValidationError - некорректные настройки или запрос слота, фатальна для вызова
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ChallengeRequiredError - не ошибка, а сигнал управления потоком:
// запись заблокирована до прохождения проверки
type ChallengeRequiredError struct {
	Reason            ChallengeReason
	CooldownRemaining time.Duration
}

func (e *ChallengeRequiredError) Error() string {
	return fmt.Sprintf("challenge required: %s", e.Reason)
}

// StaleWriteRejectedError - оптимистичная запись отброшена, потому что сервер
// уже подтвердил более новое состояние. Логируется, наружу не поднимается
type StaleWriteRejectedError struct {
	AppointmentID uuid.UUID
}

func (e *StaleWriteRejectedError) Error() string {
	return fmt.Sprintf("stale write rejected for appointment %s", e.AppointmentID)
}

func IsTransient(err error) bool {
	var transientErr *TransientStoreError
	return errors.As(err, &transientErr)
}
