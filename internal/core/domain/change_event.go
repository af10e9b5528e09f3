package domain

import (
	"github.com/google/uuid"
)

type ChangeEventType string

const (
	ChangeEventTypeInsert ChangeEventType = "insert"
	ChangeEventTypeUpdate ChangeEventType = "update"
	ChangeEventTypeDelete ChangeEventType = "delete"
)

// ChangeEvent - событие push-ленты удаленного стора об изменении записи
type ChangeEvent struct {
	Type        ChangeEventType `json:"type"`
	ClinicID    uuid.UUID       `json:"clinicId"`
	Appointment Appointment     `json:"appointment"`
	// Version - серверная версия сущности на момент события.
	// Порядок применения определяется по ней, а не по времени получения
	Version int64 `json:"version"`
}
