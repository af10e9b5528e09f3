package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

type AppointmentStatus string

const (
	AppointmentStatusConfirmed   AppointmentStatus = "confirmed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
)

// Appointment - запись на прием, владелец - удаленный стор, локально хранится read-through копия
type Appointment struct {
	ID                 uuid.UUID          `json:"id"`
	ClinicID           uuid.UUID          `json:"clinicId"`
	Date               json_types.Date    `json:"date"`
	Time               json_types.DayTime `json:"time"`
	Status             AppointmentStatus  `json:"status"`
	ContactFingerprint string             `json:"contactFingerprint"`
	// Version назначается стором при каждой записи, растет монотонно на сущность
	Version int64 `json:"version"`
}

// Active - занимает ли запись слот. Отмененные записи слот не занимают
func (a Appointment) Active() bool {
	return a.Status != AppointmentStatusCancelled
}

// Occupies проверяет, занимает ли запись слот с указанным началом
func (a Appointment) Occupies(date json_types.Date, slotTime json_types.DayTime) bool {
	return a.Active() && a.Date.Equal(date) && a.Time.Equal(slotTime)
}

// NewContactFingerprint строит отпечаток контакта из телефона и почты,
// используется счетчиками AbuseGuard
func NewContactFingerprint(email, phone string) string {
	normalized := strings.ToLower(strings.TrimSpace(email)) + "|" + strings.TrimSpace(phone)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}
