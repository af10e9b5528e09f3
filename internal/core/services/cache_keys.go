package services

import (
	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

// Ключи кэша составные: настройки по клинике, записи по клинике и дате

func SettingsCacheKey(clinicID uuid.UUID) string {
	return "settings:" + clinicID.String()
}

func AppointmentsCacheKey(clinicID uuid.UUID, date json_types.Date) string {
	return AppointmentsCachePrefix(clinicID) + date.String()
}

func AppointmentsCachePrefix(clinicID uuid.UUID) string {
	return "appointments:" + clinicID.String() + ":"
}
