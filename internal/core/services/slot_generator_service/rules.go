package slot_generator_service

import (
	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

// Пересечение полуоткрытых интервалов: slotStart < breakEnd && slotEnd > breakStart
func overlapsBreak(slotStart, slotEnd, breakStart, breakEnd json_types.DayTime) bool {
	return slotStart.Minutes < breakEnd.Minutes && slotEnd.Minutes > breakStart.Minutes
}

// Слот занят, если на его начало есть неотмененная запись
func isOccupied(appointments []domain.Appointment, date json_types.Date, slotTime json_types.DayTime) bool {
	for _, appointment := range appointments {
		if appointment.Occupies(date, slotTime) {
			return true
		}
	}
	return false
}
