package slot_generator_service

import (
	"time"

	"github.com/suchimauz/clinic-appointment-engine/internal/core/domain"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
	"github.com/suchimauz/clinic-appointment-engine/internal/utils"
)

// GenerateSlots строит слоты на день из настроек клиники.
// Текущее время передается явно: при одинаковых входах результат идентичен
func GenerateSlots(date json_types.Date, cfg *domain.SchedulingConfig, appointments []domain.Appointment, now time.Time) *domain.Generation {
	generation := &domain.Generation{
		Date:   date,
		Reason: domain.GenerationReasonOK,
		Slots:  []domain.Slot{},
	}

	if cfg.AppointmentsDisabled {
		generation.Reason = domain.GenerationReasonDisabled
		return generation
	}
	if cfg.IsWeeklyHoliday(date) {
		generation.Reason = domain.GenerationReasonWeeklyHoliday
		return generation
	}
	if cfg.IsCustomHoliday(date) {
		generation.Reason = domain.GenerationReasonCustomHoliday
		return generation
	}

	interval := cfg.SlotIntervalMinutes
	hasBreak := cfg.HasBreak()
	dayStart := utils.StartCurrentDay(date.Date)

	// Слот, конец которого выходит за endTime, не генерируется
	for minutes := cfg.StartTime.Minutes; minutes+interval <= cfg.EndTime.Minutes; minutes += interval {
		slotStart := json_types.DayTime{Minutes: minutes}
		slotEnd := json_types.DayTime{Minutes: minutes + interval}

		// Слот, пересекающий перерыв, не генерируется
		if hasBreak && overlapsBreak(slotStart, slotEnd, cfg.BreakStart, cfg.BreakEnd) {
			continue
		}

		startTime := slotStart.At(dayStart)
		slot := domain.Slot{
			StartTime: startTime,
			EndTime:   slotEnd.At(dayStart),
			Label:     slotStart.String() + " - " + slotEnd.String(),
			Bookable:  true,
		}

		// Слот в прошлом остается в выдаче, но недоступен.
		// Граница включительна: слот, начавшийся ровно сейчас, уже прошел
		if !startTime.After(now) {
			slot.Bookable = false
		}

		if isOccupied(appointments, date, slotStart) {
			slot.Bookable = false
		}

		generation.Slots = append(generation.Slots, slot)
	}

	return generation
}
