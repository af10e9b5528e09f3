package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

const MinSlotIntervalMinutes = 5

// SchedulingConfig - настройки рабочего времени клиники, одна на клинику
type SchedulingConfig struct {
	ClinicID             uuid.UUID            `json:"clinicId"`
	StartTime            json_types.DayTime   `json:"startTime"`
	EndTime              json_types.DayTime   `json:"endTime"`
	BreakStart           json_types.DayTime   `json:"breakStart"`
	BreakEnd             json_types.DayTime   `json:"breakEnd"`
	SlotIntervalMinutes  int                  `json:"slotIntervalMinutes"`
	WeeklyHolidays       []time.Weekday       `json:"weeklyHolidays"`
	CustomHolidays       []json_types.Date    `json:"customHolidays"`
	AppointmentsDisabled bool                 `json:"appointmentsDisabled"`
}

// SchedulingConfigPatch - частичное обновление настроек, nil-поля не трогаются
type SchedulingConfigPatch struct {
	StartTime            *json_types.DayTime `json:"startTime,omitempty"`
	EndTime              *json_types.DayTime `json:"endTime,omitempty"`
	BreakStart           *json_types.DayTime `json:"breakStart,omitempty"`
	BreakEnd             *json_types.DayTime `json:"breakEnd,omitempty"`
	SlotIntervalMinutes  *int                `json:"slotIntervalMinutes,omitempty"`
	WeeklyHolidays       *[]time.Weekday     `json:"weeklyHolidays,omitempty"`
	CustomHolidays       *[]json_types.Date  `json:"customHolidays,omitempty"`
	AppointmentsDisabled *bool               `json:"appointmentsDisabled,omitempty"`
}

// DefaultSchedulingConfig возвращает настройки по умолчанию:
// 09:00-18:00, перерыв 13:00-14:00, интервал 30 минут, без выходных
func DefaultSchedulingConfig(clinicID uuid.UUID) SchedulingConfig {
	return SchedulingConfig{
		ClinicID:            clinicID,
		StartTime:           json_types.NewDayTime(9, 0),
		EndTime:             json_types.NewDayTime(18, 0),
		BreakStart:          json_types.NewDayTime(13, 0),
		BreakEnd:            json_types.NewDayTime(14, 0),
		SlotIntervalMinutes: 30,
		WeeklyHolidays:      []time.Weekday{},
		CustomHolidays:      []json_types.Date{},
	}
}

// ApplyDefaults заполняет незаданные поля значениями по умолчанию
func (c *SchedulingConfig) ApplyDefaults() {
	defaults := DefaultSchedulingConfig(c.ClinicID)

	if c.StartTime.Minutes == 0 && c.EndTime.Minutes == 0 {
		c.StartTime = defaults.StartTime
		c.EndTime = defaults.EndTime
	}
	if c.BreakStart.Minutes == 0 && c.BreakEnd.Minutes == 0 {
		c.BreakStart = defaults.BreakStart
		c.BreakEnd = defaults.BreakEnd
	}
	if c.SlotIntervalMinutes == 0 {
		c.SlotIntervalMinutes = defaults.SlotIntervalMinutes
	}
	if c.WeeklyHolidays == nil {
		c.WeeklyHolidays = []time.Weekday{}
	}
	if c.CustomHolidays == nil {
		c.CustomHolidays = []json_types.Date{}
	}
}

func (c SchedulingConfig) Validate() error {
	if c.SlotIntervalMinutes < MinSlotIntervalMinutes {
		return &ValidationError{
			Field:   "slotIntervalMinutes",
			Message: "slot interval must be at least 5 minutes",
		}
	}
	if !c.StartTime.Before(c.EndTime) {
		return &ValidationError{
			Field:   "startTime",
			Message: "start time must be before end time",
		}
	}
	return nil
}

// Merge применяет частичное обновление и возвращает новые настройки
func (c SchedulingConfig) Merge(patch SchedulingConfigPatch) SchedulingConfig {
	merged := c

	if patch.StartTime != nil {
		merged.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		merged.EndTime = *patch.EndTime
	}
	if patch.BreakStart != nil {
		merged.BreakStart = *patch.BreakStart
	}
	if patch.BreakEnd != nil {
		merged.BreakEnd = *patch.BreakEnd
	}
	if patch.SlotIntervalMinutes != nil {
		merged.SlotIntervalMinutes = *patch.SlotIntervalMinutes
	}
	if patch.WeeklyHolidays != nil {
		merged.WeeklyHolidays = *patch.WeeklyHolidays
	}
	if patch.CustomHolidays != nil {
		merged.CustomHolidays = *patch.CustomHolidays
	}
	if patch.AppointmentsDisabled != nil {
		merged.AppointmentsDisabled = *patch.AppointmentsDisabled
	}

	return merged
}

// HasBreak проверяет инвариант startTime < breakStart <= breakEnd < endTime.
// Если он нарушен, день считается днем без перерыва
func (c SchedulingConfig) HasBreak() bool {
	if c.BreakStart.Equal(c.BreakEnd) && c.BreakStart.Minutes == 0 {
		return false
	}
	return c.StartTime.Before(c.BreakStart) &&
		!c.BreakEnd.Before(c.BreakStart) &&
		c.BreakEnd.Before(c.EndTime)
}

func (c SchedulingConfig) IsWeeklyHoliday(date json_types.Date) bool {
	for _, weekday := range c.WeeklyHolidays {
		if date.Weekday() == weekday {
			return true
		}
	}
	return false
}

func (c SchedulingConfig) IsCustomHoliday(date json_types.Date) bool {
	for _, holiday := range c.CustomHolidays {
		if holiday.Equal(date) {
			return true
		}
	}
	return false
}
