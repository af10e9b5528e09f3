package domain

import (
	"time"

	"github.com/suchimauz/clinic-appointment-engine/internal/core/json_types"
)

// Slot - производный интервал для записи, никогда не персистится.
// Пересоздается на каждый запрос, при смене настроек все слоты клиники инвалидируются
type Slot struct {
	StartTime time.Time `json:"begin"`
	EndTime   time.Time `json:"end"`
	Label     string    `json:"label"`
	Bookable  bool      `json:"bookable"`
}

type GenerationReason string

const (
	GenerationReasonOK            GenerationReason = "ok"
	GenerationReasonDisabled      GenerationReason = "appointments_disabled"
	GenerationReasonWeeklyHoliday GenerationReason = "weekly_holiday"
	GenerationReasonCustomHoliday GenerationReason = "custom_holiday"
	GenerationReasonLoadFailed    GenerationReason = "load_failed"
)

// Generation - результат генерации слотов на день с причиной для диагностики
type Generation struct {
	Date   json_types.Date  `json:"date"`
	Reason GenerationReason `json:"reason"`
	Slots  []Slot           `json:"slots"`
	Debug  []DebugInfo      `json:"debug,omitempty"`
}
