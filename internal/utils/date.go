package utils

import (
	"time"
)

// StartCurrentDay возвращает дату с временем 00:00 в той же таймзоне
func StartCurrentDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
