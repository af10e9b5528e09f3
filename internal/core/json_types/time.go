package json_types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DayTime - время внутри дня с точностью до минуты, в JSON сериализуется как "15:04"
type DayTime struct {
	Minutes int
}

func NewDayTime(hour, minute int) DayTime {
	return DayTime{Minutes: hour*60 + minute}
}

// ParseDayTime разбирает строку "15:04" из внешних запросов
func ParseDayTime(str string) (DayTime, error) {
	parsedTime, err := time.Parse("15:04", str)
	if err != nil {
		return DayTime{}, fmt.Errorf("failed to parse day time: %v", err)
	}
	return NewDayTime(parsedTime.Hour(), parsedTime.Minute()), nil
}

func (t DayTime) Hour() int {
	return t.Minutes / 60
}

func (t DayTime) Minute() int {
	return t.Minutes % 60
}

func (t DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t DayTime) Before(other DayTime) bool {
	return t.Minutes < other.Minutes
}

func (t DayTime) After(other DayTime) bool {
	return t.Minutes > other.Minutes
}

func (t DayTime) Equal(other DayTime) bool {
	return t.Minutes == other.Minutes
}

// At возвращает момент времени в указанный день с этим временем дня
func (t DayTime) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t *DayTime) UnmarshalJSON(data []byte) error {
	// Убираем кавычки вокруг строки
	str := string(data[1 : len(data)-1])
	parsedTime, err := time.Parse("15:04", str)
	if err != nil {
		// Пробуем формат с секундами
		parsedTime, err = time.Parse("15:04:05", str)
		if err != nil {
			return fmt.Errorf("failed to parse day time: %v", err)
		}
	}
	*t = DayTime{Minutes: parsedTime.Hour()*60 + parsedTime.Minute()}
	return nil
}

func (t DayTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
