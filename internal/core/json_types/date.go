package json_types

import (
	"encoding/json"
	"fmt"
	"time"
)

func parseDate(str string) (time.Time, error) {
	parsedDate, err := time.Parse(time.RFC3339, str)
	// Если не удалось пробуем дату со временем, но без таймзоны
	if err != nil {
		parsedDate, err = time.ParseInLocation("2006-01-02T15:04:05", str, time.UTC)
		if err != nil {
			// Если не удалось, пробуем как дату без времени
			parsedDate, err = time.ParseInLocation("2006-01-02", str, time.UTC)
			if err != nil {
				return time.Time{}, fmt.Errorf("failed to parse date: %v", err)
			}
		}
	}

	return parsedDate, nil
}

// Date - календарная дата без времени, в JSON сериализуется как "2006-01-02"
type Date struct {
	Date time.Time
}

func NewDate(year int, month time.Month, day int, loc *time.Location) Date {
	return Date{Date: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

// ParseDate разбирает строку даты из query-параметров
func ParseDate(str string) (Date, error) {
	parsedDate, err := parseDate(str)
	if err != nil {
		return Date{}, err
	}
	return Date{Date: parsedDate}, nil
}

func (t Date) String() string {
	return t.Date.Format("2006-01-02")
}

func (t Date) Equal(other Date) bool {
	return t.String() == other.String()
}

func (t Date) Weekday() time.Weekday {
	return t.Date.Weekday()
}

func (t *Date) UnmarshalJSON(data []byte) error {
	// Убираем кавычки вокруг строки
	str := string(data[1 : len(data)-1])

	parsedDate, err := parseDate(str)
	if err != nil {
		return err
	}

	*t = Date{Date: parsedDate}
	return nil
}

func (t Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

