// Package dates converts between the stored and displayed forms of trip
// dates and times, and classifies trips against today's date.
//
// Dates are stored as "2006-01-02" strings so that lexical order is
// calendar order. Parsing is strict: "2024-02-30" is rejected.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/models"
)

const (
	StorageDateLayout = "2006-01-02"
	DisplayDateLayout = "Jan 02, 2006"
	DayHeaderLayout   = "Monday, Jan 02, 2006"
	StorageTimeLayout = "15:04"
	DisplayTimeLayout = "3:04 PM"
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidTime  = errors.New("invalid time")
	ErrInvalidRange = errors.New("end date is before start date")
	ErrOutOfRange   = errors.New("date is outside the trip")
)

// displayDateLayouts are accepted when reading user input. The first entry
// is the one used for output.
var displayDateLayouts = []string{DisplayDateLayout, "Jan 2, 2006"}

// ParseStorageDate parses a stored date.
func ParseStorageDate(s string) (time.Time, error) {
	t, err := time.Parse(StorageDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ParseDisplayDate parses a date typed or picked in the client.
func ParseDisplayDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range displayDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// StorageToDisplay renders a stored date for display.
func StorageToDisplay(stored string) (string, error) {
	t, err := ParseStorageDate(stored)
	if err != nil {
		return "", err
	}
	return t.Format(DisplayDateLayout), nil
}

// DisplayToStorage converts a displayed date back to its stored form.
func DisplayToStorage(display string) (string, error) {
	t, err := ParseDisplayDate(display)
	if err != nil {
		return "", err
	}
	return t.Format(StorageDateLayout), nil
}

// NormalizeDate accepts either form and returns the stored form.
func NormalizeDate(s string) (string, error) {
	if t, err := ParseStorageDate(s); err == nil {
		return t.Format(StorageDateLayout), nil
	}
	return DisplayToStorage(s)
}

// StorageTimeToDisplay renders "14:05" as "2:05 PM".
func StorageTimeToDisplay(stored string) (string, error) {
	t, err := time.Parse(StorageTimeLayout, strings.TrimSpace(stored))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, stored)
	}
	return t.Format(DisplayTimeLayout), nil
}

// NormalizeTime accepts "14:05" or "2:05 PM" and returns "14:05".
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{StorageTimeLayout, DisplayTimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(StorageTimeLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// Today returns the clock's current date in storage form.
func Today(c clock.Clock) string {
	return c.Now().Format(StorageDateLayout)
}

// Classify reports whether a trip starting on start is upcoming relative to
// today. Both arguments are in storage form. A blank start date is past.
func Classify(start, today string) models.TripType {
	start = strings.TrimSpace(start)
	if start != "" && start >= today {
		return models.TripTypeUpcoming
	}
	return models.TripTypePast
}

// Field is a stored value prepared for an edit form.
type Field struct {
	Display string `json:"display"`
	Raw     string `json:"raw,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// LoadDateField prepares a stored date for editing. An unparseable value is
// cleared and reported through Warning instead of failing the load; label
// names the field in that warning ("Start date for this trip").
func LoadDateField(label, stored string) Field {
	if strings.TrimSpace(stored) == "" {
		return Field{}
	}
	display, err := StorageToDisplay(stored)
	if err != nil {
		return Field{
			Raw:     stored,
			Warning: fmt.Sprintf("Warning: %s was invalid and cleared. Please re-select.", label),
		}
	}
	return Field{Display: display, Raw: stored}
}

// LoadTimeField is LoadDateField for stored times.
func LoadTimeField(label, stored string) Field {
	if strings.TrimSpace(stored) == "" {
		return Field{}
	}
	display, err := StorageTimeToDisplay(stored)
	if err != nil {
		return Field{
			Raw:     stored,
			Warning: fmt.Sprintf("Warning: %s was invalid and cleared. Please re-select.", label),
		}
	}
	return Field{Display: display, Raw: stored}
}

// Day describes one day of a trip's timeline and its neighbours.
type Day struct {
	Date     string `json:"date"`
	Header   string `json:"header"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
}

// TripDay returns the timeline day for date within [start, end]. An empty
// date selects the first day.
func TripDay(start, end, date string) (Day, error) {
	first, err := ParseStorageDate(start)
	if err != nil {
		return Day{}, err
	}
	last, err := ParseStorageDate(end)
	if err != nil {
		return Day{}, err
	}
	if last.Before(first) {
		return Day{}, ErrInvalidRange
	}

	current := first
	if strings.TrimSpace(date) != "" {
		current, err = ParseStorageDate(date)
		if err != nil {
			return Day{}, err
		}
	}
	if current.Before(first) || current.After(last) {
		return Day{}, fmt.Errorf("%w: %s", ErrOutOfRange, date)
	}

	day := Day{
		Date:   current.Format(StorageDateLayout),
		Header: current.Format(DayHeaderLayout),
	}
	if current.After(first) {
		day.Previous = current.AddDate(0, 0, -1).Format(StorageDateLayout)
	}
	if current.Before(last) {
		day.Next = current.AddDate(0, 0, 1).Format(StorageDateLayout)
	}
	return day, nil
}

// Days lists every date of a trip in order.
func Days(start, end string) ([]string, error) {
	first, err := ParseStorageDate(start)
	if err != nil {
		return nil, err
	}
	last, err := ParseStorageDate(end)
	if err != nil {
		return nil, err
	}
	if last.Before(first) {
		return nil, ErrInvalidRange
	}
	var days []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(StorageDateLayout))
	}
	return days, nil
}
