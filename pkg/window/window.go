// Package window models the yearless day/month span queried for every year
// of a year range.
package window

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the layout of concrete dates sent to the catalog API.
const DateFormat = "2006-01-02"

// Common errors returned when building a window.
var (
	// ErrInvalidDate is returned for a month/day pair that does not exist.
	ErrInvalidDate = errors.New("invalid day/month")

	// ErrInvalidRange is returned when the end of a window precedes its start.
	ErrInvalidRange = errors.New("invalid window range")
)

// daysInMonth holds the maximum day per month. February is always 28 days:
// the 29th is rejected so a window is valid in every year it is applied to.
var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var monthDayPattern = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})$`)

// MonthDay is a calendar day without a year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// NewMonthDay validates and returns a MonthDay.
func NewMonthDay(month time.Month, day int) (MonthDay, error) {
	if month < time.January || month > time.December {
		return MonthDay{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	if day < 1 || day > daysInMonth[month] {
		return MonthDay{}, fmt.Errorf("%w: day %d of %s", ErrInvalidDate, day, month)
	}
	return MonthDay{Month: month, Day: day}, nil
}

// ParseMonthDay parses "dd-mm" or "dd/mm".
func ParseMonthDay(s string) (MonthDay, error) {
	m := monthDayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return MonthDay{}, fmt.Errorf("%w: %q is not in dd-mm format", ErrInvalidDate, s)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return NewMonthDay(time.Month(month), day)
}

// Before reports whether d comes strictly earlier in the calendar than o.
func (d MonthDay) Before(o MonthDay) bool {
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// In binds the day to a year.
func (d MonthDay) In(year int) time.Time {
	return time.Date(year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the day as "02 January".
func (d MonthDay) String() string {
	return d.In(2001).Format("02 January")
}

// DateWindow is a yearless span applied to each year of [SinceYear, ToYear].
// It is immutable once built.
type DateWindow struct {
	SinceYear int
	ToYear    int
	Since     MonthDay
	To        MonthDay
}

// New builds a validated DateWindow.
func New(sinceYear, toYear int, since, to MonthDay) (DateWindow, error) {
	if sinceYear > toYear {
		return DateWindow{}, fmt.Errorf("%w: since year %d is after to year %d", ErrInvalidRange, sinceYear, toYear)
	}
	for _, d := range []MonthDay{since, to} {
		if _, err := NewMonthDay(d.Month, d.Day); err != nil {
			return DateWindow{}, err
		}
	}
	if to.Before(since) {
		return DateWindow{}, fmt.Errorf("%w: %s is earlier than %s", ErrInvalidRange, to, since)
	}
	return DateWindow{SinceYear: sinceYear, ToYear: toYear, Since: since, To: to}, nil
}

// Default returns the 1 January to 7 January window for the given year only.
func Default(year int) DateWindow {
	return DateWindow{
		SinceYear: year,
		ToYear:    year,
		Since:     MonthDay{Month: time.January, Day: 1},
		To:        MonthDay{Month: time.January, Day: 7},
	}
}

// ForYear returns the concrete inclusive date range of the window in year.
func (w DateWindow) ForYear(year int) (since, to time.Time) {
	return w.Since.In(year), w.To.In(year)
}

// Years returns every year of the window in ascending order.
func (w DateWindow) Years() []int {
	years := make([]int, 0, w.ToYear-w.SinceYear+1)
	for y := w.SinceYear; y <= w.ToYear; y++ {
		years = append(years, y)
	}
	return years
}

// Header is the display title for results fetched over the window.
func (w DateWindow) Header() string {
	return fmt.Sprintf("Movies released between %s and %s since %d", w.Since, w.To, w.SinceYear)
}
