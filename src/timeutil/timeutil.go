package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day format used everywhere.
const DateLayout = "2006-01-02"

// LoadLocation resolves an IANA timezone name against the system tz database.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: use IANA names like Europe/Helsinki or America/New_York", name)
	}
	return loc, nil
}

// ValidateTimezone checks a timezone name without returning the location.
func ValidateTimezone(name string) error {
	_, err := LoadLocation(name)
	return err
}

// TodayIn returns today's calendar date in the given location.
func TodayIn(loc *time.Location) string {
	return TodayFrom(time.Now(), loc)
}

// TomorrowIn returns tomorrow's calendar date in the given location.
func TomorrowIn(loc *time.Location) string {
	return TomorrowFrom(time.Now(), loc)
}

// TodayFrom returns the calendar date of now in loc.
func TodayFrom(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// TomorrowFrom returns the calendar date one day after now in loc.
func TomorrowFrom(now time.Time, loc *time.Location) string {
	return now.In(loc).AddDate(0, 0, 1).Format(DateLayout)
}

// ParseClock parses a strict 24-hour HH:MM string, two digits each,
// range-checked.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: use HH:MM (e.g. 09:00)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: use HH:MM (e.g. 14:30)", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: use HH:MM (e.g. 14:30)", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: hours 0-23, minutes 0-59", s)
	}
	return hour, minute, nil
}

// ClosingDate infers the calendar day a poll published on pollDate should be
// closed. If the close time is strictly earlier in the day than the publish
// time, the close rolls past midnight onto the next day; otherwise it is the
// same day. Recompute this from current settings rather than caching it at
// publish time.
func ClosingDate(pollDate, publishTime, closeTime string) (string, error) {
	day, err := time.Parse(DateLayout, pollDate)
	if err != nil {
		return "", fmt.Errorf("invalid poll date %q: use YYYY-MM-DD", pollDate)
	}
	ph, pm, err := ParseClock(publishTime)
	if err != nil {
		return "", err
	}
	ch, cm, err := ParseClock(closeTime)
	if err != nil {
		return "", err
	}
	if ch*60+cm < ph*60+pm {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format(DateLayout), nil
}

// ParseFlexibleDate parses an admin-entered date. Accepted forms:
//
//	YYYY-MM-DD  absolute
//	MM-DD       next future occurrence, rolling into next year if passed
//	DD          next future day-of-month, scanning forward up to 12 months
//	            and skipping months where the day does not exist
//
// now anchors "future"; the result is never before now's calendar day.
func ParseFlexibleDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch len(parts) {
	case 3:
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
		}
		return d.Format(DateLayout), nil

	case 2:
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
			return "", fmt.Errorf("invalid date %q: use MM-DD", s)
		}
		for _, year := range []int{now.Year(), now.Year() + 1} {
			cand := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2), which
			// means the day did not exist in that month that year.
			if cand.Day() != day || cand.Month() != time.Month(month) {
				continue
			}
			if !cand.Before(today) {
				return cand.Format(DateLayout), nil
			}
		}
		return "", fmt.Errorf("invalid date %q", s)

	case 1:
		day, err := strconv.Atoi(parts[0])
		if err != nil || day < 1 || day > 31 {
			return "", fmt.Errorf("invalid date %q: use a day of month 1-31", s)
		}
		firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 12; i++ {
			anchor := firstOfMonth.AddDate(0, i, 0)
			cand := time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
			if cand.Day() != day || cand.Month() != anchor.Month() {
				continue
			}
			if !cand.Before(today) {
				return cand.Format(DateLayout), nil
			}
		}
		return "", fmt.Errorf("no upcoming month has a day %d", day)
	}
	return "", fmt.Errorf("invalid date %q: use YYYY-MM-DD, MM-DD or DD", s)
}

// NextOccurrence returns the next wall-clock occurrence of clock in loc.
func NextOccurrence(clock string, loc *time.Location) (time.Time, error) {
	return NextOccurrenceFrom(time.Now(), clock, loc)
}

// NextOccurrenceFrom returns the first occurrence of clock in loc strictly
// after now.
func NextOccurrenceFrom(now time.Time, clock string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	cand := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !cand.After(local) {
		next := local.AddDate(0, 0, 1)
		cand = time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, loc)
	}
	return cand, nil
}

// DatesBetween returns every calendar day from start to end inclusive, or nil
// when the range is invalid.
func DatesBetween(start, end string) []string {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil
	}
	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}
