package extractor

import (
	"strconv"
	"strings"
	"time"
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// DateTime extracts the transaction time from text. It reports false and
// returns receivedAt when text has no usable date token.
//
// A date without a time token takes the clock of receivedAt when both fall on
// the same day, and midnight otherwise.
func DateTime(text string, receivedAt time.Time) (time.Time, bool) {
	loc := receivedAt.Location()
	if receivedAt.IsZero() {
		loc = time.Local
	}

	year, month, day, ok := findDate(text)
	if !ok {
		return receivedAt, false
	}

	hour, minute, sec, hasTime := findTime(text)
	if !hasTime {
		ry, rm, rd := receivedAt.In(loc).Date()
		if !receivedAt.IsZero() && ry == year && rm == month && rd == day {
			hour, minute, sec = receivedAt.In(loc).Clock()
		}
	}

	return time.Date(year, month, day, hour, minute, sec, 0, loc), true
}

func findDate(text string) (year int, month time.Month, day int, ok bool) {
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo >= 1 && mo <= 12 {
			y := expandYear(m[3])
			return y, time.Month(mo), d, validDate(y, time.Month(mo), d)
		}
	}
	if m := namedDatePattern.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo := monthAbbrev[strings.ToLower(m[2])]
		y := expandYear(m[3])
		return y, mo, d, validDate(y, mo, d)
	}
	return 0, 0, 0, false
}

// validDate rejects days the month does not have, which time.Date would
// otherwise roll into the next month.
func validDate(year int, month time.Month, day int) bool {
	return day >= 1 && time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Day() == day
}

// expandYear maps two-digit years below 50 to 20xx and the rest to 19xx.
func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 4 {
		return y
	}
	if y < 50 {
		return 2000 + y
	}
	return 1900 + y
}

func findTime(text string) (hour, minute, sec int, ok bool) {
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	switch strings.ToLower(m[4]) {
	case "p":
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 || sec > 59 {
		return 0, 0, 0, false
	}
	return hour, minute, sec, true
}
