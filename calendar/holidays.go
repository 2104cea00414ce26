package calendar

import "time"

// easterSunday 公历复活节（Anonymous Gregorian algorithm）。
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func isTargetHoliday(t time.Time) bool {
	m, d := t.Month(), t.Day()
	switch {
	case m == time.January && d == 1,
		m == time.May && d == 1,
		m == time.December && (d == 25 || d == 26):
		return true
	}
	easter := easterSunday(t.Year())
	return sameDay(t, easter.AddDate(0, 0, -2)) || sameDay(t, easter.AddDate(0, 0, 1))
}

// nthWeekday 某月第 n 个星期几；n<0 表示倒数。
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	if n > 0 {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		offset := (int(wd) - int(first.Weekday()) + 7) % 7
		return first.AddDate(0, 0, offset+7*(n-1))
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset+7*(n+1))
}

// observed 周六的固定假日提前到周五，周日的顺延到周一。
func observed(year int, month time.Month, day int) time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

func isNYSEHoliday(t time.Time) bool {
	y := t.Year()
	// 元旦落在周六时不提前到上一年 12 月 31 日
	if ny := observed(y, time.January, 1); ny.Year() == y && sameDay(t, ny) {
		return true
	}
	fixed := []time.Time{
		observed(y, time.July, 4),
		observed(y, time.December, 25),
	}
	if y >= 2022 {
		fixed = append(fixed, observed(y, time.June, 19))
	}
	floating := []time.Time{
		nthWeekday(y, time.January, time.Monday, 3),    // Martin Luther King Jr. Day
		nthWeekday(y, time.February, time.Monday, 3),   // Presidents' Day
		nthWeekday(y, time.May, time.Monday, -1),       // Memorial Day
		nthWeekday(y, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(y, time.November, time.Thursday, 4), // Thanksgiving
		easterSunday(y).AddDate(0, 0, -2),              // Good Friday
	}
	for _, h := range append(fixed, floating...) {
		if sameDay(t, h) {
			return true
		}
	}
	return false
}
