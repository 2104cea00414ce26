// Package calendar 提供分析定价参考所需的市场日历：周末与节假日规则、
// Following 调整以及 ACT/365F 年化期限。
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ID 日历标识。
type ID string

const (
	Null         ID = "NULL"          // 每天都是工作日
	WeekendsOnly ID = "WEEKENDS_ONLY" // 只排除周六周日
	TARGET       ID = "TARGET"
	NYSE         ID = "NYSE"
)

var ErrUnknownCalendar = errors.New("unknown calendar")

// UnknownCalendarError 无法识别的日历名称。
type UnknownCalendarError struct {
	Name string
}

func (e *UnknownCalendarError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownCalendar, e.Name)
}

func (e *UnknownCalendarError) Unwrap() error { return ErrUnknownCalendar }

var aliases = map[string]ID{
	"NULL":          Null,
	"NONE":          Null,
	"WEEKENDS_ONLY": WeekendsOnly,
	"WEEKENDSONLY":  WeekendsOnly,
	"TARGET":        TARGET,
	"EUR":           TARGET,
	"NYSE":          NYSE,
	"US":            NYSE,
	"USD":           NYSE,
}

// Parse 按名称解析日历，大小写不敏感。
func Parse(name string) (ID, error) {
	id, ok := aliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", &UnknownCalendarError{Name: name}
	}
	return id, nil
}

// IsBusinessDay 判断是否为工作日。
func IsBusinessDay(id ID, t time.Time) bool {
	if id == Null {
		return true
	}
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	switch id {
	case TARGET:
		return !isTargetHoliday(t)
	case NYSE:
		return !isNYSEHoliday(t)
	default:
		return true
	}
}

// AdjustFollowing 顺延到下一个工作日（不保留月份）。
func AdjustFollowing(id ID, t time.Time) time.Time {
	for !IsBusinessDay(id, t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// BusinessDaysBetween 统计 (from, to] 区间内的工作日数；to 早于 from 时为负。
func BusinessDaysBetween(id ID, from, to time.Time) int {
	from, to = dateOnly(from), dateOnly(to)
	sign := 1
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(id, d) {
			n++
		}
	}
	return sign * n
}

// YearFraction ACT/365F。
func YearFraction(start, end time.Time) float64 {
	days := dateOnly(end).Sub(dateOnly(start)).Hours() / 24
	return days / 365.0
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
