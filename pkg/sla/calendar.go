package sla

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Rule timezones must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// MaxLookaheadDays bounds every forward walk through a calendar.
const MaxLookaheadDays = 366

const dateLayout = "2006-01-02"

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

type window struct {
	startMin int
	endMin   int
}

// Calendar answers operating-hours questions for one rule.
// Windows are half-open: an instant equal to a window's end is not operating.
type Calendar struct {
	rule     *Rule
	loc      *time.Location
	windows  [7]*window
	holidays map[string]struct{}
}

// NewCalendar builds the calendar of a rule. A rule without a business-hours map gets
// the Monday to Friday 09:00-17:00 default.
func NewCalendar(rule *Rule) (*Calendar, error) {
	loc, err := loadLocation(rule)
	if err != nil {
		return nil, err
	}

	c := &Calendar{
		rule:     rule,
		loc:      loc,
		holidays: make(map[string]struct{}, len(rule.Holidays)),
	}

	hours := rule.BusinessHours
	if hours == nil {
		hours = DefaultBusinessHours()
	}

	for name, dh := range hours {
		idx := weekdayIndex(name)
		if idx < 0 {
			return nil, configErr(rule, "unknown weekday %q in business hours", name)
		}
		if dh == nil {
			continue
		}
		start, err := parseClock(dh.Start)
		if err != nil {
			return nil, configErr(rule, "%s start: %v", name, err)
		}
		end, err := parseClock(dh.End)
		if err != nil {
			return nil, configErr(rule, "%s end: %v", name, err)
		}
		if start >= end {
			return nil, configErr(rule, "%s window %s-%s is empty", name, dh.Start, dh.End)
		}
		c.windows[idx] = &window{startMin: start, endMin: end}
	}

	for _, h := range rule.Holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return nil, configErr(rule, "holiday %q is not a YYYY-MM-DD date", h)
		}
		c.holidays[h] = struct{}{}
	}

	return c, nil
}

// Location is the rule's time zone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsOperating reports whether t falls inside an operating window.
func (c *Calendar) IsOperating(t time.Time) bool {
	start, end, ok := c.windowOn(t.In(c.loc))
	if !ok {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// NextOperatingInstant returns t when it is operating, otherwise the start of the next
// operating window.
func (c *Calendar) NextOperatingInstant(t time.Time) (time.Time, error) {
	if c.IsOperating(t) {
		return t, nil
	}
	if !c.hasWindows() {
		return time.Time{}, configErr(c.rule, "no weekday has business hours")
	}

	lt := t.In(c.loc)
	y, m, d := lt.Date()
	for i := 0; i <= MaxLookaheadDays; i++ {
		day := time.Date(y, m, d+i, 12, 0, 0, 0, c.loc)
		start, _, ok := c.windowOn(day)
		if ok && t.Before(start) {
			return start, nil
		}
	}

	return time.Time{}, configErr(c.rule, "no operating day within %d days of %s", MaxLookaheadDays, lt.Format(dateLayout))
}

// WindowEnd returns the end of the window containing the operating instant t.
func (c *Calendar) WindowEnd(t time.Time) (time.Time, bool) {
	if !c.IsOperating(t) {
		return time.Time{}, false
	}
	_, end, _ := c.windowOn(t.In(c.loc))
	return end, true
}

// OperatingHoursBetween sums operating time in [from, to).
func (c *Calendar) OperatingHoursBetween(from, to time.Time) float64 {
	if !to.After(from) {
		return 0
	}

	var total time.Duration
	lf := from.In(c.loc)
	y, m, d := lf.Date()
	for i := 0; ; i++ {
		day := time.Date(y, m, d+i, 12, 0, 0, 0, c.loc)
		dayStart := time.Date(y, m, d+i, 0, 0, 0, 0, c.loc)
		if !dayStart.Before(to) {
			break
		}
		start, end, ok := c.windowOn(day)
		if !ok {
			continue
		}
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			total += end.Sub(start)
		}
	}

	return total.Hours()
}

// windowOn returns the window instants of the local day containing lt.
func (c *Calendar) windowOn(lt time.Time) (time.Time, time.Time, bool) {
	if _, holiday := c.holidays[lt.Format(dateLayout)]; holiday {
		return time.Time{}, time.Time{}, false
	}
	w := c.windows[lt.Weekday()]
	if w == nil {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := lt.Date()
	start := time.Date(y, m, d, w.startMin/60, w.startMin%60, 0, 0, c.loc)
	end := time.Date(y, m, d, w.endMin/60, w.endMin%60, 0, 0, c.loc)
	return start, end, true
}

func (c *Calendar) hasWindows() bool {
	for _, w := range c.windows {
		if w != nil {
			return true
		}
	}
	return false
}

func loadLocation(rule *Rule) (*time.Location, error) {
	if rule.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, configErr(rule, "unknown timezone %q", rule.Timezone)
	}
	return loc, nil
}

func weekdayIndex(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range weekdayNames {
		if n == name {
			return i
		}
	}
	return -1
}

// parseClock turns "HH:MM" into minutes after midnight. "24:00" is the end of day.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time %q is out of range", s)
	}
	return h*60 + m, nil
}
