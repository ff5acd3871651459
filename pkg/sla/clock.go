package sla

import "time"

// Clock supplies the current instant. The engine never reads system time directly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
