package model

import (
	"fmt"
	"time"
)

// VirtualTime is a simulated timestamp in nanoseconds since the start of the
// simulation. Negative values mean "no such time"; TimeNever is the canonical
// one, used for unset frame timestamps and absent timeouts.
type VirtualTime int64

const TimeNever VirtualTime = -1
const TimeZero VirtualTime = 0

const nanosPerSecond = int64(time.Second / time.Nanosecond)

func (t VirtualTime) String() string {
	if !t.TimeExists() {
		return "[never]"
	}
	ns := int64(t)
	return fmt.Sprintf("[%ds+%09dns]", ns/nanosPerSecond, ns%nanosPerSecond)
}

func (t VirtualTime) TimeExists() bool {
	return t >= 0
}

func (t VirtualTime) AtOrAfter(t2 VirtualTime) bool {
	if !t.TimeExists() || !t2.TimeExists() {
		panic("comparison requires times that exist")
	}
	return t >= t2
}

func (t VirtualTime) After(t2 VirtualTime) bool {
	if !t.TimeExists() || !t2.TimeExists() {
		panic("comparison requires times that exist")
	}
	return t > t2
}

func (t VirtualTime) AtOrBefore(t2 VirtualTime) bool {
	return t2.AtOrAfter(t)
}

func (t VirtualTime) Before(t2 VirtualTime) bool {
	return t2.After(t)
}

func (t VirtualTime) Add(duration time.Duration) VirtualTime {
	if !t.TimeExists() {
		return t
	}
	t2 := t + VirtualTime(duration.Nanoseconds())
	if (duration > 0 && t2 < t) || (duration < 0 && t2 > t) {
		panic("virtual time wrapped around")
	}
	return t2
}

// Since computes the duration elapsed from base to t; base must be at or
// before t.
func (t VirtualTime) Since(base VirtualTime) time.Duration {
	if !t.TimeExists() || !base.TimeExists() {
		panic("duration requires times that exist")
	}
	if base > t {
		panic("base must be at or before t")
	}
	return time.Duration(t-base) * time.Nanosecond
}

func (t VirtualTime) Nanoseconds() uint64 {
	if !t.TimeExists() {
		panic("time does not exist")
	}
	return uint64(t)
}

func FromNanoseconds(ns uint64) (VirtualTime, bool) {
	vt := VirtualTime(ns)
	return vt, vt.TimeExists()
}
