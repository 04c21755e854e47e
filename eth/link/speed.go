package link

import (
	"fmt"
	"time"
)

// Speed is a link rate in bits per second.
type Speed int64

const (
	Speed10M  Speed = 10_000_000
	Speed100M Speed = 100_000_000
	Speed1G   Speed = 1_000_000_000
	Speed10G  Speed = 10_000_000_000
)

func (s Speed) String() string {
	switch {
	case s >= Speed1G && s%Speed1G == 0:
		return fmt.Sprintf("%d Gb/s", s/Speed1G)
	case s >= 1_000_000 && s%1_000_000 == 0:
		return fmt.Sprintf("%d Mb/s", s/1_000_000)
	default:
		return fmt.Sprintf("%d b/s", int64(s))
	}
}

// BytePeriod is the clock period of a bus that moves one byte per cycle.
func (s Speed) BytePeriod() time.Duration {
	return time.Duration(8 * int64(time.Second) / int64(s))
}

// NibblePeriod is the clock period of a bus that moves one nibble per cycle.
func (s Speed) NibblePeriod() time.Duration {
	return time.Duration(4 * int64(time.Second) / int64(s))
}
