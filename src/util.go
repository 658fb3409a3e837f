package rawxfer

import (
	"time"
)

func SLEEP_MS(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Because sometimes it's really convenient to have C's ternary ?:
func IfThenElse[T any](x bool, a T, b T) T { //nolint:ireturn
	if x {
		return a
	} else {
		return b
	}
}

// bytes_per_second for the log lines.  A transfer too quick to time
// reports the byte count rather than dividing by zero.
func bytes_per_second(n int64, elapsed time.Duration) float64 {
	var secs = elapsed.Seconds()
	if secs <= 0 {
		return float64(n)
	}

	return float64(n) / secs
}
