package rtos

import "time"

// Forever disables the timeout of a blocking operation.
const Forever time.Duration = -1

// NoWait makes a blocking operation return immediately.
const NoWait time.Duration = 0

// deadline returns a chan fired after timeout, nil for Forever.
func deadline(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	timer := time.NewTimer(timeout)
	return timer.C, func() { timer.Stop() }
}
