package audio

// ErrorCounter tracks consecutive delivery failures against an abort
// threshold. Capture backends use it to decide when a stream has degraded
// beyond recovery: isolated glitches reset the count, only an unbroken run of
// failures trips it.
//
// Not safe for concurrent use; callers confine it to the capture goroutine.
type ErrorCounter struct {
	threshold int
	count     int
}

// NewErrorCounter creates a counter that trips after threshold consecutive
// failures. A non-positive threshold trips on the first failure.
func NewErrorCounter(threshold int) *ErrorCounter {
	if threshold <= 0 {
		threshold = 1
	}
	return &ErrorCounter{threshold: threshold}
}

// Fail records a failed delivery and reports whether the threshold has been
// reached.
func (c *ErrorCounter) Fail() bool {
	c.count++
	return c.count >= c.threshold
}

// Success records a successful delivery, clearing any accumulated failures.
func (c *ErrorCounter) Success() {
	c.count = 0
}

// Count returns the current consecutive-failure count.
func (c *ErrorCounter) Count() int {
	return c.count
}
