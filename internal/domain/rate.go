package domain

import "time"

// RateRecord is the admission state for one client key within the current
// fixed window.
type RateRecord struct {
	Key             string
	Count           int
	WindowResetTime time.Time
}
