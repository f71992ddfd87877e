package service

import "time"

// Clock is the single time source for session arithmetic. Every timestamp it
// returns is UTC, so stored and compared times can never disagree on zone.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }
