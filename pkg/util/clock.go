package util

import "time"

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// InstantClock never waits. It hands sources a fired timer immediately so
// tests can drain a paced stream without wall-clock sleeps.
type InstantClock struct{}

func (InstantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (InstantClock) Now() time.Time { return time.Now() }
