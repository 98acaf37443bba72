package services

import (
	"time"

	"fleet-dash/internal/live-sync-service/core/ports/driven"
)

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) driven.Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the wall clock backed by time.AfterFunc.
func RealClock() driven.Clock {
	return realClock{}
}
