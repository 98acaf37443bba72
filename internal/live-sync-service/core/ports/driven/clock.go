package driven

import "time"

type Timer interface {
	Stop() bool
}

// Clock abstracts time so the throttle and sampler deadlines can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
