package lockservice

import "time"

// Clock supplies the wall-clock time used for acquisition timestamps
// and staleness checks. It exists so tests can age entries without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
