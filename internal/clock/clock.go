package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time.Now so the apply-window and timeout logic can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
