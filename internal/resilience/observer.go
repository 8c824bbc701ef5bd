package resilience

import "time"

// Observer receives events from the access layer. Implementations must be
// safe for concurrent use.
type Observer interface {
	// ObserveAttempt is called after every upstream attempt; err is nil on success.
	ObserveAttempt(provider string, attempt int, elapsed time.Duration, err *Error)
	// ObserveThrottle is called after every rate limiter acquisition.
	ObserveThrottle(provider string, waited time.Duration, err *Error)
	// ObserveCall is called once per logical provider call with its final outcome.
	ObserveCall(provider string, elapsed time.Duration, err *Error)
}

// NopObserver ignores all events. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) ObserveAttempt(string, int, time.Duration, *Error) {}
func (NopObserver) ObserveThrottle(string, time.Duration, *Error)     {}
func (NopObserver) ObserveCall(string, time.Duration, *Error)         {}

// Observers fans events out to several observers.
type Observers []Observer

func (os Observers) ObserveAttempt(provider string, attempt int, elapsed time.Duration, err *Error) {
	for _, o := range os {
		o.ObserveAttempt(provider, attempt, elapsed, err)
	}
}

func (os Observers) ObserveThrottle(provider string, waited time.Duration, err *Error) {
	for _, o := range os {
		o.ObserveThrottle(provider, waited, err)
	}
}

func (os Observers) ObserveCall(provider string, elapsed time.Duration, err *Error) {
	for _, o := range os {
		o.ObserveCall(provider, elapsed, err)
	}
}
