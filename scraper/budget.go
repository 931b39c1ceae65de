package scraper

import (
	"context"
	"errors"
	"math"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"festival-scraper/models"
)

// DefaultFailureThreshold is the number of consecutive page failures that
// ends a source.
const DefaultFailureThreshold = 3

// FailureBudget counts consecutive page/iteration failures for one source.
// Once the circuit opens it stays open for the rest of the run.
type FailureBudget struct {
	source    string
	threshold uint32
	cb        *gobreaker.CircuitBreaker[struct{}]
	onTrip    func(source string)
}

// NewFailureBudget trips after threshold consecutive failures. onTrip, when
// set, is called once as the circuit opens.
func NewFailureBudget(source string, threshold int, onTrip func(source string)) *FailureBudget {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	b := &FailureBudget{source: source, threshold: uint32(threshold), onTrip: onTrip}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name: source,
		// Never half-open during a run.
		Timeout: time.Duration(math.MaxInt64),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen && b.onTrip != nil {
				b.onTrip(name)
			}
		},
	})
	return b
}

// Do runs fn under the budget. When fn's failure exhausts the budget, or
// the budget was already exhausted, it returns *models.FatalSourceError
// wrapping the last error. Other failures are returned as they are.
func (b *FailureBudget) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if err == nil {
		return nil
	}
	if b.Exhausted() {
		var fatal *models.FatalSourceError
		if errors.As(err, &fatal) {
			return err
		}
		return &models.FatalSourceError{Source: b.source, Failures: int(b.threshold), Err: err}
	}
	return err
}

// Exhausted reports whether the circuit is open.
func (b *FailureBudget) Exhausted() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// IsFatal reports whether err ends the source.
func IsFatal(err error) bool {
	var fatal *models.FatalSourceError
	return errors.As(err, &fatal)
}
