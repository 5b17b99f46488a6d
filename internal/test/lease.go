package test

import (
	"context"
	"sync/atomic"
)

// LeaseStub grants the sweep lease while Held is true and counts calls.
type LeaseStub struct {
	Held     atomic.Bool
	Err      error
	Acquires atomic.Int32
	Releases atomic.Int32
}

// Acquire reports Held unless Err is set.
func (l *LeaseStub) Acquire(context.Context) (bool, error) {
	l.Acquires.Add(1)
	if l.Err != nil {
		return false, l.Err
	}
	return l.Held.Load(), nil
}

// Release records the call.
func (l *LeaseStub) Release(context.Context) error {
	l.Releases.Add(1)
	return nil
}
