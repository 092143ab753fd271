// Copyright 2026, Square, Inc.

// Package retry calls a function until it succeeds or runs out of tries.
package retry

import (
	"time"
)

type TryFunc func() error
type LogFunc func(error)

// Do calls tryFunc up to tries times, sleeping between calls, and returns the
// last error. logFunc, if set, is called with every error that is retried.
func Do(tries int, sleep time.Duration, tryFunc TryFunc, logFunc LogFunc) error {
	var err error
	for i := 0; i < tries; i++ {
		if err = tryFunc(); err == nil {
			return nil
		}
		if i == tries-1 {
			break
		}
		if logFunc != nil {
			logFunc(err)
		}
		time.Sleep(sleep)
	}
	return err
}
