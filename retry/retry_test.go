// Copyright 2026, Square, Inc.

package retry_test

import (
	"errors"
	"testing"

	"github.com/square/rendergraph/retry"
)

func TestDo(t *testing.T) {
	calls := 0
	logged := 0
	err := retry.Do(3, 0, func() error {
		calls++
		if calls < 2 {
			return errors.New("try again")
		}
		return nil
	}, func(error) { logged++ })
	if err != nil {
		t.Error(err)
	}
	if calls != 2 || logged != 1 {
		t.Errorf("calls = %d, logged = %d, expected 2 and 1", calls, logged)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	logged := 0
	fail := errors.New("fail")
	err := retry.Do(3, 0, func() error {
		calls++
		return fail
	}, func(error) { logged++ })
	if err != fail {
		t.Errorf("err = %v, expected %v", err, fail)
	}
	if calls != 3 || logged != 2 {
		t.Errorf("calls = %d, logged = %d, expected 3 and 2", calls, logged)
	}
}
