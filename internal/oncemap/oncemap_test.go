// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oncemap

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOnce(t *testing.T) {
	var calls atomic.Int32
	m := New(func(k string) (int, error) {
		calls.Add(1)
		if k == "bad" {
			return 0, errors.New("bad key")
		}
		return len(k), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := m.Get("four"); err != nil || v != 4 {
				t.Errorf("Get(four) = %d, %v; want 4, nil", v, err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("constructor called %d times, want 1", n)
	}

	if _, err := m.Get("bad"); err == nil {
		t.Errorf("Get(bad) succeeded, want error")
	}
	m.Get("bad")
	if n := calls.Load(); n != 2 {
		t.Errorf("constructor called %d times after error, want 2", n)
	}

	m.Forget("four")
	m.Get("four")
	if n := calls.Load(); n != 3 {
		t.Errorf("constructor called %d times after Forget, want 3", n)
	}
}
