// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package forensicworkflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestForEach(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 10} {
		var mu sync.Mutex
		seen := map[int]bool{}
		var running, maxRunning int32

		err := forEach(context.Background(), workers, 20, func(ctx context.Context, i int) error {
			n := atomic.AddInt32(&running, 1)
			defer atomic.AddInt32(&running, -1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)

			mu.Lock()
			seen[i] = true
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
		assert.Len(t, seen, 20)

		limit := int32(workers)
		if limit < 1 {
			limit = 1
		}
		assert.LessOrEqual(t, maxRunning, limit)
	}
}

func TestForEach_Error(t *testing.T) {
	boom := errors.New("boom")
	for _, workers := range []int{1, 4} {
		err := forEach(context.Background(), workers, 10, func(ctx context.Context, i int) error {
			if i == 2 {
				return boom
			}
			if i > 2 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(10 * time.Millisecond):
				}
			}
			return nil
		})
		assert.ErrorIs(t, err, boom, "workers %d", workers)
	}
}

func TestForEach_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		var calls int32
		err := forEach(ctx, workers, 10, func(ctx context.Context, i int) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, atomic.LoadInt32(&calls))
	}
}

func TestForEach_StopsAfterError(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	err := forEach(context.Background(), 1, 10, func(ctx context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}
