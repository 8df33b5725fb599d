/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package nm

import (
	"sync"
	"sync/atomic"
)

// loop runs posted tasks one at a time, in order, on a single goroutine.
// Each task is one processing turn.
type loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newLoop() *loop {
	return &loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post enqueues fn. It returns false once the loop has stopped.
func (l *loop) post(fn func()) bool {
	l.mu.Lock()

	if l.stopped {
		l.mu.Unlock()

		return false
	}

	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return true
}

func (l *loop) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()

			if l.stopped || len(l.queue) == 0 {
				l.mu.Unlock()

				break
			}

			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
	}
}

// stop drops queued tasks and ends run. It does not wait, so a task may
// call it.
func (l *loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}

	l.stopped = true
	l.queue = nil
	close(l.done)
}

// handle tracks one asynchronous remote call. A superseded handle's
// completion is discarded.
type handle struct {
	superseded atomic.Bool
}
