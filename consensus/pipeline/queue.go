// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"sync"

	"github.com/grailbio/bioconsensus/consensus"
)

type messageKind int

const (
	chunkMessage messageKind = iota
	resultMessage
	endOfStream
)

// message is what travels on both queues. Exactly one of chunk and result
// is meaningful, as determined by kind.
type message struct {
	kind   messageKind
	chunk  consensus.Chunk
	result consensus.Result
	// worker is the sender of an end-of-stream marker on the result queue.
	worker int
}

// queue is a bounded FIFO whose blocked parties can all be released by
// closing it. Closing does not drain it.
type queue struct {
	ch        chan message
	done      chan struct{}
	closeOnce sync.Once
}

func newQueue(capacity int) *queue {
	return &queue{ch: make(chan message, capacity), done: make(chan struct{})}
}

// push appends m, blocking while the queue is full. It returns false if
// the queue is closed.
func (q *queue) push(m message) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- m:
		return true
	case <-q.done:
		return false
	}
}

// pop removes the oldest message, blocking while the queue is empty. It
// returns false if the queue is closed.
func (q *queue) pop() (message, bool) {
	select {
	case <-q.done:
		return message{}, false
	default:
	}
	select {
	case m := <-q.ch:
		return m, true
	case <-q.done:
		return message{}, false
	}
}

func (q *queue) close() {
	q.closeOnce.Do(func() { close(q.done) })
}
