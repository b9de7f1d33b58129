// Copyright 2024 The go-casper Authors
// This file is part of the go-casper library.
//
// The go-casper library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-casper library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-casper library. If not, see <http://www.gnu.org/licenses/>.

package eth

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// blockImportQueueCap is the bounded FIFO capacity for queued blocks.
const blockImportQueueCap = 1024

// blockTask is one queued (transient_block, source_peer) pair, stamped
// with its arrival time so the importer can later report processing
// latency.
type blockTask struct {
	block    *types.Block
	peerID   string
	received time.Time
}

// blockQueue is the bounded import FIFO. Producers block on put when full
// (back-pressure on a full queue); the importer peeks the front item and
// only pops it once fully handled, so an in-flight block is still visible
// to Knows while it is being validated.
type blockQueue struct {
	mu     sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items  []*blockTask
	closed bool
}

func newBlockQueue() *blockQueue {
	q := &blockQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// put appends t, blocking while the queue is at capacity.
func (q *blockQueue) put(t *blockTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= blockImportQueueCap && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return
	}
	q.items = append(q.items, t)
	q.notEmpty.Signal()
}

// waitFront blocks until the queue is non-empty (or closed) and returns
// the front item without removing it.
func (q *blockQueue) waitFront() *blockTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// waitFrontNonBlocking returns the front item without removing it, or nil
// immediately if the queue is currently empty.
func (q *blockQueue) waitFrontNonBlocking() *blockTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// pop removes the current front item once the importer is done with it.
func (q *blockQueue) pop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
	q.notFull.Signal()
}

// empty reports whether the queue currently holds no items.
func (q *blockQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// knows reports whether hash is present anywhere in the queue, including
// the front item currently being processed.
func (q *blockQueue) knows(hash common.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.items {
		if t.block.Hash() == hash {
			return true
		}
	}
	return false
}

// close releases any blocked producers/consumers permanently.
func (q *blockQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
