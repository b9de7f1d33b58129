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
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

func blockWithNumber(n int64) *types.Block {
	return types.NewBlockWithHeader(&types.Header{Number: big.NewInt(n)})
}

func TestBlockQueuePutWaitFrontPop(t *testing.T) {
	q := newBlockQueue()
	b := blockWithNumber(1)
	q.put(&blockTask{block: b})

	task := q.waitFront()
	if task == nil || task.block.Hash() != b.Hash() {
		t.Fatalf("waitFront did not return the enqueued block")
	}
	if !q.knows(b.Hash()) {
		t.Fatalf("an unpopped front item must still be visible to knows")
	}
	q.pop()
	if q.knows(b.Hash()) {
		t.Fatalf("a popped item must no longer be visible to knows")
	}
	if !q.empty() {
		t.Fatalf("queue should be empty after popping its only item")
	}
}

func TestBlockQueueWaitFrontNonBlockingOnEmpty(t *testing.T) {
	q := newBlockQueue()
	if task := q.waitFrontNonBlocking(); task != nil {
		t.Fatalf("expected nil from an empty queue, got %v", task)
	}
}

func TestBlockQueuePreservesFIFOOrder(t *testing.T) {
	q := newBlockQueue()
	for i := int64(0); i < 5; i++ {
		q.put(&blockTask{block: blockWithNumber(i)})
	}
	for i := int64(0); i < 5; i++ {
		task := q.waitFrontNonBlocking()
		if task == nil {
			t.Fatalf("expected item %d, got nil", i)
		}
		if task.block.NumberU64() != uint64(i) {
			t.Fatalf("expected block %d at head, got %d", i, task.block.NumberU64())
		}
		q.pop()
	}
}

func TestBlockQueuePutBlocksAtCapacity(t *testing.T) {
	q := newBlockQueue()
	for i := 0; i < blockImportQueueCap; i++ {
		q.put(&blockTask{block: blockWithNumber(int64(i))})
	}

	done := make(chan struct{})
	go func() {
		q.put(&blockTask{block: blockWithNumber(int64(blockImportQueueCap))})
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("put must block while the queue is at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	q.pop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("put should unblock once a slot frees up")
	}
}

func TestBlockQueueCloseUnblocksWaiters(t *testing.T) {
	q := newBlockQueue()
	done := make(chan *blockTask)
	go func() {
		done <- q.waitFront()
	}()

	// Give the goroutine a chance to start waiting before closing.
	time.Sleep(20 * time.Millisecond)
	q.close()

	select {
	case task := <-done:
		if task != nil {
			t.Fatalf("expected nil from waitFront on a closed empty queue")
		}
	case <-time.After(time.Second):
		t.Fatalf("close must unblock a waiting waitFront call")
	}
}
