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
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
)

// headCandidate pairs a proposal block with the post-state it was built
// over — the input both local block proposing and transaction admission
// validate against (spec.md §3 "head-candidate cache").
type headCandidate struct {
	block     *types.Block
	postState *state.StateDB
}

// headCandidateCache is rebuilt lazily: setting dirty is cheap and
// frequent (every pool or head mutation), while the rebuild itself invokes
// the external block builder and is deferred until something actually
// reads the candidate. There is no TTL beyond the dirty flag.
type headCandidateCache struct {
	mu       sync.Mutex
	dirty    bool
	cache    *headCandidate
	engine   ExecutionEngine
	coinbase common.Address
}

func newHeadCandidateCache(engine ExecutionEngine, coinbase common.Address) *headCandidateCache {
	return &headCandidateCache{engine: engine, coinbase: coinbase, dirty: true}
}

// markDirty invalidates the cache; the next Get rebuilds it.
func (h *headCandidateCache) markDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

// Get returns the current head candidate, rebuilding it against a
// deep-copied snapshot of pool if the cache is dirty. parent is the
// current chain head; pool is mutated by the builder, which is why a copy
// is handed over rather than the live pool.
func (h *headCandidateCache) Get(parent *types.Header, pool []*types.Transaction) (*types.Block, *state.StateDB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cache != nil {
		return h.cache.block, h.cache.postState, nil
	}

	poolCopy := make([]*types.Transaction, len(pool))
	copy(poolCopy, pool)

	block, post, err := h.engine.MakeHeadCandidate(parent, poolCopy, time.Now().Unix()-1, h.coinbase)
	if err != nil {
		return nil, nil, err
	}
	h.cache = &headCandidate{block: block, postState: post}
	h.dirty = false
	return block, post, nil
}
