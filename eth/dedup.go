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
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru"
)

// dedupFilterSize is the window the duplicate filter remembers. It is a
// re-gossip suppression heuristic, not a correctness primitive: a false
// negative here just means we broadcast something a peer already has.
const dedupFilterSize = 128

// dupFilter is a bounded recency set used to avoid re-broadcasting blocks
// and transactions the chain service has already announced. An id that
// is observed again is promoted to most-recently-used instead of being
// re-inserted; once the set is full, the least-recently-used id is
// evicted to make room for a genuinely new one.
type dupFilter struct {
	cache *lru.Cache
}

func newDupFilter() *dupFilter {
	cache, err := lru.New(dedupFilterSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never happens
		// for our constant capacity.
		panic(err)
	}
	return &dupFilter{cache: cache}
}

// observe records id as seen and reports whether it was previously unknown.
// A hit promotes id to the most-recently-used slot; a miss may evict the
// least-recently-used id once the filter is at capacity.
func (f *dupFilter) observe(id common.Hash) bool {
	if _, seen := f.cache.Get(id); seen {
		return false
	}
	f.cache.Add(id, struct{}{})
	return true
}
