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

	"github.com/ethereum/go-ethereum/common"
)

func TestDupFilterObserveUnknownOnce(t *testing.T) {
	f := newDupFilter()
	id := common.HexToHash("0x01")

	if !f.observe(id) {
		t.Fatalf("first observe of a fresh id must report unknown (true)")
	}
	if f.observe(id) {
		t.Fatalf("second observe of the same id must report already-known (false)")
	}
}

func TestDupFilterEvictsLRUPastCapacity(t *testing.T) {
	f := newDupFilter()

	for i := 0; i < dedupFilterSize; i++ {
		id := common.BigToHash(new(big.Int).SetInt64(int64(i)))
		if !f.observe(id) {
			t.Fatalf("observe(%d) unexpectedly reported known", i)
		}
	}

	// id 0 was least-recently-used; one more insertion should evict it.
	overflow := common.BigToHash(new(big.Int).SetInt64(int64(dedupFilterSize)))
	if !f.observe(overflow) {
		t.Fatalf("observe of a genuinely new id must report unknown")
	}

	evicted := common.BigToHash(new(big.Int).SetInt64(0))
	if !f.observe(evicted) {
		t.Fatalf("expected id 0 to have been evicted and re-observed as unknown")
	}
}

func TestDupFilterHitPromotesToMRU(t *testing.T) {
	f := newDupFilter()
	first := common.HexToHash("0x01")
	f.observe(first)

	// Touch `first` repeatedly so it is never the least-recently-used
	// entry, then fill the rest of the window with fresh ids. `first`
	// must survive since every touch promotes it.
	for i := 0; i < dedupFilterSize; i++ {
		f.observe(first)
		id := common.BigToHash(new(big.Int).SetInt64(int64(i + 100)))
		f.observe(id)
	}

	if f.observe(first) {
		t.Fatalf("repeatedly touched id should never be evicted")
	}
}
