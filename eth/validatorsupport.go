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
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
)

// This file is the narrow seam the validator service (component H) is
// wired through: it never reaches into ChainService internals directly,
// only these few read-only accessors plus AddTransaction.

// Synchronising reports whether the synchronizer believes local state is
// still catching up. The validator state machine skips its per-head
// dispatch entirely while this is true (spec.md §4.H "unless syncing").
func (cs *ChainService) Synchronising() bool {
	return cs.syncer.Synchronising()
}

// GetHeaderByNumber resolves the header at a canonical height, used by the
// vote procedure to compute a target epoch's block hash (spec.md §4.H
// step 5).
func (cs *ChainService) GetHeaderByNumber(number uint64) *types.Header {
	return cs.chain.GetHeaderByNumber(number)
}

// HeadPostState returns the post-execution state committed at the current
// chain head, the input the Casper View Adapter clones (spec.md §4.H
// "snapshot a read-only view of the finality contract from the current
// post-state").
func (cs *ChainService) HeadPostState() (*state.StateDB, error) {
	return cs.chain.StateAt(cs.chain.CurrentHeader())
}

// CurrentHeader exposes the chain head header, used by the validator
// service to derive the current block number for epoch arithmetic.
func (cs *ChainService) CurrentHeader() *types.Header {
	return cs.chain.CurrentHeader()
}

// HasPendingFrom reports whether addr already has an unmined transaction
// sitting in the pool, backed by the pool's mapset-based sender
// bookkeeping. The validator service consults this before re-broadcasting
// a lifecycle transaction (valcode, deposit, logout, withdraw) so a slow
// block doesn't produce a duplicate.
func (cs *ChainService) HasPendingFrom(addr common.Address) bool {
	return cs.pool.HasSender(addr)
}

// VoteAwareSigner wraps a standard transaction signer so that an unsigned
// transaction — v, r and s all zero, the shape the validator service uses
// to carry a finality-gadget vote payload (spec.md §4.D, §4.H step 8) —
// recovers to the sentinel all-0xFF sender address instead of failing
// signature recovery. Every other transaction is delegated to inner
// unchanged.
func VoteAwareSigner(inner func(*types.Transaction) (common.Address, error)) func(*types.Transaction) (common.Address, error) {
	return func(tx *types.Transaction) (common.Address, error) {
		v, r, s := tx.RawSignatureValues()
		if v.Sign() == 0 && r.Sign() == 0 && s.Sign() == 0 {
			return voteSentinelSender, nil
		}
		return inner(tx)
	}
}
