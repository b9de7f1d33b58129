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
	"github.com/ethereum/go-ethereum/core/types"
)

// isDAOChallenge recognizes the fork-identity challenge shape (spec.md §6):
// a number-mode, non-reverse, single-header query anchored exactly at the
// configured DAO fork block. Only the query's shape is checked; whether the
// peer exchanged other headers first is not tracked.
func isDAOChallenge(dao DAOConfig, hashMode bool, originNumber, amount, skip uint64, reverse bool) bool {
	return !hashMode && !reverse && amount == 1 && skip == 0 &&
		dao.BlockNum != nil && originNumber == dao.BlockNum.Uint64()
}

// answerHeaders resolves a peer's GetBlockHeaders query (component B).
// It honors the fork-identity short-circuit first, then walks the chain
// hash- or number-wise, bounded by the protocol cap and the soft response
// size limit.
func (cs *ChainService) answerHeaders(query *getBlockHeadersData) []*types.Header {
	hashMode := query.Origin.Hash != (common.Hash{})

	if isDAOChallenge(cs.dao, hashMode, query.Origin.Number, query.Amount, query.Skip, query.Reverse) {
		if header := cs.chain.GetHeaderByNumber(cs.dao.BlockNum.Uint64()); header != nil {
			return []*types.Header{header}
		}
		// Chain hasn't reached the fork block yet; fall through to the
		// normal walk, which will correctly report "unknown".
	}

	max := query.Amount
	if max > maxGetBlockHeaders {
		max = maxGetBlockHeaders
	}
	return cs.queryHeaders(hashMode, max, query.Skip, query.Reverse, query.Origin.Hash, query.Origin.Number)
}

// queryHeaders implements the walk described in spec.md §4.B. An unknown
// origin yields an empty sequence; every other stopping condition (genesis,
// underflow, fork-mismatch, byte budget, max count) truncates the sequence
// in place rather than erroring.
func (cs *ChainService) queryHeaders(hashMode bool, max, skip uint64, reverse bool, originHash common.Hash, originNumber uint64) []*types.Header {
	var (
		headers []*types.Header
		bytes   common.StorageSize
		unknown bool
	)
	for !unknown && uint64(len(headers)) < max && bytes < softResponseLimit {
		var origin *types.Header
		if hashMode {
			origin = cs.chain.GetHeaderByHash(originHash)
		} else {
			origin = cs.chain.GetHeaderByNumber(originNumber)
		}
		if origin == nil {
			break
		}
		number := origin.Number.Uint64()
		headers = append(headers, origin)
		bytes += estHeaderRlpSize

		if number == 0 && reverse {
			// Reached genesis; no parent to walk further.
			break
		}

		switch {
		case hashMode && reverse:
			// Hash-based traversal towards genesis: follow prevhash (skip+1) times.
			for i := uint64(0); i < skip+1; i++ {
				if header := cs.chain.GetHeader(originHash, number); header != nil {
					originHash = header.ParentHash
					number--
				} else {
					unknown = true
					break
				}
			}

		case hashMode && !reverse:
			// Hash-based traversal towards the leaf: jump ahead, then verify
			// the skip-back chain from the jump target lands back on origin.
			next := number + skip + 1
			if next <= number {
				// Overflow: an attacker-chosen skip wrapped the counter.
				unknown = true
				break
			}
			header := cs.chain.GetHeaderByNumber(next)
			if header == nil {
				unknown = true
				break
			}
			chain := cs.chain.GetBlockHashesFromHash(header.Hash(), skip+1)
			if uint64(len(chain)) > skip && chain[skip] == originHash {
				originHash = header.Hash()
			} else {
				unknown = true
			}

		case reverse:
			// Number-based traversal towards genesis.
			if originNumber >= skip+1 {
				originNumber -= skip + 1
			} else {
				unknown = true
			}

		default:
			// Number-based traversal towards the leaf.
			originNumber += skip + 1
		}
	}
	return headers
}
