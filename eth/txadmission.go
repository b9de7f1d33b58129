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
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// voteSelector is the 4-byte ABI selector of the finality contract's vote
// entry point. A pending transaction carrying it past the min-gasprice
// floor is how the validator service's zero-gas vote transactions reach
// the pool (spec.md §4.D).
var voteSelector = [4]byte{0xe9, 0xdc, 0x06, 0x14}

// voteSentinelSender is the all-0xFF address the validator service signs
// vote transactions from: votes are unsigned-by-design (any honest miner
// includes them for free), and this sentinel marks that origin so
// admission can recognize and admit them below the gas-price floor.
var voteSentinelSender = common.Address{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

func isVoteTransaction(tx *types.Transaction, casperAddr common.Address, sender common.Address) bool {
	to := tx.To()
	if to == nil || *to != casperAddr {
		return false
	}
	if sender != voteSentinelSender {
		return false
	}
	data := tx.Data()
	return len(data) >= 4 && bytes.Equal(data[:4], voteSelector[:])
}

// admitTransaction implements component D. origin is the empty string for
// locally minted transactions (the validator service, or a local RPC
// call); anything else names the relaying peer. The duplicate-filter drop
// always applies, even for force callers; force only waives the
// min-gasprice floor at the pool-insertion step, for the validator
// service's own signed lifecycle transactions.
func (cs *ChainService) admitTransaction(tx *types.Transaction, origin string, forceBroadcast, force bool) error {
	if cs.syncer.Synchronising() {
		if forceBroadcast && origin == "" {
			cs.broadcaster.BroadcastTransactions(types.Transactions{tx}, origin)
			return nil
		}
		return errTxPoolSyncing
	}

	if !cs.dedup.observe(tx.Hash()) {
		return ErrKnownBlock
	}

	parent := cs.chain.CurrentHeader()
	_, poststate, err := cs.headCandidate.Get(parent, cs.pool.list())
	if err != nil {
		return err
	}
	sender, err := cs.signer(tx)
	if err != nil {
		cs.telemetry.WarnInvalid(parent, ReasonInvalidNonce)
		return err
	}
	if err := cs.engine.ValidateTransaction(poststate, tx); err != nil {
		cs.telemetry.WarnInvalid(parent, classifyTxError(err))
		return err
	}

	cs.broadcaster.BroadcastTransactions(types.Transactions{tx}, origin)

	if origin != "" && !cs.mining && !cs.validatorActive {
		return nil
	}

	vote := isVoteTransaction(tx, cs.casperAddr, sender)
	if tx.GasPrice().Cmp(cs.minGasPrice) < 0 && !vote && !force {
		return nil
	}
	if err := cs.pool.add(tx); err != nil {
		return err
	}
	cs.headCandidate.markDirty()
	log.Trace("transaction admitted", "hash", tx.Hash(), "vote", vote)
	return nil
}

// classifyTxError maps an execution-engine validation failure to the
// telemetry reason tag set named in spec.md §6. The engine is an external
// collaborator; this core only ever sees its sentinel errors, never its
// internals, so the default bucket is deliberately broad.
func classifyTxError(err error) ReasonTag {
	switch err {
	case errInvalidNonce:
		return ReasonInvalidNonce
	case errNotEnoughCash:
		return ReasonNotEnoughCash
	case errOutOfGasBase:
		return ReasonOutOfGasBase
	default:
		return ReasonOtherTransaction
	}
}
