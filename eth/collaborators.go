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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainReader is the read side of the external chain engine. The chain
// engine itself — execution, state root computation, receipts — is out of
// scope; this core only ever reads through this narrow interface.
type ChainReader interface {
	Genesis() *types.Block
	CurrentHeader() *types.Header
	CurrentBlock() *types.Block
	GetHeader(hash common.Hash, number uint64) *types.Header
	GetHeaderByHash(hash common.Hash) *types.Header
	GetHeaderByNumber(number uint64) *types.Header
	GetBlockHashesFromHash(hash common.Hash, max uint64) []common.Hash
	GetBlockHashByNumber(number uint64) (common.Hash, bool)
	HasBlockHash(hash common.Hash) bool
	GetBody(hash common.Hash) *types.Body
	GetTd(hash common.Hash, number uint64) *big.Int

	// StateAt returns the post-execution state committed at header — the
	// "mk_poststate_of_blockhash" collaborator named in spec.md §6, and the
	// snapshot the validator state machine (component H) clones before
	// handing it to the Casper View Adapter (component I).
	StateAt(header *types.Header) (*state.StateDB, error)
}

// ChainWriter is the write side of the chain engine: attempt to extend the
// canonical chain with a fully-validated block. ErrKnownBlock and
// ErrMissingParent communicate the two "drop, don't kill the importer"
// outcomes; any other error is treated as a block-verification failure.
type ChainWriter interface {
	InsertBlock(block *types.Block) error
}

// ExecutionEngine is the out-of-scope "apply-transaction, state root,
// receipts" engine, consumed only through the handful of entry points this
// core actually calls: validating a transaction against a post-state,
// building a head candidate, and checking proof of work.
type ExecutionEngine interface {
	ValidateTransaction(poststate *state.StateDB, tx *types.Transaction) error
	MakeHeadCandidate(parent *types.Header, pending []*types.Transaction, timestamp int64, coinbase common.Address) (*types.Block, *state.StateDB, error)
	CheckPoW(header *types.Header) bool
}

// ReasonTag is the telemetry sub-classification for an invalid
// transaction or block.
type ReasonTag string

const (
	ReasonInvalidNonce        ReasonTag = "InvalidNonce"
	ReasonNotEnoughCash       ReasonTag = "NotEnoughCash"
	ReasonOutOfGasBase        ReasonTag = "OutOfGasBase"
	ReasonOtherTransaction    ReasonTag = "other_transaction_error"
	ReasonOtherBlockError     ReasonTag = "other_block_error"
)

// Telemetry is the sink invalid blocks/transactions are reported to. A
// nil Telemetry is valid and silently discards reports.
type Telemetry interface {
	WarnInvalid(header *types.Header, reason ReasonTag)
}

// PeerBroadcaster fans a block or transaction set out to connected peers,
// excluding the peer the item arrived from (if any). The peer manager
// itself — connection lifecycle, framing — stays external; this is the
// single entry point the chain service needs into it.
type PeerBroadcaster interface {
	BroadcastBlock(block *types.Block, td *big.Int, propagate bool, exclude string)
	BroadcastTransactions(txs types.Transactions, exclude string)
}

// Syncer is the external synchronizer: full chain sync is out of scope,
// but the peer dispatcher (component G) still needs to hand it inbound
// announcements, bodies, and header responses that aren't claimed by the
// DAO challenger.
type Syncer interface {
	Synchronising() bool
	ReceiveStatus(peerID string, head common.Hash, td *big.Int)
	ReceiveNewBlockHashes(peerID string, hashes []common.Hash, numbers []uint64)
	ReceiveBlockHeaders(peerID string, headers []*types.Header)
	ReceiveBlockBodies(peerID string, transactions [][]*types.Transaction, uncles [][]*types.Header)
	ReceiveNewBlock(peerID string, block *types.Block, td *big.Int)
}
