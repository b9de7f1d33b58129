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

// Package validator implements the validator service (component H): a
// deterministic state machine that drives one local validator identity
// through the finality gadget's deposit/vote/logout/withdraw lifecycle,
// plus the read-only Casper View Adapter (component I) it observes the
// contract through.
package validator

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/hybridcasper/go-casper/eth"
)

// ChainService is the narrow slice of the Chain Service (components C/G)
// the validator state machine is driven by: the post-state snapshot every
// dispatch turn observes the contract through, head-relative lookups for
// epoch arithmetic, and the one path locally minted transactions take
// back into the gossip layer. *eth.ChainService satisfies this directly.
type ChainService interface {
	Synchronising() bool
	CurrentHeader() *types.Header
	GetHeaderByNumber(number uint64) *types.Header
	HeadPostState() (*state.StateDB, error)
	SubscribeNewHead(ch chan<- eth.NewHeadEvent) event.Subscription
	AddTransaction(tx *types.Transaction, origin string, forceBroadcast, force bool) error
	HasPendingFrom(addr common.Address) bool
}

// ContractCaller executes a read-only call against EVM state — the one
// execution-engine entry point (spec.md §1 "out of scope: ... EVM
// execution engine") the Casper View Adapter needs. Because view
// functions never mutate state, CasperView always hands it a clone
// (state.Copy()) of whatever snapshot it was built over, never live head
// state.
type ContractCaller interface {
	Call(db *state.StateDB, to common.Address, data []byte) ([]byte, error)
	// CodeAt reports whether addr carries deployed code in db, the way the
	// service confirms its valcode deployment has landed before it trusts
	// the deterministic address it precomputed (spec.md §4.H).
	CodeAt(db *state.StateDB, addr common.Address) []byte
}

// Account is the local keystore's answer to "find(address)" (spec.md §6):
// a fully signing account plus, for the finality-gadget's own vote/logout
// message signature scheme (distinct from normal transaction signing),
// the raw private key casper_utils.mk_vote signs with directly.
type Account struct {
	accounts.Account
	SignTx     func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	PrivateKey *ecdsa.PrivateKey
}

// AccountFinder is the local keystore collaborator (spec.md §6 "Accounts:
// find(address) -> account with sign_tx and private key").
type AccountFinder interface {
	Find(address common.Address) (Account, error)
}
