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
	"errors"
	"fmt"
)

// Sentinel errors the chain writer may return; the import pipeline (C)
// treats both as a reason to drop the block and keep draining, never as a
// reason to stop.
var (
	ErrKnownBlock    = errors.New("block already known")
	ErrMissingParent = errors.New("parent unknown")
)

// Handshake-level failures (spec.md §6 "disconnect reason").
var (
	errResp = func(code errCode, format string, v ...interface{}) error {
		return fmt.Errorf("%v - %s", code, fmt.Sprintf(format, v...))
	}
)

// errIncompatibleConfig describes a remote whose protocol version does not
// overlap with what this node serves. Nothing returns it: readStatus reports
// that case as p2p.DiscUselessPeer.
var errIncompatibleConfig = errors.New("incompatible configuration")

// errDAOChallengeTimeout marks a fork-identity challenge that never
// received an answer within the allotted window.
var errDAOChallengeTimeout = errors.New("DAO fork-check timed out")

// errDAOChallengeMismatch marks a fork-identity challenge whose answer
// disagreed with the locally known fork block.
var errDAOChallengeMismatch = errors.New("DAO fork-check mismatch")

// errTxPoolSyncing rejects a non-local transaction admitted while the
// synchronizer believes local state is stale.
var errTxPoolSyncing = errors.New("node syncing, transaction pool state stale")

// Execution-engine validation failure sentinels the admission path
// classifies into telemetry reason tags (spec.md §6). The engine itself is
// an external collaborator; these are the only failure shapes this core
// distinguishes by name.
var (
	errInvalidNonce  = errors.New("invalid transaction nonce")
	errNotEnoughCash = errors.New("insufficient balance for transaction")
	errOutOfGasBase  = errors.New("intrinsic gas exceeds gas limit")
)
