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

package validator

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// casperABIJSON is the finality contract's interface, carried as a JSON
// constant exactly as pyethapp carries `casper_utils.casper_abi` — the
// contract itself (a Vyper source compiled at genesis) is out of scope
// (spec.md §1); this is only the calling convention onto it. Every
// quantity the Vyper contract exposes is `int128`, its only native
// integer width.
const casperABIJSON = `[
	{"name":"current_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"expected_source_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"recommended_source_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"validator_indexes","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"address","name":"addr"}],"stateMutability":"view","type":"function"},
	{"name":"validators__start_dynasty","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"validator_index"}],"stateMutability":"view","type":"function"},
	{"name":"validators__end_dynasty","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"validator_index"}],"stateMutability":"view","type":"function"},
	{"name":"dynasty_in_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"epoch"}],"stateMutability":"view","type":"function"},
	{"name":"dynasty_start_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"dynasty"}],"stateMutability":"view","type":"function"},
	{"name":"withdrawal_delay","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"deposit_scale_factor","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"epoch"}],"stateMutability":"view","type":"function"},
	{"name":"votes__cur_dyn_votes","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"epoch"},{"type":"int128","name":"source_epoch"}],"stateMutability":"view","type":"function"},
	{"name":"votes__prev_dyn_votes","outputs":[{"type":"int128","name":"out"}],"inputs":[{"type":"int128","name":"epoch"},{"type":"int128","name":"source_epoch"}],"stateMutability":"view","type":"function"},
	{"name":"total_curdyn_deposits","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"total_prevdyn_deposits","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"last_finalized_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"last_justified_epoch","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"last_nonvoter_rescale","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"last_voter_rescale","outputs":[{"type":"int128","name":"out"}],"inputs":[],"stateMutability":"view","type":"function"},
	{"name":"deposit","outputs":[],"inputs":[{"type":"address","name":"validation_addr"},{"type":"address","name":"withdrawal_addr"}],"stateMutability":"payable","type":"function"},
	{"name":"logout","outputs":[],"inputs":[{"type":"bytes","name":"logout_msg"}],"stateMutability":"nonpayable","type":"function"},
	{"name":"vote","outputs":[],"inputs":[{"type":"bytes","name":"vote_msg"}],"stateMutability":"nonpayable","type":"function"},
	{"name":"withdraw","outputs":[],"inputs":[{"type":"int128","name":"validator_index"}],"stateMutability":"nonpayable","type":"function"}
]`

// casperABI is parsed once at init, the way go-ethereum's own generated
// bindings parse their embedded ABI constant.
var casperABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(casperABIJSON))
	if err != nil {
		// casperABIJSON is a compile-time constant; a parse failure here
		// is a programmer error, not a runtime condition.
		panic(err)
	}
	casperABI = parsed
}
