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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// CasperView is a thin, read-only projection over the finality contract
// (component I). It always calls through a clone of whatever state
// snapshot it was built over, so repeated calls during one dispatch turn
// see a consistent view even if the live chain head advances underneath.
//
// Every accessor returns (value, ok); ok is false on any call failure —
// decode error, reverted call, missing contract — and the state machine
// treats that exactly like an "unknown" answer (spec.md §4.I: "Call
// failures surface as unknown ... never as crashes").
type CasperView struct {
	caller ContractCaller
	state  *state.StateDB
	addr   common.Address
}

func newCasperView(caller ContractCaller, head *state.StateDB, addr common.Address) *CasperView {
	return &CasperView{caller: caller, state: head.Copy(), addr: addr}
}

func (c *CasperView) call(method string, args ...interface{}) ([]interface{}, error) {
	data, err := casperABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.caller.Call(c.state, c.addr, data)
	if err != nil {
		return nil, err
	}
	return casperABI.Unpack(method, out)
}

func (c *CasperView) epochCall(method string, args ...interface{}) (uint64, bool) {
	out, err := c.call(method, args...)
	if err != nil || len(out) == 0 {
		log.Debug("casper view call failed", "method", method, "err", err)
		return 0, false
	}
	v, ok := out[0].(*big.Int)
	if !ok || v.Sign() < 0 {
		return 0, false
	}
	return v.Uint64(), true
}

func (c *CasperView) weiCall(method string, args ...interface{}) (*uint256.Int, bool) {
	out, err := c.call(method, args...)
	if err != nil || len(out) == 0 {
		log.Debug("casper view call failed", "method", method, "err", err)
		return nil, false
	}
	v, ok := out[0].(*big.Int)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, false
	}
	return u, true
}

func (c *CasperView) CurrentEpoch() (uint64, bool)           { return c.epochCall("current_epoch") }
func (c *CasperView) ExpectedSourceEpoch() (uint64, bool)    { return c.epochCall("expected_source_epoch") }
func (c *CasperView) RecommendedSourceEpoch() (uint64, bool) { return c.epochCall("recommended_source_epoch") }
func (c *CasperView) WithdrawalDelay() (uint64, bool)        { return c.epochCall("withdrawal_delay") }
func (c *CasperView) LastFinalizedEpoch() (uint64, bool)     { return c.epochCall("last_finalized_epoch") }
func (c *CasperView) LastJustifiedEpoch() (uint64, bool)     { return c.epochCall("last_justified_epoch") }

func (c *CasperView) DynastyInEpoch(epoch uint64) (uint64, bool) {
	return c.epochCall("dynasty_in_epoch", new(big.Int).SetUint64(epoch))
}

func (c *CasperView) DynastyStartEpoch(dynasty uint64) (uint64, bool) {
	return c.epochCall("dynasty_start_epoch", new(big.Int).SetUint64(dynasty))
}

func (c *CasperView) DepositScaleFactor(epoch uint64) (*uint256.Int, bool) {
	return c.weiCall("deposit_scale_factor", new(big.Int).SetUint64(epoch))
}

func (c *CasperView) TotalCurDynDeposits() (*uint256.Int, bool) {
	return c.weiCall("total_curdyn_deposits")
}

func (c *CasperView) TotalPrevDynDeposits() (*uint256.Int, bool) {
	return c.weiCall("total_prevdyn_deposits")
}

func (c *CasperView) CurDynVotes(epoch, source uint64) (*uint256.Int, bool) {
	return c.weiCall("votes__cur_dyn_votes", new(big.Int).SetUint64(epoch), new(big.Int).SetUint64(source))
}

func (c *CasperView) PrevDynVotes(epoch, source uint64) (*uint256.Int, bool) {
	return c.weiCall("votes__prev_dyn_votes", new(big.Int).SetUint64(epoch), new(big.Int).SetUint64(source))
}

func (c *CasperView) LastNonvoterRescale() (*uint256.Int, bool) {
	return c.weiCall("last_nonvoter_rescale")
}

func (c *CasperView) LastVoterRescale() (*uint256.Int, bool) {
	return c.weiCall("last_voter_rescale")
}

// ValidatorIndex resolves addr's validator index. 0 is the contract's own
// "not a validator" sentinel (spec.md §4.H "validator_indexes(A) == 0").
func (c *CasperView) ValidatorIndex(addr common.Address) (uint64, bool) {
	return c.epochCall("validator_indexes", addr)
}

func (c *CasperView) StartDynasty(index uint64) (uint64, bool) {
	return c.epochCall("validators__start_dynasty", new(big.Int).SetUint64(index))
}

func (c *CasperView) EndDynasty(index uint64) (uint64, bool) {
	return c.epochCall("validators__end_dynasty", new(big.Int).SetUint64(index))
}

// LoggedIn implements spec.md §4.H's "logged in" predicate: given the
// validator's [start, end) dynasty range and the dynasty active at
// targetEpoch, the validator is logged in if it is active in either the
// current dynasty or the one immediately prior (inclusive lower bound,
// exclusive upper bound, on both).
func (c *CasperView) LoggedIn(index, targetEpoch uint64) (bool, bool) {
	start, ok := c.StartDynasty(index)
	if !ok {
		return false, false
	}
	end, ok := c.EndDynasty(index)
	if !ok {
		return false, false
	}
	current, ok := c.DynastyInEpoch(targetEpoch)
	if !ok {
		return false, false
	}
	inCurrent := start <= current && current < end
	inPast := current > 0 && start <= current-1 && current-1 < end
	return inCurrent || inPast, true
}

// LogStatus emits the CASPER STATUS summary line (SPEC_FULL.md feature
// #3, restored from pyethapp's log_casper_info): current/previous dynasty
// voted and deposited totals in ETH, last finalized/justified epoch, and
// the deposit rescale factors. Without the current epoch nothing is
// logged; any other unavailable field is logged as zero rather than
// aborting the whole line — this is a diagnostic, not a control input.
func (c *CasperView) LogStatus() {
	epoch, ok := c.CurrentEpoch()
	if !ok {
		log.Debug("casper status unavailable")
		return
	}
	expectedSource, _ := c.ExpectedSourceEpoch()
	curDeposits, _ := c.TotalCurDynDeposits()
	prevDeposits, _ := c.TotalPrevDynDeposits()
	scale, _ := c.DepositScaleFactor(epoch)
	curVotesRaw, _ := c.CurDynVotes(epoch, expectedSource)
	prevVotesRaw, _ := c.PrevDynVotes(epoch, expectedSource)
	lastFinalized, _ := c.LastFinalizedEpoch()
	lastJustified, _ := c.LastJustifiedEpoch()
	nonvoterRescale, _ := c.LastNonvoterRescale()
	voterRescale, _ := c.LastVoterRescale()

	curVotes := scaledWei(curVotesRaw, scale)
	prevVotes := scaledWei(prevVotesRaw, scale)

	log.Info("casper status",
		"epoch", epoch,
		"curDynVotedETH", weiToEth(curVotes),
		"curDynDepositsETH", weiToEth(curDeposits),
		"prevDynVotedETH", weiToEth(prevVotes),
		"prevDynDepositsETH", weiToEth(prevDeposits),
		"lastFinalized", lastFinalized,
		"lastJustified", lastJustified,
		"expectedSource", expectedSource,
		"nonvoterRescale", rescaleFloat(nonvoterRescale),
		"voterRescale", rescaleFloat(voterRescale),
	)
}

func weiToEth(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v.ToBig())
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}

// scaledWei applies the contract's per-epoch deposit_scale_factor (itself
// fixed-point, scaled by 1e18) to a raw vote-weight quantity.
func scaledWei(raw, scale *uint256.Int) *uint256.Int {
	if raw == nil || scale == nil {
		return nil
	}
	product := new(big.Int).Mul(raw.ToBig(), scale.ToBig())
	product.Quo(product, big.NewInt(1e18))
	out, overflow := uint256.FromBig(product)
	if overflow {
		return nil
	}
	return out
}

func rescaleFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v.ToBig())
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}
