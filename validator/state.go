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

// State is one of the eight variants of the finality-gadget participation
// lifecycle (spec.md §3 "Validator state"). It replaces the source's
// scattered `if self.current_state == ...` checks with a plain
// comparable value and a dispatch table keyed on it (spec.md §9).
type State int

const (
	// Uninitiated is the entry state: no on-chain validator record is
	// believed to exist yet.
	Uninitiated State = iota
	// WaitingForValcode is set once a validation-code deployment
	// transaction has been broadcast; its deterministic contract address
	// is already known.
	WaitingForValcode
	// WaitingForLogin is set once the deposit transaction has been
	// broadcast; the service is waiting for inclusion and dynasty
	// activation.
	WaitingForLogin
	// Voting is the steady state: one vote broadcast per epoch.
	Voting
	// WaitingForLogOut is set once should_logout directs the service past
	// Voting; it keeps voting until the contract reports the dynasty has
	// ended.
	WaitingForLogOut
	// WaitingForWithdrawable is set once logged out; waiting for
	// end_epoch + withdrawal_delay.
	WaitingForWithdrawable
	// WaitingForWithdrawn is set once the withdraw transaction has been
	// broadcast; waiting for the contract to delete the validator record.
	WaitingForWithdrawn
	// LoggedOut is the terminal/idle state. Re-entry to
	// WaitingForValcode is possible if deposit_size is reconfigured.
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Uninitiated:
		return "uninitiated"
	case WaitingForValcode:
		return "waiting_for_valcode"
	case WaitingForLogin:
		return "waiting_for_login"
	case Voting:
		return "voting"
	case WaitingForLogOut:
		return "waiting_for_log_out"
	case WaitingForWithdrawable:
		return "waiting_for_withdrawable"
	case WaitingForWithdrawn:
		return "waiting_for_withdrawn"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}
