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

import "sync"

// voteMemory is the local record of every vote message this validator has
// ever sent plus the two monotone epoch counters (spec.md §3 "Vote
// memory"). This is the slashing-avoidance state: it must never be
// re-derived from on-chain state alone, since the contract only knows
// about votes that were actually included.
//
// TODO(spec.md §9): this is process memory only. A restart loses votes
// and both counters, which could let a later run emit a vote violating
// NO_SURROUND against a vote the contract already has on file. The
// source has the same gap; fixing it needs a persistent store behind
// this type, which is explicitly flagged here rather than silently
// patched over.
type voteMemory struct {
	mu                sync.Mutex
	votes             map[uint64]voteRecord
	latestTargetEpoch int64
	latestSourceEpoch int64
}

type voteRecord struct {
	targetEpoch uint64
	sourceEpoch uint64
}

func newVoteMemory() *voteMemory {
	return &voteMemory{
		votes:             make(map[uint64]voteRecord),
		latestTargetEpoch: -1,
		latestSourceEpoch: -1,
	}
}

// hasVoted implements NO_DBL_VOTE: true iff a vote for epoch was already
// recorded.
func (v *voteMemory) hasVoted(epoch uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.votes[epoch]
	return ok
}

// surrounds implements NO_SURROUND: it reports true when the target or
// source epoch is below the highest target or source epoch recorded so
// far, which the vote procedure refuses.
func (v *voteMemory) surrounds(targetEpoch, sourceEpoch uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return int64(targetEpoch) < v.latestTargetEpoch || int64(sourceEpoch) < v.latestSourceEpoch
}

// record stores a newly emitted vote and advances both counters. Callers
// must have already passed hasVoted and surrounds for this (targetEpoch,
// sourceEpoch) pair.
func (v *voteMemory) record(epoch, targetEpoch, sourceEpoch uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.votes[epoch] = voteRecord{targetEpoch: targetEpoch, sourceEpoch: sourceEpoch}
	if int64(targetEpoch) > v.latestTargetEpoch {
		v.latestTargetEpoch = int64(targetEpoch)
	}
	if int64(sourceEpoch) > v.latestSourceEpoch {
		v.latestSourceEpoch = int64(sourceEpoch)
	}
}
