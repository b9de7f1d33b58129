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
	"math/big"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// daoChallengeTimeout bounds how long a peer is given to answer the
// fork-identity challenge before it is dropped (spec.md §4.F).
const daoChallengeTimeout = 8 * time.Second

// DAOConfig carries the fork-identity challenge parameters: the block
// number the challenge is anchored at and the locally expected header hash
// at that height, used for the TD fast-path below.
type DAOConfig struct {
	BlockNum   *big.Int
	BlockHash  common.Hash
	BlockExtra []byte
}

// pendingChallenge is one peer's outstanding fork-identity challenge: the
// drop timer and the callback to run once it is accepted (spec.md §4.F:
// "release the stored (head_hash, total_difficulty) to the synchronizer
// and send the local pending-transaction set to that peer").
type pendingChallenge struct {
	timer    *time.Timer
	onAccept func()
}

// daoChallenger tracks peers with an outstanding fork-identity challenge
// and the timer that will drop them if no answer (or an acceptable
// TD-based short-circuit) arrives in time.
type daoChallenger struct {
	mu          sync.Mutex
	pending     map[string]*pendingChallenge
	pendingIDs  mapset.Set[string] // mirrors pending's keys for O(1) membership views
}

func newDAOChallenger() *daoChallenger {
	return &daoChallenger{
		pending:    make(map[string]*pendingChallenge),
		pendingIDs: mapset.NewThreadUnsafeSet[string](),
	}
}

// Peers returns the ids of peers with an outstanding fork-identity
// challenge, the "peers currently mid-challenge" view other subsystems
// (e.g. peer-count telemetry) can consult without touching the timer map.
func (d *daoChallenger) Peers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingIDs.ToSlice()
}

// start issues a GetBlockHeaders challenge to p and arms the drop timer.
// dropFn is called with p's id if the timer fires before an answer
// arrives; onAccept runs exactly once, the moment the challenge is
// accepted by any path (matching reply or TD fast-path).
func (d *daoChallenger) start(p *Peer, dao DAOConfig, dropFn func(id string), onAccept func()) error {
	if dao.BlockNum == nil {
		onAccept()
		return nil
	}
	if err := p.RequestHeadersByNumber(dao.BlockNum.Uint64(), 1, 0, false); err != nil {
		return err
	}
	id := p.ID()
	entry := &pendingChallenge{onAccept: onAccept}
	entry.timer = time.AfterFunc(daoChallengeTimeout, func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.pendingIDs.Remove(id)
		d.mu.Unlock()
		dropFn(id)
	})
	d.mu.Lock()
	d.pending[id] = entry
	d.pendingIDs.Add(id)
	d.mu.Unlock()
	return nil
}

// isPending reports whether id has an outstanding challenge.
func (d *daoChallenger) isPending(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	return ok
}

// answer resolves id's outstanding challenge against a BlockHeaders reply.
// An empty reply is accepted outright (spec.md §4.F: the peer may simply be
// pre-fork and unaware of the block). A non-empty reply must match the
// locally known fork header hash and extra-data exactly.
//
// The TD fast-path is separate: see fastAnswerOnTD, which the NewBlock
// handler calls to accept a still-pending peer early, without any reply,
// when its claimed total difficulty is below the local TD at the fork block.
func (d *daoChallenger) answer(id string, headers []*types.Header, dao DAOConfig) error {
	d.mu.Lock()
	entry, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
		d.pendingIDs.Remove(id)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}
	entry.timer.Stop()

	if len(headers) == 0 {
		entry.onAccept()
		return nil
	}
	if len(headers) != 1 {
		return errDAOChallengeMismatch
	}
	header := headers[0]
	if header.Hash() != dao.BlockHash || !bytes.Equal(header.Extra, dao.BlockExtra) {
		return errDAOChallengeMismatch
	}
	entry.onAccept()
	return nil
}

// fastAnswerOnTD implements the TD short-circuit: if the peer's
// self-reported total difficulty is still below the locally known TD at
// the fork block, it cannot yet have the fork header and the challenge can
// be dropped without waiting for (or requiring) a reply at all.
func (d *daoChallenger) fastAnswerOnTD(id string, peerTD *big.Int, localForkTD *big.Int) {
	if localForkTD == nil || peerTD.Cmp(localForkTD) >= 0 {
		return
	}
	d.mu.Lock()
	entry, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
		d.pendingIDs.Remove(id)
	}
	d.mu.Unlock()
	if ok {
		entry.timer.Stop()
		log.Trace("DAO fork-check short-circuited on TD", "peer", id)
		entry.onAccept()
	}
}
