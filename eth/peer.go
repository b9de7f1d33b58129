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
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/p2p"
)

// handshakeTimeout bounds how long the Status exchange is allowed to take
// before the connection is torn down as unresponsive.
const handshakeTimeout = 5 * time.Second

// Peer wraps a devp2p connection with the eth sub-protocol state this
// core needs: the negotiated version and the peer's last-announced head and
// total difficulty. A pending DAO fork-identity challenge and its drop
// timer are tracked by the daoChallenger, not here.
type Peer struct {
	*p2p.Peer
	rw        p2p.MsgReadWriter
	version   int
	networkID uint64

	mu   sync.RWMutex
	head common.Hash
	td   *big.Int

	forkDrop *time.Timer // not assigned; the daoChallenger holds the challenge timer
}

// newPeer wraps an inbound devp2p session for the eth sub-protocol.
func newPeer(version int, networkID uint64, p *p2p.Peer, rw p2p.MsgReadWriter) *Peer {
	return &Peer{
		Peer:      p,
		rw:        rw,
		version:   version,
		networkID: networkID,
		td:        new(big.Int),
	}
}

// ID returns the stable identifier used to key peer-scoped state (the DAO
// challenge map, the peer set).
func (p *Peer) ID() string {
	return p.Peer.ID().String()
}

// Head returns the peer's last-known head hash and total difficulty.
func (p *Peer) Head() (hash common.Hash, td *big.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head, new(big.Int).Set(p.td)
}

// SetHead updates the peer's last-known head hash and total difficulty.
func (p *Peer) SetHead(hash common.Hash, td *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head, p.td = hash, new(big.Int).Set(td)
}

// Handshake executes the eth Status exchange. It sends our own status and
// waits for the peer's in parallel, then validates network ID, genesis,
// and protocol version agreement.
func (p *Peer) Handshake(networkID uint64, td *big.Int, head, genesis common.Hash) error {
	errc := make(chan error, 2)
	var status statusData

	go func() {
		errc <- p2p.Send(p.rw, StatusMsg, &statusData{
			ProtocolVersion: uint32(p.version),
			NetworkID:       networkID,
			TD:              td,
			Head:            head,
			Genesis:         genesis,
		})
	}()
	go func() {
		errc <- p.readStatus(&status, genesis, networkID)
	}()

	timeout := time.NewTimer(handshakeTimeout)
	defer timeout.Stop()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errc:
			if err != nil {
				return err
			}
		case <-timeout.C:
			return p2p.DiscReadTimeout
		}
	}
	p.SetHead(status.Head, status.TD)
	return nil
}

func (p *Peer) readStatus(status *statusData, genesis common.Hash, networkID uint64) error {
	msg, err := p.rw.ReadMsg()
	if err != nil {
		return err
	}
	if msg.Code != StatusMsg {
		return errResp(ErrNoStatusMsg, "first msg has code %x (!= %x)", msg.Code, StatusMsg)
	}
	if msg.Size > ProtocolMaxMsgSize {
		return errResp(ErrMsgTooLarge, "%v > %v", msg.Size, ProtocolMaxMsgSize)
	}
	if err := msg.Decode(status); err != nil {
		return errResp(ErrDecode, "msg %v: %v", msg, err)
	}
	if status.Genesis != genesis {
		return errResp(ErrGenesisMismatch, "%x (!= %x)", status.Genesis, genesis)
	}
	if status.NetworkID != networkID {
		return errResp(ErrNetworkIDMismatch, "%d (!= %d)", status.NetworkID, networkID)
	}
	if int(status.ProtocolVersion) != p.version {
		// No overlapping protocol version: this is a useless peer, not a
		// malformed or misconfigured one, so it gets the dedicated p2p
		// disconnect reason rather than the generic errResp every other
		// handshake mismatch above returns.
		p.Peer.Disconnect(p2p.DiscUselessPeer)
		return p2p.DiscUselessPeer
	}
	return nil
}

// RequestHeadersByNumber sends a GetBlockHeaders query anchored at a block
// number — the only form the DAO challenger (component F) ever issues.
func (p *Peer) RequestHeadersByNumber(number uint64, amount int, skip int, reverse bool) error {
	return p2p.Send(p.rw, GetBlockHeadersMsg, &getBlockHeadersData{
		Origin:  hashOrNumber{Number: number},
		Amount:  uint64(amount),
		Skip:    uint64(skip),
		Reverse: reverse,
	})
}

// SendBlockHeaders answers a GetBlockHeaders query.
func (p *Peer) SendBlockHeaders(headers []*types.Header) error {
	return p2p.Send(p.rw, BlockHeadersMsg, headers)
}

// SendBlockBodies answers a GetBlockBodies query.
func (p *Peer) SendBlockBodies(bodies []*blockBody) error {
	return p2p.Send(p.rw, BlockBodiesMsg, blockBodiesData(bodies))
}

// SendTransactions relays a batch of transactions to the peer.
func (p *Peer) SendTransactions(txs types.Transactions) error {
	return p2p.Send(p.rw, TransactionsMsg, txs)
}

// SendNewBlockHashes announces new blocks without sending their full body.
func (p *Peer) SendNewBlockHashes(hashes []common.Hash, numbers []uint64) error {
	announces := make(newBlockHashesData, len(hashes))
	for i := range hashes {
		announces[i] = newBlockHashAnnounce{Hash: hashes[i], Number: numbers[i]}
	}
	return p2p.Send(p.rw, NewBlockHashesMsg, announces)
}

// SendNewBlock propagates a full block along with its claimed total
// difficulty.
func (p *Peer) SendNewBlock(block *types.Block, td *big.Int) error {
	return p2p.Send(p.rw, NewBlockMsg, &newBlockData{Block: block, TD: td})
}
