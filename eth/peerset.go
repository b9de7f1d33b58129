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
	"sync"
)

var (
	errAlreadyRegistered = errors.New("peer already registered")
	errNotRegistered     = errors.New("peer not registered")
)

// peerSet is the live set of connected eth peers, keyed by their stable id.
type peerSet struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	closed bool
}

func newPeerSet() *peerSet {
	return &peerSet{peers: make(map[string]*Peer)}
}

func (ps *peerSet) Register(p *Peer) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return errors.New("peer set closed")
	}
	if _, ok := ps.peers[p.ID()]; ok {
		return errAlreadyRegistered
	}
	ps.peers[p.ID()] = p
	return nil
}

func (ps *peerSet) Unregister(id string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, ok := ps.peers[id]; !ok {
		return errNotRegistered
	}
	delete(ps.peers, id)
	return nil
}

func (ps *peerSet) Peer(id string) *Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.peers[id]
}

func (ps *peerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.peers)
}

func (ps *peerSet) Close() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.closed = true
}
