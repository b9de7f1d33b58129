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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// senderNonce keys a pending transaction by the pair the pool is ordered
// and deduplicated on (spec.md §3: "per-sender-nonce-respecting multiset").
type senderNonce struct {
	sender common.Address
	nonce  uint64
}

// txPool is the pending transaction multiset. A later admission for the
// same (sender, nonce) replaces the earlier one in place, matching the
// classic "replace by nonce" tx pool semantics; insertion order is
// otherwise preserved for anything that walks the pool.
type txPool struct {
	mu      sync.Mutex
	order   []senderNonce
	byKey   map[senderNonce]*types.Transaction
	senders mapset.Set[common.Address]
	sender  func(*types.Transaction) (common.Address, error)
}

func newTxPool(sender func(*types.Transaction) (common.Address, error)) *txPool {
	return &txPool{
		byKey:   make(map[senderNonce]*types.Transaction),
		senders: mapset.NewThreadUnsafeSet[common.Address](),
		sender:  sender,
	}
}

// add inserts tx into the pool, replacing any existing transaction with
// the same sender and nonce.
func (p *txPool) add(tx *types.Transaction) error {
	from, err := p.sender(tx)
	if err != nil {
		return err
	}
	key := senderNonce{from, tx.Nonce()}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byKey[key]; !exists {
		p.order = append(p.order, key)
	}
	p.byKey[key] = tx
	p.senders.Add(from)
	return nil
}

// HasSender reports whether addr currently has at least one pending
// transaction in the pool, backed by the sender-bookkeeping set rather
// than a scan over every pending (sender, nonce) pair.
func (p *txPool) HasSender(addr common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.senders.Contains(addr)
}

// Senders returns the set of addresses with at least one pending
// transaction, e.g. for pool introspection/telemetry.
func (p *txPool) Senders() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.senders.ToSlice()
}

// list returns the pool contents in insertion order. The caller must not
// mutate the returned slice's backing array's transactions; Get on the
// head-candidate cache deep-copies the slice itself before handing it to
// the external builder, which is free to mutate its copy.
func (p *txPool) list() []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Transaction, 0, len(p.order))
	for _, key := range p.order {
		if tx, ok := p.byKey[key]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// len reports the number of distinct pending transactions.
func (p *txPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byKey)
}

// removeMined drops every transaction included in a newly imported block
// (spec.md §3: "pool ← pool \ block.transactions"). Removal is keyed by
// (sender, nonce), which makes the subtraction idempotent: removing the
// same block's transactions twice (e.g. once for the import, once for a
// mining node's own double-check) is a no-op the second time.
func (p *txPool) removeMined(sender func(*types.Transaction) (common.Address, error), txs []*types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tx := range txs {
		from, err := sender(tx)
		if err != nil {
			continue
		}
		key := senderNonce{from, tx.Nonce()}
		if _, ok := p.byKey[key]; ok {
			delete(p.byKey, key)
			p.order = removeKey(p.order, key)
			if !p.hasKeyForSender(from) {
				p.senders.Remove(from)
			}
		}
	}
}

// hasKeyForSender reports whether any pending entry is still keyed under
// sender. Callers must hold p.mu.
func (p *txPool) hasKeyForSender(sender common.Address) bool {
	for key := range p.byKey {
		if key.sender == sender {
			return true
		}
	}
	return false
}

func removeKey(order []senderNonce, key senderNonce) []senderNonce {
	for i, k := range order {
		if k == key {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
