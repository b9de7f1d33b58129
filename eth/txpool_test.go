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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fixedSender maps specific transactions to a sender address by hash,
// standing in for full signature recovery in these pool-only tests.
type fixedSender struct {
	byHash map[common.Hash]common.Address
}

func newFixedSender() *fixedSender {
	return &fixedSender{byHash: make(map[common.Hash]common.Address)}
}

func (s *fixedSender) assign(tx *types.Transaction, addr common.Address) {
	s.byHash[tx.Hash()] = addr
}

func (s *fixedSender) sender(tx *types.Transaction) (common.Address, error) {
	return s.byHash[tx.Hash()], nil
}

func newTestTx(nonce uint64, gas uint64) *types.Transaction {
	return types.NewTransaction(nonce, common.Address{}, big.NewInt(0), gas, big.NewInt(1), nil)
}

func TestTxPoolAddAndHasSender(t *testing.T) {
	fs := newFixedSender()
	pool := newTxPool(fs.sender)

	addr := common.HexToAddress("0x01")
	tx := newTestTx(0, 21000)
	fs.assign(tx, addr)

	if pool.HasSender(addr) {
		t.Fatalf("sender should not be known before add")
	}
	if err := pool.add(tx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !pool.HasSender(addr) {
		t.Fatalf("sender should be known after add")
	}
	if pool.len() != 1 {
		t.Fatalf("expected 1 pending tx, got %d", pool.len())
	}
}

func TestTxPoolAddReplacesBySenderNonce(t *testing.T) {
	fs := newFixedSender()
	pool := newTxPool(fs.sender)
	addr := common.HexToAddress("0x01")

	first := newTestTx(0, 21000)
	second := newTestTx(0, 50000)
	fs.assign(first, addr)
	fs.assign(second, addr)

	pool.add(first)
	pool.add(second)

	if pool.len() != 1 {
		t.Fatalf("same (sender, nonce) must replace in place, got %d entries", pool.len())
	}
	list := pool.list()
	if list[0].Gas() != 50000 {
		t.Fatalf("expected the later transaction to have replaced the earlier one")
	}
}

func TestTxPoolRemoveMinedDropsSenderOnlyWhenExhausted(t *testing.T) {
	fs := newFixedSender()
	pool := newTxPool(fs.sender)
	addr := common.HexToAddress("0x01")

	tx0 := newTestTx(0, 21000)
	tx1 := newTestTx(1, 21000)
	fs.assign(tx0, addr)
	fs.assign(tx1, addr)
	pool.add(tx0)
	pool.add(tx1)

	pool.removeMined(fs.sender, []*types.Transaction{tx0})
	if !pool.HasSender(addr) {
		t.Fatalf("sender must remain known while tx1 is still pending")
	}
	if pool.len() != 1 {
		t.Fatalf("expected 1 remaining tx, got %d", pool.len())
	}

	pool.removeMined(fs.sender, []*types.Transaction{tx1})
	if pool.HasSender(addr) {
		t.Fatalf("sender must be forgotten once its last pending tx is mined")
	}
	if pool.len() != 0 {
		t.Fatalf("expected empty pool, got %d", pool.len())
	}
}

func TestTxPoolRemoveMinedIsIdempotent(t *testing.T) {
	fs := newFixedSender()
	pool := newTxPool(fs.sender)
	addr := common.HexToAddress("0x01")

	tx := newTestTx(0, 21000)
	fs.assign(tx, addr)
	pool.add(tx)

	pool.removeMined(fs.sender, []*types.Transaction{tx})
	pool.removeMined(fs.sender, []*types.Transaction{tx})

	if pool.len() != 0 || pool.HasSender(addr) {
		t.Fatalf("removing the same block's transactions twice must be a no-op the second time")
	}
}

func TestTxPoolSendersReflectsDistinctAddresses(t *testing.T) {
	fs := newFixedSender()
	pool := newTxPool(fs.sender)
	addr1 := common.HexToAddress("0x01")
	addr2 := common.HexToAddress("0x02")

	tx1 := newTestTx(0, 21000)
	tx2 := newTestTx(1, 21000)
	fs.assign(tx1, addr1)
	fs.assign(tx2, addr2)
	pool.add(tx1)
	pool.add(tx2)

	senders := pool.Senders()
	if len(senders) != 2 {
		t.Fatalf("expected 2 distinct senders, got %d", len(senders))
	}
}
