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
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeChain is a minimal in-memory ChainReader backing a linear chain of
// headers, enough to exercise the header walk (component B) without an
// execution engine.
type fakeChain struct {
	byNumber []*types.Header
	byHash   map[common.Hash]*types.Header
}

func newFakeChain(length int) *fakeChain {
	c := &fakeChain{byHash: make(map[common.Hash]*types.Header)}
	var parent common.Hash
	for i := 0; i < length; i++ {
		h := &types.Header{
			ParentHash: parent,
			Number:     big.NewInt(int64(i)),
			Extra:      []byte{byte(i)},
		}
		c.byNumber = append(c.byNumber, h)
		c.byHash[h.Hash()] = h
		parent = h.Hash()
	}
	return c
}

func (c *fakeChain) Genesis() *types.Block      { return types.NewBlockWithHeader(c.byNumber[0]) }
func (c *fakeChain) CurrentHeader() *types.Header {
	return c.byNumber[len(c.byNumber)-1]
}
func (c *fakeChain) CurrentBlock() *types.Block {
	return types.NewBlockWithHeader(c.CurrentHeader())
}
func (c *fakeChain) GetHeader(hash common.Hash, number uint64) *types.Header {
	if h, ok := c.byHash[hash]; ok && h.Number.Uint64() == number {
		return h
	}
	return nil
}
func (c *fakeChain) GetHeaderByHash(hash common.Hash) *types.Header {
	return c.byHash[hash]
}
func (c *fakeChain) GetHeaderByNumber(number uint64) *types.Header {
	if number >= uint64(len(c.byNumber)) {
		return nil
	}
	return c.byNumber[number]
}
func (c *fakeChain) GetBlockHashesFromHash(hash common.Hash, max uint64) []common.Hash {
	var out []common.Hash
	h, ok := c.byHash[hash]
	for ok && uint64(len(out)) < max {
		out = append(out, h.ParentHash)
		h, ok = c.byHash[h.ParentHash]
	}
	return out
}
func (c *fakeChain) GetBlockHashByNumber(number uint64) (common.Hash, bool) {
	h := c.GetHeaderByNumber(number)
	if h == nil {
		return common.Hash{}, false
	}
	return h.Hash(), true
}
func (c *fakeChain) HasBlockHash(hash common.Hash) bool {
	_, ok := c.byHash[hash]
	return ok
}
func (c *fakeChain) GetBody(hash common.Hash) *types.Body { return nil }
func (c *fakeChain) GetTd(hash common.Hash, number uint64) *big.Int {
	return big.NewInt(int64(number))
}
func (c *fakeChain) StateAt(header *types.Header) (*state.StateDB, error) { return nil, nil }

func newFakeChainService(chain *fakeChain) *ChainService {
	return &ChainService{chain: chain}
}

func TestQueryHeadersNumberModeForward(t *testing.T) {
	chain := newFakeChain(10)
	cs := newFakeChainService(chain)

	headers := cs.queryHeaders(false, 5, 0, false, common.Hash{}, 2)
	if len(headers) != 5 {
		t.Fatalf("expected 5 headers, got %d", len(headers))
	}
	for i, h := range headers {
		if h.Number.Uint64() != uint64(2+i) {
			t.Fatalf("header %d: expected number %d, got %d", i, 2+i, h.Number.Uint64())
		}
	}
}

func TestQueryHeadersNumberModeReverseStopsAtGenesis(t *testing.T) {
	chain := newFakeChain(10)
	cs := newFakeChainService(chain)

	headers := cs.queryHeaders(false, 100, 0, true, common.Hash{}, 2)
	if len(headers) != 3 {
		t.Fatalf("expected 3 headers (2,1,0), got %d", len(headers))
	}
	if headers[len(headers)-1].Number.Uint64() != 0 {
		t.Fatalf("walk must stop at genesis")
	}
}

func TestQueryHeadersUnknownOriginYieldsEmpty(t *testing.T) {
	chain := newFakeChain(10)
	cs := newFakeChainService(chain)

	headers := cs.queryHeaders(true, 5, 0, false, common.HexToHash("0xdeadbeef"), 0)
	if len(headers) != 0 {
		t.Fatalf("expected no headers for an unknown origin, got %d", len(headers))
	}
}

func TestQueryHeadersHashModeForwardWithSkip(t *testing.T) {
	chain := newFakeChain(10)
	cs := newFakeChainService(chain)

	origin := chain.byNumber[1].Hash()
	headers := cs.queryHeaders(true, 3, 1, false, origin, 0)
	if len(headers) != 3 {
		t.Fatalf("expected 3 headers, got %d", len(headers))
	}
	want := []uint64{1, 3, 5}
	for i, h := range headers {
		if h.Number.Uint64() != want[i] {
			t.Fatalf("header %d: want number %d, got %d", i, want[i], h.Number.Uint64())
		}
	}
}

func TestAnswerHeadersHonorsDAOShortCircuit(t *testing.T) {
	chain := newFakeChain(10)
	cs := newFakeChainService(chain)
	forkHeader := chain.byNumber[4]
	cs.dao = DAOConfig{BlockNum: big.NewInt(4), BlockHash: forkHeader.Hash(), BlockExtra: forkHeader.Extra}

	query := &getBlockHeadersData{
		Origin: hashOrNumber{Number: 4},
		Amount: 1,
	}
	headers := cs.answerHeaders(query)
	if len(headers) != 1 || headers[0].Hash() != forkHeader.Hash() {
		t.Fatalf("expected the fork-identity challenge to resolve to the fork header")
	}
}

func TestAnswerHeadersCapsAtProtocolMax(t *testing.T) {
	chain := newFakeChain(int(maxGetBlockHeaders) + 50)
	cs := newFakeChainService(chain)

	query := &getBlockHeadersData{
		Origin: hashOrNumber{Number: 0},
		Amount: maxGetBlockHeaders + 40,
	}
	headers := cs.answerHeaders(query)
	if uint64(len(headers)) != maxGetBlockHeaders {
		t.Fatalf("expected response capped at %d headers, got %d", maxGetBlockHeaders, len(headers))
	}
}
