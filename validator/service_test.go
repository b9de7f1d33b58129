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
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"

	"github.com/hybridcasper/go-casper/eth"
)

// fakeCasperContract is an in-memory stand-in for the finality contract,
// dispatched by ABI method selector exactly like the real EVM call the
// out-of-scope execution engine would otherwise make.
type fakeCasperContract struct {
	epoch             uint64
	expectedSource    uint64
	recommendedSource uint64
	withdrawalDelay   uint64
	validatorIndex    map[common.Address]uint64
	startDynasty      map[uint64]uint64
	endDynasty        map[uint64]uint64
	dynastyInEpoch    map[uint64]uint64
	dynastyStart      map[uint64]uint64
	code              map[common.Address][]byte
}

func newFakeCasperContract() *fakeCasperContract {
	return &fakeCasperContract{
		validatorIndex: make(map[common.Address]uint64),
		startDynasty:   make(map[uint64]uint64),
		endDynasty:     make(map[uint64]uint64),
		dynastyInEpoch: make(map[uint64]uint64),
		dynastyStart:   make(map[uint64]uint64),
		code:           make(map[common.Address][]byte),
	}
}

func (f *fakeCasperContract) Call(db *state.StateDB, to common.Address, data []byte) ([]byte, error) {
	method, err := casperABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "current_epoch":
		return method.Outputs.Pack(new(big.Int).SetUint64(f.epoch))
	case "expected_source_epoch":
		return method.Outputs.Pack(new(big.Int).SetUint64(f.expectedSource))
	case "recommended_source_epoch":
		return method.Outputs.Pack(new(big.Int).SetUint64(f.recommendedSource))
	case "withdrawal_delay":
		return method.Outputs.Pack(new(big.Int).SetUint64(f.withdrawalDelay))
	case "validator_indexes":
		addr := args[0].(common.Address)
		return method.Outputs.Pack(new(big.Int).SetUint64(f.validatorIndex[addr]))
	case "validators__start_dynasty":
		idx := args[0].(*big.Int).Uint64()
		return method.Outputs.Pack(new(big.Int).SetUint64(f.startDynasty[idx]))
	case "validators__end_dynasty":
		idx := args[0].(*big.Int).Uint64()
		return method.Outputs.Pack(new(big.Int).SetUint64(f.endDynasty[idx]))
	case "dynasty_in_epoch":
		epoch := args[0].(*big.Int).Uint64()
		return method.Outputs.Pack(new(big.Int).SetUint64(f.dynastyInEpoch[epoch]))
	case "dynasty_start_epoch":
		dynasty := args[0].(*big.Int).Uint64()
		return method.Outputs.Pack(new(big.Int).SetUint64(f.dynastyStart[dynasty]))
	default:
		return nil, fmt.Errorf("fakeCasperContract: unsupported method %s", method.Name)
	}
}

func (f *fakeCasperContract) CodeAt(db *state.StateDB, addr common.Address) []byte {
	return f.code[addr]
}

// fakeChainService is the narrow slice of eth.ChainService the validator
// state machine is driven through, backed by plain in-memory state rather
// than a real chain engine.
type fakeChainService struct {
	head        *types.Header
	headers     map[uint64]*types.Header
	db          *state.StateDB
	feed        event.Feed
	pendingFrom map[common.Address]bool
	sentTxs     []*types.Transaction
}

func newFakeChainService() *fakeChainService {
	statedb, err := state.New(common.Hash{}, state.NewDatabase(rawdb.NewMemoryDatabase()), nil)
	if err != nil {
		panic(err)
	}
	return &fakeChainService{
		headers:     make(map[uint64]*types.Header),
		db:          statedb,
		pendingFrom: make(map[common.Address]bool),
	}
}

func (c *fakeChainService) Synchronising() bool { return false }
func (c *fakeChainService) CurrentHeader() *types.Header { return c.head }
func (c *fakeChainService) GetHeaderByNumber(number uint64) *types.Header {
	return c.headers[number]
}
func (c *fakeChainService) HeadPostState() (*state.StateDB, error) { return c.db, nil }
func (c *fakeChainService) SubscribeNewHead(ch chan<- eth.NewHeadEvent) event.Subscription {
	return c.feed.Subscribe(ch)
}
func (c *fakeChainService) AddTransaction(tx *types.Transaction, origin string, forceBroadcast, force bool) error {
	c.sentTxs = append(c.sentTxs, tx)
	return nil
}
func (c *fakeChainService) HasPendingFrom(addr common.Address) bool { return c.pendingFrom[addr] }

func (c *fakeChainService) setHead(number uint64) {
	h := &types.Header{Number: new(big.Int).SetUint64(number)}
	c.headers[number] = h
	c.head = h
}

// fakeAccountFinder resolves every lookup to the one validator key it was
// built with, signing with a plain Homestead signer.
type fakeAccountFinder struct {
	addr common.Address
	key  *ecdsa.PrivateKey
}

func (f *fakeAccountFinder) Find(address common.Address) (Account, error) {
	if address != f.addr {
		return Account{}, fmt.Errorf("no such account: %s", address)
	}
	return Account{
		Account: accounts.Account{Address: f.addr},
		SignTx: func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			return types.SignTx(tx, types.HomesteadSigner{}, f.key)
		},
		PrivateKey: f.key,
	}, nil
}

func newTestService(t *testing.T, contract *fakeCasperContract) (*Service, *fakeChainService, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	chain := newFakeChainService()
	accounts := &fakeAccountFinder{addr: addr, key: key}

	svc := NewService(chain, contract, accounts, Config{
		Account:       addr,
		CasperAddress: common.BytesToAddress([]byte("casper-contract")),
		DepositSize:   uint256.NewInt(0),
	})
	return svc, chain, addr
}

func TestHandleWaitingForLoginTransitionsToVoting(t *testing.T) {
	contract := newFakeCasperContract()
	contract.epoch = 3

	svc, chain, addr := newTestService(t, contract)
	contract.validatorIndex[addr] = 7
	contract.startDynasty[7] = 0
	contract.endDynasty[7] = 1000
	contract.dynastyInEpoch[3] = 2

	chain.setHead(150)
	svc.setState(WaitingForLogin)
	svc.onNewHead(chain.head)

	if got := svc.State(); got != Voting {
		t.Fatalf("expected transition to Voting, got %s", got)
	}
}

func TestHandleWaitingForLoginStaysPutWhenNotLoggedIn(t *testing.T) {
	contract := newFakeCasperContract()
	contract.epoch = 3

	svc, chain, addr := newTestService(t, contract)
	contract.validatorIndex[addr] = 7
	contract.startDynasty[7] = 5 // not yet active
	contract.endDynasty[7] = 1000
	contract.dynastyInEpoch[3] = 2

	chain.setHead(150)
	svc.setState(WaitingForLogin)
	svc.onNewHead(chain.head)

	if got := svc.State(); got != WaitingForLogin {
		t.Fatalf("expected to stay in WaitingForLogin, got %s", got)
	}
}

func TestVotingSendsExactlyOneVotePerEpoch(t *testing.T) {
	contract := newFakeCasperContract()
	contract.epoch = 1
	contract.expectedSource = 0

	svc, chain, addr := newTestService(t, contract)
	contract.validatorIndex[addr] = 1
	contract.startDynasty[1] = 0
	contract.endDynasty[1] = 1000
	contract.dynastyInEpoch[1] = 0

	svc.mu.Lock()
	svc.validatorIndex = 1
	svc.indexKnown = true
	svc.mu.Unlock()
	svc.setState(Voting)

	// Epoch 1's vote targets block 49, which must be canonical.
	chain.headers[49] = &types.Header{Number: big.NewInt(49)}

	// Past the quarter-epoch gate for epoch 1 (blocks 50..99).
	chain.setHead(70)
	svc.onNewHead(chain.head)

	if len(chain.sentTxs) != 1 {
		t.Fatalf("expected exactly 1 vote transaction, got %d", len(chain.sentTxs))
	}
	if !svc.votes.hasVoted(1) {
		t.Fatalf("expected epoch 1 to be recorded as voted")
	}

	// A second head in the same epoch must not resend.
	chain.setHead(80)
	svc.onNewHead(chain.head)
	if len(chain.sentTxs) != 1 {
		t.Fatalf("expected no additional vote within the same epoch, got %d total", len(chain.sentTxs))
	}
}

func TestVotingRefusesBeforeQuarterEpochGate(t *testing.T) {
	contract := newFakeCasperContract()
	contract.epoch = 1

	svc, chain, addr := newTestService(t, contract)
	contract.validatorIndex[addr] = 1
	contract.startDynasty[1] = 0
	contract.endDynasty[1] = 1000
	contract.dynastyInEpoch[1] = 0

	svc.mu.Lock()
	svc.validatorIndex = 1
	svc.indexKnown = true
	svc.mu.Unlock()
	svc.setState(Voting)

	// Block 55 is within the first quarter of epoch 1 (blocks 50..62).
	chain.setHead(55)
	svc.onNewHead(chain.head)

	if len(chain.sentTxs) != 0 {
		t.Fatalf("expected no vote before the quarter-epoch gate, got %d", len(chain.sentTxs))
	}
	if svc.votes.hasVoted(1) {
		t.Fatalf("epoch 1 must not be recorded as voted before a vote is actually sent")
	}
}

func TestEpochTargetHashEpochZeroSentinel(t *testing.T) {
	contract := newFakeCasperContract()
	svc, chain, _ := newTestService(t, contract)
	chain.setHead(0)

	hash, ok := svc.epochTargetHash(0, chain.head)
	if !ok {
		t.Fatalf("expected epoch 0 target hash to resolve")
	}
	if hash != (common.Hash{}) {
		t.Fatalf("expected the 32-zero-byte sentinel for epoch 0, got %s", hash)
	}
}
