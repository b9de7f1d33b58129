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
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/hybridcasper/go-casper/eth"
)

// epochLength is the number of blocks per Casper epoch, mirroring the
// finality contract's own EPOCH_LENGTH constant (spec.md §3 "Epoch").
const epochLength = 50

// Config parameterizes one Service instance (spec.md §4.A flags
// --validate, --deposit-size, --should-logout, surfaced here rather than
// read a second time from the CLI layer; --min-gasprice is a chain-service
// setting and is not carried here).
type Config struct {
	// Account is the validator's own address; its private key and signer
	// are resolved through AccountFinder at Start.
	Account common.Address
	// WithdrawalAddress receives the deposit back on withdraw. Defaults to
	// Account when the zero address.
	WithdrawalAddress common.Address
	// CasperAddress is the finality contract's deployed address.
	CasperAddress common.Address
	// DepositSize is the wei amount deposit() is called with.
	DepositSize *uint256.Int
	// ShouldLogout, once true, is read once Voting is reached: the service
	// finishes the current vote, then moves toward WaitingForLogOut.
	ShouldLogout bool
}

// Service is the validator state machine (component H): one dispatch per
// new chain head, entirely driven off CasperView reads and a handful of
// locally minted transactions (spec.md §4.H, §9 "dispatch table from
// variant to handler").
type Service struct {
	chain    ChainService
	caller   ContractCaller
	accounts AccountFinder
	cfg      Config

	mu               sync.Mutex
	state            State
	valcodeAddr      common.Address
	validatorIndex   uint64
	indexKnown       bool
	lastLogoutSend   time.Time
	votes            *voteMemory

	headCh chan eth.NewHeadEvent
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewService builds a Service idle in the Uninitiated state; call Start to
// begin dispatching against new chain heads.
func NewService(chain ChainService, caller ContractCaller, accounts AccountFinder, cfg Config) *Service {
	if cfg.WithdrawalAddress == (common.Address{}) {
		cfg.WithdrawalAddress = cfg.Account
	}
	return &Service{
		chain:    chain,
		caller:   caller,
		accounts: accounts,
		cfg:      cfg,
		state:    Uninitiated,
		votes:    newVoteMemory(),
		headCh:   make(chan eth.NewHeadEvent, 16),
		quit:     make(chan struct{}),
	}
}

// State reports the current lifecycle variant (spec.md §3 "Validator
// state"); safe for concurrent use.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		log.Info("validator state transition", "from", prev, "to", next)
	}
}

// Start subscribes to new chain heads and begins dispatching. It is safe
// to call Start on a Service whose Config.Account never intends to
// validate; onNewHead then only logs the casper status line each head and
// broadcasts nothing.
func (s *Service) Start() {
	sub := s.chain.SubscribeNewHead(s.headCh)
	s.wg.Add(1)
	go s.loop(sub)
}

// Stop unsubscribes from new heads and waits for the dispatch loop to
// exit.
func (s *Service) Stop() {
	close(s.quit)
	s.wg.Wait()
}

func (s *Service) loop(sub interface{ Unsubscribe() }) {
	defer s.wg.Done()
	defer sub.Unsubscribe()
	for {
		select {
		case ev := <-s.headCh:
			s.onNewHead(ev.Block.Header())
		case <-s.quit:
			return
		}
	}
}

// onNewHead is the per-head dispatch (spec.md §4.H): it skips entirely
// while the chain is mid-sync, then routes to exactly one handler keyed
// on the current state.
func (s *Service) onNewHead(head *types.Header) {
	if s.chain.Synchronising() {
		return
	}
	db, err := s.chain.HeadPostState()
	if err != nil {
		log.Debug("validator: no post-state for head yet", "number", head.Number, "err", err)
		return
	}
	view := newCasperView(s.caller, db, s.cfg.CasperAddress)
	view.LogStatus()

	switch s.State() {
	case Uninitiated, LoggedOut:
		s.handleUninitiatedOrLoggedOut(view, head)
	case WaitingForValcode:
		s.handleWaitingForValcode(view, head)
	case WaitingForLogin:
		s.handleWaitingForLogin(view)
	case Voting:
		s.handleVoting(view, head)
	case WaitingForLogOut:
		s.handleWaitingForLogOut(view, head)
	case WaitingForWithdrawable:
		s.handleWaitingForWithdrawable(view)
	case WaitingForWithdrawn:
		s.handleWaitingForWithdrawn(view)
	}
}

// handleUninitiatedOrLoggedOut broadcasts the validation-code deployment
// transaction and precomputes its deterministic address (spec.md §4.H
// step 1-2). No-ops unless the operator asked this node to validate.
func (s *Service) handleUninitiatedOrLoggedOut(view *CasperView, head *types.Header) {
	account, err := s.accounts.Find(s.cfg.Account)
	if err != nil {
		log.Warn("validator: account unavailable, staying idle", "account", s.cfg.Account, "err", err)
		return
	}
	if s.cfg.DepositSize == nil || s.cfg.DepositSize.IsZero() {
		return
	}
	if s.chain.HasPendingFrom(account.Address) {
		// A previous valcode deployment from this account is still
		// unmined; wait rather than broadcasting a second one.
		return
	}

	pendingNonce, err := s.nextNonce()
	if err != nil {
		log.Warn("validator: cannot resolve nonce", "err", err)
		return
	}
	valcodeAddr := validationCodeAddress(account.Address, pendingNonce)
	data := validationCodeInitCode(account.Address)
	tx := buildContractTx(pendingNonce, nil, nil, validatorGasPrice, 500_000, data)
	if err := s.signAndBroadcast(account, tx); err != nil {
		log.Warn("validator: valcode broadcast failed", "err", err)
		return
	}
	s.mu.Lock()
	s.valcodeAddr = valcodeAddr
	s.mu.Unlock()
	log.Info("validator: broadcast valcode deployment", "address", valcodeAddr)
	s.setState(WaitingForValcode)
}

// handleWaitingForValcode waits for the valcode deployment to land, then
// broadcasts the deposit transaction (spec.md §4.H step 3-4).
func (s *Service) handleWaitingForValcode(view *CasperView, head *types.Header) {
	s.mu.Lock()
	valcodeAddr := s.valcodeAddr
	s.mu.Unlock()

	code := s.caller.CodeAt(view.state, valcodeAddr)
	if len(code) == 0 {
		return
	}
	account, err := s.accounts.Find(s.cfg.Account)
	if err != nil {
		log.Warn("validator: account unavailable", "err", err)
		return
	}
	if s.chain.HasPendingFrom(account.Address) {
		return
	}
	nonce, err := s.nextNonce()
	if err != nil {
		log.Warn("validator: cannot resolve nonce", "err", err)
		return
	}
	data, err := casperABI.Pack("deposit", valcodeAddr, s.cfg.WithdrawalAddress)
	if err != nil {
		log.Error("validator: packing deposit call", "err", err)
		return
	}
	value := s.cfg.DepositSize.ToBig()
	tx := buildContractTx(nonce, &s.cfg.CasperAddress, value, validatorGasPrice, 600_000, data)
	if err := s.signAndBroadcast(account, tx); err != nil {
		log.Warn("validator: deposit broadcast failed", "err", err)
		return
	}
	log.Info("validator: broadcast deposit", "size", s.cfg.DepositSize)
	s.setState(WaitingForLogin)
}

// handleWaitingForLogin resolves the validator's on-chain index once the
// deposit is processed, then waits for the contract to report it logged
// in for the current epoch's active dynasty (spec.md §4.H step 5-6).
func (s *Service) handleWaitingForLogin(view *CasperView) {
	index, ok := view.ValidatorIndex(s.cfg.Account)
	if !ok || index == 0 {
		return
	}
	epoch, ok := view.CurrentEpoch()
	if !ok {
		return
	}
	loggedIn, ok := view.LoggedIn(index, epoch)
	if !ok || !loggedIn {
		return
	}
	s.mu.Lock()
	s.validatorIndex = index
	s.indexKnown = true
	s.mu.Unlock()
	log.Info("validator: logged in", "index", index, "epoch", epoch)
	s.setState(Voting)
}

// handleVoting is the steady state (spec.md §4.H step 7-9): at most one
// vote per epoch, refusing anything NO_DBL_VOTE or NO_SURROUND would
// forbid, then transitioning toward logout once the operator has asked
// for it and the vote for this epoch has gone out.
func (s *Service) handleVoting(view *CasperView, head *types.Header) {
	sent := s.vote(view, head)
	if sent && s.cfg.ShouldLogout {
		s.beginLogout(view)
	}
}

// vote emits at most one vote transaction for the view's current epoch,
// returning whether a vote was sent (including "already sent earlier").
func (s *Service) vote(view *CasperView, head *types.Header) bool {
	index, account, ok := s.identity()
	if !ok {
		return false
	}
	targetEpoch, ok := view.CurrentEpoch()
	if !ok {
		return false
	}
	if s.votes.hasVoted(targetEpoch) {
		return true
	}
	loggedIn, ok := view.LoggedIn(index, targetEpoch)
	if !ok || !loggedIn {
		return false
	}
	if head.Number.Uint64()%epochLength <= epochLength/4 {
		// Too early in the epoch: the checkpoint block for this epoch may
		// not even be canonical yet on every peer (spec.md §4.H step 4).
		return false
	}
	sourceEpoch, ok := view.ExpectedSourceEpoch()
	if !ok {
		sourceEpoch, ok = view.RecommendedSourceEpoch()
		if !ok {
			return false
		}
	}
	if s.votes.surrounds(targetEpoch, sourceEpoch) {
		log.Warn("validator: refusing vote that would violate NO_SURROUND", "target", targetEpoch, "source", sourceEpoch)
		return false
	}
	targetHash, ok := s.epochTargetHash(targetEpoch, head)
	if !ok {
		return false
	}
	msg, err := buildVoteMessage(index, targetHash, targetEpoch, sourceEpoch, account.PrivateKey)
	if err != nil {
		log.Error("validator: building vote message", "err", err)
		return false
	}
	data, err := casperABI.Pack("vote", msg)
	if err != nil {
		log.Error("validator: packing vote call", "err", err)
		return false
	}
	tx := buildVoteTx(&s.cfg.CasperAddress, 200_000, data)
	if err := s.chain.AddTransaction(tx, "", true, true); err != nil {
		log.Warn("validator: vote broadcast failed", "err", err)
		return false
	}
	s.votes.record(targetEpoch, targetEpoch, sourceEpoch)
	log.Info("validator: voted", "target", targetEpoch, "source", sourceEpoch)
	return true
}

// beginLogout derives the next nonce, then broadcasts the logout
// transaction and transitions to WaitingForLogOut. It sends no vote itself;
// its callers attempt the epoch's vote first. Because the vote transaction
// is unsigned and comes from the sentinel vote sender, it never consumes the
// account's nonce, so the logout tx carries the nonce read from head state
// whether or not that vote went out.
func (s *Service) beginLogout(view *CasperView) {
	index, account, ok := s.identity()
	if !ok {
		return
	}
	epoch, ok := view.CurrentEpoch()
	if !ok {
		return
	}
	nonce, err := s.nextNonce()
	if err != nil {
		log.Warn("validator: cannot resolve nonce for logout", "err", err)
		return
	}
	msg, err := buildLogoutMessage(index, epoch, account.PrivateKey)
	if err != nil {
		log.Error("validator: building logout message", "err", err)
		return
	}
	data, err := casperABI.Pack("logout", msg)
	if err != nil {
		log.Error("validator: packing logout call", "err", err)
		return
	}
	tx := buildContractTx(nonce, &s.cfg.CasperAddress, nil, validatorGasPrice, 200_000, data)
	if err := s.signAndBroadcast(account, tx); err != nil {
		log.Warn("validator: logout broadcast failed", "err", err)
		return
	}
	s.mu.Lock()
	s.lastLogoutSend = time.Now()
	s.mu.Unlock()
	log.Info("validator: broadcast logout", "epoch", epoch)
	s.setState(WaitingForLogOut)
}

// handleWaitingForLogOut keeps voting every epoch (a validator must keep
// voting through the dynasty it is logging out of) while periodically
// re-broadcasting the logout transaction, until the contract reports the
// dynasty has ended (spec.md §4.H step 10).
func (s *Service) handleWaitingForLogOut(view *CasperView, head *types.Header) {
	s.vote(view, head)

	index, _, ok := s.identity()
	if !ok {
		return
	}
	end, ok := view.EndDynasty(index)
	if !ok {
		return
	}
	current, ok := view.DynastyInEpoch(mustEpoch(view))
	if ok && current >= end {
		log.Info("validator: dynasty ended", "validatorIndex", index)
		s.setState(WaitingForWithdrawable)
		return
	}

	s.mu.Lock()
	since := time.Since(s.lastLogoutSend)
	s.mu.Unlock()
	if since > logoutBroadcastCooldown {
		s.beginLogout(view)
	}
}

// handleWaitingForWithdrawable waits for end_epoch + withdrawal_delay to
// elapse, then broadcasts the withdraw transaction (spec.md §4.H step
// 11-12).
func (s *Service) handleWaitingForWithdrawable(view *CasperView) {
	index, account, ok := s.identity()
	if !ok {
		return
	}
	end, ok := view.EndDynasty(index)
	if !ok {
		return
	}
	startEpoch, ok := view.DynastyStartEpoch(end)
	if !ok {
		return
	}
	delay, ok := view.WithdrawalDelay()
	if !ok {
		return
	}
	epoch, ok := view.CurrentEpoch()
	if !ok || epoch < startEpoch+delay {
		return
	}
	nonce, err := s.nextNonce()
	if err != nil {
		log.Warn("validator: cannot resolve nonce for withdraw", "err", err)
		return
	}
	data, err := casperABI.Pack("withdraw", new(big.Int).SetUint64(index))
	if err != nil {
		log.Error("validator: packing withdraw call", "err", err)
		return
	}
	tx := buildContractTx(nonce, &s.cfg.CasperAddress, nil, validatorGasPrice, 200_000, data)
	if err := s.signAndBroadcast(account, tx); err != nil {
		log.Warn("validator: withdraw broadcast failed", "err", err)
		return
	}
	log.Info("validator: broadcast withdraw", "validatorIndex", index)
	s.setState(WaitingForWithdrawn)
}

// handleWaitingForWithdrawn waits for the contract to delete the
// validator record, then returns to LoggedOut — from which a reconfigured
// deposit size can start the whole lifecycle over (spec.md §4.H step 13).
func (s *Service) handleWaitingForWithdrawn(view *CasperView) {
	index, _, ok := s.identity()
	if !ok {
		return
	}
	current, ok := view.ValidatorIndex(s.cfg.Account)
	if !ok {
		return
	}
	if current == index {
		return
	}
	s.mu.Lock()
	s.indexKnown = false
	s.mu.Unlock()
	s.setState(LoggedOut)
}

func (s *Service) identity() (uint64, Account, bool) {
	s.mu.Lock()
	index, known := s.validatorIndex, s.indexKnown
	s.mu.Unlock()
	if !known {
		return 0, Account{}, false
	}
	account, err := s.accounts.Find(s.cfg.Account)
	if err != nil {
		log.Warn("validator: account unavailable", "err", err)
		return 0, Account{}, false
	}
	return index, account, true
}

// epochTargetHash resolves the canonical hash of block
// epoch*epochLength-1, the last block before the epoch starts — the
// "target_hash" a vote commits to (spec.md §4.H step 5).
func (s *Service) epochTargetHash(epoch uint64, head *types.Header) (common.Hash, bool) {
	if epoch == 0 {
		// Epoch 0 has no preceding checkpoint block; the contract's own
		// genesis vote target is the 32-zero-byte sentinel (spec.md §4.H
		// step 5).
		return common.Hash{}, true
	}
	number := epoch*epochLength - 1
	if number > head.Number.Uint64() {
		return common.Hash{}, false
	}
	h := s.chain.GetHeaderByNumber(number)
	if h == nil {
		return common.Hash{}, false
	}
	return h.Hash(), true
}

func (s *Service) nextNonce() (uint64, error) {
	db, err := s.chain.HeadPostState()
	if err != nil {
		return 0, err
	}
	return db.GetNonce(s.cfg.Account), nil
}

func (s *Service) signAndBroadcast(account Account, tx *types.Transaction) error {
	signed, err := account.SignTx(tx, nil)
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	return s.chain.AddTransaction(signed, "", true, true)
}

func mustEpoch(view *CasperView) uint64 {
	epoch, _ := view.CurrentEpoch()
	return epoch
}
