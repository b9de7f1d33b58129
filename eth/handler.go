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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p"
)

// ChainService is the peer dispatcher (component G) and the hub every
// other Chain Service component hangs off of: it owns the duplicate
// filter, the header query engine, the import pipeline, transaction
// admission, the head-candidate cache and the DAO challenger, and is the
// sole point where inbound wire messages are routed to them.
type ChainService struct {
	networkID   uint64
	genesisHash common.Hash
	dao         DAOConfig

	chain        ChainReader
	chainWriter  ChainWriter
	engine       ExecutionEngine
	telemetry    Telemetry
	broadcaster  PeerBroadcaster
	syncer       Syncer
	signer       func(*types.Transaction) (common.Address, error)

	dedup         *dupFilter
	pool          *txPool
	headCandidate *headCandidateCache
	queue         *blockQueue
	stats         *importStats
	daoChallenger *daoChallenger
	peers         *peerSet

	admissionMu sync.Mutex

	mining          bool
	validatorActive bool
	casperAddr      common.Address
	minGasPrice     *big.Int

	newHeadFeed event.Feed

	quit chan struct{}
}

// NewChainService wires the Chain Service components together. coinbase
// is the local mining/proposing address used to build head candidates;
// casperAddr is the finality contract's deployed address.
func NewChainService(cfg *Config, chain ChainReader, writer ChainWriter, engine ExecutionEngine,
	telemetry Telemetry, broadcaster PeerBroadcaster, syncer Syncer,
	signer func(*types.Transaction) (common.Address, error), coinbase, casperAddr common.Address) *ChainService {

	minGasPrice := cfg.MinGasPrice
	if minGasPrice == nil {
		minGasPrice = DefaultMinGasPrice()
	}

	cs := &ChainService{
		networkID:     cfg.NetworkID,
		genesisHash:   chain.Genesis().Hash(),
		dao:           cfg.dao(),
		chain:         chain,
		chainWriter:   writer,
		engine:        engine,
		telemetry:     telemetry,
		broadcaster:   broadcaster,
		syncer:        syncer,
		signer:        signer,
		dedup:         newDupFilter(),
		pool:          newTxPool(signer),
		queue:         newBlockQueue(),
		stats:         newImportStats(),
		daoChallenger: newDAOChallenger(),
		peers:         newPeerSet(),
		minGasPrice:   minGasPrice,
		casperAddr:    casperAddr,
		quit:          make(chan struct{}),
	}
	cs.headCandidate = newHeadCandidateCache(engine, coinbase)
	return cs
}

// SetMining toggles whether this node proposes blocks itself. SetValidating
// toggles whether the validator service is active. The two are kept
// independent rather than conflated into one flag; admitTransaction puts
// peer-relayed transactions into the local pool when either one is set.
func (cs *ChainService) SetMining(v bool)     { cs.mining = v }
func (cs *ChainService) SetValidating(v bool) { cs.validatorActive = v }

// SubscribeNewHead lets the validator state machine (component H) and any
// other interested party observe successful chain extensions.
func (cs *ChainService) SubscribeNewHead(ch chan<- NewHeadEvent) event.Subscription {
	return cs.newHeadFeed.Subscribe(ch)
}

// PendingTransactions returns the current pool contents, e.g. to hand to a
// newly accepted peer (spec.md §4.F).
func (cs *ChainService) PendingTransactions() []*types.Transaction {
	return cs.pool.list()
}

// AddTransaction admits a transaction originating locally (the empty
// origin) or a specific peer id.
func (cs *ChainService) AddTransaction(tx *types.Transaction, origin string, forceBroadcast, force bool) error {
	return cs.admitTransaction(tx, origin, forceBroadcast, force)
}

// Start launches the background import-loop goroutine. It does not open
// any connections itself; that belongs to the p2p transport.
func (cs *ChainService) Start() {
	go cs.runImporter()
}

// Stop releases the import queue and unblocks runImporter.
func (cs *ChainService) Stop() {
	close(cs.quit)
	cs.queue.close()
}

// HandlePeer runs for the lifetime of one connected peer: performs the
// Status handshake, kicks off the DAO fork-identity challenge, registers
// the peer, and dispatches inbound messages until the connection drops.
func (cs *ChainService) HandlePeer(p *p2p.Peer, rw p2p.MsgReadWriter) error {
	peer := newPeer(eth63, cs.networkID, p, rw)

	td := cs.currentTD()
	head := cs.chain.CurrentHeader()
	if err := peer.Handshake(cs.networkID, td, head.Hash(), cs.genesisHash); err != nil {
		log.Debug("eth handshake failed", "peer", peer.ID(), "err", err)
		return err
	}
	if err := cs.peers.Register(peer); err != nil {
		return err
	}
	defer cs.peers.Unregister(peer.ID())

	peerHead, peerTD := peer.Head()
	if err := cs.daoChallenger.start(peer, cs.dao,
		func(id string) {
			log.Debug("DAO fork-check timed out, dropping peer", "peer", id)
			if pr := cs.peers.Peer(id); pr != nil {
				pr.Peer.Disconnect(p2p.DiscUselessPeer)
			}
		},
		func() {
			// Accepted: release the peer's claimed head to the
			// synchronizer and hand it the current pending set
			// (spec.md §4.F).
			cs.syncer.ReceiveStatus(peer.ID(), peerHead, peerTD)
			if pending := cs.pool.list(); len(pending) > 0 {
				if err := peer.SendTransactions(pending); err != nil {
					log.Debug("failed to send pending transactions", "peer", peer.ID(), "err", err)
				}
			}
		},
	); err != nil {
		return err
	}

	for {
		if err := cs.handleMsg(peer); err != nil {
			log.Debug("eth message handling failed", "peer", peer.ID(), "err", err)
			return err
		}
	}
}

func (cs *ChainService) currentTD() *big.Int {
	head := cs.chain.CurrentBlock()
	return cs.chain.GetTd(head.Hash(), head.NumberU64())
}

// handleMsg decodes and dispatches a single inbound wire message
// (spec.md §4.G).
func (cs *ChainService) handleMsg(p *Peer) error {
	msg, err := p.rw.ReadMsg()
	if err != nil {
		return err
	}
	defer msg.Discard()

	if msg.Size > ProtocolMaxMsgSize {
		return errResp(ErrMsgTooLarge, "%v > %v", msg.Size, ProtocolMaxMsgSize)
	}

	switch msg.Code {
	case StatusMsg:
		return errResp(ErrExtraStatusMsg, "uninvited status")

	case NewBlockHashesMsg:
		var announces newBlockHashesData
		if err := msg.Decode(&announces); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		hashes := make([]common.Hash, len(announces))
		numbers := make([]uint64, len(announces))
		for i, a := range announces {
			hashes[i], numbers[i] = a.Hash, a.Number
		}
		cs.syncer.ReceiveNewBlockHashes(p.ID(), hashes, numbers)

	case TransactionsMsg:
		var txs []*types.Transaction
		if err := msg.Decode(&txs); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		for _, tx := range txs {
			if err := cs.admitTransaction(tx, p.ID(), false, false); err != nil {
				log.Trace("transaction rejected", "peer", p.ID(), "hash", tx.Hash(), "err", err)
			}
		}

	case GetBlockHeadersMsg:
		var query getBlockHeadersData
		if err := msg.Decode(&query); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		return p.SendBlockHeaders(cs.answerHeaders(&query))

	case BlockHeadersMsg:
		var headers []*types.Header
		if err := msg.Decode(&headers); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		if cs.daoChallenger.isPending(p.ID()) {
			return cs.daoChallenger.answer(p.ID(), headers, cs.dao)
		}
		cs.syncer.ReceiveBlockHeaders(p.ID(), headers)

	case GetBlockBodiesMsg:
		var hashes []common.Hash
		if err := msg.Decode(&hashes); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		return p.SendBlockBodies(cs.answerBodies(hashes))

	case BlockBodiesMsg:
		var bodies blockBodiesData
		if err := msg.Decode(&bodies); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		txset := make([][]*types.Transaction, len(bodies))
		uncleset := make([][]*types.Header, len(bodies))
		for i, b := range bodies {
			txset[i], uncleset[i] = b.Transactions, b.Uncles
		}
		cs.syncer.ReceiveBlockBodies(p.ID(), txset, uncleset)

	case NewBlockMsg:
		var request newBlockData
		if err := msg.Decode(&request); err != nil {
			return errResp(ErrDecode, "%v: %v", msg, err)
		}
		p.SetHead(request.Block.Hash(), request.TD)
		if cs.daoChallenger.isPending(p.ID()) && cs.dao.BlockNum != nil {
			localTD := cs.chain.GetTd(cs.dao.BlockHash, cs.dao.BlockNum.Uint64())
			cs.daoChallenger.fastAnswerOnTD(p.ID(), request.TD, localTD)
		}
		cs.EnqueueBlock(request.Block, p.ID())
		cs.syncer.ReceiveNewBlock(p.ID(), request.Block, request.TD)

	default:
		return errResp(ErrInvalidMsgCode, "%v", msg.Code)
	}
	return nil
}

// answerBodies resolves a GetBlockBodies query (spec.md §4.G): up to the
// protocol cap, silently skipping any hash the chain doesn't have.
func (cs *ChainService) answerBodies(hashes []common.Hash) []*blockBody {
	var (
		bodies []*blockBody
		bytes  common.StorageSize
	)
	for i, hash := range hashes {
		if i >= maxGetBlockBodies || bytes >= softResponseLimit {
			break
		}
		body := cs.chain.GetBody(hash)
		if body == nil {
			continue
		}
		b := &blockBody{Transactions: body.Transactions, Uncles: body.Uncles}
		bodies = append(bodies, b)
		bytes += common.StorageSize(len(body.Transactions)) * estHeaderRlpSize
	}
	return bodies
}
