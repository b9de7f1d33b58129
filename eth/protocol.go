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

// Package eth implements the chain-service half of the node: gossip
// ingestion, the block import pipeline, transaction admission, the
// head-candidate cache, the DAO fork challenge, and the peer dispatcher
// that wires all of these to the wire protocol.
package eth

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// ProtocolName is the official short name of the protocol used during
// devp2p capability negotiation.
const ProtocolName = "eth"

// eth63 is the only wire version this node speaks. Later eth/6x revisions
// (node data, snap sync) are out of scope: the chain engine they'd serve
// is an external collaborator here, not something this core re-implements.
const eth63 = 63

// ProtocolVersions and ProtocolLengths describe the single sub-protocol
// advertised to peers.
var (
	ProtocolVersions = []uint{eth63}
	ProtocolLengths  = map[uint]uint64{eth63: 17}
)

// Message codes, unchanged from the classic eth/63 wire format.
const (
	StatusMsg          = 0x00
	NewBlockHashesMsg   = 0x01
	TransactionsMsg    = 0x02
	GetBlockHeadersMsg = 0x03
	BlockHeadersMsg    = 0x04
	GetBlockBodiesMsg  = 0x05
	BlockBodiesMsg     = 0x06
	NewBlockMsg        = 0x07
)

const (
	// ProtocolMaxMsgSize is the maximum cap on the size of a protocol message.
	ProtocolMaxMsgSize = 10 * 1024 * 1024

	// softResponseLimit is the target maximum size of returned blocks, headers
	// or bodies, matching the teacher's eth/handler.go constant of the same name.
	softResponseLimit = 2 * 1024 * 1024

	// estHeaderRlpSize is the approximate size of an RLP encoded header, used
	// to bound header responses without encoding every candidate.
	estHeaderRlpSize = 500

	// maxGetBlockHeaders and maxGetBlockBodies are the protocol-imposed caps
	// on a single query's result count (spec.md "peer-imposed caps").
	maxGetBlockHeaders = 192
	maxGetBlockBodies  = 128
)

// errCode enumerates local protocol violations, reported to the remote
// peer via a disconnect or surfaced as a Go error up the call stack.
type errCode int

const (
	ErrMsgTooLarge errCode = iota
	ErrDecode
	ErrInvalidMsgCode
	ErrProtocolVersionMismatch
	ErrNetworkIDMismatch
	ErrGenesisMismatch
	ErrNoStatusMsg
	ErrExtraStatusMsg
)

func (e errCode) String() string {
	switch e {
	case ErrMsgTooLarge:
		return "message too large"
	case ErrDecode:
		return "invalid message"
	case ErrInvalidMsgCode:
		return "invalid message code"
	case ErrProtocolVersionMismatch:
		return "protocol version mismatch"
	case ErrNetworkIDMismatch:
		return "network ID mismatch"
	case ErrGenesisMismatch:
		return "genesis block mismatch"
	case ErrNoStatusMsg:
		return "first message was not a status message"
	case ErrExtraStatusMsg:
		return "extra status message"
	default:
		return "unknown error"
	}
}

// statusData is the payload of the Status handshake message.
type statusData struct {
	ProtocolVersion uint32
	NetworkID       uint64
	TD              *big.Int
	Head            common.Hash
	Genesis         common.Hash
}

// newBlockHashAnnounce is a single (hash, number) pair inside NewBlockHashes.
type newBlockHashAnnounce struct {
	Hash   common.Hash
	Number uint64
}

type newBlockHashesData []newBlockHashAnnounce

// hashOrNumber is either a hash or a number query origin. Exactly one of
// the two fields is meaningful at a time; the RLP encoding picks the
// shorter single-value form rather than encoding both, matching the
// classic eth wire encoding.
type hashOrNumber struct {
	Hash   common.Hash
	Number uint64
}

// EncodeRLP implements rlp.Encoder, encoding only the active field.
func (hn *hashOrNumber) EncodeRLP(w io.Writer) error {
	if hn.Hash == (common.Hash{}) {
		return rlp.Encode(w, hn.Number)
	}
	if hn.Number != 0 {
		panic("both origin hash and number set")
	}
	return rlp.Encode(w, hn.Hash)
}

// DecodeRLP implements rlp.Decoder, detecting which form was sent by size.
func (hn *hashOrNumber) DecodeRLP(s *rlp.Stream) error {
	_, size, err := s.Kind()
	switch {
	case err != nil:
		return err
	case size == 32:
		hn.Number = 0
		return s.Decode(&hn.Hash)
	default:
		hn.Hash = common.Hash{}
		return s.Decode(&hn.Number)
	}
}

// getBlockHeadersData is the payload of a GetBlockHeaders request.
type getBlockHeadersData struct {
	Origin  hashOrNumber
	Amount  uint64
	Skip    uint64
	Reverse bool
}

// newBlockData is the payload of a propagated NewBlock message.
type newBlockData struct {
	Block *types.Block
	TD    *big.Int
}

// blockBody is one entry of a BlockBodies response: the transaction list
// for a single block (uncles are carried for wire compatibility with the
// PoW base layer but are not consulted by anything in this core).
type blockBody struct {
	Transactions []*types.Transaction
	Uncles       []*types.Header
}

type blockBodiesData []*blockBody
