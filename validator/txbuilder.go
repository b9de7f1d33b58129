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
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// logoutBroadcastCooldown bounds how often a re-broadcast of the logout
// transaction is attempted while WaitingForLogOut persists (spec.md §4.H);
// the contract itself only needs to see it once, but peers drop it and a
// single retry window keeps the service from spamming the pool every head.
const logoutBroadcastCooldown = 60 * time.Second

// validatorGasPrice is the gas price the service itself selects for its
// locally minted transactions — deposit, valcode, logout, withdraw — since
// none of them go through the normal fee market (spec.md §4.H). 110 Gwei
// mirrors pyethapp's DEFAULT_MIN_GASPRICE headroom over a typical base fee.
var validatorGasPrice = big.NewInt(110_000_000_000)

var (
	int128Ty, _ = abi.NewType("int128", "", nil)
	bytes32Ty, _ = abi.NewType("bytes32", "", nil)
	bytesTy, _   = abi.NewType("bytes", "", nil)
)

// voteMessageArgs is the pre-signature payload a vote message commits to:
// (validator_index, target_hash, target_epoch, source_epoch).
var voteMessageArgs = abi.Arguments{
	{Type: int128Ty},
	{Type: bytes32Ty},
	{Type: int128Ty},
	{Type: int128Ty},
}

// logoutMessageArgs is the pre-signature payload a logout message commits
// to: (validator_index, epoch).
var logoutMessageArgs = abi.Arguments{
	{Type: int128Ty},
	{Type: int128Ty},
}

// signedMessageArgs wraps either payload together with its signature; this
// is what actually gets passed as vote()/logout()'s single bytes argument.
var signedMessageArgs = abi.Arguments{
	{Type: bytesTy},
	{Type: bytesTy},
}

// buildVoteMessage reproduces casper_utils.mk_vote: sign
// keccak256(abi_encode(validator_index, target_hash, target_epoch,
// source_epoch)) with the validator's own private key (the finality
// gadget's own signature scheme, distinct from normal tx signing), then
// wrap the payload and the 65-byte [R || S || V] signature together.
func buildVoteMessage(validatorIndex uint64, targetHash common.Hash, targetEpoch, sourceEpoch uint64, key *ecdsa.PrivateKey) ([]byte, error) {
	payload, err := voteMessageArgs.Pack(
		new(big.Int).SetUint64(validatorIndex),
		targetHash,
		new(big.Int).SetUint64(targetEpoch),
		new(big.Int).SetUint64(sourceEpoch),
	)
	if err != nil {
		return nil, err
	}
	return signPayload(payload, key)
}

// buildLogoutMessage reproduces casper_utils.mk_logout: sign
// keccak256(abi_encode(validator_index, epoch)) with the validator's
// private key.
func buildLogoutMessage(validatorIndex, epoch uint64, key *ecdsa.PrivateKey) ([]byte, error) {
	payload, err := logoutMessageArgs.Pack(
		new(big.Int).SetUint64(validatorIndex),
		new(big.Int).SetUint64(epoch),
	)
	if err != nil {
		return nil, err
	}
	return signPayload(payload, key)
}

func signPayload(payload []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := crypto.Keccak256(payload)
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	return signedMessageArgs.Pack(payload, sig)
}

// validationCodeAddress derives the address mk_validation_code's deployment
// transaction will create, the way the source precomputes it before the
// transaction is even mined (spec.md §4.H "contract address is
// deterministic from (sender, nonce)").
func validationCodeAddress(sender common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(sender, nonce)
}

// validationCodePrefix and validationCodeSuffix are the fixed halves of a
// validator's validation code contract, with the validator's own address
// spliced between them at deployment time — the same template-plus-splice
// construction casper_utils.mk_validation_code uses, rather than
// assembling bytecode field-by-field. The runtime body ecrecovers the
// (sighash, v, r, s) calldata it's called with and returns 1 iff the
// recovered signer is the spliced-in address, reverting otherwise; the
// leading bytes are the deployment preamble that returns this runtime code
// from the constructor.
var (
	validationCodePrefix = common.Hex2Bytes("600b5981600b8239f3600060008037602060006080600060016000f150600051" + "73")
	validationCodeSuffix = common.Hex2Bytes("1415600e57600080fd5b600160005260206000f3")
)

// validationCodeInitCode builds the init code for a validator's validation
// code contract: deployed once per validator, it is the address the
// finality contract's deposit() call records as "validation_addr", and at
// withdrawal time the contract calls into it to verify a withdrawal
// signature (spec.md §4.H step 1 "deploy a validation code contract bound
// to this validator's address").
func validationCodeInitCode(addr common.Address) []byte {
	out := make([]byte, 0, len(validationCodePrefix)+common.AddressLength+len(validationCodeSuffix))
	out = append(out, validationCodePrefix...)
	out = append(out, addr.Bytes()...)
	out = append(out, validationCodeSuffix...)
	return out
}

// buildContractTx assembles one of the service's locally minted, legacy
// (non-EIP-1559) transactions: valcode deployment, deposit, logout, or
// withdraw. value is non-nil only for the deposit call. gasPrice is left to
// the caller since the vote transaction (buildVoteTx) must not use the
// service's normal fee-bearing price.
func buildContractTx(nonce uint64, to *common.Address, value, gasPrice *big.Int, gasLimit uint64, data []byte) *types.Transaction {
	v := value
	if v == nil {
		v = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    v,
		Gas:      gasLimit,
		GasPrice: new(big.Int).Set(gasPrice),
		Data:     data,
	})
}

// buildVoteTx wraps a signed vote message in an unsigned, zero-gas
// transaction from the sentinel vote sender (spec.md §4.H step 8; see
// eth/validatorsupport.go's voteSentinelSender). Unlike every other
// locally minted transaction, the vote's sender is never funded, so a
// non-zero gas price would make it permanently unpayable the moment a
// miner tried to include it — casper_utils.mk_vote_tx hard-codes
// gasprice=0 for exactly this reason.
func buildVoteTx(to *common.Address, gasLimit uint64, data []byte) *types.Transaction {
	return buildContractTx(0, to, nil, new(big.Int), gasLimit, data)
}
