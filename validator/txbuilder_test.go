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
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestBuildVoteMessageRecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	msg, err := buildVoteMessage(3, common.HexToHash("0xaa"), 10, 9, key)
	if err != nil {
		t.Fatalf("buildVoteMessage failed: %v", err)
	}

	values, err := signedMessageArgs.Unpack(msg)
	if err != nil {
		t.Fatalf("failed to unpack signed message: %v", err)
	}
	payload := values[0].([]byte)
	sig := values[1].([]byte)

	digest := crypto.Keccak256(payload)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub failed: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != want {
		t.Fatalf("recovered signer %s does not match expected %s", got, want)
	}

	decoded, err := voteMessageArgs.Unpack(payload)
	if err != nil {
		t.Fatalf("failed to unpack vote payload: %v", err)
	}
	if decoded[0].(*big.Int).Uint64() != 3 {
		t.Fatalf("expected validator index 3, got %v", decoded[0])
	}
	if decoded[2].(*big.Int).Uint64() != 10 {
		t.Fatalf("expected target epoch 10, got %v", decoded[2])
	}
	if decoded[3].(*big.Int).Uint64() != 9 {
		t.Fatalf("expected source epoch 9, got %v", decoded[3])
	}
}

func TestBuildLogoutMessageRoundTrips(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	msg, err := buildLogoutMessage(7, 42, key)
	if err != nil {
		t.Fatalf("buildLogoutMessage failed: %v", err)
	}

	values, err := signedMessageArgs.Unpack(msg)
	if err != nil {
		t.Fatalf("failed to unpack signed message: %v", err)
	}
	decoded, err := logoutMessageArgs.Unpack(values[0].([]byte))
	if err != nil {
		t.Fatalf("failed to unpack logout payload: %v", err)
	}
	if decoded[0].(*big.Int).Uint64() != 7 {
		t.Fatalf("expected validator index 7, got %v", decoded[0])
	}
	if decoded[1].(*big.Int).Uint64() != 42 {
		t.Fatalf("expected epoch 42, got %v", decoded[1])
	}
}

func TestValidationCodeAddressIsDeterministic(t *testing.T) {
	sender := common.HexToAddress("0x1234")
	a1 := validationCodeAddress(sender, 5)
	a2 := validationCodeAddress(sender, 5)
	if a1 != a2 {
		t.Fatalf("validationCodeAddress must be a pure function of (sender, nonce)")
	}
	if a3 := validationCodeAddress(sender, 6); a3 == a1 {
		t.Fatalf("a different nonce must yield a different contract address")
	}
}

func TestValidationCodeInitCodeSplicesAddress(t *testing.T) {
	addr := common.HexToAddress("0xdeadbeef")
	code := validationCodeInitCode(addr)

	if !bytes.HasPrefix(code, validationCodePrefix) {
		t.Fatalf("init code must start with the fixed deployment preamble")
	}
	if !bytes.HasSuffix(code, validationCodeSuffix) {
		t.Fatalf("init code must end with the fixed ecrecover-check suffix")
	}
	spliced := code[len(validationCodePrefix) : len(validationCodePrefix)+common.AddressLength]
	if !bytes.Equal(spliced, addr.Bytes()) {
		t.Fatalf("the validator's address must be spliced between the prefix and suffix")
	}
}

func TestBuildContractTxDefaultsNilValueToZero(t *testing.T) {
	to := common.HexToAddress("0x01")
	tx := buildContractTx(2, &to, nil, validatorGasPrice, 100000, []byte{0x01})
	if tx.Value().Sign() != 0 {
		t.Fatalf("expected a zero value when value is nil, got %v", tx.Value())
	}
	if tx.Nonce() != 2 {
		t.Fatalf("expected nonce 2, got %d", tx.Nonce())
	}
	if tx.Gas() != 100000 {
		t.Fatalf("expected gas limit 100000, got %d", tx.Gas())
	}
	if tx.GasPrice().Cmp(validatorGasPrice) != 0 {
		t.Fatalf("expected the validator's fixed gas price, got %v", tx.GasPrice())
	}
}

func TestBuildContractTxPreservesValue(t *testing.T) {
	to := common.HexToAddress("0x01")
	value := big.NewInt(1_500_000_000_000_000_000)
	tx := buildContractTx(0, &to, value, validatorGasPrice, 200000, nil)
	if tx.Value().Cmp(value) != 0 {
		t.Fatalf("expected value %v, got %v", value, tx.Value())
	}
}

func TestBuildVoteTxIsZeroGas(t *testing.T) {
	to := common.HexToAddress("0x01")
	tx := buildVoteTx(&to, 200000, []byte{0x01})
	if tx.GasPrice().Sign() != 0 {
		t.Fatalf("expected a zero gas price for the unfunded vote sender, got %v", tx.GasPrice())
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("expected a zero value, got %v", tx.Value())
	}
	if tx.Gas() != 200000 {
		t.Fatalf("expected gas limit 200000, got %d", tx.Gas())
	}
}
