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

	"github.com/ethereum/go-ethereum/common"
)

// BlockConfig mirrors the `eth.block.*` configuration surface: everything
// here is forwarded verbatim to the external execution engine, except the
// Casper and DAO constants this core itself consults directly.
type BlockConfig struct {
	EpochLength        uint64
	WithdrawalDelay    uint64
	BaseInterestFactor *big.Float
	BasePenaltyFactor  *big.Float

	DAOForkBlockNum   *big.Int
	DAOForkBlockHash  common.Hash
	DAOForkBlockExtra []byte
}

// Config is the full set of recognized `eth.*` options.
type Config struct {
	NetworkID uint64

	// Pruning is -1 (archive, no pruning) or a non-negative retention TTL.
	// It is a one-way latch once a data directory has been initialized.
	Pruning int64

	Block BlockConfig

	// Validate names the single local validator identity, or is empty.
	Validate common.Address
	HasValidate bool

	// DepositSize is wei; zero means "do not deposit".
	DepositSize *big.Int

	ShouldLogout bool

	// MinGasPrice is the admission floor (default 100 Gwei).
	MinGasPrice *big.Int
}

// DefaultMinGasPrice is the 100 Gwei floor used as the default admission
// threshold.
func DefaultMinGasPrice() *big.Int {
	return new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000))
}

func (c *Config) dao() DAOConfig {
	return DAOConfig{
		BlockNum:   c.Block.DAOForkBlockNum,
		BlockHash:  c.Block.DAOForkBlockHash,
		BlockExtra: c.Block.DAOForkBlockExtra,
	}
}
