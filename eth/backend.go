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
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/ethdb"
)

var (
	networkIDKey   = []byte("NetworkId")
	pruningModeKey = []byte("PruningMode")

	pruningYes = []byte("I am pruning")
	pruningNo  = []byte("I am not pruning")
)

// writeStartupSentinels stamps (or validates against) the two sentinel
// keys a data directory carries: the network id, checked for equality, and
// the pruning mode, a one-way latch. Both are fatal startup errors on
// mismatch — this core never silently reinterprets a data directory.
func writeStartupSentinels(db ethdb.KeyValueStore, cfg *Config) error {
	if err := checkNetworkID(db, cfg.NetworkID); err != nil {
		return err
	}
	return checkPruningMode(db, cfg.Pruning >= 0)
}

func checkNetworkID(db ethdb.KeyValueStore, networkID uint64) error {
	has, err := db.Has(networkIDKey)
	if err != nil {
		return err
	}
	if !has {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, networkID)
		return db.Put(networkIDKey, buf)
	}
	stored, err := db.Get(networkIDKey)
	if err != nil {
		return err
	}
	if len(stored) != 8 || binary.BigEndian.Uint64(stored) != networkID {
		return fmt.Errorf("network id mismatch: data directory was initialized with a different network id")
	}
	return nil
}

func checkPruningMode(db ethdb.KeyValueStore, pruning bool) error {
	want := pruningNo
	if pruning {
		want = pruningYes
	}
	has, err := db.Has(pruningModeKey)
	if err != nil {
		return err
	}
	if !has {
		return db.Put(pruningModeKey, want)
	}
	stored, err := db.Get(pruningModeKey)
	if err != nil {
		return err
	}
	if string(stored) != string(want) {
		return fmt.Errorf("pruning mode latch violated: data directory was initialized with %q", stored)
	}
	return nil
}
