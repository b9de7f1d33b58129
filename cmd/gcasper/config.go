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

package main

import (
	"fmt"
	"math/big"
	"os"
	"reflect"

	"github.com/naoina/toml"

	"github.com/hybridcasper/go-casper/eth"
)

// tomlSettings mirrors go-ethereum's own cmd/geth/config.go: field names
// are taken verbatim (no case folding), and an unrecognized key in the
// file is a hard error rather than a silently ignored typo.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		id := rt.String()
		if id == "main.gcasperConfig" || id == "main.Config" {
			id = "the top-level config"
		}
		return fmt.Errorf("field '%s' is not defined in %s", field, id)
	},
}

// gcasperConfig is the on-disk/--config surface: the eth.Config domain
// tree spec.md §6 names, plus the one node-level knob (DataDir) that sits
// outside it because it belongs to the external persistent store, not the
// chain/validator core.
type gcasperConfig struct {
	Eth     eth.Config
	DataDir string
}

// defaultConfig mirrors the recognized defaults spec.md §6 names:
// min_gasprice 100 Gwei, pruning off (archive, -1), and the classic
// EPOCH_LENGTH/WITHDRAWAL_DELAY/interest-penalty constants carried
// forward from the original hybrid Casper FFG EIP parameters.
func defaultConfig() gcasperConfig {
	return gcasperConfig{
		DataDir: defaultDataDir(),
		Eth: eth.Config{
			NetworkID:   1,
			Pruning:     -1,
			MinGasPrice: eth.DefaultMinGasPrice(),
			Block: eth.BlockConfig{
				EpochLength:        50,
				WithdrawalDelay:    20,
				BaseInterestFactor: big.NewFloat(7e-3),
				BasePenaltyFactor:  big.NewFloat(2e-7),
			},
		},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + string(os.PathSeparator) + ".gcasper"
	}
	return "./.gcasper"
}

// loadConfigFile reads a TOML file into cfg, the `--config` flag path
// (spec.md §A "TOML-loaded Config tree").
func loadConfigFile(path string, cfg *gcasperConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("TOML config error: %w", err)
	}
	return nil
}

// dumpConfig writes cfg to w as TOML, the `gcasper dumpconfig` counterpart
// to geth's own subcommand of the same name.
func dumpConfig(w *os.File, cfg gcasperConfig) error {
	return tomlSettings.NewEncoder(w).Encode(cfg)
}
