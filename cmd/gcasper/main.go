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

// Command gcasper is the thin CLI/config glue spec.md §6 names: it loads
// the `eth.*` and validator knobs from an optional TOML file and the
// handful of flags spec.md §6 recognizes, then hands the resulting
// eth.Config to an embedder that supplies the out-of-scope collaborators
// (execution engine, p2p transport, keystore, persistent store — spec.md
// §1). It deliberately does not reimplement the rest of geth's CLI
// surface (accounts, attach console, IPC/RPC endpoints): those stay
// external per spec.md §1 "CLI wiring ... out of scope".
package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	networkIDFlag = &cli.Uint64Flag{
		Name:  "networkid",
		Usage: "Network identifier peers must agree on",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the shared persistent store",
	}
	pruningFlag = &cli.Int64Flag{
		Name:  "pruning",
		Usage: "Pruning retention TTL, or -1 for archive mode (one-way latch per data directory)",
		Value: -1,
	}
	validateFlag = &cli.StringFlag{
		Name:  "validate",
		Usage: "Local validator identity address (hex)",
	}
	depositSizeFlag = &cli.StringFlag{
		Name:  "deposit-size",
		Usage: "Deposit size in wei; absent or 0 means do not deposit",
	}
	shouldLogoutFlag = &cli.BoolFlag{
		Name:  "should-logout",
		Usage: "Direct the validator state machine past Voting into WaitingForLogOut",
	}
	minGasPriceFlag = &cli.StringFlag{
		Name:  "min-gasprice",
		Usage: "Transaction admission floor in wei",
	}
)

func main() {
	app := &cli.App{
		Name:  "gcasper",
		Usage: "hybrid Casper FFG client-side node core",
		Flags: []cli.Flag{
			configFlag, networkIDFlag, dataDirFlag, pruningFlag,
			validateFlag, depositSizeFlag, shouldLogoutFlag, minGasPriceFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "dumpconfig",
				Usage: "Show the effective configuration as TOML",
				Action: func(c *cli.Context) error {
					cfg, err := buildConfig(c)
					if err != nil {
						return err
					}
					return dumpConfig(os.Stdout, cfg)
				},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := buildConfig(c)
			if err != nil {
				return err
			}
			log.Info("gcasper configured", "networkid", cfg.Eth.NetworkID, "datadir", cfg.DataDir,
				"validate", cfg.Eth.HasValidate, "depositSize", cfg.Eth.DepositSize)
			log.Warn("gcasper is a library entrypoint: wire an execution engine, p2p stack, " +
				"and keystore before calling eth.NewChainService / validator.NewService")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildConfig layers flags over an optional TOML file over the built-in
// defaults, in that precedence order (flags win).
func buildConfig(c *cli.Context) (gcasperConfig, error) {
	cfg := defaultConfig()

	if path := c.String(configFlag.Name); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if c.IsSet(networkIDFlag.Name) {
		cfg.Eth.NetworkID = c.Uint64(networkIDFlag.Name)
	}
	if c.IsSet(dataDirFlag.Name) {
		cfg.DataDir = c.String(dataDirFlag.Name)
	}
	if c.IsSet(pruningFlag.Name) {
		cfg.Eth.Pruning = c.Int64(pruningFlag.Name)
	}
	if c.IsSet(validateFlag.Name) {
		addr := c.String(validateFlag.Name)
		if !common.IsHexAddress(addr) {
			return cfg, fmt.Errorf("--validate: %q is not a hex address", addr)
		}
		cfg.Eth.Validate = common.HexToAddress(addr)
		cfg.Eth.HasValidate = true
	}
	if c.IsSet(depositSizeFlag.Name) {
		v, ok := new(big.Int).SetString(c.String(depositSizeFlag.Name), 10)
		if !ok {
			return cfg, fmt.Errorf("--deposit-size: %q is not a valid integer", c.String(depositSizeFlag.Name))
		}
		cfg.Eth.DepositSize = v
	}
	if c.IsSet(shouldLogoutFlag.Name) {
		cfg.Eth.ShouldLogout = c.Bool(shouldLogoutFlag.Name)
	}
	if c.IsSet(minGasPriceFlag.Name) {
		v, ok := new(big.Int).SetString(c.String(minGasPriceFlag.Name), 10)
		if !ok {
			return cfg, fmt.Errorf("--min-gasprice: %q is not a valid integer", c.String(minGasPriceFlag.Name))
		}
		cfg.Eth.MinGasPrice = v
	}

	return cfg, nil
}
