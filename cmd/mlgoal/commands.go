// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/client"
)

var dataDir string

var versionCheck bool

var requestTimeout time.Duration

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Flags().BoolVarP(&versionCheck, "version", "v", false, "Display and write current build version and exit")
	rootCmd.AddCommand(licenseCmd)

	// ledger.go
	rootCmd.AddCommand(ledgerCmd)

	// txn.go
	rootCmd.AddCommand(txnCmd)

	// Config
	rootCmd.PersistentFlags().StringVarP(&dataDir, "datadir", "d", "", "Data directory for the ledger daemon")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 2*time.Minute, "Time to wait for a request, including the consensus round it starts")
}

var rootCmd = &cobra.Command{
	Use:   "mlgoal",
	Short: "CLI for interacting with a ledger daemon",
	Long:  `mlgoal creates microledgers, issues transactions and inspects the local projection of a running ledgerd.`,
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		if versionCheck {
			fmt.Println(config.FormatVersionAndLicense())
			return
		}
		//If no arguments passed, we should fallback to help
		cmd.HelpFunc()(cmd, args)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "The API versions and entity of the ledger daemon",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		response, err := ensureClient().Versions(cmd.Context())
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		fmt.Printf("Versions: %v\n", response.Versions)
		fmt.Printf("Entity: %s\n", response.Entity)
		fmt.Printf("Build: %s\n", response.Build)
	},
}

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Display license information",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetLicenseInfo())
	},
}

func validateNoPosArgsFn(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
	}
	return nil
}

// resolveDataDir returns -d, or $MICROLEDGER_DATA when -d is not given.
func resolveDataDir() string {
	dir := dataDir
	if dir == "" {
		dir = os.Getenv("MICROLEDGER_DATA")
	}
	return dir
}

// daemonURL reads the address the daemon of dir wrote to its net file.
func daemonURL(dir string) (*url.URL, error) {
	raw, err := os.ReadFile(filepath.Join(dir, config.NetFilename))
	if err != nil {
		return nil, fmt.Errorf(errorNoNetFile, dir, err)
	}
	addr := strings.TrimSpace(string(raw))
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return url.Parse(addr)
}

func ensureClient() client.RestClient {
	dir := resolveDataDir()
	if dir == "" {
		reportErrorln(errorNoDataDir)
	}
	u, err := daemonURL(dir)
	if err != nil {
		reportErrorln(err)
	}
	return client.MakeRestClient(*u, requestTimeout)
}

func reportInfof(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func reportSuccessf(format string, args ...interface{}) {
	fmt.Println(color.New(color.FgGreen).Sprintf(format, args...))
}

func reportWarnf(format string, args ...interface{}) {
	fmt.Println(color.New(color.FgYellow).Sprintf("Warning: "+format, args...))
}

func reportProblemf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprintf(format, args...))
}

func reportErrorln(args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint(args...))
	os.Exit(1)
}

func reportErrorf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprintf(format, args...))
	os.Exit(1)
}
