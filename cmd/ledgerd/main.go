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
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/daemon/ledgerd"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/protocol"
)

var dataDirectory = flag.String("d", "", "Root ledger daemon data path")
var versionCheck = flag.Bool("v", false, "Display and write current build version and exit")
var branchCheck = flag.Bool("b", false, "Display the git branch behind the build")
var logToStdout = flag.Bool("o", false, "Write to stdout instead of node.log by overriding config.LogSizeLimit to 0")
var listenIP = flag.String("l", "", "Override config.EndpointAddress (REST listening address) with ip:port")
var initAndExit = flag.Bool("x", false, "Write the default config.json if missing, then exit")

func main() {
	flag.Parse()
	exitCode := run()
	os.Exit(exitCode)
}

func run() int {
	if *versionCheck {
		fmt.Println(config.FormatVersionAndLicense())
		return 0
	}

	// -b will print only the git branch and then exit
	if *branchCheck {
		fmt.Println(config.Branch)
		return 0
	}

	dataDir := resolveDataDir()
	if len(dataDir) == 0 {
		fmt.Fprintln(os.Stderr, "Data directory not specified.  Please use -d or set $MICROLEDGER_DATA in your environment.")
		return 1
	}
	absolutePath, err := filepath.Abs(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't convert data directory's path to absolute, %v\n", dataDir)
		return 1
	}

	// If data directory doesn't exist, we can't run. Don't bother trying.
	if _, err1 := os.Stat(absolutePath); err1 != nil {
		fmt.Fprintf(os.Stderr, "Data directory %s does not appear to be valid\n", dataDir)
		return 1
	}

	log := logging.Base()
	// before doing anything further, attempt to acquire the daemon lock
	// to ensure this is the only node running against this data directory
	lockPath := filepath.Join(absolutePath, config.LockFilename)
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unexpected failure in establishing %s: %s \n", config.LockFilename, err.Error())
		return 1
	}
	if !locked {
		fmt.Fprintf(os.Stderr, "failed to lock %s; is an instance of ledgerd already running in this data directory?\n", config.LockFilename)
		return 1
	}
	defer fileLock.Unlock()

	cfg, err := config.LoadConfigFromDisk(absolutePath)
	if err != nil && !os.IsNotExist(err) {
		// log is not setup yet, this will log to stderr
		log.Fatalf("Cannot load config: %v", err)
	}
	if os.IsNotExist(err) && *initAndExit {
		err = cfg.SaveToDisk(absolutePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot write config: %v\n", err)
			return 1
		}
	}
	if *initAndExit {
		return 0
	}

	if *logToStdout {
		cfg.LogSizeLimit = 0
	}
	if *listenIP != "" {
		cfg.EndpointAddress = *listenIP
	}

	// log is not setup yet
	fmt.Printf("Config loaded from %s\n", absolutePath)
	fmt.Println("Configuration after loading/defaults merge: ")
	os.Stdout.Write(protocol.EncodeJSONIndent(cfg))
	fmt.Println()

	s := ledgerd.Server{RootPath: absolutePath}
	err = s.Initialize(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Error(err)
		return 1
	}

	s.Start()
	return 0
}

func resolveDataDir() string {
	// Figure out what data directory to tell ledgerd to use.
	// If not specified on cmdline with '-d', look for default in environment.
	var dir string
	if dataDirectory == nil || *dataDirectory == "" {
		dir = os.Getenv("MICROLEDGER_DATA")
	} else {
		dir = *dataDirectory
	}
	return dir
}
