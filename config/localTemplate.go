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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/algorand/go-microledger/util/codecs"
)

// AgentDriverMemory selects the in-process agent.
const AgentDriverMemory = "memory"

// Local holds the per-node settings of a ledger daemon.
// New fields get a default in defaultLocal; when an existing default changes,
// bump Version and teach migrate about it.
type Local struct {
	// Version tracks the version of the defaults the file was written against.
	Version uint32

	// Entity is the DID this node acts as. Ledger rows and namespaced ledger names are scoped by it.
	Entity string

	// Participants lists the DIDs of the registry members that take part in every round.
	Participants []string

	// ParticipantVerkeys maps participant DIDs to the verkeys their signatures must verify against.
	ParticipantVerkeys map[string]string

	// SingleLedgerStorePerEntity stores this entity's ledgers as "{Entity}/{name}"
	// in the agent, so that several entities can share one agent.
	SingleLedgerStorePerEntity bool

	// DefaultTimeToLive is the time to live, in seconds, of rounds whose request does not set one.
	DefaultTimeToLive int

	// EndpointAddress is the address the REST and websocket API listens on.
	EndpointAddress string

	// DatabaseFilename is the sqlite file, relative to the data directory, holding the local ledger store.
	DatabaseFilename string

	// BaseLoggerDebugLevel is the logging level, 0 (panic) to 5 (debug).
	BaseLoggerDebugLevel uint32

	// LogSizeLimit caps node.log in bytes before it is rotated to LogArchiveName. 0 logs to stderr.
	LogSizeLimit uint64

	LogFileName    string
	LogArchiveName string

	// DispatcherRestartDelay is how long the inbound dispatcher waits before
	// resubscribing after a transport failure.
	DispatcherRestartDelay time.Duration

	// DispatcherReconnectDelay is the wait after the agent closed the subscription cleanly.
	DispatcherReconnectDelay time.Duration

	// ProgressBufferSize is how many progress events a slow client may lag behind before events are dropped.
	ProgressBufferSize int

	// EnableStream publishes progress and committed transactions to Kafka.
	EnableStream  bool
	StreamBrokers []string
	StreamTopic   string

	// EnableMetrics serves prometheus metrics on /metrics.
	EnableMetrics bool

	// EnableDeadlockDetection reports locks held for too long.
	EnableDeadlockDetection bool

	// AgentDriver selects the ledger agent implementation. Only "memory" is built in.
	AgentDriver string

	// AgentSeed is the hex encoded 32 byte seed of the node key for the in-memory agent.
	AgentSeed string
}

// defaultLocal holds the defaults of the current Version.
var defaultLocal = Local{
	Version:                    1,
	DefaultTimeToLive:          30,
	EndpointAddress:            "127.0.0.1:8080",
	DatabaseFilename:           "microledgers.sqlite",
	BaseLoggerDebugLevel:       4,
	LogSizeLimit:               1073741824,
	LogFileName:                "node.log",
	LogArchiveName:             "node.archive.log",
	DispatcherRestartDelay:     30 * time.Second,
	DispatcherReconnectDelay:   time.Second,
	ProgressBufferSize:         64,
	StreamTopic:                "microledger-events",
	EnableDeadlockDetection:    true,
	AgentDriver:                AgentDriverMemory,
	SingleLedgerStorePerEntity: false,
}

// ErrInvalidConfig is wrapped by every error Validate returns.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks settings that would make the node unusable.
func (cfg Local) Validate() error {
	switch {
	case cfg.Entity == "":
		return fmt.Errorf("%w: Entity is not set", ErrInvalidConfig)
	case cfg.DefaultTimeToLive <= 0:
		return fmt.Errorf("%w: DefaultTimeToLive must be positive, got %d", ErrInvalidConfig, cfg.DefaultTimeToLive)
	case cfg.DispatcherRestartDelay <= 0 || cfg.DispatcherReconnectDelay <= 0:
		return fmt.Errorf("%w: dispatcher delays must be positive", ErrInvalidConfig)
	case cfg.ProgressBufferSize <= 0:
		return fmt.Errorf("%w: ProgressBufferSize must be positive", ErrInvalidConfig)
	case cfg.EnableStream && len(cfg.StreamBrokers) == 0:
		return fmt.Errorf("%w: EnableStream needs StreamBrokers", ErrInvalidConfig)
	case cfg.AgentDriver != AgentDriverMemory:
		return fmt.Errorf("%w: unknown AgentDriver %q", ErrInvalidConfig, cfg.AgentDriver)
	}
	return nil
}

// TimeToLive returns the default round time to live.
func (cfg Local) TimeToLive() time.Duration {
	return time.Duration(cfg.DefaultTimeToLive) * time.Second
}

// ResolveParticipants returns Participants, always including Entity.
func (cfg Local) ResolveParticipants() []string {
	out := []string{cfg.Entity}
	for _, p := range cfg.Participants {
		if p != cfg.Entity {
			out = append(out, p)
		}
	}
	return out
}

// SaveToDisk writes the non-default Local settings into a root/ConfigFilename file
func (cfg Local) SaveToDisk(root string) error {
	configpath := filepath.Join(root, ConfigFilename)
	filename := os.ExpandEnv(configpath)
	return cfg.SaveToFile(filename)
}

// SaveToFile saves the config to a specific filename, allowing overriding the default name
func (cfg Local) SaveToFile(filename string) error {
	return codecs.SaveNonDefaultValuesToFile(filename, cfg, defaultLocal, []string{"Version"}, true)
}
