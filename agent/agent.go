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

// Package agent declares the ledger agent the node talks to: the wallet that
// holds signing keys, the distributed microledger store, consensus rounds and
// the stream of protocol messages peers address to this node.
package agent

import (
	"context"
	"time"

	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
)

// Connector opens connections to a ledger agent.
type Connector interface {
	Open(ctx context.Context) (Agent, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Agent, error)

// Open calls f(ctx).
func (f ConnectorFunc) Open(ctx context.Context) (Agent, error) {
	return f(ctx)
}

// Agent is an open connection to the ledger agent. Close must be called on every exit path.
type Agent interface {
	Wallet() Wallet
	Microledgers() MicroledgerList

	// NewConsensusRound binds a consensus round to this connection.
	NewConsensusRound(params RoundParams) ConsensusRound

	// Subscribe returns the stream of inbound protocol messages addressed to this node.
	Subscribe(ctx context.Context) (Subscription, error)

	// SendTo delivers a side-channel message to a peer.
	SendTo(ctx context.Context, msg interface{}, to Pairwise) error

	// Ping checks that the agent answers.
	Ping(ctx context.Context) error

	Close() error
}

// Wallet is the key store of the agent.
type Wallet interface {
	microledger.Signer
	KeyForLocalDID(ctx context.Context, did string) (string, error)
}

// MicroledgerList is the distributed microledger store of the agent.
type MicroledgerList interface {
	Create(ctx context.Context, name string, genesis []microledger.Transaction) (Microledger, []microledger.Transaction, error)
	Ledger(ctx context.Context, name string) (Microledger, error)
	Reset(ctx context.Context, name string) error
	IsExists(ctx context.Context, name string) (bool, error)
	LeafHash(ctx context.Context, txn microledger.Transaction) ([]byte, error)
	List(ctx context.Context) ([]microledger.LedgerMeta, error)
}

// Microledger is a handle to one distributed ledger.
type Microledger interface {
	Name() string
	Size(ctx context.Context) (uint64, error)
	AllTransactions(ctx context.Context) ([]microledger.Transaction, error)
}

// Me is the local identity taking part in a round.
type Me struct {
	DID    string
	Verkey string
}

// Their is the remote identity of a pairwise connection.
type Their struct {
	DID    string
	Verkey string
	Label  string
}

// Pairwise is an authenticated channel between this node and one counterpart.
type Pairwise struct {
	Me    Me
	Their Their
}

// RoundParams configures a consensus round.
type RoundParams struct {
	Me           Me
	Microledgers MicroledgerList
	TimeToLive   time.Duration

	// Log receives state machine events. Events are field sets; those that
	// report progress carry "progress" and/or "message".
	Log func(event map[string]interface{})

	Logger logging.Logger
}

// LedgerBatch is a set of transactions destined for one ledger.
type LedgerBatch struct {
	Ledger Microledger
	Txns   []microledger.Transaction
}

// ConsensusRound drives one propose/accept exchange with the participants.
// Unsuccessful rounds return (false, ...) and ProblemReport describes why.
type ConsensusRound interface {
	InitLedger(ctx context.Context, name string, participants []string, genesis []microledger.Transaction) (bool, Microledger, error)
	Commit(ctx context.Context, ledger Microledger, participants []string, txns []microledger.Transaction) (bool, []microledger.Transaction, error)
	CommitParallel(ctx context.Context, batches []LedgerBatch, participants []string) (bool, error)

	AcceptInitLedger(ctx context.Context, leader Pairwise, propose *ProposeInitLedger) (bool, Microledger, error)
	AcceptCommit(ctx context.Context, leader Pairwise, propose *ProposeCommit) (bool, Microledger, error)
	AcceptCommitParallel(ctx context.Context, leader Pairwise, propose *ProposeParallelCommit) (bool, []Microledger, error)

	ProblemReport() *Problem
}

// Problem explains why a round failed.
type Problem struct {
	Code    string
	Explain string
}

// Problem codes reported by consensus rounds.
const (
	ProblemTimeout  = "timeout"
	ProblemRejected = "rejected"
	ProblemInvalid  = "request_not_accepted"
)

// Subscription is a long-lived stream of inbound events.
type Subscription interface {
	// Next blocks for the next event. It returns ErrConnectionClosed once the
	// agent closed the stream cleanly, and a TransportError otherwise.
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Event is one inbound message and the connection it came from.
type Event struct {
	Message  Message
	Pairwise Pairwise
}
