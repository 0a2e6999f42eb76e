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

package agent

import (
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/protocol"
)

// Message is the closed set of messages a node receives from its peers.
// The dispatcher switches over the concrete types below.
type Message interface {
	messageKind() string
}

// Kinds of inbound messages, used for logging and metrics.
const (
	KindInitLedger     = "init_ledger"
	KindCommit         = "commit"
	KindParallelCommit = "parallel_commit"
	KindSideChannel    = "side_channel"
)

// Kind returns the short kind name of m.
func Kind(m Message) string {
	if m == nil {
		return "unknown"
	}
	return m.messageKind()
}

// ProposeInitLedger asks the participants to create a ledger from a genesis batch.
type ProposeInitLedger struct {
	ThreadID     string
	Ledger       string
	Participants []string
	Genesis      []microledger.Transaction
	Signer       string
}

// ProposeCommit asks the participants to append transactions to one ledger.
type ProposeCommit struct {
	ThreadID     string
	Ledger       string
	Participants []string
	Transactions []microledger.Transaction
	Signer       string
}

// ParallelEntry is the part of a parallel commit aimed at one ledger.
type ParallelEntry struct {
	Ledger       string
	Transactions []microledger.Transaction
}

// ProposeParallelCommit asks the participants to advance several ledgers at once.
type ProposeParallelCommit struct {
	ThreadID     string
	Participants []string
	Entries      []ParallelEntry
	Signer       string
}

// Ledgers returns the ledger names targeted by the proposal.
func (p *ProposeParallelCommit) Ledgers() []string {
	names := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		names = append(names, e.Ledger)
	}
	return names
}

// SideChannel carries an application message unrelated to ledgers.
type SideChannel struct {
	Type protocol.MessageType
	Body []byte
}

func (*ProposeInitLedger) messageKind() string     { return KindInitLedger }
func (*ProposeCommit) messageKind() string         { return KindCommit }
func (*ProposeParallelCommit) messageKind() string { return KindParallelCommit }
func (*SideChannel) messageKind() string           { return KindSideChannel }
