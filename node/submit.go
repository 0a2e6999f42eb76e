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

package node

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/agreement"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/protocol"
)

// SubmitLedgerCreation validates and signs the genesis batch of req, creates the
// ledger among its participants and returns the stored ledger.
// An empty participant list means the configured registry.
func (n *Node) SubmitLedgerCreation(ctx context.Context, req microledger.CreateLedgerRequest, obs agreement.Observer) (rec ledger.LedgerRecord, err error) {
	obs = n.observe(req.ID, obs)
	start := time.Now()
	defer func() {
		n.metrics.observeRound(agent.KindInitLedger, start, err)
		n.finish(obs, fmt.Sprintf("Ledger %s created", req.Name), err)
	}()

	err = microledger.ValidateCreateLedger(req)
	if err != nil {
		return
	}
	participants := n.withSelf(req.Participants)

	s, err := n.open(ctx)
	if err != nil {
		return
	}
	defer s.Close()

	genesis, err := n.sign(ctx, s, req.Genesis)
	if err != nil {
		return
	}
	_, _, err = s.orch.InitLedger(ctx, req.Name, genesis, participants, time.Duration(req.TimeToLive)*time.Second, obs)
	if err != nil {
		return
	}
	return n.store.Ledger(ctx, req.Name)
}

// SubmitTransaction validates and signs doc and commits it to the ledger it names.
// It returns the transaction as committed, with the sequence number the round assigned.
func (n *Node) SubmitTransaction(ctx context.Context, doc microledger.Document, ttl time.Duration, obs agreement.Observer) (txn microledger.Transaction, err error) {
	stream := doc.String(microledger.IDField)
	obs = n.observe(stream, obs)
	start := time.Now()
	defer func() {
		n.metrics.observeRound(agent.KindCommit, start, err)
		n.finish(obs, "Transaction committed", err)
	}()

	err = microledger.ValidateTransaction(doc)
	if err != nil {
		return
	}
	name := doc.LedgerName()

	s, err := n.open(ctx)
	if err != nil {
		return
	}
	defer s.Close()

	signed, err := n.sign(ctx, s, []microledger.Document{doc})
	if err != nil {
		return
	}
	committed, err := s.orch.Commit(ctx, name, signed, n.participantsOf(ctx, name), n.timeToLive(ttl), obs)
	if err != nil {
		return
	}
	if len(committed) != 1 {
		err = fmt.Errorf("ledger %s: round committed %d transactions, expected 1", name, len(committed))
		return
	}
	return committed[0], nil
}

// SubmitParallelTransactions commits every ledger's documents in one round:
// either all ledgers advance or none does.
func (n *Node) SubmitParallelTransactions(ctx context.Context, docsByLedger map[string][]microledger.Document, ttl time.Duration, obs agreement.Observer) (committed map[string][]microledger.Transaction, err error) {
	stream := protocol.NewID()
	obs = n.observe(stream, obs)
	start := time.Now()
	defer func() {
		n.metrics.observeRound(agent.KindParallelCommit, start, err)
		n.finish(obs, fmt.Sprintf("Transactions committed to %d ledger(s)", len(docsByLedger)), err)
	}()

	names := make([]string, 0, len(docsByLedger))
	for name, docs := range docsByLedger {
		if len(docs) == 0 {
			err = &microledger.ValidationError{Field: "ledger.name", Reason: fmt.Sprintf("Ledger %s: no transactions", name)}
			return
		}
		for _, doc := range docs {
			err = microledger.ValidateTransaction(doc)
			if err != nil {
				return
			}
			if doc.LedgerName() != name {
				err = &microledger.ValidationError{
					Field:  "ledger.name",
					Reason: fmt.Sprintf("Transaction: ledger.name %q does not match target ledger %q", doc.LedgerName(), name),
				}
				return
			}
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		err = &microledger.ValidationError{Field: microledger.LedgerField, Reason: "Request: no ledgers"}
		return
	}
	sort.Strings(names)

	s, err := n.open(ctx)
	if err != nil {
		return
	}
	defer s.Close()

	batches := make([]agreement.Batch, 0, len(names))
	var participants []string
	for _, name := range names {
		var txns []microledger.Transaction
		txns, err = n.sign(ctx, s, docsByLedger[name])
		if err != nil {
			return
		}
		batches = append(batches, agreement.Batch{Ledger: name, Txns: txns})
		participants = union(participants, n.participantsOf(ctx, name))
	}
	return s.orch.CommitParallel(ctx, batches, participants, n.timeToLive(ttl), obs)
}

func (n *Node) sign(ctx context.Context, s *session, docs []microledger.Document) ([]microledger.Transaction, error) {
	out := make([]microledger.Transaction, 0, len(docs))
	for _, doc := range docs {
		signed, err := microledger.Sign(ctx, s.Wallet(), doc, s.me.Verkey)
		if err != nil {
			return nil, err
		}
		out = append(out, microledger.MakeTransaction(signed))
	}
	return out, nil
}

func (n *Node) withSelf(participants []string) []string {
	if len(participants) == 0 {
		return n.cfg.ResolveParticipants()
	}
	return union([]string{n.cfg.Entity}, participants)
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
