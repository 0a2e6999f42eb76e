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

// Package agreement sequences ledger creation and transaction commits through
// the consensus rounds of the ledger agent, and records what the participants
// agreed on in the local ledger store.
package agreement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/protocol"
)

// Actor labels recorded in ledger metadata.
const (
	ActorSelf = "SELF"
	ActorPeer = "PEER"
)

// Persister is the local projection agreed state is written to.
type Persister interface {
	CreateLedger(ctx context.Context, name string, metadata map[string]interface{}, genesis []microledger.Transaction) (int64, error)
	StoreTransactions(ctx context.Context, name string, txns []microledger.Transaction, counterparty string) error
	ResetLedger(ctx context.Context, name string) error
}

// Parameters holds what an Orchestrator needs for one agent connection.
type Parameters struct {
	Agent agent.Agent

	// Microledgers is the view of the agent's ledgers rounds run against,
	// usually namespaced per entity.
	Microledgers agent.MicroledgerList

	Persister
	Me agent.Me
	logging.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator drives consensus rounds as leader or responder.
type Orchestrator struct {
	p Parameters
}

// Batch is a set of transactions for one ledger.
type Batch struct {
	Ledger string
	Txns   []microledger.Transaction
}

// MakeOrchestrator creates an Orchestrator.
func MakeOrchestrator(p Parameters) *Orchestrator {
	if p.Microledgers == nil {
		p.Microledgers = p.Agent.Microledgers()
	}
	if p.Logger == nil {
		p.Logger = logging.Base()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Orchestrator{p: p}
}

func (o *Orchestrator) newRound(ttl time.Duration, obs Observer) agent.ConsensusRound {
	return o.p.Agent.NewConsensusRound(agent.RoundParams{
		Me:           o.p.Me,
		Microledgers: o.p.Microledgers,
		TimeToLive:   ttl,
		Log:          RoundLogger(obs),
		Logger:       o.p.Logger,
	})
}

func (o *Orchestrator) metadata(label, did string, participants []string) map[string]interface{} {
	return map[string]interface{}{
		"actor": map[string]interface{}{
			"label": label,
			"did":   did,
		},
		"local_timestamp_utc": o.p.Now().UTC().Format(time.RFC3339),
		"participants":        participants,
	}
}

// InitLedger creates ledger name from genesis among participants and stores
// the history the participants agreed on. A failed round leaves no local ledger behind.
func (o *Orchestrator) InitLedger(ctx context.Context, name string, genesis []microledger.Transaction, participants []string, ttl time.Duration, obs Observer) (agent.Microledger, []microledger.Transaction, error) {
	log := o.p.Logger.With("ledger", name)
	existed, err := o.p.Microledgers.IsExists(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("init ledger %s: %w", name, err)
	}
	round := o.newRound(ttl, obs)

	ok, ledger, err := round.InitLedger(ctx, name, participants, genesis)
	if err != nil || !ok {
		if !existed {
			o.rollback(ctx, log, name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("init ledger %s: %w", name, err)
		}
		failure := roundFailure(round)
		log.Warnf("ledger creation failed: %v", failure)
		return nil, nil, failure
	}

	txns, err := ledger.AllTransactions(ctx)
	if err != nil {
		return ledger, nil, fmt.Errorf("read ledger %s: %w", name, err)
	}
	_, err = o.p.CreateLedger(ctx, name, o.metadata(ActorSelf, o.p.Me.DID, participants), txns)
	if err != nil {
		log.Errorf("ledger agreed but not stored: %v", err)
		return ledger, txns, &PersistenceError{Op: "create ledger", Ledger: name, Err: err}
	}
	log.Infof("ledger created with %d genesis transaction(s)", len(txns))
	return ledger, txns, nil
}

// rollback removes a ledger a failed creation round left in the agent.
func (o *Orchestrator) rollback(ctx context.Context, log logging.Logger, name string) {
	exists, err := o.p.Microledgers.IsExists(ctx, name)
	if err != nil {
		log.Warnf("cannot check for partially created ledger: %v", err)
		return
	}
	if !exists {
		return
	}
	err = o.p.Microledgers.Reset(ctx, name)
	if err != nil {
		log.Warnf("cannot reset partially created ledger: %v", err)
		return
	}
	log.Info("partially created ledger reset")
}

// Commit appends txns to ledger name and stores them with the sequence
// numbers the round assigned.
func (o *Orchestrator) Commit(ctx context.Context, name string, txns []microledger.Transaction, participants []string, ttl time.Duration, obs Observer) ([]microledger.Transaction, error) {
	log := o.p.Logger.With("ledger", name)
	ledger, err := o.p.Microledgers.Ledger(ctx, name)
	if err != nil {
		return nil, err
	}

	round := o.newRound(ttl, obs)
	ok, committed, err := round.Commit(ctx, ledger, participants, txns)
	if err != nil {
		return nil, fmt.Errorf("commit to %s: %w", name, err)
	}
	if !ok {
		failure := roundFailure(round)
		log.Warnf("commit failed: %v", failure)
		return nil, failure
	}

	err = o.p.StoreTransactions(ctx, name, committed, "")
	if err != nil {
		log.Errorf("transactions agreed but not stored: %v", err)
		return committed, &PersistenceError{Op: "store transactions", Ledger: name, Err: err}
	}
	log.Infof("committed %d transaction(s)", len(committed))
	return committed, nil
}

// CommitParallel advances every batch's ledger in a single round.
// The consensus layer reports no per-ledger result, so what a ledger gained is
// the suffix past a size snapshot taken before the round locks the ledgers.
// Entries another commit appended in between are dropped from that suffix.
func (o *Orchestrator) CommitParallel(ctx context.Context, batches []Batch, participants []string, ttl time.Duration, obs Observer) (map[string][]microledger.Transaction, error) {
	ledgers := make([]agent.Microledger, len(batches))
	sizes := make([]uint64, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			ledger, err := o.p.Microledgers.Ledger(gctx, b.Ledger)
			if err != nil {
				return err
			}
			size, err := ledger.Size(gctx)
			if err != nil {
				return fmt.Errorf("size of %s: %w", b.Ledger, err)
			}
			ledgers[i], sizes[i] = ledger, size
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return nil, err
	}

	round := o.newRound(ttl, obs)
	roundBatches := make([]agent.LedgerBatch, len(batches))
	for i, b := range batches {
		roundBatches[i] = agent.LedgerBatch{Ledger: ledgers[i], Txns: b.Txns}
	}
	ok, err := round.CommitParallel(ctx, roundBatches, participants)
	if err != nil {
		return nil, fmt.Errorf("parallel commit: %w", err)
	}
	if !ok {
		failure := roundFailure(round)
		o.p.Logger.Warnf("parallel commit failed: %v", failure)
		return nil, failure
	}

	appended := make([][]microledger.Transaction, len(batches))
	g, gctx = errgroup.WithContext(ctx)
	for i := range batches {
		i := i
		g.Go(func() error {
			all, err := ledgers[i].AllTransactions(gctx)
			if err != nil {
				return err
			}
			if uint64(len(all)) < sizes[i] {
				return fmt.Errorf("ledger %s shrank from %d to %d", ledgers[i].Name(), sizes[i], len(all))
			}
			appended[i] = roundEntries(all[sizes[i]:], batches[i].Txns)
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, &PersistenceError{Op: "read committed", Err: err}
	}

	out := make(map[string][]microledger.Transaction, len(batches))
	var errs []error
	for i, b := range batches {
		out[b.Ledger] = appended[i]
		err = o.p.StoreTransactions(ctx, b.Ledger, appended[i], "")
		if err != nil {
			o.p.Logger.With("ledger", b.Ledger).Errorf("transactions agreed but not stored: %v", err)
			errs = append(errs, &PersistenceError{Op: "store transactions", Ledger: b.Ledger, Err: err})
		}
	}
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	o.p.Logger.Infof("parallel commit to %d ledger(s) done", len(batches))
	return out, nil
}

// roundEntries picks the proposed transactions out of what a ledger gained,
// scanning from the end since the round appended its batch last. When the
// bodies cannot all be matched the whole gained suffix is kept; the store
// skips entries it already holds.
func roundEntries(gained []microledger.Transaction, proposed []microledger.Transaction) []microledger.Transaction {
	if len(gained) == len(proposed) {
		return gained
	}
	want := make(map[string]int, len(proposed))
	for _, txn := range proposed {
		want[bodyKey(txn.Body)]++
	}
	out := make([]microledger.Transaction, len(proposed))
	n := len(out)
	for i := len(gained) - 1; i >= 0 && n > 0; i-- {
		key := bodyKey(gained[i].Body)
		if want[key] > 0 {
			want[key]--
			n--
			out[n] = gained[i]
		}
	}
	if n > 0 {
		return gained
	}
	return out
}

func bodyKey(doc microledger.Document) string {
	body := doc.Copy()
	delete(body, microledger.MetadataField)
	return string(protocol.EncodeJSON(body))
}

// AcceptInitLedger answers a peer's ledger creation proposal and stores the
// ledger when the round succeeds.
func (o *Orchestrator) AcceptInitLedger(ctx context.Context, leader agent.Pairwise, propose *agent.ProposeInitLedger, ttl time.Duration) error {
	log := o.p.Logger.With("ledger", propose.Ledger).With("counterparty", leader.Their.DID)
	round := o.newRound(ttl, nil)

	ok, ledger, err := round.AcceptInitLedger(ctx, leader, propose)
	if err != nil {
		return fmt.Errorf("accept init ledger %s: %w", propose.Ledger, err)
	}
	if !ok {
		failure := roundFailure(round)
		log.Warnf("ledger proposal not accepted: %v", failure)
		return failure
	}

	txns, err := ledger.AllTransactions(ctx)
	if err != nil {
		return fmt.Errorf("read ledger %s: %w", propose.Ledger, err)
	}
	_, err = o.p.CreateLedger(ctx, propose.Ledger, o.metadata(ActorPeer, leader.Their.DID, propose.Participants), txns)
	if err != nil {
		log.Errorf("ledger agreed but not stored: %v", err)
		return &PersistenceError{Op: "create ledger", Ledger: propose.Ledger, Err: err}
	}
	log.Infof("ledger created by peer with %d genesis transaction(s)", len(txns))
	return nil
}

// AcceptCommit answers a peer's commit proposal and stores the transactions,
// attributed to the peer, when the round succeeds.
func (o *Orchestrator) AcceptCommit(ctx context.Context, leader agent.Pairwise, propose *agent.ProposeCommit, ttl time.Duration) error {
	log := o.p.Logger.With("ledger", propose.Ledger).With("counterparty", leader.Their.DID)
	round := o.newRound(ttl, nil)

	ok, _, err := round.AcceptCommit(ctx, leader, propose)
	if err != nil {
		return fmt.Errorf("accept commit to %s: %w", propose.Ledger, err)
	}
	if !ok {
		failure := roundFailure(round)
		log.Warnf("commit proposal not accepted: %v", failure)
		return failure
	}

	err = o.p.StoreTransactions(ctx, propose.Ledger, propose.Transactions, leader.Their.DID)
	if err != nil {
		log.Errorf("transactions agreed but not stored: %v", err)
		return &PersistenceError{Op: "store transactions", Ledger: propose.Ledger, Err: err}
	}
	log.Debugf("accepted %d transaction(s)", len(propose.Transactions))
	return nil
}

// AcceptCommitParallel is AcceptCommit for a proposal spanning several ledgers.
func (o *Orchestrator) AcceptCommitParallel(ctx context.Context, leader agent.Pairwise, propose *agent.ProposeParallelCommit, ttl time.Duration) error {
	log := o.p.Logger.With("counterparty", leader.Their.DID)
	round := o.newRound(ttl, nil)

	ok, _, err := round.AcceptCommitParallel(ctx, leader, propose)
	if err != nil {
		return fmt.Errorf("accept parallel commit: %w", err)
	}
	if !ok {
		failure := roundFailure(round)
		log.Warnf("parallel commit proposal not accepted: %v", failure)
		return failure
	}

	var errs []error
	for _, e := range propose.Entries {
		err = o.p.StoreTransactions(ctx, e.Ledger, e.Transactions, leader.Their.DID)
		if err != nil {
			log.With("ledger", e.Ledger).Errorf("transactions agreed but not stored: %v", err)
			errs = append(errs, &PersistenceError{Op: "store transactions", Ledger: e.Ledger, Err: err})
		}
	}
	return errors.Join(errs...)
}
