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

package memagent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/protocol"
)

// DefaultTimeToLive bounds rounds created without a time to live.
const DefaultTimeToLive = 30 * time.Second

type vote struct {
	did     string
	ok      bool
	explain string
}

// thread is the leader side state of one round, shared with the responders through the hub.
type thread struct {
	id        string
	leader    string
	votes     chan vote
	decided   chan struct{}
	commit    bool
	responded map[string]bool
}

type round struct {
	node   *Node
	params agent.RoundParams
	log    logging.Logger

	mu      deadlock.Mutex
	problem *agent.Problem
}

func newRound(node *Node, params agent.RoundParams) *round {
	if params.TimeToLive <= 0 {
		params.TimeToLive = DefaultTimeToLive
	}
	if params.Microledgers == nil {
		params.Microledgers = node.store
	}
	log := params.Logger
	if log == nil {
		log = node.hub.log
	}
	return &round{
		node:   node,
		params: params,
		log:    log.With("node", node.Label),
	}
}

func (r *round) ProblemReport() *agent.Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.problem
}

func (r *round) fail(code, explain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.problem = &agent.Problem{Code: code, Explain: explain}
	r.emitLocked(map[string]interface{}{"state": "failed", "problem_code": code, "message": explain})
}

func (r *round) emit(fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(fields)
}

func (r *round) emitLocked(fields map[string]interface{}) {
	if r.params.Log != nil {
		r.params.Log(fields)
	}
}

func (r *round) progress(pct float64, message string) {
	r.emit(map[string]interface{}{"progress": pct, "message": message})
}

// InitLedger creates the ledger locally and asks the participants to create it too.
// A failed round leaves the local ledger in place for the caller to reset.
func (r *round) InitLedger(ctx context.Context, name string, participants []string, genesis []microledger.Transaction) (bool, agent.Microledger, error) {
	r.progress(0, fmt.Sprintf("Initializing ledger %s", name))
	err := r.verifyAll(genesis, participants)
	if err != nil {
		r.fail(agent.ProblemInvalid, err.Error())
		return false, nil, nil
	}
	ledger, txns, err := r.params.Microledgers.Create(ctx, name, genesis)
	if errors.Is(err, agent.ErrLedgerExists) {
		r.fail(agent.ProblemInvalid, fmt.Sprintf("ledger %s already exists", name))
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	propose := &agent.ProposeInitLedger{
		ThreadID:     protocol.NewID(),
		Ledger:       name,
		Participants: participants,
		Genesis:      txns,
		Signer:       r.params.Me.Verkey,
	}
	if !r.lead(ctx, propose.ThreadID, propose, participants) {
		return false, nil, nil
	}
	r.progress(100, fmt.Sprintf("Ledger %s created", name))
	return true, ledger, nil
}

// Commit appends txns to ledger once every participant accepted them.
func (r *round) Commit(ctx context.Context, ledger agent.Microledger, participants []string, txns []microledger.Transaction) (bool, []microledger.Transaction, error) {
	l, err := ledgerOf(ledger)
	if err != nil {
		return false, nil, err
	}
	err = r.verifyAll(txns, participants)
	if err != nil {
		r.fail(agent.ProblemInvalid, err.Error())
		return false, nil, nil
	}
	err = r.lockLedgers(ctx, []*Ledger{l})
	if err != nil {
		r.fail(agent.ProblemTimeout, fmt.Sprintf("ledger %s is busy", ledger.Name()))
		return false, nil, nil
	}
	defer l.release()

	r.progress(0, fmt.Sprintf("Committing %d transaction(s) to %s", len(txns), ledger.Name()))
	staged := l.stage(txns, r.node.hub.now())
	propose := &agent.ProposeCommit{
		ThreadID:     protocol.NewID(),
		Ledger:       ledger.Name(),
		Participants: participants,
		Transactions: staged,
		Signer:       r.params.Me.Verkey,
	}
	if !r.lead(ctx, propose.ThreadID, propose, participants) {
		return false, nil, nil
	}
	err = l.apply(staged)
	if err != nil {
		return false, nil, err
	}
	r.progress(100, fmt.Sprintf("Committed to %s", ledger.Name()))
	return true, staged, nil
}

// CommitParallel advances every batch's ledger in one round, or none of them.
func (r *round) CommitParallel(ctx context.Context, batches []agent.LedgerBatch, participants []string) (bool, error) {
	ledgers := make([]*Ledger, len(batches))
	for i, b := range batches {
		l, err := ledgerOf(b.Ledger)
		if err != nil {
			return false, err
		}
		err = r.verifyAll(b.Txns, participants)
		if err != nil {
			r.fail(agent.ProblemInvalid, err.Error())
			return false, nil
		}
		ledgers[i] = l
	}
	if !distinct(ledgers) {
		r.fail(agent.ProblemInvalid, "a ledger appears more than once")
		return false, nil
	}
	err := r.lockLedgers(ctx, ledgers)
	if err != nil {
		r.fail(agent.ProblemTimeout, "ledgers are busy")
		return false, nil
	}
	defer func() {
		for _, l := range ledgers {
			l.release()
		}
	}()

	r.progress(0, fmt.Sprintf("Committing to %d ledgers in parallel", len(batches)))
	now := r.node.hub.now()
	staged := make([][]microledger.Transaction, len(batches))
	propose := &agent.ProposeParallelCommit{
		ThreadID:     protocol.NewID(),
		Participants: participants,
		Signer:       r.params.Me.Verkey,
	}
	for i, b := range batches {
		staged[i] = ledgers[i].stage(b.Txns, now)
		propose.Entries = append(propose.Entries, agent.ParallelEntry{Ledger: b.Ledger.Name(), Transactions: staged[i]})
	}
	if !r.lead(ctx, propose.ThreadID, propose, participants) {
		return false, nil
	}
	for i, l := range ledgers {
		err = l.apply(staged[i])
		if err != nil {
			return false, err
		}
	}
	r.progress(100, "Parallel commit done")
	return true, nil
}

// AcceptInitLedger votes on a ledger creation proposal and creates the ledger if the round commits.
func (r *round) AcceptInitLedger(ctx context.Context, leader agent.Pairwise, propose *agent.ProposeInitLedger) (bool, agent.Microledger, error) {
	check := func() error {
		exists, err := r.params.Microledgers.IsExists(ctx, propose.Ledger)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("ledger %s already exists", propose.Ledger)
		}
		err = microledger.CheckContiguous(propose.Genesis, 0)
		if err != nil {
			return err
		}
		return r.verifyAll(propose.Genesis, propose.Participants)
	}
	if !r.accept(ctx, leader, propose.ThreadID, propose.Participants, check) {
		return false, nil, nil
	}
	ledger, _, err := r.params.Microledgers.Create(ctx, propose.Ledger, propose.Genesis)
	if err != nil {
		return false, nil, err
	}
	return true, ledger, nil
}

// AcceptCommit votes on a commit proposal and appends the transactions if the round commits.
func (r *round) AcceptCommit(ctx context.Context, leader agent.Pairwise, propose *agent.ProposeCommit) (bool, agent.Microledger, error) {
	ledgers, ok, err := r.acceptEntries(ctx, leader, propose.ThreadID, propose.Participants,
		[]agent.ParallelEntry{{Ledger: propose.Ledger, Transactions: propose.Transactions}})
	if !ok || err != nil {
		return false, nil, err
	}
	return true, ledgers[0], nil
}

// AcceptCommitParallel is AcceptCommit for a proposal spanning several ledgers.
func (r *round) AcceptCommitParallel(ctx context.Context, leader agent.Pairwise, propose *agent.ProposeParallelCommit) (bool, []agent.Microledger, error) {
	ledgers, ok, err := r.acceptEntries(ctx, leader, propose.ThreadID, propose.Participants, propose.Entries)
	if !ok || err != nil {
		return false, nil, err
	}
	return true, ledgers, nil
}

func (r *round) acceptEntries(ctx context.Context, leader agent.Pairwise, threadID string, participants []string, entries []agent.ParallelEntry) ([]agent.Microledger, bool, error) {
	handles := make([]agent.Microledger, len(entries))
	ledgers := make([]*Ledger, len(entries))
	var lookupErr error
	for i, e := range entries {
		handle, err := r.params.Microledgers.Ledger(ctx, e.Ledger)
		if err != nil {
			lookupErr = err
			break
		}
		l, err := ledgerOf(handle)
		if err != nil {
			return nil, false, err
		}
		handles[i], ledgers[i] = handle, l
	}

	if lookupErr == nil && !distinct(ledgers) {
		lookupErr = errors.New("a ledger appears more than once")
	}
	locked := false
	if lookupErr == nil {
		locked = r.lockLedgers(ctx, ledgers) == nil
	}
	if locked {
		defer func() {
			for _, l := range ledgers {
				l.release()
			}
		}()
	}

	check := func() error {
		if lookupErr != nil {
			return lookupErr
		}
		if !locked {
			return errors.New("ledgers are busy")
		}
		for i, e := range entries {
			size, _ := ledgers[i].Size(ctx)
			err := microledger.CheckContiguous(e.Transactions, size)
			if err != nil {
				return fmt.Errorf("ledger %s: %w", e.Ledger, err)
			}
			err = r.verifyAll(e.Transactions, participants)
			if err != nil {
				return err
			}
		}
		return nil
	}
	if !r.accept(ctx, leader, threadID, participants, check) {
		return nil, false, nil
	}
	for i, e := range entries {
		err := ledgers[i].apply(e.Transactions)
		if err != nil {
			return nil, false, err
		}
	}
	return handles, true, nil
}

// lead proposes msg to every other participant, collects the votes and announces the decision.
func (r *round) lead(ctx context.Context, threadID string, msg agent.Message, participants []string) bool {
	hub := r.node.hub
	var responders []*Node
	seen := map[string]bool{r.node.DID: true}
	for _, did := range participants {
		if seen[did] {
			continue
		}
		seen[did] = true
		n, ok := hub.Node(did)
		if !ok {
			r.fail(agent.ProblemInvalid, fmt.Sprintf("participant %s is unknown", did))
			return false
		}
		responders = append(responders, n)
	}

	t := &thread{
		id:        threadID,
		leader:    r.node.DID,
		votes:     make(chan vote, len(responders)),
		decided:   make(chan struct{}),
		responded: make(map[string]bool),
	}
	hub.register(t)
	defer hub.forget(threadID)

	ctx, cancel := context.WithTimeout(ctx, r.params.TimeToLive)
	defer cancel()

	commit := false
	defer func() {
		t.commit = commit
		close(t.decided)
	}()

	r.emit(map[string]interface{}{"state": "propose", "thread": threadID})
	r.progress(20, fmt.Sprintf("Proposing to %d participant(s)", len(responders)))
	for _, n := range responders {
		err := hub.deliver(ctx, r.node, n, msg)
		if err != nil {
			r.fail(agent.ProblemTimeout, err.Error())
			return false
		}
	}

	for len(t.responded) < len(responders) {
		select {
		case v := <-t.votes:
			t.responded[v.did] = true
			if !v.ok {
				r.fail(agent.ProblemRejected, v.explain)
				return false
			}
			r.progress(20+60*float64(len(t.responded))/float64(len(responders)), "Participant accepted")
		case <-ctx.Done():
			var silent []string
			for _, n := range responders {
				if !t.responded[n.DID] {
					silent = append(silent, n.DID)
				}
			}
			r.fail(agent.ProblemTimeout, fmt.Sprintf("Timeout: no answer from %s", strings.Join(silent, ", ")))
			return false
		}
	}

	r.emit(map[string]interface{}{"state": "commit", "thread": threadID})
	r.progress(90, "All participants accepted, committing")
	commit = true
	return true
}

// accept votes on a proposal and waits for the leader's decision.
func (r *round) accept(ctx context.Context, leader agent.Pairwise, threadID string, participants []string, check func() error) bool {
	t, ok := r.node.hub.thread(threadID)
	if !ok || t.leader != leader.Their.DID {
		r.fail(agent.ProblemInvalid, fmt.Sprintf("unknown round %s", threadID))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, r.params.TimeToLive)
	defer cancel()

	reject, silent := r.node.voting()
	if !silent {
		v := vote{did: r.node.DID, ok: true}
		switch {
		case !contains(participants, r.node.DID):
			v.ok, v.explain = false, fmt.Sprintf("%s is not a participant", r.node.DID)
		case reject != "":
			v.ok, v.explain = false, reject
		default:
			err := check()
			if err != nil {
				v.ok, v.explain = false, err.Error()
			}
		}
		t.votes <- v
		if !v.ok {
			r.fail(agent.ProblemRejected, v.explain)
			return false
		}
		r.emit(map[string]interface{}{"state": "pre-commit", "thread": threadID})
	}

	select {
	case <-t.decided:
		if !t.commit {
			r.fail(agent.ProblemRejected, "round aborted by leader")
			return false
		}
		return true
	case <-ctx.Done():
		r.fail(agent.ProblemTimeout, "Timeout waiting for leader decision")
		return false
	}
}

// lockLedgers takes the round slot of every ledger, in name order.
func (r *round) lockLedgers(ctx context.Context, ledgers []*Ledger) error {
	ordered := append([]*Ledger(nil), ledgers...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].name < ordered[j].name })

	ctx, cancel := context.WithTimeout(ctx, r.params.TimeToLive)
	defer cancel()
	for i, l := range ordered {
		err := l.acquire(ctx)
		if err != nil {
			for _, held := range ordered[:i] {
				held.release()
			}
			return err
		}
	}
	return nil
}

func (r *round) verifyAll(txns []microledger.Transaction, participants []string) error {
	trusted := r.node.hub.Verkeys(participants)
	for i, txn := range txns {
		err := microledger.VerifySignature(txn.Body, trusted...)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i+1, err)
		}
	}
	return nil
}

func distinct(ledgers []*Ledger) bool {
	seen := make(map[*Ledger]bool, len(ledgers))
	for _, l := range ledgers {
		if seen[l] {
			return false
		}
		seen[l] = true
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
