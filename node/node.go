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

// Package node is the ledger node itself: the orchestration runtime callers submit
// ledger creations and transactions to, and the dispatcher answering peers.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/agreement"
	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/protocol"
)

// Publisher receives the live events of the node. Implementations must not block.
type Publisher interface {
	PublishProgress(stream string, report protocol.ProgressReport)
	PublishProblem(stream string, report protocol.ProblemReport)
	PublishCommitted(ledger string, txns []microledger.Transaction)
}

// Node is an explicit handle on a running orchestration runtime.
// Every operation opens its own agent connection and closes it before returning.
type Node struct {
	cfg       config.Local
	connector agent.Connector
	store     *ledger.Store
	log       logging.Logger
	metrics   *Metrics
	publisher Publisher

	mu          deadlock.Mutex
	peerStats   map[string]protocol.StatisticsReport
	cancel      context.CancelFunc
	monitorDone sync.WaitGroup
}

// MakeNode creates a node acting as cfg.Entity, backed by the agent behind
// connector and the local ledger store.
func MakeNode(log logging.Logger, cfg config.Local, connector agent.Connector, store *ledger.Store) (*Node, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if store.Entity() != cfg.Entity {
		return nil, fmt.Errorf("ledger store belongs to %s, node acts as %s", store.Entity(), cfg.Entity)
	}
	return &Node{
		cfg:       cfg,
		connector: connector,
		store:     store,
		log:       log.With("entity", cfg.Entity),
		metrics:   makeMetrics(),
		peerStats: make(map[string]protocol.StatisticsReport),
	}, nil
}

// SetPublisher attaches the live event stream.
func (n *Node) SetPublisher(p Publisher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publisher = p
}

func (n *Node) stream() Publisher {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publisher
}

// Config returns the node's config.
func (n *Node) Config() config.Local {
	return n.cfg
}

// Metrics returns the node's collectors.
func (n *Node) Metrics() *Metrics {
	return n.metrics
}

// Start runs the inbound dispatch loop in the background until Stop.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.monitorDone.Add(1)
	go func() {
		defer n.monitorDone.Done()
		n.RunInboundDispatchLoop(ctx)
	}()
	n.log.Info("node started")
}

// Stop ends the dispatch loop and waits for in-flight inbound handlers.
func (n *Node) Stop() {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	n.monitorDone.Wait()
	n.log.Info("node stopped")
}

// session is one open agent connection and what the node derived from it.
type session struct {
	agent.Agent
	me   agent.Me
	orch *agreement.Orchestrator
}

func (n *Node) open(ctx context.Context) (*session, error) {
	a, err := n.connector.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open agent connection: %w", err)
	}
	verkey, err := a.Wallet().KeyForLocalDID(ctx, n.cfg.Entity)
	if err != nil {
		a.Close()
		return nil, &microledger.SigningError{Err: fmt.Errorf("no key for %s: %w", n.cfg.Entity, err)}
	}
	me := agent.Me{DID: n.cfg.Entity, Verkey: verkey}
	return &session{
		Agent: a,
		me:    me,
		orch: agreement.MakeOrchestrator(agreement.Parameters{
			Agent:        a,
			Microledgers: agent.Resolve(a.Microledgers(), n.cfg.Entity, n.cfg.SingleLedgerStorePerEntity),
			Persister:    projection{Store: n.store, node: n},
			Me:           me,
			Logger:       n.log,
		}),
	}, nil
}

// projection writes agreed state to the ledger store and reports it to the live stream.
type projection struct {
	*ledger.Store
	node *Node
}

func (p projection) CreateLedger(ctx context.Context, name string, metadata map[string]interface{}, genesis []microledger.Transaction) (int64, error) {
	id, err := p.Store.CreateLedger(ctx, name, metadata, genesis)
	if err == nil {
		p.node.stored(name, genesis)
	}
	return id, err
}

func (p projection) StoreTransactions(ctx context.Context, name string, txns []microledger.Transaction, counterparty string) error {
	err := p.Store.StoreTransactions(ctx, name, txns, counterparty)
	if err == nil {
		p.node.stored(name, txns)
	}
	return err
}

func (n *Node) stored(name string, txns []microledger.Transaction) {
	n.metrics.persisted.Add(float64(len(txns)))
	if p := n.stream(); p != nil {
		p.PublishCommitted(name, txns)
	}
}

// observe adds the live stream to the caller's observer.
func (n *Node) observe(stream string, obs agreement.Observer) agreement.Observer {
	p := n.stream()
	if p == nil {
		return obs
	}
	return agreement.MultiObserver{obs, agreement.ObserverFunc(func(ev agreement.Event) {
		if ev.Problem != nil {
			p.PublishProblem(stream, *ev.Problem)
			return
		}
		p.PublishProgress(stream, protocol.MakeProgressReport(ev.Progress, ev.Message, ev.Done))
	})}
}

// finish sends the terminal event of a request: a problem report when it failed.
func (n *Node) finish(obs agreement.Observer, message string, err error) {
	if obs == nil {
		return
	}
	if err != nil {
		report := ProblemFor(err)
		obs.Notify(agreement.Event{Message: report.Explain, Done: true, Problem: &report})
		return
	}
	obs.Notify(agreement.Event{Progress: 100, Message: message, Done: true})
}

func (n *Node) timeToLive(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return n.cfg.TimeToLive()
	}
	return ttl
}

// participantsOf returns the participants recorded when the ledger was created,
// falling back to the configured registry.
func (n *Node) participantsOf(ctx context.Context, name string) []string {
	rec, err := n.store.Ledger(ctx, name)
	if err == nil {
		if list, ok := rec.Metadata["participants"].([]interface{}); ok && len(list) > 0 {
			out := make([]string, 0, len(list))
			for _, p := range list {
				if s, ok := p.(string); ok {
					out = append(out, s)
				}
			}
			if len(out) == len(list) {
				return out
			}
		}
	} else if !errors.Is(err, ledger.ErrNotFound) {
		n.log.With("ledger", name).Warnf("cannot read stored participants: %v", err)
	}
	return n.cfg.ResolveParticipants()
}
