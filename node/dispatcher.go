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
	"errors"
	"sync"
	"time"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/protocol"
)

// RunInboundDispatchLoop receives the protocol messages peers address to this node
// until ctx is done. Each message is handled in its own goroutine. When the
// subscription ends the loop waits DispatcherReconnectDelay after a clean close
// and DispatcherRestartDelay after any other failure, then subscribes again.
func (n *Node) RunInboundDispatchLoop(ctx context.Context) {
	for {
		err := n.dispatch(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := n.cfg.DispatcherRestartDelay
		reason := "failure"
		if errors.Is(err, agent.ErrConnectionClosed) {
			delay = n.cfg.DispatcherReconnectDelay
			reason = "closed"
			n.log.Infof("agent closed the event stream, resubscribing in %v", delay)
		} else {
			n.log.Warnf("inbound dispatcher stopped: %v. Restarting in %v", err, delay)
		}
		n.metrics.restarts.WithLabelValues(reason).Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// dispatch runs one subscription to completion. Handlers still running when it
// ends are waited for before the agent connection is closed.
func (n *Node) dispatch(ctx context.Context) error {
	s, err := n.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sub, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	var handlers sync.WaitGroup
	defer handlers.Wait()

	n.log.Debug("listening for inbound messages")
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			n.handle(ctx, s, ev)
		}()
	}
}

func (n *Node) handle(ctx context.Context, s *session, ev agent.Event) {
	kind := agent.Kind(ev.Message)
	n.metrics.inbound.WithLabelValues(kind).Inc()
	log := n.log.With("kind", kind).With("counterparty", ev.Pairwise.Their.DID)
	ttl := n.cfg.TimeToLive()

	var err error
	start := time.Now()
	switch m := ev.Message.(type) {
	case *agent.ProposeInitLedger:
		err = s.orch.AcceptInitLedger(ctx, ev.Pairwise, m, ttl)
		n.metrics.observeRound(kind, start, err)
	case *agent.ProposeCommit:
		err = s.orch.AcceptCommit(ctx, ev.Pairwise, m, ttl)
		n.metrics.observeRound(kind, start, err)
	case *agent.ProposeParallelCommit:
		err = s.orch.AcceptCommitParallel(ctx, ev.Pairwise, m, ttl)
		n.metrics.observeRound(kind, start, err)
	case *agent.SideChannel:
		err = n.handleSideChannel(ctx, s, ev.Pairwise, m)
	default:
		log.Warnf("dropping message of unexpected type %T", ev.Message)
		return
	}
	if err != nil {
		log.Warnf("inbound message not handled: %v", err)
	}
}

func (n *Node) handleSideChannel(ctx context.Context, s *session, from agent.Pairwise, m *agent.SideChannel) error {
	switch {
	case m.Type.HasSuffix("statistics-query"):
		st, err := n.store.Stats(ctx)
		if err != nil {
			return err
		}
		report := protocol.StatisticsReport{
			Envelope:     protocol.Envelope{Type: protocol.StatisticsReportType, ID: protocol.NewID()},
			Ledgers:      uint64(st.Ledgers),
			Transactions: uint64(st.Transactions),
		}
		return s.SendTo(ctx, report, from)
	case m.Type.HasSuffix("statistics-report"):
		var report protocol.StatisticsReport
		err := protocol.DecodeJSON(m.Body, &report)
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.peerStats[from.Their.DID] = report
		n.mu.Unlock()
		n.log.With("counterparty", from.Their.DID).Infof("peer holds %d ledger(s), %d transaction(s)", report.Ledgers, report.Transactions)
		return nil
	default:
		n.log.With("counterparty", from.Their.DID).Debugf("ignoring side channel message %s", m.Type)
		return nil
	}
}

// RequestStatistics asks a peer for the size of its ledger store.
// The answer arrives through the dispatcher and is returned by PeerStatistics.
func (n *Node) RequestStatistics(ctx context.Context, did string) error {
	s, err := n.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	query := protocol.StatisticsQuery{Envelope: protocol.Envelope{Type: protocol.StatisticsQueryType, ID: protocol.NewID()}}
	return s.SendTo(ctx, query, agent.Pairwise{Me: s.me, Their: agent.Their{DID: did}})
}

// PeerStatistics returns the last statistics report received from did.
func (n *Node) PeerStatistics(did string) (protocol.StatisticsReport, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	report, ok := n.peerStats[did]
	return report, ok
}
