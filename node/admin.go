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

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/ledger"
)

// CheckAgentConnection opens a connection to the agent and pings it.
func (n *Node) CheckAgentConnection(ctx context.Context) error {
	log := n.log.With("check", "agent")
	a, err := n.connector.Open(ctx)
	if err != nil {
		log.Warnf("cannot open agent connection: %v", err)
		return err
	}
	defer a.Close()

	err = a.Ping(ctx)
	if err != nil {
		log.Warnf("agent did not answer ping: %v", err)
		return fmt.Errorf("problem with agent connection: %w", err)
	}
	log.Info("agent connection is OK")
	return nil
}

// ResetLedger drops a ledger from the agent and from the local store.
func (n *Node) ResetLedger(ctx context.Context, name string) error {
	a, err := n.connector.Open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	list := agent.Resolve(a.Microledgers(), n.cfg.Entity, n.cfg.SingleLedgerStorePerEntity)
	exists, err := list.IsExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		err = list.Reset(ctx, name)
		if err != nil {
			return err
		}
	}
	err = n.store.ResetLedger(ctx, name)
	if err != nil {
		return err
	}
	n.log.With("ledger", name).Info("ledger was reset")
	return nil
}

// ClearLedgers resets every ledger of this entity in the agent and clears the
// local store. It returns the number of ledgers reset in the agent.
func (n *Node) ClearLedgers(ctx context.Context) (int, error) {
	a, err := n.connector.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer a.Close()

	list := agent.Resolve(a.Microledgers(), n.cfg.Entity, n.cfg.SingleLedgerStorePerEntity)
	metas, err := list.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, meta := range metas {
		err = list.Reset(ctx, meta.Name)
		if err != nil {
			return i, fmt.Errorf("reset %s: %w", meta.Name, err)
		}
		n.log.With("ledger", meta.Name).Info("ledger was reset")
	}
	_, err = n.store.ResetAll(ctx)
	return len(metas), err
}

// Ledgers lists the ledgers stored locally.
func (n *Node) Ledgers(ctx context.Context) ([]ledger.LedgerRecord, error) {
	return n.store.Ledgers(ctx)
}

// Transactions lists the stored transactions of a ledger. A positive limit returns the most recent ones.
func (n *Node) Transactions(ctx context.Context, name string, limit int) ([]ledger.TransactionRecord, error) {
	return n.store.Transactions(ctx, name, limit)
}
