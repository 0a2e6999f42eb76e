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
	"fmt"
	"sort"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/minio/sha256-simd"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/protocol"
)

// Store is the microledger store of one node.
type Store struct {
	mu      deadlock.RWMutex
	ledgers map[string]*Ledger
	now     func() time.Time
}

func makeStore(now func() time.Time) *Store {
	return &Store{ledgers: make(map[string]*Ledger), now: now}
}

// Ledger is an in-memory microledger.
type Ledger struct {
	name    string
	uid     string
	created time.Time

	// round admits one consensus round at a time
	round chan struct{}

	mu   deadlock.RWMutex
	txns []microledger.Transaction
}

// Name implements agent.Microledger.
func (l *Ledger) Name() string {
	return l.name
}

// Size implements agent.Microledger.
func (l *Ledger) Size(ctx context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.txns)), nil
}

// AllTransactions implements agent.Microledger.
func (l *Ledger) AllTransactions(ctx context.Context) ([]microledger.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]microledger.Transaction, len(l.txns))
	copy(out, l.txns)
	return out, nil
}

func (l *Ledger) acquire(ctx context.Context) error {
	select {
	case l.round <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) release() {
	<-l.round
}

// stage numbers txns as the next entries of the ledger without appending them.
func (l *Ledger) stage(txns []microledger.Transaction, now time.Time) []microledger.Transaction {
	l.mu.RLock()
	next := uint64(len(l.txns)) + 1
	l.mu.RUnlock()
	return number(txns, next, now)
}

// apply appends staged txns, which must continue the ledger.
func (l *Ledger) apply(txns []microledger.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := microledger.CheckContiguous(txns, uint64(len(l.txns)))
	if err != nil {
		return fmt.Errorf("ledger %s: %w", l.name, err)
	}
	l.txns = append(l.txns, txns...)
	return nil
}

func number(txns []microledger.Transaction, first uint64, now time.Time) []microledger.Transaction {
	out := make([]microledger.Transaction, len(txns))
	for i, txn := range txns {
		txn.Metadata.SeqNo = first + uint64(i)
		if txn.Metadata.Time == "" {
			txn.Metadata.Time = now.UTC().Format(time.RFC3339Nano)
		}
		out[i] = txn
	}
	return out
}

// Create implements agent.MicroledgerList.
func (s *Store) Create(ctx context.Context, name string, genesis []microledger.Transaction) (agent.Microledger, []microledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[name]; ok {
		return nil, nil, fmt.Errorf("%s: %w", name, agent.ErrLedgerExists)
	}
	now := s.now()
	l := &Ledger{
		name:    name,
		uid:     protocol.NewID(),
		created: now,
		round:   make(chan struct{}, 1),
		txns:    number(genesis, 1, now),
	}
	s.ledgers[name] = l
	txns, _ := l.AllTransactions(ctx)
	return l, txns, nil
}

// Ledger implements agent.MicroledgerList.
func (s *Store) Ledger(ctx context.Context, name string) (agent.Microledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, agent.ErrLedgerNotFound)
	}
	return l, nil
}

// Reset implements agent.MicroledgerList.
func (s *Store) Reset(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[name]; !ok {
		return fmt.Errorf("%s: %w", name, agent.ErrLedgerNotFound)
	}
	delete(s.ledgers, name)
	return nil
}

// IsExists implements agent.MicroledgerList.
func (s *Store) IsExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ledgers[name]
	return ok, nil
}

// LeafHash implements agent.MicroledgerList.
func (s *Store) LeafHash(ctx context.Context, txn microledger.Transaction) ([]byte, error) {
	return LeafHash(txn)
}

// List implements agent.MicroledgerList.
func (s *Store) List(ctx context.Context) ([]microledger.LedgerMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]microledger.LedgerMeta, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		out = append(out, microledger.LedgerMeta{
			Name:    l.name,
			UID:     l.uid,
			Created: l.created.UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LeafHash is the sha256 of the canonical encoding of a committed transaction.
func LeafHash(txn microledger.Transaction) ([]byte, error) {
	b, err := protocol.EncodeJSONErr(txn)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

// ledgerOf returns the in-memory ledger behind a handle from any list view.
func ledgerOf(handle agent.Microledger) (*Ledger, error) {
	l, ok := agent.Unwrap(handle).(*Ledger)
	if !ok {
		return nil, fmt.Errorf("ledger %s is not held by this agent", handle.Name())
	}
	return l, nil
}
