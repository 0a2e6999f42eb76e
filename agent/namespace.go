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
	"context"
	"strings"

	"github.com/algorand/go-microledger/data/microledger"
)

// NamespacedMicroledgers stores the ledgers of one owning entity under
// "{namespace}/{name}" in a shared microledger store, and reports them back
// under their logical names.
type NamespacedMicroledgers struct {
	namespace string
	proxyTo   MicroledgerList
}

// MakeNamespacedMicroledgers wraps proxyTo under namespace.
func MakeNamespacedMicroledgers(namespace string, proxyTo MicroledgerList) *NamespacedMicroledgers {
	return &NamespacedMicroledgers{namespace: namespace, proxyTo: proxyTo}
}

// Resolve returns the list orchestration code should use: list itself when
// one ledger store per entity is disabled, a namespaced view otherwise.
func Resolve(list MicroledgerList, entity string, singleStorePerEntity bool) MicroledgerList {
	if !singleStorePerEntity {
		return list
	}
	return MakeNamespacedMicroledgers(entity, list)
}

// Namespace returns the namespace prefix.
func (n *NamespacedMicroledgers) Namespace() string {
	return n.namespace
}

// MangledName returns the physical name of a logical ledger name.
func (n *NamespacedMicroledgers) MangledName(name string) string {
	return n.namespace + "/" + name
}

// StripName returns the logical name of a physical name, and false if the
// physical name belongs to another namespace.
func (n *NamespacedMicroledgers) StripName(physical string) (string, bool) {
	return strings.CutPrefix(physical, n.namespace+"/")
}

// Create creates a ledger under the mangled name.
func (n *NamespacedMicroledgers) Create(ctx context.Context, name string, genesis []microledger.Transaction) (Microledger, []microledger.Transaction, error) {
	ledger, txns, err := n.proxyTo.Create(ctx, n.MangledName(name), genesis)
	if err != nil {
		return nil, nil, err
	}
	return n.wrap(name, ledger), txns, nil
}

// Ledger returns the ledger with the given logical name.
func (n *NamespacedMicroledgers) Ledger(ctx context.Context, name string) (Microledger, error) {
	ledger, err := n.proxyTo.Ledger(ctx, n.MangledName(name))
	if err != nil {
		return nil, err
	}
	return n.wrap(name, ledger), nil
}

// Reset removes the ledger with the given logical name.
func (n *NamespacedMicroledgers) Reset(ctx context.Context, name string) error {
	return n.proxyTo.Reset(ctx, n.MangledName(name))
}

// IsExists reports whether the ledger with the given logical name exists.
func (n *NamespacedMicroledgers) IsExists(ctx context.Context, name string) (bool, error) {
	return n.proxyTo.IsExists(ctx, n.MangledName(name))
}

// LeafHash is not name dependent and is passed through.
func (n *NamespacedMicroledgers) LeafHash(ctx context.Context, txn microledger.Transaction) ([]byte, error) {
	return n.proxyTo.LeafHash(ctx, txn)
}

// List returns the ledgers of this namespace under their logical names.
func (n *NamespacedMicroledgers) List(ctx context.Context) ([]microledger.LedgerMeta, error) {
	all, err := n.proxyTo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]microledger.LedgerMeta, 0, len(all))
	for _, meta := range all {
		name, ok := n.StripName(meta.Name)
		if !ok {
			continue
		}
		meta.Name = name
		out = append(out, meta)
	}
	return out, nil
}

func (n *NamespacedMicroledgers) wrap(name string, ledger Microledger) Microledger {
	if ledger == nil {
		return nil
	}
	return namespacedLedger{Microledger: ledger, name: name}
}

// Unwrap returns the physical ledger handle behind a handle obtained from a namespaced list.
func Unwrap(ledger Microledger) Microledger {
	if nl, ok := ledger.(namespacedLedger); ok {
		return nl.Microledger
	}
	return ledger
}

type namespacedLedger struct {
	Microledger
	name string
}

func (l namespacedLedger) Name() string {
	return l.name
}
