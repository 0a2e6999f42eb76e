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

// Package memagent is an in-process ledger agent. A Hub connects any number
// of nodes; each node owns a wallet, a microledger store and an inbox, and
// consensus rounds between them run as a two phase propose/commit exchange
// bounded by the round's time to live.
package memagent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/logging"
)

const inboxSize = 256

// Hub routes protocol messages between nodes.
type Hub struct {
	mu      deadlock.Mutex
	nodes   map[string]*Node
	threads map[string]*thread

	log logging.Logger
	now func() time.Time
}

// MakeHub returns an empty hub.
func MakeHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Base()
	}
	return &Hub{
		nodes:   make(map[string]*Node),
		threads: make(map[string]*thread),
		log:     log,
		now:     time.Now,
	}
}

// Node is one participant attached to a hub.
type Node struct {
	hub    *Hub
	Label  string
	DID    string
	Verkey string

	wallet *Wallet
	store  *Store
	inbox  chan agent.Event

	mu      deadlock.Mutex
	reject  string
	silent  bool
	offline bool
	subs    map[*subscription]struct{}
}

// AddNode creates a node whose key is derived from seed (random when empty).
func (h *Hub) AddNode(label string, seed []byte) (*Node, error) {
	wallet := makeWallet()
	did, verkey, err := wallet.CreateKey(seed)
	if err != nil {
		return nil, err
	}
	n := &Node{
		hub:    h,
		Label:  label,
		DID:    did,
		Verkey: verkey,
		wallet: wallet,
		store:  makeStore(h.now),
		inbox:  make(chan agent.Event, inboxSize),
		subs:   make(map[*subscription]struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.nodes[did]; ok {
		return nil, fmt.Errorf("node %s already attached", did)
	}
	h.nodes[did] = n
	return n, nil
}

// Node returns the node registered under did.
func (h *Hub) Node(did string) (*Node, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[did]
	return n, ok
}

// DIDs returns the DIDs of all attached nodes, sorted.
func (h *Hub) DIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.nodes))
	for did := range h.nodes {
		out = append(out, did)
	}
	sort.Strings(out)
	return out
}

// Verkeys returns the verkeys of the nodes with the given DIDs.
func (h *Hub) Verkeys(dids []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, did := range dids {
		if n, ok := h.nodes[did]; ok {
			out = append(out, n.Verkey)
		}
	}
	return out
}

// Store returns the node's microledger store.
func (n *Node) Store() *Store {
	return n.store
}

// Wallet returns the node's wallet.
func (n *Node) Wallet() *Wallet {
	return n.wallet
}

// Me returns the node identity.
func (n *Node) Me() agent.Me {
	return agent.Me{DID: n.DID, Verkey: n.Verkey}
}

// Connector returns a connector that opens connections to this node.
func (n *Node) Connector() agent.Connector {
	return agent.ConnectorFunc(func(ctx context.Context) (agent.Agent, error) {
		n.mu.Lock()
		offline := n.offline
		n.mu.Unlock()
		if offline {
			return nil, &agent.TransportError{Err: fmt.Errorf("node %s is offline", n.Label)}
		}
		return &conn{node: n}, nil
	})
}

// Reject makes the node vote against every round with the given explanation.
// An empty explanation restores normal voting.
func (n *Node) Reject(explain string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reject = explain
}

// Silence makes the node stop voting, so rounds involving it time out.
func (n *Node) Silence(silent bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.silent = silent
}

// Disconnect ends the node's active subscriptions. When broken is set the
// subscriptions fail with a transport error and new connections are refused
// until Reconnect; otherwise they end with agent.ErrConnectionClosed.
func (n *Node) Disconnect(broken bool) {
	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[*subscription]struct{})
	n.offline = broken
	n.mu.Unlock()

	var err error = agent.ErrConnectionClosed
	if broken {
		err = &agent.TransportError{Err: errors.New("connection reset")}
	}
	for s := range subs {
		s.end(err)
	}
}

// Reconnect accepts connections again after a broken Disconnect.
func (n *Node) Reconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = false
}

func (n *Node) voting() (reject string, silent bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reject, n.silent
}

func (n *Node) pairwiseWith(their *Node) agent.Pairwise {
	return agent.Pairwise{
		Me:    n.Me(),
		Their: agent.Their{DID: their.DID, Verkey: their.Verkey, Label: their.Label},
	}
}

// deliver queues an event in the inbox of to, as sent by from.
func (h *Hub) deliver(ctx context.Context, from, to *Node, msg agent.Message) error {
	ev := agent.Event{Message: msg, Pairwise: to.pairwiseWith(from)}
	select {
	case to.inbox <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("deliver to %s: %w", to.Label, ctx.Err())
	}
}

func (h *Hub) register(t *thread) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threads[t.id] = t
}

func (h *Hub) thread(id string) (*thread, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.threads[id]
	return t, ok
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.threads, id)
}
