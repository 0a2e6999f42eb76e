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

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/protocol"
)

type conn struct {
	node *Node

	mu     deadlock.Mutex
	subs   []*subscription
	closed bool
}

func (c *conn) Wallet() agent.Wallet {
	return c.node.wallet
}

func (c *conn) Microledgers() agent.MicroledgerList {
	return c.node.store
}

func (c *conn) NewConsensusRound(params agent.RoundParams) agent.ConsensusRound {
	return newRound(c.node, params)
}

func (c *conn) Subscribe(ctx context.Context) (agent.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, agent.ErrConnectionClosed
	}
	s := &subscription{node: c.node, done: make(chan struct{})}
	c.subs = append(c.subs, s)

	c.node.mu.Lock()
	c.node.subs[s] = struct{}{}
	c.node.mu.Unlock()
	return s, nil
}

func (c *conn) SendTo(ctx context.Context, msg interface{}, to agent.Pairwise) error {
	peer, ok := c.node.hub.Node(to.Their.DID)
	if !ok {
		return fmt.Errorf("unknown peer %s", to.Their.DID)
	}
	body, err := protocol.EncodeJSONErr(msg)
	if err != nil {
		return err
	}
	env, err := protocol.PeekType(body)
	if err != nil {
		return err
	}
	return c.node.hub.deliver(ctx, c.node, peer, &agent.SideChannel{Type: env.Type, Body: body})
}

func (c *conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return agent.ErrConnectionClosed
	}
	return nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.closed = true
	c.mu.Unlock()

	for _, s := range subs {
		s.end(agent.ErrConnectionClosed)
	}
	return nil
}

type subscription struct {
	node *Node
	done chan struct{}

	mu  deadlock.Mutex
	err error
}

func (s *subscription) Next(ctx context.Context) (agent.Event, error) {
	select {
	case <-s.done:
		return agent.Event{}, s.failure()
	default:
	}
	select {
	case ev := <-s.node.inbox:
		return ev, nil
	case <-s.done:
		return agent.Event{}, s.failure()
	case <-ctx.Done():
		return agent.Event{}, ctx.Err()
	}
}

func (s *subscription) Close() error {
	s.end(agent.ErrConnectionClosed)
	return nil
}

func (s *subscription) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = err
	close(s.done)

	s.node.mu.Lock()
	delete(s.node.subs, s)
	s.node.mu.Unlock()
}

func (s *subscription) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
