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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/test/partitiontest"
)

type testNet struct {
	hub   *Hub
	nodes []*Node
	dids  []string
	wg    sync.WaitGroup
	stop  context.CancelFunc
}

// makeTestNet attaches n nodes; every node but the first answers proposals.
func makeTestNet(t *testing.T, n int) *testNet {
	log := logging.TestingLog(t)
	net := &testNet{hub: MakeHub(log)}
	ctx, cancel := context.WithCancel(context.Background())
	net.stop = cancel
	for i := 0; i < n; i++ {
		node, err := net.hub.AddNode(string(rune('A'+i)), nil)
		require.NoError(t, err)
		net.nodes = append(net.nodes, node)
		net.dids = append(net.dids, node.DID)
	}
	for _, node := range net.nodes[1:] {
		net.wg.Add(1)
		go net.respond(ctx, node, log)
	}
	t.Cleanup(func() {
		cancel()
		net.wg.Wait()
	})
	return net
}

func (net *testNet) respond(ctx context.Context, node *Node, log logging.Logger) {
	defer net.wg.Done()
	a, _ := node.Connector().Open(ctx)
	defer a.Close()
	sub, err := a.Subscribe(ctx)
	if err != nil {
		return
	}
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		round := a.NewConsensusRound(agent.RoundParams{Me: node.Me(), TimeToLive: time.Second, Logger: log})
		go func() {
			switch m := ev.Message.(type) {
			case *agent.ProposeInitLedger:
				round.AcceptInitLedger(ctx, ev.Pairwise, m)
			case *agent.ProposeCommit:
				round.AcceptCommit(ctx, ev.Pairwise, m)
			case *agent.ProposeParallelCommit:
				round.AcceptCommitParallel(ctx, ev.Pairwise, m)
			}
		}()
	}
}

func signed(t *testing.T, node *Node, docs ...microledger.Document) []microledger.Transaction {
	var out []microledger.Transaction
	for _, doc := range docs {
		s, err := microledger.Sign(context.Background(), node.Wallet(), doc, node.Verkey)
		require.NoError(t, err)
		out = append(out, microledger.MakeTransaction(s))
	}
	return out
}

func leaderRound(net *testNet, ttl time.Duration, events *[]map[string]interface{}) (agent.Agent, agent.ConsensusRound) {
	leader := net.nodes[0]
	a, _ := leader.Connector().Open(context.Background())
	var mu sync.Mutex
	params := agent.RoundParams{Me: leader.Me(), TimeToLive: ttl}
	if events != nil {
		params.Log = func(ev map[string]interface{}) {
			mu.Lock()
			defer mu.Unlock()
			*events = append(*events, ev)
		}
	}
	return a, a.NewConsensusRound(params)
}

func size(t *testing.T, node *Node, name string) uint64 {
	l, err := node.Store().Ledger(context.Background(), name)
	require.NoError(t, err)
	s, err := l.Size(context.Background())
	require.NoError(t, err)
	return s
}

func TestInitAndCommit(t *testing.T) {
	partitiontest.PartitionTest(t)

	net := makeTestNet(t, 3)
	ctx := context.Background()
	var events []map[string]interface{}
	a, round := leaderRound(net, 2*time.Second, &events)
	defer a.Close()

	genesis := signed(t, net.nodes[0], microledger.Document{"no": "1"}, microledger.Document{"no": "2"})
	ok, ledger, err := round.InitLedger(ctx, "Container-7", net.dids, genesis)
	require.NoError(t, err)
	require.True(t, ok, "%+v", round.ProblemReport())
	require.Equal(t, "Container-7", ledger.Name())
	require.NotEmpty(t, events)

	for _, n := range net.nodes[1:] {
		n := n
		require.Eventually(t, func() bool {
			exists, _ := n.Store().IsExists(ctx, "Container-7")
			return exists
		}, 2*time.Second, 10*time.Millisecond)
	}

	round = a.NewConsensusRound(agent.RoundParams{Me: net.nodes[0].Me(), TimeToLive: 2 * time.Second})
	ok, committed, err := round.Commit(ctx, ledger, net.dids, signed(t, net.nodes[0], microledger.Document{"no": "3"}))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, committed, 1)
	require.Equal(t, uint64(3), committed[0].SeqNo())
	require.NotEmpty(t, committed[0].Metadata.Time)

	for _, n := range net.nodes {
		n := n
		require.Eventually(t, func() bool { return size(t, n, "Container-7") == 3 }, 2*time.Second, 10*time.Millisecond)
	}
}

func TestCommitRejected(t *testing.T) {
	partitiontest.PartitionTest(t)

	net := makeTestNet(t, 2)
	ctx := context.Background()
	a, round := leaderRound(net, time.Second, nil)
	defer a.Close()

	ok, ledger, err := round.InitLedger(ctx, "L1", net.dids, signed(t, net.nodes[0], microledger.Document{"no": "1"}))
	require.NoError(t, err)
	require.True(t, ok)

	net.nodes[1].Reject("cargo is not allowed")
	round = a.NewConsensusRound(agent.RoundParams{Me: net.nodes[0].Me(), TimeToLive: time.Second})
	ok, committed, err := round.Commit(ctx, ledger, net.dids, signed(t, net.nodes[0], microledger.Document{"no": "2"}))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, committed)
	require.Equal(t, agent.ProblemRejected, round.ProblemReport().Code)
	require.Equal(t, "cargo is not allowed", round.ProblemReport().Explain)
	require.Equal(t, uint64(1), size(t, net.nodes[0], "L1"))
	require.Equal(t, uint64(1), size(t, net.nodes[1], "L1"))
}

func TestCommitTimeout(t *testing.T) {
	partitiontest.PartitionTest(t)

	net := makeTestNet(t, 2)
	ctx := context.Background()
	a, round := leaderRound(net, time.Second, nil)
	defer a.Close()

	net.nodes[1].Silence(true)
	ok, _, err := round.InitLedger(ctx, "L1", net.dids, signed(t, net.nodes[0], microledger.Document{"no": "1"}))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, agent.ProblemTimeout, round.ProblemReport().Code)

	// the leader keeps its partial ledger for the caller to reset
	exists, err := net.nodes[0].Store().IsExists(ctx, "L1")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = net.nodes[1].Store().IsExists(ctx, "L1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCommitParallelAllOrNothing(t *testing.T) {
	partitiontest.PartitionTest(t)

	net := makeTestNet(t, 2)
	ctx := context.Background()
	a, _ := leaderRound(net, time.Second, nil)
	defer a.Close()

	var batches []agent.LedgerBatch
	for _, name := range []string{"L1", "L2"} {
		round := a.NewConsensusRound(agent.RoundParams{Me: net.nodes[0].Me(), TimeToLive: time.Second})
		ok, ledger, err := round.InitLedger(ctx, name, net.dids, signed(t, net.nodes[0], microledger.Document{"no": name}))
		require.NoError(t, err)
		require.True(t, ok)
		batches = append(batches, agent.LedgerBatch{Ledger: ledger, Txns: signed(t, net.nodes[0], microledger.Document{"no": "x"}, microledger.Document{"no": "y"})})
	}
	for _, n := range net.nodes {
		n := n
		require.Eventually(t, func() bool {
			l1, _ := n.Store().IsExists(ctx, "L1")
			l2, _ := n.Store().IsExists(ctx, "L2")
			return l1 && l2
		}, 2*time.Second, 10*time.Millisecond)
	}

	net.nodes[1].Reject("no")
	round := a.NewConsensusRound(agent.RoundParams{Me: net.nodes[0].Me(), TimeToLive: time.Second})
	ok, err := round.CommitParallel(ctx, batches, net.dids)
	require.NoError(t, err)
	require.False(t, ok)
	for _, n := range net.nodes {
		require.Equal(t, uint64(1), size(t, n, "L1"))
		require.Equal(t, uint64(1), size(t, n, "L2"))
	}

	net.nodes[1].Reject("")
	round = a.NewConsensusRound(agent.RoundParams{Me: net.nodes[0].Me(), TimeToLive: time.Second})
	ok, err = round.CommitParallel(ctx, batches, net.dids)
	require.NoError(t, err)
	require.True(t, ok)
	for _, n := range net.nodes {
		n := n
		require.Eventually(t, func() bool {
			return size(t, n, "L1") == 3 && size(t, n, "L2") == 3
		}, 2*time.Second, 10*time.Millisecond)
	}
}

func TestUnsignedTransactionRefused(t *testing.T) {
	partitiontest.PartitionTest(t)

	net := makeTestNet(t, 2)
	a, round := leaderRound(net, time.Second, nil)
	defer a.Close()

	ok, _, err := round.InitLedger(context.Background(), "L1", net.dids, []microledger.Transaction{microledger.MakeTransaction(microledger.Document{"no": "1"})})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, agent.ProblemInvalid, round.ProblemReport().Code)
}

func TestSubscriptionEnds(t *testing.T) {
	partitiontest.PartitionTest(t)

	hub := MakeHub(logging.TestingLog(t))
	node, err := hub.AddNode("A", nil)
	require.NoError(t, err)
	peer, err := hub.AddNode("B", nil)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := node.Connector().Open(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Ping(ctx))
	sub, err := a.Subscribe(ctx)
	require.NoError(t, err)

	b, err := peer.Connector().Open(ctx)
	require.NoError(t, err)
	err = b.SendTo(ctx, map[string]interface{}{"@type": "ping-type", "@id": "1"}, peer.pairwiseWith(node))
	require.NoError(t, err)
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	side, ok := ev.Message.(*agent.SideChannel)
	require.True(t, ok)
	require.EqualValues(t, "ping-type", side.Type)
	require.Equal(t, peer.DID, ev.Pairwise.Their.DID)

	node.Disconnect(false)
	_, err = sub.Next(ctx)
	require.ErrorIs(t, err, agent.ErrConnectionClosed)

	sub, err = a.Subscribe(ctx)
	require.NoError(t, err)
	node.Disconnect(true)
	_, err = sub.Next(ctx)
	var terr *agent.TransportError
	require.True(t, errors.As(err, &terr))
	_, err = node.Connector().Open(ctx)
	require.True(t, errors.As(err, &terr))

	node.Reconnect()
	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Ping(ctx), agent.ErrConnectionClosed)
}

func TestWallet(t *testing.T) {
	partitiontest.PartitionTest(t)

	w := makeWallet()
	seed := make([]byte, 32)
	did, verkey, err := w.CreateKey(seed)
	require.NoError(t, err)

	w2 := makeWallet()
	did2, verkey2, err := w2.CreateKey(seed)
	require.NoError(t, err)
	require.Equal(t, did, did2)
	require.Equal(t, verkey, verkey2)

	got, err := w.KeyForLocalDID(context.Background(), did)
	require.NoError(t, err)
	require.Equal(t, verkey, got)
	_, err = w.KeyForLocalDID(context.Background(), "nope")
	require.Error(t, err)

	_, _, err = w.CreateKey([]byte("short"))
	require.Error(t, err)
}
