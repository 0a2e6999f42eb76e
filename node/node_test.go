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
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/agent/memagent"
	"github.com/algorand/go-microledger/agreement"
	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/protocol"
	"github.com/algorand/go-microledger/test/partitiontest"
)

var dbName = strings.NewReplacer("/", "_", "=", "_")

type testNode struct {
	*Node
	mem   *memagent.Node
	store *ledger.Store
}

type capturePublisher struct {
	mu        sync.Mutex
	progress  map[string][]protocol.ProgressReport
	problems  map[string][]protocol.ProblemReport
	committed map[string]int
}

func makeCapturePublisher() *capturePublisher {
	return &capturePublisher{
		progress:  make(map[string][]protocol.ProgressReport),
		problems:  make(map[string][]protocol.ProblemReport),
		committed: make(map[string]int),
	}
}

func (c *capturePublisher) PublishProgress(stream string, report protocol.ProgressReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[stream] = append(c.progress[stream], report)
}

func (c *capturePublisher) PublishProblem(stream string, report protocol.ProblemReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.problems[stream] = append(c.problems[stream], report)
}

func (c *capturePublisher) PublishCommitted(ledger string, txns []microledger.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed[ledger] += len(txns)
}

func testConfig(entity string, participants []string) config.Local {
	cfg := config.GetDefaultLocal()
	cfg.Entity = entity
	cfg.Participants = participants
	cfg.DefaultTimeToLive = 2
	cfg.DispatcherRestartDelay = 50 * time.Millisecond
	cfg.DispatcherReconnectDelay = 10 * time.Millisecond
	return cfg
}

func makeTestNodes(t *testing.T, count int, namespaced bool) []*testNode {
	log := logging.TestingLog(t)
	hub := memagent.MakeHub(log)

	var mems []*memagent.Node
	for i := 0; i < count; i++ {
		mem, err := hub.AddNode(fmt.Sprintf("node-%d", i), nil)
		require.NoError(t, err)
		mems = append(mems, mem)
	}
	dids := hub.DIDs()

	var nodes []*testNode
	for i, mem := range mems {
		store, err := ledger.OpenStore(context.Background(), fmt.Sprintf("%s-%d", dbName.Replace(t.Name()), i), true, mem.DID, log)
		require.NoError(t, err)
		cfg := testConfig(mem.DID, dids)
		cfg.SingleLedgerStorePerEntity = namespaced
		n, err := MakeNode(log.With("node", mem.Label), cfg, mem.Connector(), store)
		require.NoError(t, err)
		n.Start()
		nodes = append(nodes, &testNode{Node: n, mem: mem, store: store})
	}
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Stop()
			n.store.Close()
		}
	})
	return nodes
}

func waybill(ledgerName, no string) microledger.Document {
	return microledger.Document{
		microledger.TypeField: string(protocol.IssueTransactionType),
		microledger.IDField:   protocol.NewID(),
		"no":                  no,
		"date":                "2021-04-01",
		"cargo":               "grain",
		"departure_station":   "Almaty-1",
		"arrival_station":     "Aktau-Port",
		"doc_type":            "waybill",
		microledger.LedgerField: map[string]interface{}{
			microledger.LedgerNameField: ledgerName,
		},
	}
}

func createRequest(name string, docs ...microledger.Document) microledger.CreateLedgerRequest {
	return microledger.CreateLedgerRequest{
		ID:         protocol.NewID(),
		Name:       name,
		TimeToLive: 2,
		Genesis:    docs,
	}
}

func drain(obs *agreement.ChanObserver) []agreement.Event {
	var out []agreement.Event
	for {
		select {
		case ev := <-obs.C:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func waitCount(t *testing.T, n *testNode, name string, want uint64) {
	require.Eventually(t, func() bool {
		got, err := n.store.TransactionCount(context.Background(), name)
		return err == nil && got == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubmitContainerSeven(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, namespaced := range []bool{false, true} {
		namespaced := namespaced
		t.Run(fmt.Sprintf("namespaced=%v", namespaced), func(t *testing.T) {
			nodes := makeTestNodes(t, 2, namespaced)
			leader, peer := nodes[0], nodes[1]
			pub := makeCapturePublisher()
			leader.SetPublisher(pub)
			ctx := context.Background()

			obs := agreement.MakeChanObserver(64)
			req := createRequest("Container-7", waybill("Container-7", "1"), waybill("Container-7", "2"))
			rec, err := leader.SubmitLedgerCreation(ctx, req, obs)
			require.NoError(t, err)
			require.Equal(t, "Container-7", rec.Name)
			require.Equal(t, uint64(2), rec.TransactionCount)

			events := drain(obs)
			require.NotEmpty(t, events)
			last := events[len(events)-1]
			require.True(t, last.Done)
			require.Equal(t, float64(100), last.Progress)
			require.NotEmpty(t, pub.progress[req.ID])

			doc := waybill("Container-7", "3")
			txn, err := leader.SubmitTransaction(ctx, doc, 0, nil)
			require.NoError(t, err)
			require.Equal(t, uint64(3), txn.SeqNo())
			_, signed := microledger.SignatureOf(txn.Body)
			require.True(t, signed)

			recs, err := leader.Transactions(ctx, "Container-7", 0)
			require.NoError(t, err)
			require.Len(t, recs, 3)
			for i, r := range recs {
				require.Equal(t, uint64(i+1), r.SeqNo)
			}
			waitCount(t, peer, "Container-7", 3)
			require.Equal(t, 3, pub.committed["Container-7"])

			ledgers, err := peer.Ledgers(ctx)
			require.NoError(t, err)
			require.Len(t, ledgers, 1)
			require.Equal(t, leader.mem.DID, ledgers[0].Metadata["actor"].(map[string]interface{})["did"])

			require.Equal(t, float64(1), testutil.ToFloat64(leader.Metrics().rounds.WithLabelValues(agent.KindInitLedger, "ok")))
			require.Equal(t, float64(3), testutil.ToFloat64(leader.Metrics().persisted))
		})
	}
}

func TestSubmitValidationError(t *testing.T) {
	partitiontest.PartitionTest(t)

	nodes := makeTestNodes(t, 2, false)
	leader := nodes[0]
	pub := makeCapturePublisher()
	leader.SetPublisher(pub)
	ctx := context.Background()

	doc := waybill("L1", "1")
	delete(doc, "cargo")
	req := createRequest("L1", doc)
	obs := agreement.MakeChanObserver(8)
	_, err := leader.SubmitLedgerCreation(ctx, req, obs)
	var verr *microledger.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "cargo", verr.Field)

	report := ProblemFor(err)
	require.Equal(t, protocol.RequestError, report.ProblemCode)
	require.Equal(t, "Genesis transaction 1: missing [cargo] attribute", report.Explain)
	require.Len(t, pub.problems[req.ID], 1)
	require.Empty(t, pub.progress[req.ID])

	events := drain(obs)
	require.Len(t, events, 1)
	require.True(t, events[0].Done)
	require.NotNil(t, events[0].Problem)
	require.Equal(t, report.ProblemCode, events[0].Problem.ProblemCode)
	require.Equal(t, report.Explain, events[0].Problem.Explain)
	require.Equal(t, events[0].Problem.ID, pub.problems[req.ID][0].ID)

	exists, err := leader.mem.Store().IsExists(ctx, "L1")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = leader.SubmitTransaction(ctx, microledger.Document{"no": "1"}, 0, nil)
	require.True(t, errors.As(err, &verr))
	require.Equal(t, float64(1), testutil.ToFloat64(leader.Metrics().rounds.WithLabelValues(agent.KindCommit, "invalid")))
}

func TestSubmitToUnknownLedger(t *testing.T) {
	partitiontest.PartitionTest(t)

	nodes := makeTestNodes(t, 2, false)
	_, err := nodes[0].SubmitTransaction(context.Background(), waybill("nowhere", "1"), 0, nil)
	require.ErrorIs(t, err, agent.ErrLedgerNotFound)
	require.Equal(t, protocol.RequestError, ProblemFor(err).ProblemCode)
}

func TestSubmitParallel(t *testing.T) {
	partitiontest.PartitionTest(t)

	nodes := makeTestNodes(t, 2, true)
	leader, peer := nodes[0], nodes[1]
	ctx := context.Background()

	for _, name := range []string{"L1", "L2"} {
		_, err := leader.SubmitLedgerCreation(ctx, createRequest(name, waybill(name, "1")), nil)
		require.NoError(t, err)
		waitCount(t, peer, name, 1)
	}

	peer.mem.Reject("cargo inspection pending")
	_, err := leader.SubmitParallelTransactions(ctx, map[string][]microledger.Document{
		"L1": {waybill("L1", "2")},
		"L2": {waybill("L2", "2"), waybill("L2", "3")},
	}, time.Second, nil)
	var cf *agreement.CommitFailedError
	require.True(t, errors.As(err, &cf))
	require.Equal(t, "cargo inspection pending", cf.Explain)
	require.Equal(t, protocol.CommitFailed, ProblemFor(err).ProblemCode)
	for _, n := range nodes {
		for _, name := range []string{"L1", "L2"} {
			count, err := n.store.TransactionCount(ctx, name)
			require.NoError(t, err)
			require.Equal(t, uint64(1), count)
		}
	}

	peer.mem.Reject("")
	committed, err := leader.SubmitParallelTransactions(ctx, map[string][]microledger.Document{
		"L1": {waybill("L1", "2")},
		"L2": {waybill("L2", "2"), waybill("L2", "3")},
	}, time.Second, nil)
	require.NoError(t, err)
	require.Len(t, committed["L1"], 1)
	require.Len(t, committed["L2"], 2)
	require.Equal(t, uint64(3), committed["L2"][1].SeqNo())
	waitCount(t, peer, "L1", 2)
	waitCount(t, peer, "L2", 3)

	_, err = leader.SubmitParallelTransactions(ctx, map[string][]microledger.Document{
		"L1": {waybill("L2", "4")},
	}, time.Second, nil)
	var verr *microledger.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestDispatcherHandlesMessagesConcurrently(t *testing.T) {
	partitiontest.PartitionTest(t)

	nodes := makeTestNodes(t, 3, false)
	leader, peer, silent := nodes[0], nodes[1], nodes[2]
	silent.mem.Silence(true)
	ctx := context.Background()

	obs := agreement.MakeChanObserver(64)
	done := make(chan error, 1)
	go func() {
		_, err := leader.SubmitLedgerCreation(ctx, createRequest("Slow", waybill("Slow", "1")), obs)
		done <- err
	}()

	select {
	case <-obs.C:
	case <-time.After(time.Second):
		t.Fatal("ledger creation did not start")
	}
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, leader.RequestStatistics(ctx, peer.mem.DID))
	require.Eventually(t, func() bool {
		_, ok := leader.PeerStatistics(peer.mem.DID)
		return ok
	}, time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("ledger creation finished before the statistics answer: %v", err)
	default:
	}

	err := <-done
	require.ErrorIs(t, err, agreement.ErrCommitTimeout)
	require.Equal(t, protocol.CommitTimeout, ProblemFor(err).ProblemCode)
	require.Equal(t, float64(1), testutil.ToFloat64(peer.Metrics().inbound.WithLabelValues(agent.KindSideChannel)))
	require.Equal(t, float64(1), testutil.ToFloat64(peer.Metrics().inbound.WithLabelValues(agent.KindInitLedger)))
}

func TestDispatcherRestarts(t *testing.T) {
	partitiontest.PartitionTest(t)

	nodes := makeTestNodes(t, 2, false)
	leader, peer := nodes[0], nodes[1]
	ctx := context.Background()

	_, err := leader.SubmitLedgerCreation(ctx, createRequest("L1", waybill("L1", "1")), nil)
	require.NoError(t, err)

	peer.mem.Disconnect(false)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(peer.Metrics().restarts.WithLabelValues("closed")) >= 1
	}, time.Second, 5*time.Millisecond)

	peer.mem.Disconnect(true)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(peer.Metrics().restarts.WithLabelValues("failure")) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	require.Error(t, peer.CheckAgentConnection(ctx))

	peer.mem.Reconnect()
	require.NoError(t, peer.CheckAgentConnection(ctx))
	require.Eventually(t, func() bool {
		_, err := leader.SubmitTransaction(ctx, waybill("L1", "2"), 500*time.Millisecond, nil)
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
	waitCount(t, peer, "L1", 2)
}

func TestResetAndClear(t *testing.T) {
	partitiontest.PartitionTest(t)

	nodes := makeTestNodes(t, 2, true)
	leader := nodes[0]
	ctx := context.Background()

	for _, name := range []string{"L1", "L2", "L3"} {
		_, err := leader.SubmitLedgerCreation(ctx, createRequest(name, waybill(name, "1")), nil)
		require.NoError(t, err)
	}

	require.NoError(t, leader.ResetLedger(ctx, "L1"))
	exists, err := leader.mem.Store().IsExists(ctx, leader.mem.DID+"/L1")
	require.NoError(t, err)
	require.False(t, exists)
	_, err = leader.store.Ledger(ctx, "L1")
	require.ErrorIs(t, err, ledger.ErrNotFound)
	require.NoError(t, leader.ResetLedger(ctx, "L1"))

	n, err := leader.ClearLedgers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	ledgers, err := leader.Ledgers(ctx)
	require.NoError(t, err)
	require.Empty(t, ledgers)
}

func TestMakeNodeRejectsForeignStore(t *testing.T) {
	partitiontest.PartitionTest(t)

	log := logging.TestingLog(t)
	store, err := ledger.OpenStore(context.Background(), dbName.Replace(t.Name()), true, "did:sov:other", log)
	require.NoError(t, err)
	defer store.Close()

	hub := memagent.MakeHub(log)
	mem, err := hub.AddNode("self", nil)
	require.NoError(t, err)

	_, err = MakeNode(log, testConfig(mem.DID, nil), mem.Connector(), store)
	require.Error(t, err)

	_, err = MakeNode(log, testConfig("", nil), mem.Connector(), store)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestProblemFor(t *testing.T) {
	partitiontest.PartitionTest(t)

	cases := []struct {
		err  error
		code string
	}{
		{&microledger.ValidationError{Field: "no", Reason: "Transaction: missing [no] attribute"}, protocol.RequestError},
		{&microledger.SigningError{Err: errors.New("no key")}, protocol.SigningError},
		{&agreement.CommitFailedError{Explain: "rejected"}, protocol.CommitFailed},
		{fmt.Errorf("round: %w", &agreement.CommitFailedError{Explain: "Timeout", Timeout: true}), protocol.CommitTimeout},
		{&agreement.PersistenceError{Op: "store transactions", Ledger: "L1", Err: ledger.ErrSeqNoConflict}, protocol.PersistenceError},
		{errors.New("boom"), protocol.InternalError},
	}
	for _, c := range cases {
		report := ProblemFor(c.err)
		require.Equal(t, c.code, report.ProblemCode, c.err.Error())
		require.Equal(t, protocol.ProblemReportType, report.Type)
	}
	require.Equal(t, "rejected", ProblemFor(&agreement.CommitFailedError{Explain: "rejected"}).Explain)
}
