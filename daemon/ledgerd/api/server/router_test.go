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

package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/algorand/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/agent/memagent"
	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/v1/routes"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/spec/v1"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/node"
	"github.com/algorand/go-microledger/protocol"
	"github.com/algorand/go-microledger/test/partitiontest"
)

var dbName = strings.NewReplacer("/", "_", "=", "_")

func TestRoute(t *testing.T) {
	partitiontest.PartitionTest(t)

	e := echo.New()
	registerHandlers(e, apiV1Tag, routes.V1Routes, lib.ReqContext{})

	// Baseline, "method not found".
	func() {
		path := "/v0/this/is/no/endpoint"
		ctx := e.NewContext(nil, nil)
		e.Router().Find(http.MethodGet, path, ctx)
		require.Equal(t, path, ctx.Path())
	}()

	// ledger name extracted parameter
	func() {
		path := "/v1/ledgers/container-7/transactions"
		ctx := e.NewContext(nil, nil)
		e.Router().Find(http.MethodGet, path, ctx)
		require.Equal(t, "/v1/ledgers/:name/transactions", ctx.Path())
		require.Equal(t, "container-7", ctx.Param("name"))
	}()
}

type testDaemon struct {
	url   string
	nodes []*node.Node
	mems  []*memagent.Node
}

// makeTestDaemon serves the first of count hub nodes.
func makeTestDaemon(t *testing.T, count int) *testDaemon {
	log := logging.TestingLog(t)
	hub := memagent.MakeHub(log)
	var mems []*memagent.Node
	for i := 0; i < count; i++ {
		mem, err := hub.AddNode(fmt.Sprintf("node-%d", i), nil)
		require.NoError(t, err)
		mems = append(mems, mem)
	}

	d := &testDaemon{mems: mems}
	for i, mem := range mems {
		store, err := ledger.OpenStore(context.Background(), fmt.Sprintf("%s-%d", dbName.Replace(t.Name()), i), true, mem.DID, log)
		require.NoError(t, err)
		cfg := config.GetDefaultLocal()
		cfg.Entity = mem.DID
		cfg.Participants = hub.DIDs()
		cfg.DefaultTimeToLive = 2
		cfg.EnableMetrics = true
		n, err := node.MakeNode(log.With("node", mem.Label), cfg, mem.Connector(), store)
		require.NoError(t, err)
		n.Start()
		d.nodes = append(d.nodes, n)
		t.Cleanup(func() {
			n.Stop()
			store.Close()
		})
	}

	e := echo.New()
	e.HideBanner = true
	ConfigureRouter(log, d.nodes[0], nil, e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	d.url = srv.URL
	return d
}

func (d *testDaemon) do(t *testing.T, method string, path string, body interface{}, out interface{}) int {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(protocol.EncodeJSON(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, d.url+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, protocol.NewJSONDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func waybill(ledgerName, no string) microledger.Document {
	return microledger.Document{
		microledger.TypeField: string(protocol.IssueTransactionType),
		microledger.IDField:   protocol.NewID(),
		"no":                  no,
		"date":                "2021-04-01",
		"cargo":               "wheat",
		"departure_station":   "Kostanay",
		"arrival_station":     "Aktau-Port",
		"doc_type":            "waybill",
		microledger.LedgerField: map[string]interface{}{
			microledger.LedgerNameField: ledgerName,
		},
	}
}

func TestHealthAndVersions(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := makeTestDaemon(t, 1)
	var health v1.HealthResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodGet, "/health", nil, &health))
	require.Equal(t, v1.HealthResponse{Success: true, Message: "OK"}, health)

	var versions v1.VersionResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodGet, "/versions", nil, &versions))
	require.Equal(t, []string{"v1"}, versions.Versions)
	require.Equal(t, d.mems[0].DID, versions.Entity)

	resp, err := http.Get(d.url + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLedgerLifecycle(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := makeTestDaemon(t, 2)

	create := microledger.CreateLedgerRequest{
		Name:    "container-7",
		Genesis: []microledger.Document{waybill("container-7", "W-1"), waybill("container-7", "W-2")},
	}
	var created v1.LedgerResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodPost, "/v1/ledgers", create, &created))
	require.Equal(t, "container-7", created.Ledger.Name)
	require.EqualValues(t, 2, created.Ledger.Transactions)

	var issued v1.TransactionResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodPost, "/v1/transactions?ttl=2", waybill("container-7", "W-3"), &issued))
	require.EqualValues(t, 3, issued.Transaction.SeqNo())

	var listed v1.LedgersResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodGet, "/v1/ledgers", nil, &listed))
	require.Len(t, listed.Ledgers, 1)
	require.EqualValues(t, 3, listed.Ledgers[0].Transactions)

	var txns v1.TransactionsResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodGet, "/v1/ledgers/container-7/transactions?limit=2", nil, &txns))
	require.Len(t, txns.Transactions, 2)
	require.EqualValues(t, 2, txns.Transactions[0].SeqNo)

	var problem v1.ErrorResponse
	require.Equal(t, http.StatusNotFound, d.do(t, http.MethodGet, "/v1/ledgers/missing/transactions", nil, &problem))
	require.Equal(t, protocol.RequestError, problem.ProblemCode)

	var reset v1.ResetResponse
	require.Equal(t, http.StatusOK, d.do(t, http.MethodDelete, "/v1/ledgers", nil, &reset))
	require.Equal(t, 1, reset.Reset)
	require.Equal(t, http.StatusOK, d.do(t, http.MethodGet, "/v1/ledgers", nil, &listed))
	require.Empty(t, listed.Ledgers)
}

func TestSubmitErrors(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := makeTestDaemon(t, 2)

	bad := waybill("container-7", "W-1")
	delete(bad, "cargo")
	var problem v1.ErrorResponse
	require.Equal(t, http.StatusBadRequest, d.do(t, http.MethodPost, "/v1/transactions", bad, &problem))
	require.Equal(t, protocol.RequestError, problem.ProblemCode)
	require.Equal(t, "Transaction: missing [cargo] attribute", problem.Explain)

	require.Equal(t, http.StatusBadRequest, d.do(t, http.MethodPost, "/v1/transactions?ttl=soon", waybill("container-7", "W-1"), &problem))

	create := microledger.CreateLedgerRequest{
		Name:    "container-8",
		Genesis: []microledger.Document{waybill("container-8", "W-1")},
	}
	d.mems[1].Reject("wagon is already booked")
	require.Equal(t, http.StatusConflict, d.do(t, http.MethodPost, "/v1/ledgers", create, &problem))
	require.Equal(t, protocol.CommitFailed, problem.ProblemCode)
}

func dial(t *testing.T, d *testDaemon) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(d.url, "http") + "/v1/transactions/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

// readReports reads text frames until the server closes the socket.
func readReports(t *testing.T, conn *websocket.Conn) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
			return out
		}
		var report map[string]interface{}
		require.NoError(t, protocol.DecodeJSON(b, &report))
		out = append(out, report)
	}
}

func TestWebsocketStreamsProgress(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := makeTestDaemon(t, 2)

	conn := dial(t, d)
	req := map[string]interface{}{
		"@type":        string(protocol.CreateLedgerType),
		"@id":          protocol.NewID(),
		"name":         "container-9",
		"time_to_live": 2,
		"genesis":      []interface{}{map[string]interface{}(waybill("container-9", "W-1"))},
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.EncodeJSON(req)))

	reports := readReports(t, conn)
	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	require.Equal(t, string(protocol.ProgressType), last["@type"])
	require.Equal(t, true, last["done"])
	require.EqualValues(t, 100, last["progress"])

	conn = dial(t, d)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.EncodeJSON(waybill("container-9", "W-2"))))
	reports = readReports(t, conn)
	require.Equal(t, true, reports[len(reports)-1]["done"])
}

func TestWebsocketRejectsBadRequests(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := makeTestDaemon(t, 1)

	for _, tc := range []struct {
		payload string
		explain string
	}{
		{`{"@id":"1"}`, "Missing @type attribute in request"},
		{`{"@type":"https://example.org/1.0/ping"}`, `Unexpected @type = "https://example.org/1.0/ping"`},
	} {
		conn := dial(t, d)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.payload)))
		reports := readReports(t, conn)
		require.Len(t, reports, 1)
		require.Equal(t, string(protocol.ProblemReportType), reports[0]["@type"])
		require.Equal(t, protocol.RequestError, reports[0]["problem-code"])
		require.Equal(t, tc.explain, reports[0]["explain"])
	}
}
