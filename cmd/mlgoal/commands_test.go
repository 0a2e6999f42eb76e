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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/protocol"
	"github.com/algorand/go-microledger/test/partitiontest"
)

func TestDaemonURL(t *testing.T) {
	partitiontest.PartitionTest(t)

	dir := t.TempDir()
	_, err := daemonURL(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.NetFilename), []byte("127.0.0.1:8080\n"), 0644))
	u, err := daemonURL(dir)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080", u.String())
	require.Equal(t, "ws://127.0.0.1:8080/v1/transactions/ws", wsURL(*u))
	require.Equal(t, "http://127.0.0.1:8080", u.String())
}

func TestActorOf(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.Equal(t, "-", actorOf(nil))
	require.Equal(t, "SELF", actorOf(map[string]interface{}{"actor": map[string]interface{}{"label": "SELF", "did": "did1"}}))
	require.Equal(t, "PEER did2", actorOf(map[string]interface{}{"actor": map[string]interface{}{"label": "PEER", "did": "did2"}}))
}

func TestShortType(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.Equal(t, "issue-transaction", shortType(string(protocol.IssueTransactionType)))
	require.Equal(t, "-", shortType(""))
}

func TestPrintReport(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.True(t, printReport(protocol.EncodeJSON(protocol.MakeProgressReport(50, "voting", false))))
	require.False(t, printReport(protocol.EncodeJSON(protocol.MakeProblemReport(protocol.CommitFailed, "rejected"))))
}

func TestAllCommandsHaveNoFlagConflicts(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, c := range rootCmd.Commands() {
		for _, sub := range c.Commands() {
			require.NotPanics(t, func() { sub.InheritedFlags() })
			require.NotNil(t, sub.Run)
		}
	}
}
