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
	"context"
	"net/url"
	"os"
	"time"

	"github.com/algorand/websocket"

	"github.com/algorand/go-microledger/protocol"
)

const streamEndpoint = "/v1/transactions/ws"

func ensureClientURL() url.URL {
	dir := resolveDataDir()
	if dir == "" {
		reportErrorln(errorNoDataDir)
	}
	u, err := daemonURL(dir)
	if err != nil {
		reportErrorln(err)
	}
	return *u
}

// wsURL turns the daemon address into the address of its transaction stream.
func wsURL(u url.URL) string {
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = streamEndpoint
	return u.String()
}

// streamRequest sends payload over the transaction stream and prints every
// report until the daemon closes the socket.
func streamRequest(ctx context.Context, u url.URL, payload []byte) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL(u), nil)
	if err != nil {
		reportErrorf(errorStreamFailed, err)
	}
	defer conn.Close()

	err = conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		reportErrorf(errorStreamFailed, err)
	}

	deadline := time.Now().Add(requestTimeout)
	for {
		conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			reportErrorf(errorStreamFailed, err)
		}
		if !printReport(msg) {
			os.Exit(1)
		}
	}
}

// printReport prints one progress or problem report. It returns false for a problem report.
func printReport(msg []byte) bool {
	env, err := protocol.PeekType(msg)
	if err != nil {
		reportWarnf("unreadable report: %v", err)
		return true
	}
	switch {
	case env.Type.HasSuffix("problem_report"):
		var problem protocol.ProblemReport
		if err = protocol.DecodeJSON(msg, &problem); err == nil {
			reportProblemf(infoProblem, problem.ProblemCode, problem.Explain)
		}
		return false
	case env.Type.HasSuffix("progress"):
		var progress protocol.ProgressReport
		if err = protocol.DecodeJSON(msg, &progress); err != nil {
			reportWarnf("unreadable report: %v", err)
			return true
		}
		if progress.Done {
			reportSuccessf(infoProgress, progress.Progress, progress.Message)
		} else {
			reportInfof(infoProgress, progress.Progress, progress.Message)
		}
		return true
	default:
		reportWarnf("unexpected report type %s", env.Type)
		return true
	}
}
