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

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/algorand/websocket"

	"github.com/algorand/go-microledger/agreement"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/node"
	"github.com/algorand/go-microledger/protocol"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsReadLimit      = 4 << 20
	wsReadBufferSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsReadBufferSize,
	WriteBufferSize: wsReadBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsSession is one client socket. Only the serving goroutine writes to conn.
type wsSession struct {
	ctx  lib.ReqContext
	conn *websocket.Conn
}

func (s *wsSession) send(obj interface{}) error {
	b, err := protocol.EncodeJSONErr(obj)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSession) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
	s.conn.Close()
}

func (s *wsSession) problem(code string, explain string) {
	err := s.send(protocol.MakeProblemReport(code, explain))
	if err != nil {
		s.ctx.Log.Debugf("failed to send problem report: %v", err)
	}
	s.close()
}

// TransactionStream is an httpHandler for route GET /v1/transactions/ws.
// The client sends one create-ledger or issue-transaction request and receives
// progress reports until the round is done. A failed request ends with a
// problem report. The socket is closed after the terminal report.
func TransactionStream(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ctx.Log.Infof("websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)
	s := &wsSession{ctx: ctx, conn: conn}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		ctx.Log.Debugf("websocket closed before a request was read: %v", err)
		conn.Close()
		return
	}

	env, err := protocol.PeekType(payload)
	if err != nil {
		s.problem(protocol.RequestError, fmt.Sprintf(errFailedToParseTransaction, err))
		return
	}

	var submit func(context.Context, agreement.Observer) error
	switch {
	case env.Type == "":
		s.problem(protocol.RequestError, errMissingType)
		return
	case env.Type.HasSuffix("create-ledger"):
		var req microledger.CreateLedgerRequest
		err = protocol.DecodeJSON(payload, &req)
		if err != nil {
			s.problem(protocol.RequestError, fmt.Sprintf(errFailedToParseRequest, err))
			return
		}
		submit = func(rctx context.Context, obs agreement.Observer) error {
			_, err := ctx.Node.SubmitLedgerCreation(rctx, req, obs)
			return err
		}
	case env.Type.HasSuffix("issue-transaction"):
		var doc microledger.Document
		err = protocol.DecodeJSON(payload, &doc)
		if err != nil {
			s.problem(protocol.RequestError, fmt.Sprintf(errFailedToParseTransaction, err))
			return
		}
		submit = func(rctx context.Context, obs agreement.Observer) error {
			_, err := ctx.Node.SubmitTransaction(rctx, doc, 0, obs)
			return err
		}
	default:
		s.problem(protocol.RequestError, fmt.Sprintf(errUnexpectedType, env.Type))
		return
	}

	s.serve(submit)
}

// serve runs submit and pumps its progress to the client.
func (s *wsSession) serve(submit func(context.Context, agreement.Observer) error) {
	rctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client has nothing more to say; a read error means it went away.
	go func() {
		for {
			if _, _, err := s.conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	obs := agreement.MakeChanObserver(s.ctx.Node.Config().ProgressBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- submit(rctx, obs)
	}()

	for {
		select {
		case ev := <-obs.C:
			s.progress(ev)
		case <-s.ctx.Shutdown:
			cancel()
			err := <-done
			s.flush(obs)
			if err == nil {
				s.close()
				return
			}
			s.problem(protocol.InternalError, errServiceShuttingDown)
			return
		case err := <-done:
			s.flush(obs)
			if err != nil {
				report := node.ProblemFor(err)
				s.problem(report.ProblemCode, report.Explain)
				return
			}
			s.close()
			return
		}
	}
}

// flush sends the progress events still buffered once the round returned.
func (s *wsSession) flush(obs *agreement.ChanObserver) {
	for {
		select {
		case ev := <-obs.C:
			s.progress(ev)
		default:
			return
		}
	}
}

func (s *wsSession) progress(ev agreement.Event) {
	// The round's error is reported by serve once the submit returns.
	if ev.Problem != nil {
		return
	}
	err := s.send(protocol.MakeProgressReport(ev.Progress, ev.Message, ev.Done))
	if err != nil {
		s.ctx.Log.Debugf("failed to send progress report: %v", err)
	}
}
