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

// Package lib holds what the route packages of the ledger daemon share.
package lib

import (
	"errors"
	"net/http"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/spec/v1"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/node"
	"github.com/algorand/go-microledger/protocol"
)

// HandlerFunc defines a wrapper for http.HandlerFunc that includes a context
type HandlerFunc func(ReqContext, http.ResponseWriter, *http.Request)

// Route type description
type Route struct {
	Name        string
	Method      string
	Path        string
	HandlerFunc HandlerFunc
}

// Routes contains all routes
type Routes []Route

// ReqContext is passed to each of the handlers below via wrapCtx, allowing
// handlers to interact with the node
type ReqContext struct {
	Node     *node.Node
	Log      logging.Logger
	Shutdown <-chan struct{}

	// Param returns a path parameter of the request being served.
	Param func(name string) string
}

// StatusOf maps a problem code onto the HTTP status of the response carrying it.
func StatusOf(code string) int {
	switch code {
	case protocol.RequestError:
		return http.StatusBadRequest
	case protocol.CommitTimeout:
		return http.StatusGatewayTimeout
	case protocol.CommitFailed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse sends the problem report of err.
func ErrorResponse(w http.ResponseWriter, err error, log logging.Logger) {
	report := node.ProblemFor(err)
	status := StatusOf(report.ProblemCode)
	if report.ProblemCode == protocol.RequestError && unknownLedger(err) {
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Warnf("request failed: %v", err)
	} else {
		log.Infof("request failed: %v", err)
	}
	ProblemResponse(w, status, report.ProblemCode, report.Explain, log)
}

func unknownLedger(err error) bool {
	return errors.Is(err, agent.ErrLedgerNotFound) || errors.Is(err, ledger.ErrNotFound)
}

// ProblemResponse sends an error body with the given status and problem code.
func ProblemResponse(w http.ResponseWriter, status int, code string, explain string, log logging.Logger) {
	SendJSON(w, status, v1.ErrorResponse{ProblemCode: code, Explain: explain}, log)
}

// SendJSON encodes obj as the response body.
func SendJSON(w http.ResponseWriter, status int, obj interface{}, log logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := protocol.NewJSONEncoder(w).Encode(obj)
	if err != nil {
		log.Warnf("failed to write response: %v", err)
	}
}
