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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/spec/v1"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/protocol"
)

const maxTransactionsToList = 10000

func ledgerEncode(rec ledger.LedgerRecord) v1.Ledger {
	return v1.Ledger{
		Name:         rec.Name,
		Metadata:     rec.Metadata,
		Created:      rec.Created,
		Transactions: rec.TransactionCount,
	}
}

func transactionEncode(rec ledger.TransactionRecord) v1.Transaction {
	return v1.Transaction{
		SeqNo:       rec.SeqNo,
		Txn:         rec.Txn,
		Metadata:    rec.Metadata,
		Signer:      rec.Signer,
		ActorEntity: rec.ActorEntity,
	}
}

func fail(ctx lib.ReqContext, w http.ResponseWriter, err error) {
	lib.ErrorResponse(w, err, ctx.Log)
}

func badRequest(ctx lib.ReqContext, w http.ResponseWriter, explain string) {
	lib.ProblemResponse(w, http.StatusBadRequest, protocol.RequestError, explain, ctx.Log)
}

// timeToLive reads the ttl query parameter, in seconds.
func timeToLive(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf(errFailedParsingTimeToLive, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// ListLedgers is an httpHandler for route GET /v1/ledgers
func ListLedgers(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	recs, err := ctx.Node.Ledgers(r.Context())
	if err != nil {
		fail(ctx, w, err)
		return
	}
	response := v1.LedgersResponse{Ledgers: make([]v1.Ledger, 0, len(recs))}
	for _, rec := range recs {
		response.Ledgers = append(response.Ledgers, ledgerEncode(rec))
	}
	lib.SendJSON(w, http.StatusOK, response, ctx.Log)
}

// LedgerTransactions is an httpHandler for route GET /v1/ledgers/{name}/transactions
func LedgerTransactions(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	name := ctx.Param("name")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > maxTransactionsToList {
			badRequest(ctx, w, fmt.Sprintf(errFailedParsingLimit, maxTransactionsToList))
			return
		}
	}

	recs, err := ctx.Node.Transactions(r.Context(), name, limit)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	response := v1.TransactionsResponse{Ledger: name, Transactions: make([]v1.Transaction, 0, len(recs))}
	for _, rec := range recs {
		response.Transactions = append(response.Transactions, transactionEncode(rec))
	}
	lib.SendJSON(w, http.StatusOK, response, ctx.Log)
}

// CreateLedger is an httpHandler for route POST /v1/ledgers
func CreateLedger(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	var req microledger.CreateLedgerRequest
	err := protocol.NewJSONDecoder(r.Body).Decode(&req)
	if err != nil {
		badRequest(ctx, w, fmt.Sprintf(errFailedToParseRequest, err))
		return
	}
	if req.ID == "" {
		req.ID = protocol.NewID()
	}
	if req.TimeToLive == 0 {
		req.TimeToLive = ctx.Node.Config().DefaultTimeToLive
	}

	rec, err := ctx.Node.SubmitLedgerCreation(r.Context(), req, nil)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	lib.SendJSON(w, http.StatusOK, v1.LedgerResponse{Ledger: ledgerEncode(rec)}, ctx.Log)
}

// IssueTransaction is an httpHandler for route POST /v1/transactions
func IssueTransaction(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	ttl, err := timeToLive(r)
	if err != nil {
		badRequest(ctx, w, err.Error())
		return
	}
	var doc microledger.Document
	err = protocol.NewJSONDecoder(r.Body).Decode(&doc)
	if err != nil {
		badRequest(ctx, w, fmt.Sprintf(errFailedToParseTransaction, err))
		return
	}

	txn, err := ctx.Node.SubmitTransaction(r.Context(), doc, ttl, nil)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	lib.SendJSON(w, http.StatusOK, v1.TransactionResponse{Transaction: txn}, ctx.Log)
}

// IssueParallelTransactions is an httpHandler for route POST /v1/transactions/parallel
func IssueParallelTransactions(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	ttl, err := timeToLive(r)
	if err != nil {
		badRequest(ctx, w, err.Error())
		return
	}
	var req v1.ParallelRequest
	err = protocol.NewJSONDecoder(r.Body).Decode(&req)
	if err != nil {
		badRequest(ctx, w, fmt.Sprintf(errFailedToParseTransaction, err))
		return
	}

	committed, err := ctx.Node.SubmitParallelTransactions(r.Context(), req.Transactions, ttl, nil)
	if err != nil {
		fail(ctx, w, err)
		return
	}
	lib.SendJSON(w, http.StatusOK, v1.ParallelResponse{Committed: committed}, ctx.Log)
}

// ResetLedger is an httpHandler for route DELETE /v1/ledgers/{name}
func ResetLedger(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	err := ctx.Node.ResetLedger(r.Context(), ctx.Param("name"))
	if err != nil {
		fail(ctx, w, err)
		return
	}
	lib.SendJSON(w, http.StatusOK, v1.ResetResponse{Reset: 1}, ctx.Log)
}

// ClearLedgers is an httpHandler for route DELETE /v1/ledgers
func ClearLedgers(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	n, err := ctx.Node.ClearLedgers(r.Context())
	if err != nil {
		fail(ctx, w, err)
		return
	}
	lib.SendJSON(w, http.StatusOK, v1.ResetResponse{Reset: n}, ctx.Log)
}
