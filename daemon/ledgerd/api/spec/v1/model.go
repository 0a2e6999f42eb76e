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

// Package v1 defines the bodies exchanged with the ledger daemon's REST API.
package v1

import (
	"time"

	"github.com/algorand/go-microledger/data/microledger"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Success bool   `codec:"success"`
	Message string `codec:"message"`
}

// VersionResponse is returned by GET /versions.
type VersionResponse struct {
	Versions []string `codec:"versions"`
	Entity   string   `codec:"entity"`
	Build    string   `codec:"build"`
}

// ErrorResponse is the body of every failed request.
// It has the fields of a problem report.
type ErrorResponse struct {
	ProblemCode string `codec:"problem-code"`
	Explain     string `codec:"explain"`
}

// Ledger describes one ledger of the local store.
type Ledger struct {
	Name         string                 `codec:"name"`
	Metadata     map[string]interface{} `codec:"metadata"`
	Created      time.Time              `codec:"created"`
	Transactions uint64                 `codec:"transactions"`
}

// LedgersResponse is returned by GET /v1/ledgers.
type LedgersResponse struct {
	Ledgers []Ledger `codec:"ledgers"`
}

// TransactionsParams are the query parameters of GET /v1/ledgers/{name}/transactions.
type TransactionsParams struct {
	Limit int `url:"limit,omitempty"`
}

// Transaction is one committed transaction of a ledger.
type Transaction struct {
	SeqNo       uint64               `codec:"seqno"`
	Txn         microledger.Document `codec:"txn"`
	Metadata    microledger.Metadata `codec:"txnMetadata"`
	Signer      string               `codec:"signer,omitempty"`
	ActorEntity string               `codec:"actor_entity,omitempty"`
}

// TransactionsResponse is returned by GET /v1/ledgers/{name}/transactions.
type TransactionsResponse struct {
	Ledger       string        `codec:"ledger"`
	Transactions []Transaction `codec:"transactions"`
}

// SubmitParams are the query parameters of the transaction endpoints.
type SubmitParams struct {
	// TimeToLive is the round time to live in seconds; zero selects the node default.
	TimeToLive int `url:"ttl,omitempty"`
}

// LedgerResponse is returned by POST /v1/ledgers.
type LedgerResponse struct {
	Ledger Ledger `codec:"ledger"`
}

// TransactionResponse is returned by POST /v1/transactions.
type TransactionResponse struct {
	Transaction microledger.Transaction `codec:"transaction"`
}

// ParallelRequest is the body of POST /v1/transactions/parallel.
type ParallelRequest struct {
	Transactions map[string][]microledger.Document `codec:"transactions"`
}

// ParallelResponse is returned by POST /v1/transactions/parallel.
type ParallelResponse struct {
	Committed map[string][]microledger.Transaction `codec:"committed"`
}

// ResetResponse is returned by DELETE /v1/ledgers and DELETE /v1/ledgers/{name}.
type ResetResponse struct {
	Reset int `codec:"reset"`
}
