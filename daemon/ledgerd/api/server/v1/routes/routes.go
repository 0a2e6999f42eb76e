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

package routes

import (
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/v1/handlers"
)

// V1Routes contains all routes for v1
var V1Routes = lib.Routes{
	lib.Route{
		Name:        "ledgers",
		Method:      "GET",
		Path:        "/ledgers",
		HandlerFunc: handlers.ListLedgers,
	},

	lib.Route{
		Name:        "ledger-transactions",
		Method:      "GET",
		Path:        "/ledgers/:name/transactions",
		HandlerFunc: handlers.LedgerTransactions,
	},

	lib.Route{
		Name:        "create-ledger",
		Method:      "POST",
		Path:        "/ledgers",
		HandlerFunc: handlers.CreateLedger,
	},

	lib.Route{
		Name:        "reset-ledger",
		Method:      "DELETE",
		Path:        "/ledgers/:name",
		HandlerFunc: handlers.ResetLedger,
	},

	lib.Route{
		Name:        "clear-ledgers",
		Method:      "DELETE",
		Path:        "/ledgers",
		HandlerFunc: handlers.ClearLedgers,
	},

	lib.Route{
		Name:        "issue-transaction",
		Method:      "POST",
		Path:        "/transactions",
		HandlerFunc: handlers.IssueTransaction,
	},

	lib.Route{
		Name:        "issue-parallel",
		Method:      "POST",
		Path:        "/transactions/parallel",
		HandlerFunc: handlers.IssueParallelTransactions,
	},

	lib.Route{
		Name:        "transaction-stream",
		Method:      "GET",
		Path:        "/transactions/ws",
		HandlerFunc: handlers.TransactionStream,
	},
}
