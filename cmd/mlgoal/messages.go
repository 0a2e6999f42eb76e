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

const (
	errorNoDataDir    = "Data directory not specified.  Please use -d or set $MICROLEDGER_DATA in your environment."
	errorNoNetFile    = "cannot find the daemon address in %s, is ledgerd running? %v"
	errorRequestFail  = "Error processing the request: %v"
	errorReadFile     = "Cannot read %s: %v"
	errorParseFile    = "Cannot parse %s: %v"
	errorStreamFailed = "Error streaming the request: %v"

	infoLedgerCreated  = "Ledger %s created with %d transaction(s)"
	infoTxnCommitted   = "Transaction committed to %s as seqNo %d"
	infoParallelDone   = "Transactions committed to %d ledger(s)"
	infoLedgerReset    = "Ledger %s reset"
	infoLedgersCleared = "%d ledger(s) cleared"
	infoNoLedgers      = "No ledgers"
	infoProblem        = "%s: %s"
	infoProgress       = "[%5.1f%%] %s"
)
