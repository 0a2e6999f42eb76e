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

var (
	errFailedParsingLimit       = "failed to parse limit, must be between 0 and %d"
	errFailedParsingTimeToLive  = "failed to parse ttl %q, must be a number of seconds"
	errFailedToParseRequest     = "failed to parse ledger creation request: %v"
	errFailedToParseTransaction = "failed to parse transaction: %v"
	errMissingType              = "Missing @type attribute in request"
	errUnexpectedType           = "Unexpected @type = \"%s\""
	errServiceShuttingDown      = "operation aborted as server is shutting down"
)
