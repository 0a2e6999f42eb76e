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

package agent

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned by a subscription the agent closed cleanly.
var ErrConnectionClosed = errors.New("agent connection closed")

// ErrLedgerNotFound is returned for operations on a ledger the agent does not know.
var ErrLedgerNotFound = errors.New("microledger not found")

// ErrLedgerExists is returned when creating a ledger under a name already in use.
var ErrLedgerExists = errors.New("microledger already exists")

// TransportError wraps an unexpected failure of the connection to the agent.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
