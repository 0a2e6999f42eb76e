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

package ledger

import (
	"errors"
	"fmt"
)

// ErrAlreadyExists is returned when creating a ledger whose name is taken for this entity.
var ErrAlreadyExists = errors.New("ledger already exists")

// ErrNotFound is returned for a ledger this entity does not hold locally.
var ErrNotFound = errors.New("ledger not found")

// ErrSeqNoConflict is returned when a stored transaction reuses a sequence number.
var ErrSeqNoConflict = errors.New("sequence number already stored")

// LedgerError attaches the ledger name to a store error.
type LedgerError struct {
	Name string
	Err  error
}

// Error satisfies builtin interface `error`
func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %q: %v", e.Name, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
