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

package microledger

import (
	"fmt"
)

// ValidationError is returned when a document is rejected before it reaches consensus.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func missing(scope, field string) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf("%s: missing [%s] attribute", scope, field)}
}

func empty(scope, field string) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf("%s: [%s] attribute is empty", scope, field)}
}

// SigningError wraps a failure of the local wallet to sign a document.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// SequenceError reports a gap or reordering in transaction sequence numbers.
type SequenceError struct {
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("unexpected sequence number %d, expected %d", e.Got, e.Expected)
}
