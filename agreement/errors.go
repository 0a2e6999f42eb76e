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

package agreement

import (
	"errors"
	"fmt"

	"github.com/algorand/go-microledger/agent"
)

// ErrCommitTimeout matches a CommitFailedError whose round ran out of time.
var ErrCommitTimeout = errors.New("commit round timed out")

// CommitFailedError is returned when the participants did not agree.
// Explain carries the consensus layer's explanation, which may be empty.
type CommitFailedError struct {
	Explain string
	Timeout bool
}

func (e *CommitFailedError) Error() string {
	if e.Explain == "" {
		return "consensus round failed"
	}
	return fmt.Sprintf("consensus round failed: %s", e.Explain)
}

// Is lets errors.Is(err, ErrCommitTimeout) single out timeouts.
func (e *CommitFailedError) Is(target error) bool {
	return target == ErrCommitTimeout && e.Timeout
}

func roundFailure(round agent.ConsensusRound) *CommitFailedError {
	p := round.ProblemReport()
	if p == nil {
		return &CommitFailedError{}
	}
	return &CommitFailedError{Explain: p.Explain, Timeout: p.Code == agent.ProblemTimeout}
}

// PersistenceError is returned when the local projection could not record a
// round that the participants did agree on. The distributed ledger stays authoritative.
type PersistenceError struct {
	Op     string
	Ledger string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: local store: %v", e.Op, e.Ledger, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
