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

package node

import (
	"errors"

	"github.com/algorand/go-microledger/agent"
	"github.com/algorand/go-microledger/agreement"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/protocol"
)

// ProblemFor renders a failed request as the problem report sent to its client.
func ProblemFor(err error) protocol.ProblemReport {
	var verr *microledger.ValidationError
	var serr *microledger.SigningError
	var cf *agreement.CommitFailedError
	var perr *agreement.PersistenceError

	switch {
	case errors.As(err, &verr):
		return protocol.MakeProblemReport(protocol.RequestError, verr.Reason)
	case errors.As(err, &perr):
		return protocol.MakeProblemReport(protocol.PersistenceError, perr.Error())
	case errors.Is(err, agent.ErrLedgerNotFound), errors.Is(err, agent.ErrLedgerExists), errors.Is(err, ledger.ErrNotFound):
		return protocol.MakeProblemReport(protocol.RequestError, err.Error())
	case errors.As(err, &serr):
		return protocol.MakeProblemReport(protocol.SigningError, serr.Error())
	case errors.As(err, &cf):
		code := protocol.CommitFailed
		if errors.Is(err, agreement.ErrCommitTimeout) {
			code = protocol.CommitTimeout
		}
		return protocol.MakeProblemReport(code, cf.Explain)
	default:
		return protocol.MakeProblemReport(protocol.InternalError, err.Error())
	}
}
