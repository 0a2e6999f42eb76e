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

package protocol

// Problem codes carried by ProblemReport.
const (
	RequestError     = "request_error"
	SigningError     = "signing_error"
	CommitFailed     = "commit_failed"
	CommitTimeout    = "commit_timeout"
	PersistenceError = "persistence_error"
	InternalError    = "internal_error"
)

// ProgressReport tells a client how far a commit round got.
type ProgressReport struct {
	Envelope
	Progress float64 `codec:"progress"`
	Message  string  `codec:"message"`
	Done     bool    `codec:"done"`
}

// ProblemReport is the terminal report of a failed request.
type ProblemReport struct {
	Envelope
	ProblemCode string `codec:"problem-code"`
	Explain     string `codec:"explain"`
}

// MakeProgressReport builds a progress report with a fresh id.
func MakeProgressReport(progress float64, message string, done bool) ProgressReport {
	return ProgressReport{
		Envelope: Envelope{Type: ProgressType, ID: NewID()},
		Progress: progress,
		Message:  message,
		Done:     done,
	}
}

// MakeProblemReport builds a problem report with a fresh id.
func MakeProblemReport(problemCode string, explain string) ProblemReport {
	return ProblemReport{
		Envelope:    Envelope{Type: ProblemReportType, ID: NewID()},
		ProblemCode: problemCode,
		Explain:     explain,
	}
}

// StatisticsQuery asks a peer for the size of its local projection.
type StatisticsQuery struct {
	Envelope
}

// StatisticsReport answers a StatisticsQuery.
type StatisticsReport struct {
	Envelope
	Ledgers      uint64 `codec:"ledgers"`
	Transactions uint64 `codec:"transactions"`
}
