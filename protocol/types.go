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

import (
	"strings"

	"github.com/google/uuid"
)

// MessageType is the "@type" URI of a message exchanged with clients and peers.
type MessageType string

// typePrefix is shared by every message type of the transactions family.
const typePrefix = "https://github.com/Sirius-social/TMTM/tree/master/transactions/1.0/"

// Message types, in lexicographic order.
const (
	CreateLedgerType     MessageType = typePrefix + "create-ledger"
	IssueTransactionType MessageType = typePrefix + "issue-transaction"
	ProblemReportType    MessageType = typePrefix + "problem_report"
	ProgressType         MessageType = typePrefix + "progress"
	StatisticsQueryType  MessageType = typePrefix + "statistics-query"
	StatisticsReportType MessageType = typePrefix + "statistics-report"
)

// HasSuffix reports whether the type ends with the given short name, so that
// "…/1.0/create-ledger" matches "create-ledger" regardless of the family prefix.
func (t MessageType) HasSuffix(name string) bool {
	return strings.HasSuffix(string(t), "/"+name) || string(t) == name
}

// Envelope holds the fields common to every message.
type Envelope struct {
	Type MessageType `codec:"@type"`
	ID   string      `codec:"@id"`
}

// PeekType decodes only the envelope of a JSON message.
func PeekType(b []byte) (Envelope, error) {
	var env Envelope
	err := DecodeJSON(b, &env)
	return env, err
}

// NewID returns a fresh message identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
