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
	"sort"
)

// Well-known document fields.
const (
	TypeField         = "@type"
	IDField           = "@id"
	LedgerField       = "ledger"
	WaybillField      = "waybill"
	AttachField       = "~attach"
	SignatureField    = "msg~sig"
	LedgerNameField   = "name"
	MetadataField     = "txnMetadata"
	SeqNoField        = "seqNo"
	TxnTimeField      = "time"
	AttachDataField   = "data"
	AttachJSONField   = "json"
	AttachURLField    = "url"
	AttachMD5Field    = "md5"
	AttachMimeField   = "mime_type"
	AttachFileField   = "filename"
	WaybillNoField    = "no"
	WaybillWagonField = "wagon_no"
)

// Document is the body of a transaction: a way-bill, a manifest or any other
// shipment document, kept in the loosely typed shape clients submit.
type Document map[string]interface{}

// Copy returns a shallow copy of the document.
func (d Document) Copy() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the string value of a top-level field, or "" when it is absent or not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// LedgerName returns ledger.name, the ledger this document is addressed to.
func (d Document) LedgerName() string {
	ledger, ok := asMap(d[LedgerField])
	if !ok {
		return ""
	}
	name, _ := ledger[LedgerNameField].(string)
	return name
}

// Attachments returns the descriptors under "~attach" that have the expected shape.
func (d Document) Attachments() []Attachment {
	list, ok := d[AttachField].([]interface{})
	if !ok {
		return nil
	}
	var out []Attachment
	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		att := Attachment{}
		att.ID, _ = m[IDField].(string)
		att.MimeType, _ = m[AttachMimeField].(string)
		att.Filename, _ = m[AttachFileField].(string)
		if data, ok := asMap(m[AttachDataField]); ok {
			if j, ok := asMap(data[AttachJSONField]); ok {
				att.URL, _ = j[AttachURLField].(string)
				att.MD5, _ = j[AttachMD5Field].(string)
			}
		}
		out = append(out, att)
	}
	return out
}

// Attachment describes a blob referenced by a transaction.
type Attachment struct {
	ID       string `codec:"@id"`
	MimeType string `codec:"mime_type"`
	Filename string `codec:"filename"`
	URL      string `codec:"url"`
	MD5      string `codec:"md5"`
}

// Metadata is assigned by the consensus round that committed a transaction.
type Metadata struct {
	SeqNo uint64 `codec:"seqNo"`
	Time  string `codec:"time,omitempty"`
}

// Transaction is one entry of a microledger.
// A Transaction with a zero SeqNo has not been committed yet.
type Transaction struct {
	Body     Document `codec:"txn"`
	Metadata Metadata `codec:"txnMetadata"`
}

// MakeTransaction wraps an uncommitted document.
func MakeTransaction(doc Document) Transaction {
	return Transaction{Body: doc}
}

// SeqNo returns the consensus-assigned sequence number.
func (t Transaction) SeqNo() uint64 {
	return t.Metadata.SeqNo
}

// Committed reports whether the transaction carries a sequence number.
func (t Transaction) Committed() bool {
	return t.Metadata.SeqNo > 0
}

// Signer returns the verkey of the signature block, or "" for unsigned documents.
func (t Transaction) Signer() string {
	sig, ok := SignatureOf(t.Body)
	if !ok {
		return ""
	}
	return sig.Signer
}

// SortBySeqNo orders transactions by sequence number, in place.
func SortBySeqNo(txns []Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Metadata.SeqNo < txns[j].Metadata.SeqNo
	})
}

// CheckContiguous returns an error unless the sequence numbers of txns are
// strictly increasing by one, starting right after `after`.
func CheckContiguous(txns []Transaction, after uint64) error {
	expect := after + 1
	for _, txn := range txns {
		if txn.Metadata.SeqNo != expect {
			return &SequenceError{Expected: expect, Got: txn.Metadata.SeqNo}
		}
		expect++
	}
	return nil
}

// LedgerMeta describes a ledger as reported by the ledger store.
type LedgerMeta struct {
	Name    string `codec:"name"`
	UID     string `codec:"uid"`
	Created string `codec:"created"`
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}
