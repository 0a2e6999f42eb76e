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

// RequiredFields lists the attributes every domain transaction must carry, in check order.
var RequiredFields = []string{
	TypeField,
	IDField,
	"no",
	"date",
	"cargo",
	"departure_station",
	"arrival_station",
	"doc_type",
	LedgerField,
}

var attachmentFields = []string{AttachMimeField, IDField, AttachFileField, AttachDataField}

// CreateLedgerRequest asks for a new ledger seeded with a genesis batch.
type CreateLedgerRequest struct {
	ID           string     `codec:"@id"`
	Name         string     `codec:"name"`
	TimeToLive   int        `codec:"time_to_live"`
	Genesis      []Document `codec:"genesis"`
	Participants []string   `codec:"participants"`
}

// ValidateTransaction checks that doc is well formed enough to be proposed to the participants.
func ValidateTransaction(doc Document) error {
	return validateDocument("Transaction", doc)
}

// ValidateGenesis validates every entry of a genesis batch independently.
func ValidateGenesis(genesis []Document) error {
	if len(genesis) == 0 {
		return empty("Genesis", "genesis")
	}
	for i, doc := range genesis {
		err := validateDocument(fmt.Sprintf("Genesis transaction %d", i+1), doc)
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidateCreateLedger checks a ledger creation request and its genesis batch.
func ValidateCreateLedger(req CreateLedgerRequest) error {
	if req.Name == "" {
		return empty("Request", "name")
	}
	if req.ID == "" {
		return empty("Request", IDField)
	}
	if req.TimeToLive <= 0 {
		return &ValidationError{Field: "time_to_live", Reason: fmt.Sprintf("Request: [time_to_live] must be positive, got %d", req.TimeToLive)}
	}
	return ValidateGenesis(req.Genesis)
}

func validateDocument(scope string, doc Document) error {
	if doc == nil {
		return &ValidationError{Field: "", Reason: scope + ": document is empty"}
	}
	for _, field := range RequiredFields {
		v, ok := doc[field]
		if !ok {
			return missing(scope, field)
		}
		if isEmpty(v) {
			return empty(scope, field)
		}
	}
	if doc.LedgerName() == "" {
		return &ValidationError{Field: LedgerField + "." + LedgerNameField, Reason: scope + ": ledger.name is empty"}
	}

	if raw := doc[WaybillField]; raw != nil {
		waybill, ok := asMap(raw)
		if !ok {
			return &ValidationError{Field: WaybillField, Reason: scope + ": [waybill] should be an object"}
		}
		if len(waybill) > 0 && isEmpty(waybill[WaybillNoField]) && isEmpty(waybill[WaybillWagonField]) {
			return &ValidationError{Field: WaybillField, Reason: scope + ": you should fill [waybill] attributes"}
		}
	}

	raw, present := doc[AttachField]
	if !present || raw == nil {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return &ValidationError{Field: AttachField, Reason: scope + ": [~attach] should be a list"}
	}
	for _, item := range list {
		att, ok := asMap(item)
		if !ok {
			return &ValidationError{Field: AttachField, Reason: scope + " attachment: malformed entry"}
		}
		for _, field := range attachmentFields {
			if isEmpty(att[field]) {
				return missing(scope+" attachment", field)
			}
		}
		var url, md5 interface{}
		if data, ok := asMap(att[AttachDataField]); ok {
			if j, ok := asMap(data[AttachJSONField]); ok {
				url, md5 = j[AttachURLField], j[AttachMD5Field]
			}
		}
		if isEmpty(url) || isEmpty(md5) {
			return &ValidationError{Field: AttachDataField + "." + AttachJSONField, Reason: scope + " attachment: [url] and [md5] should be set"}
		}
	}
	return nil
}

// isEmpty treats absent, blank, zero and empty-container values alike.
func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case map[string]interface{}:
		return len(x) == 0
	case Document:
		return len(x) == 0
	case map[interface{}]interface{}:
		return len(x) == 0
	case []interface{}:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case uint64:
		return x == 0
	case float64:
		return x == 0
	default:
		return false
	}
}
