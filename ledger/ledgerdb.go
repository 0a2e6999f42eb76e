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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/protocol"
	"github.com/algorand/go-microledger/util/db"
)

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS ledgers (
		id integer primary key autoincrement,
		entity text not null,
		name text not null,
		metadata text,
		created_at integer not null,
		UNIQUE (entity, name))`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id integer primary key autoincrement,
		ledger_id integer not null REFERENCES ledgers(id) ON DELETE CASCADE,
		seqno integer not null,
		txn text not null,
		metadata text not null,
		signer text,
		actor_entity text,
		created_at integer not null,
		UNIQUE (ledger_id, seqno))`,
	`CREATE INDEX IF NOT EXISTS transactions_ledger_idx ON transactions (ledger_id, seqno)`,
}

var migrations = []db.Migration{
	ledgerInit,
}

func ledgerInit(ctx context.Context, tx *sqlx.Tx) error {
	for _, tableCreate := range ledgerSchema {
		_, err := tx.ExecContext(ctx, tableCreate)
		if err != nil {
			return fmt.Errorf("ledgerdb ledgerInit could not create table %v", err)
		}
	}
	return nil
}

type ledgerRow struct {
	ID        int64          `db:"id"`
	Entity    string         `db:"entity"`
	Name      string         `db:"name"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt int64          `db:"created_at"`
	Count     uint64         `db:"txn_count"`
}

type txnRow struct {
	SeqNo       uint64         `db:"seqno"`
	Txn         string         `db:"txn"`
	Metadata    string         `db:"metadata"`
	Signer      sql.NullString `db:"signer"`
	ActorEntity sql.NullString `db:"actor_entity"`
	CreatedAt   int64          `db:"created_at"`
}

func ledgerID(ctx context.Context, tx *sqlx.Tx, entity, name string) (id int64, err error) {
	err = tx.QueryRowContext(ctx, "SELECT id FROM ledgers WHERE entity=? AND name=?", entity, name).Scan(&id)
	if err == sql.ErrNoRows {
		err = &LedgerError{Name: name, Err: ErrNotFound}
	}
	return
}

func ledgerPut(ctx context.Context, tx *sqlx.Tx, entity, name string, metadata map[string]interface{}, now time.Time) (int64, error) {
	var meta interface{}
	if metadata != nil {
		meta = string(protocol.EncodeJSON(metadata))
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO ledgers (entity, name, metadata, created_at) VALUES (?, ?, ?, ?)",
		entity, name, meta, now.Unix())
	if err != nil {
		if db.IsConstraint(err) {
			return 0, &LedgerError{Name: name, Err: ErrAlreadyExists}
		}
		return 0, err
	}
	return res.LastInsertId()
}

func ledgerMaxSeqNo(ctx context.Context, tx *sqlx.Tx, id int64) (max uint64, err error) {
	err = tx.GetContext(ctx, &max, "SELECT COALESCE(MAX(seqno), 0) FROM transactions WHERE ledger_id=?", id)
	return
}

func txnAt(ctx context.Context, tx *sqlx.Tx, id int64, seqno uint64) (txn string, found bool, err error) {
	err = tx.GetContext(ctx, &txn, "SELECT txn FROM transactions WHERE ledger_id=? AND seqno=?", id, seqno)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return txn, err == nil, err
}

// txnsPut appends txns to the ledger in the order given. Transactions without
// a consensus sequence number continue after the highest stored one.
// A numbered transaction already stored with the same body is skipped; a
// different body under a stored sequence number is a conflict.
func txnsPut(ctx context.Context, tx *sqlx.Tx, id int64, name string, txns []microledger.Transaction, actor string, now time.Time) error {
	stored, err := ledgerMaxSeqNo(ctx, tx, id)
	if err != nil {
		return err
	}
	next := stored
	var actorCol interface{}
	if actor != "" {
		actorCol = actor
	}
	stmt, err := tx.PreparexContext(ctx, "INSERT INTO transactions (ledger_id, seqno, txn, metadata, signer, actor_entity, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, txn := range txns {
		meta := txn.Metadata
		if meta.SeqNo == 0 {
			meta.SeqNo = next + 1
		}
		next = meta.SeqNo

		body := txn.Body.Copy()
		delete(body, microledger.MetadataField)
		encoded := string(protocol.EncodeJSON(body))
		if meta.SeqNo <= stored {
			existing, found, err := txnAt(ctx, tx, id, meta.SeqNo)
			if err != nil {
				return err
			}
			if found && existing == encoded {
				continue
			}
		}

		var signer interface{}
		if s := txn.Signer(); s != "" {
			signer = s
		}
		_, err = stmt.ExecContext(ctx, id, meta.SeqNo, encoded, string(protocol.EncodeJSON(meta)), signer, actorCol, now.Unix())
		if err != nil {
			if db.IsConstraint(err) {
				return &LedgerError{Name: name, Err: fmt.Errorf("seqno %d: %w", meta.SeqNo, ErrSeqNoConflict)}
			}
			return err
		}
	}
	return nil
}

func ledgerDelete(ctx context.Context, tx *sqlx.Tx, entity, name string) (bool, error) {
	id, err := ledgerID(ctx, tx, entity, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM transactions WHERE ledger_id=?", id)
	if err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM ledgers WHERE id=?", id)
	return err == nil, err
}

func decodeTxnRow(row txnRow) (rec TransactionRecord, err error) {
	rec.SeqNo = row.SeqNo
	rec.Signer = row.Signer.String
	rec.ActorEntity = row.ActorEntity.String
	rec.Stored = time.Unix(row.CreatedAt, 0).UTC()
	err = protocol.DecodeJSON([]byte(row.Txn), &rec.Txn)
	if err != nil {
		return
	}
	err = protocol.DecodeJSON([]byte(row.Metadata), &rec.Metadata)
	return
}

func decodeLedgerRow(row ledgerRow) (rec LedgerRecord, err error) {
	rec.ID = row.ID
	rec.Entity = row.Entity
	rec.Name = row.Name
	rec.Created = time.Unix(row.CreatedAt, 0).UTC()
	rec.TransactionCount = row.Count
	if row.Metadata.Valid {
		err = protocol.DecodeJSON([]byte(row.Metadata.String), &rec.Metadata)
	}
	return
}
