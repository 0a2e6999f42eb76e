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
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/util/db"
)

// Store is the local, queryable projection of the ledgers an entity takes part in.
// Writes happen only after the consensus round that produced them succeeded.
type Store struct {
	dbs    db.Pair
	entity string
	log    logging.Logger
	now    func() time.Time
}

// LedgerRecord is a stored ledger.
type LedgerRecord struct {
	ID               int64                  `codec:"id"`
	Entity           string                 `codec:"entity"`
	Name             string                 `codec:"name"`
	Metadata         map[string]interface{} `codec:"metadata"`
	Created          time.Time              `codec:"created"`
	TransactionCount uint64                 `codec:"transactions"`
}

// TransactionRecord is a stored transaction.
type TransactionRecord struct {
	SeqNo       uint64               `codec:"seqno"`
	Txn         microledger.Document `codec:"txn"`
	Metadata    microledger.Metadata `codec:"metadata"`
	Signer      string               `codec:"signer,omitempty"`
	ActorEntity string               `codec:"actor_entity,omitempty"`
	Stored      time.Time            `codec:"stored"`
}

// Stats counts what the store holds for its entity.
type Stats struct {
	Ledgers      int64 `codec:"ledgers" db:"ledgers"`
	Transactions int64 `codec:"transactions" db:"transactions"`
}

// OpenStore opens (creating or upgrading if needed) the store in dbFilename for entity.
func OpenStore(ctx context.Context, dbFilename string, inMemory bool, entity string, log logging.Logger) (*Store, error) {
	dbs, err := db.OpenPair(dbFilename, inMemory)
	if err != nil {
		return nil, err
	}
	dbs.Rdb = dbs.Rdb.WithLogger(log)
	dbs.Wdb = dbs.Wdb.WithLogger(log)

	s := &Store{
		dbs:    dbs,
		entity: entity,
		log:    log.With("entity", entity),
		now:    time.Now,
	}
	err = dbs.Wdb.Atomic(ctx, "ledger migrate", func(ctx context.Context, tx *sqlx.Tx) error {
		ver, err := db.Migrate(ctx, tx, migrations)
		if err == nil {
			s.log.Debugf("ledger store at schema version %d", ver)
		}
		return err
	})
	if err != nil {
		dbs.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handles.
func (s *Store) Close() {
	s.dbs.Close()
}

// Entity returns the owning entity the store is scoped to.
func (s *Store) Entity() string {
	return s.entity
}

// CreateLedger stores a ledger with its genesis transactions in one database
// transaction. It fails with ErrAlreadyExists, leaving the existing rows untouched,
// if the entity already holds a ledger by that name.
func (s *Store) CreateLedger(ctx context.Context, name string, metadata map[string]interface{}, genesis []microledger.Transaction) (id int64, err error) {
	now := s.now()
	err = s.dbs.Wdb.Atomic(ctx, "create ledger", func(ctx context.Context, tx *sqlx.Tx) error {
		id, err = ledgerPut(ctx, tx, s.entity, name, metadata, now)
		if err != nil {
			return err
		}
		return txnsPut(ctx, tx, id, name, genesis, "", now)
	})
	if err != nil {
		return 0, err
	}
	s.log.With("ledger", name).Infof("stored ledger with %d genesis transaction(s)", len(genesis))
	return id, nil
}

// StoreTransactions appends txns to a stored ledger in the order given.
// counterparty, if set, records the peer that led the round.
func (s *Store) StoreTransactions(ctx context.Context, name string, txns []microledger.Transaction, counterparty string) error {
	now := s.now()
	err := s.dbs.Wdb.Atomic(ctx, "store transactions", func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := ledgerID(ctx, tx, s.entity, name)
		if err != nil {
			return err
		}
		return txnsPut(ctx, tx, id, name, txns, counterparty, now)
	})
	if err != nil {
		return err
	}
	s.log.With("ledger", name).Debugf("stored %d transaction(s)", len(txns))
	return nil
}

// ResetLedger deletes a ledger and its transactions. Resetting an unknown ledger is not an error.
func (s *Store) ResetLedger(ctx context.Context, name string) error {
	var removed bool
	err := s.dbs.Wdb.Atomic(ctx, "reset ledger", func(ctx context.Context, tx *sqlx.Tx) (err error) {
		removed, err = ledgerDelete(ctx, tx, s.entity, name)
		return
	})
	if err == nil && removed {
		s.log.With("ledger", name).Info("ledger reset")
	}
	return err
}

// ResetAll deletes every ledger of the entity and returns how many were removed.
func (s *Store) ResetAll(ctx context.Context) (n int64, err error) {
	err = s.dbs.Wdb.Atomic(ctx, "reset all ledgers", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE ledger_id IN (SELECT id FROM ledgers WHERE entity=?)", s.entity)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM ledgers WHERE entity=?", s.entity)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return
}

// TransactionCount returns how many transactions a stored ledger holds.
func (s *Store) TransactionCount(ctx context.Context, name string) (count uint64, err error) {
	err = s.dbs.Rdb.Atomic(ctx, "count transactions", func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := ledgerID(ctx, tx, s.entity, name)
		if err != nil {
			return err
		}
		return tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM transactions WHERE ledger_id=?", id)
	})
	return
}

const ledgerSelect = `SELECT l.id, l.entity, l.name, l.metadata, l.created_at,
	(SELECT COUNT(*) FROM transactions t WHERE t.ledger_id = l.id) AS txn_count
	FROM ledgers l WHERE l.entity=?`

// Ledger returns one stored ledger.
func (s *Store) Ledger(ctx context.Context, name string) (rec LedgerRecord, err error) {
	err = s.dbs.Rdb.Atomic(ctx, "get ledger", func(ctx context.Context, tx *sqlx.Tx) error {
		var rows []ledgerRow
		err := tx.SelectContext(ctx, &rows, ledgerSelect+" AND l.name=?", s.entity, name)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &LedgerError{Name: name, Err: ErrNotFound}
		}
		rec, err = decodeLedgerRow(rows[0])
		return err
	})
	return
}

// Ledgers lists the stored ledgers of the entity by name.
func (s *Store) Ledgers(ctx context.Context) (out []LedgerRecord, err error) {
	err = s.dbs.Rdb.Atomic(ctx, "list ledgers", func(ctx context.Context, tx *sqlx.Tx) error {
		var rows []ledgerRow
		err := tx.SelectContext(ctx, &rows, ledgerSelect+" ORDER BY l.name", s.entity)
		if err != nil {
			return err
		}
		out = make([]LedgerRecord, 0, len(rows))
		for _, row := range rows {
			rec, err := decodeLedgerRow(row)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return
}

// Transactions returns the stored transactions of a ledger by sequence number.
// A positive limit returns only the most recent ones.
func (s *Store) Transactions(ctx context.Context, name string, limit int) (out []TransactionRecord, err error) {
	err = s.dbs.Rdb.Atomic(ctx, "list transactions", func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := ledgerID(ctx, tx, s.entity, name)
		if err != nil {
			return err
		}
		query := "SELECT seqno, txn, metadata, signer, actor_entity, created_at FROM transactions WHERE ledger_id=? ORDER BY seqno"
		args := []interface{}{id}
		if limit > 0 {
			query = "SELECT * FROM (SELECT seqno, txn, metadata, signer, actor_entity, created_at FROM transactions WHERE ledger_id=? ORDER BY seqno DESC LIMIT ?) ORDER BY seqno"
			args = append(args, limit)
		}
		var rows []txnRow
		err = tx.SelectContext(ctx, &rows, query, args...)
		if err != nil {
			return err
		}
		out = make([]TransactionRecord, 0, len(rows))
		for _, row := range rows {
			rec, err := decodeTxnRow(row)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return
}

// Stats counts the ledgers and transactions of the entity.
func (s *Store) Stats(ctx context.Context) (st Stats, err error) {
	err = s.dbs.Rdb.Atomic(ctx, "stats", func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &st, `SELECT
			(SELECT COUNT(*) FROM ledgers WHERE entity=?) AS ledgers,
			(SELECT COUNT(*) FROM transactions t JOIN ledgers l ON t.ledger_id = l.id WHERE l.entity=?) AS transactions`,
			s.entity, s.entity)
	})
	return
}

// IsNotFound reports whether err means the ledger is not stored locally.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
