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

// Package db wraps a sqlite database handle with transactional helpers.
//
// These functions work on a sqlite database; other databases may not work with them.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/algorand/go-microledger/logging"
)

// busy is the time, in ms, sqlite waits for a lock held by another
// connection before returning SQLITE_BUSY. Contention on the shared cache of
// an in-memory database surfaces as SQLITE_LOCKED instead and is retried by Atomic.
const busy = 1000

// maxRetries bounds how many times Atomic retries a contended transaction.
const maxRetries = 1000

// warnTxRetries is how often, in retries, a contended transaction is logged.
const warnTxRetries = 10

// An Accessor manages a sqlite database handle.
type Accessor struct {
	Handle   *sqlx.DB
	readOnly bool
	log      logging.Logger
}

// MakeAccessor opens dbfilename. An inMemory database is shared between the
// accessors of one process that use the same name, and disappears with the last of them.
func MakeAccessor(dbfilename string, readOnly bool, inMemory bool) (Accessor, error) {
	db := Accessor{readOnly: readOnly, log: logging.Base()}

	var err error
	db.Handle, err = sqlx.Open("sqlite3", URI(dbfilename, readOnly, inMemory)+"&_journal_mode=wal&_foreign_keys=on")
	if err != nil {
		return db, err
	}
	// an in-memory database lives only as long as one connection stays open
	if inMemory {
		db.Handle.SetMaxIdleConns(1)
		db.Handle.SetConnMaxLifetime(0)
	}
	return db, db.Handle.Ping()
}

// WithLogger returns a copy of the accessor reporting slow and contended transactions to log.
func (db Accessor) WithLogger(log logging.Logger) Accessor {
	db.log = log
	return db
}

// Close closes the connection.
func (db Accessor) Close() {
	db.Handle.Close()
}

// Atomic runs fn in a serializable transaction. fn may run more than once when
// sqlite reports contention, so it must not have side effects outside tx.
func (db Accessor) Atomic(ctx context.Context, fnDescription string, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	descr := "w"
	if db.readOnly {
		descr = "r"
	}
	log := db.log.With("description", fnDescription)

	start := time.Now()
	defer func() {
		delta := time.Since(start)
		if delta > time.Second {
			log.Warnf("dbatomic(%v): tx took %v", descr, delta)
		} else if delta > time.Millisecond {
			log.Debugf("dbatomic(%v): tx took %v", descr, delta)
		}
	}()

	// the sql package drops panics raised inside an open transaction
	guardedFn := func(tx *sqlx.Tx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				var ok bool
				err, ok = r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
			}
		}()
		return fn(ctx, tx)
	}

	for i := 0; ; i++ {
		if i > 0 && i%warnTxRetries == 0 {
			if i >= maxRetries {
				log.Errorf("dbatomic(%v): %d retries (last err: %v)", descr, i, err)
				return
			}
			log.Warnf("dbatomic(%v): %d retries (last err: %v)", descr, i, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var tx *sqlx.Tx
		tx, err = db.Handle.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: db.readOnly})
		if dbretry(err) {
			continue
		} else if err != nil {
			return
		}

		err = guardedFn(tx)
		if err != nil {
			tx.Rollback()
			if dbretry(err) {
				continue
			}
			return
		}

		err = tx.Commit()
		if err == nil || !dbretry(err) {
			return
		}
	}
}

// URI returns the sqlite URI for a database file.
func URI(filename string, readOnly bool, memory bool) string {
	uri := fmt.Sprintf("file:%s?_busy_timeout=%d&_synchronous=full", filename, busy)
	if !readOnly {
		uri += "&_txlock=immediate"
	}
	if memory {
		uri += "&mode=memory&cache=shared"
	}
	return uri
}

// IsConstraint reports whether err is a violated UNIQUE, NOT NULL or FOREIGN KEY constraint.
func IsConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// dbretry returns true if the error might be temporary
func dbretry(obj error) bool {
	var err sqlite3.Error
	return errors.As(obj, &err) && (err.Code == sqlite3.ErrLocked || err.Code == sqlite3.ErrBusy)
}
