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

package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/test/partitiontest"
)

func TestInMemoryDisposal(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	acc, err := MakeAccessor("fn.db", false, true)
	require.NoError(t, err)
	err = acc.Atomic(ctx, "create", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.Exec("create table Service (data blob)")
		return err
	})
	require.NoError(t, err)

	err = acc.Atomic(ctx, "insert", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.Exec("insert or replace into Service (rowid, data) values (1, ?)", []byte{0, 1, 2})
		return err
	})
	require.NoError(t, err)

	anotherAcc, err := MakeAccessor("fn.db", false, true)
	require.NoError(t, err)
	err = anotherAcc.Atomic(ctx, "count", func(ctx context.Context, tx *sqlx.Tx) error {
		var nrows int
		return tx.QueryRow("select count(*) from Service").Scan(&nrows)
	})
	require.NoError(t, err)
	anotherAcc.Close()
	acc.Close()

	acc, err = MakeAccessor("fn.db", false, true)
	require.NoError(t, err)
	defer acc.Close()
	err = acc.Atomic(ctx, "count", func(ctx context.Context, tx *sqlx.Tx) error {
		var nrows int
		err := tx.QueryRow("select count(*) from Service").Scan(&nrows)
		if err == nil {
			return errors.New("table `Service` presents while it should not")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAtomicRollsBack(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	acc, err := MakeAccessor(filepath.Join(t.TempDir(), "rollback.sqlite"), false, false)
	require.NoError(t, err)
	acc = acc.WithLogger(logging.TestingLog(t))
	defer acc.Close()

	err = acc.Atomic(ctx, "create", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.Exec("CREATE TABLE foo (a INTEGER PRIMARY KEY, b TEXT UNIQUE)")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = acc.Atomic(ctx, "insert", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO foo (b) VALUES (?)", "x")
		if err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = acc.Atomic(ctx, "panic", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.Exec("INSERT INTO foo (b) VALUES (?)", "y")
		require.NoError(t, err)
		panic("oops")
	})
	require.EqualError(t, err, "oops")

	var n int
	err = acc.Atomic(ctx, "count", func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.Get(&n, "SELECT COUNT(*) FROM foo")
	})
	require.NoError(t, err)
	require.Zero(t, n)

	err = acc.Atomic(ctx, "dup", func(ctx context.Context, tx *sqlx.Tx) error {
		for i := 0; i < 2; i++ {
			_, err := tx.Exec("INSERT INTO foo (b) VALUES (?)", "same")
			if err != nil {
				return fmt.Errorf("insert %d: %w", i, err)
			}
		}
		return nil
	})
	require.True(t, IsConstraint(err))
	require.False(t, IsConstraint(boom))
}

func TestPairReadsWrites(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	p, err := OpenPair(filepath.Join(t.TempDir(), "pair.sqlite"), false)
	require.NoError(t, err)
	defer p.Close()

	err = p.Wdb.Atomic(ctx, "create", func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.Exec("CREATE TABLE foo (a INTEGER)")
		if err != nil {
			return err
		}
		_, err = tx.Exec("INSERT INTO foo (a) VALUES (1), (2)")
		return err
	})
	require.NoError(t, err)

	var sum int
	err = p.Rdb.Atomic(ctx, "sum", func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.Get(&sum, "SELECT SUM(a) FROM foo")
	})
	require.NoError(t, err)
	require.Equal(t, 3, sum)
}

func TestAtomicCanceled(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeAccessor("canceled.db", false, true)
	require.NoError(t, err)
	defer acc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = acc.Atomic(ctx, "noop", func(ctx context.Context, tx *sqlx.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}
