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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/test/partitiontest"
)

func openTestStore(t *testing.T, entity string) *Store {
	s, err := OpenStore(context.Background(), t.Name(), true, entity, logging.TestingLog(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func txns(first uint64, nos ...string) []microledger.Transaction {
	var out []microledger.Transaction
	for i, no := range nos {
		out = append(out, microledger.Transaction{
			Body:     microledger.Document{"no": no, "cargo": "grain"},
			Metadata: microledger.Metadata{SeqNo: first + uint64(i), Time: "2021-04-01T00:00:00Z"},
		})
	}
	return out
}

func seqNos(recs []TransactionRecord) []uint64 {
	var out []uint64
	for _, r := range recs {
		out = append(out, r.SeqNo)
	}
	return out
}

func TestCreateAndAppend(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	s := openTestStore(t, "did:A")

	meta := map[string]interface{}{"participants": []interface{}{"did:A", "did:B"}}
	id, err := s.CreateLedger(ctx, "Container-7", meta, txns(1, "1", "2"))
	require.NoError(t, err)
	require.NotZero(t, id)

	count, err := s.TransactionCount(ctx, "Container-7")
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	require.NoError(t, s.StoreTransactions(ctx, "Container-7", txns(3, "3"), "did:B"))

	recs, err := s.Transactions(ctx, "Container-7", 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, seqNos(recs))
	require.Equal(t, "did:B", recs[2].ActorEntity)
	require.Empty(t, recs[0].ActorEntity)

	want := microledger.Document{"no": "3", "cargo": "grain"}
	if diff := cmp.Diff(want, recs[2].Txn); diff != "" {
		t.Fatalf("stored body mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, microledger.Metadata{SeqNo: 3, Time: "2021-04-01T00:00:00Z"}, recs[2].Metadata)

	last, err := s.Transactions(ctx, "Container-7", 2)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, seqNos(last))

	rec, err := s.Ledger(ctx, "Container-7")
	require.NoError(t, err)
	require.Equal(t, "did:A", rec.Entity)
	require.Equal(t, uint64(3), rec.TransactionCount)
	require.Equal(t, []interface{}{"did:A", "did:B"}, rec.Metadata["participants"])
}

func TestCreateExistingLeavesRows(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	s := openTestStore(t, "did:A")

	_, err := s.CreateLedger(ctx, "L1", map[string]interface{}{"v": "first"}, txns(1, "1", "2"))
	require.NoError(t, err)
	before, err := s.Transactions(ctx, "L1", 0)
	require.NoError(t, err)

	_, err = s.CreateLedger(ctx, "L1", map[string]interface{}{"v": "second"}, txns(1, "x"))
	require.ErrorIs(t, err, ErrAlreadyExists)
	var lerr *LedgerError
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, "L1", lerr.Name)

	after, err := s.Transactions(ctx, "L1", 0)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("rows changed (-before +after):\n%s", diff)
	}
	rec, err := s.Ledger(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, "first", rec.Metadata["v"])
}

func TestNotFound(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	s := openTestStore(t, "did:A")

	err := s.StoreTransactions(ctx, "nope", txns(1, "1"), "")
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, IsNotFound(err))

	_, err = s.TransactionCount(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Ledger(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Transactions(ctx, "nope", 0)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.ResetLedger(ctx, "nope"))
}

func TestSeqNoConflictIsAtomic(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	s := openTestStore(t, "did:A")
	_, err := s.CreateLedger(ctx, "L1", nil, txns(1, "1"))
	require.NoError(t, err)

	batch := append(txns(2, "2"), txns(1, "dup")...)
	err = s.StoreTransactions(ctx, "L1", batch, "")
	require.ErrorIs(t, err, ErrSeqNoConflict)

	count, err := s.TransactionCount(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestStoredTransactionsSkipped(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	s := openTestStore(t, "did:A")
	_, err := s.CreateLedger(ctx, "L1", nil, txns(1, "1"))
	require.NoError(t, err)
	require.NoError(t, s.StoreTransactions(ctx, "L1", txns(2, "2"), ""))

	// A later batch overlapping what is already stored only adds the rest.
	require.NoError(t, s.StoreTransactions(ctx, "L1", txns(2, "2", "3"), ""))
	recs, err := s.Transactions(ctx, "L1", 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, seqNos(recs))
	require.Equal(t, "3", recs[2].Txn.String("no"))

	// A gap left by a commit not stored yet is filled when it arrives.
	require.NoError(t, s.StoreTransactions(ctx, "L1", txns(5, "5"), ""))
	require.NoError(t, s.StoreTransactions(ctx, "L1", txns(4, "4"), ""))
	recs, err = s.Transactions(ctx, "L1", 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, seqNos(recs))

	err = s.StoreTransactions(ctx, "L1", txns(3, "other"), "")
	require.ErrorIs(t, err, ErrSeqNoConflict)
}

func TestUnnumberedContinue(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	s := openTestStore(t, "did:A")
	_, err := s.CreateLedger(ctx, "L1", nil, txns(1, "1", "2"))
	require.NoError(t, err)

	unnumbered := []microledger.Transaction{microledger.MakeTransaction(microledger.Document{"no": "3"})}
	require.NoError(t, s.StoreTransactions(ctx, "L1", unnumbered, ""))
	recs, err := s.Transactions(ctx, "L1", 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, seqNos(recs))
}

func TestEntityScopeAndReset(t *testing.T) {
	partitiontest.PartitionTest(t)

	ctx := context.Background()
	a := openTestStore(t, "did:A")
	// a second store on the same database, scoped to another entity
	b, err := OpenStore(ctx, t.Name(), true, "did:B", logging.TestingLog(t))
	require.NoError(t, err)
	defer b.Close()

	_, err = a.CreateLedger(ctx, "L1", nil, txns(1, "1"))
	require.NoError(t, err)
	_, err = a.CreateLedger(ctx, "L2", nil, txns(1, "1", "2"))
	require.NoError(t, err)
	_, err = b.CreateLedger(ctx, "L1", nil, txns(1, "1"))
	require.NoError(t, err)

	st, err := a.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Ledgers: 2, Transactions: 3}, st)

	list, err := a.Ledgers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "L1", list[0].Name)
	require.Equal(t, uint64(2), list[1].TransactionCount)

	require.NoError(t, a.ResetLedger(ctx, "L1"))
	_, err = a.Ledger(ctx, "L1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = b.Ledger(ctx, "L1")
	require.NoError(t, err)

	n, err := a.ResetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	st, err = a.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{}, st)

	st, err = b.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Ledgers: 1, Transactions: 1}, st)
}
