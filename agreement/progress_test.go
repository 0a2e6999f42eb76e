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

package agreement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/test/partitiontest"
)

func TestRoundLoggerFilters(t *testing.T) {
	partitiontest.PartitionTest(t)

	var got []Event
	log := RoundLogger(ObserverFunc(func(ev Event) { got = append(got, ev) }))

	log(map[string]interface{}{"state": "propose", "thread": "x"})
	log(map[string]interface{}{"progress": 20, "message": "Proposing"})
	log(map[string]interface{}{"message": "Participant accepted"})
	log(map[string]interface{}{"progress": uint64(90)})

	require.Equal(t, []Event{
		{Progress: 20, Message: "Proposing"},
		{Progress: 20, Message: "Participant accepted"},
		{Progress: 90},
	}, got)

	require.Nil(t, RoundLogger(nil))
}

func TestChanObserverDrops(t *testing.T) {
	partitiontest.PartitionTest(t)

	c := MakeChanObserver(2)
	for i := 0; i < 5; i++ {
		c.Notify(Event{Progress: float64(i)})
	}
	require.Len(t, c.C, 2)
	require.Equal(t, uint64(3), c.Dropped())
	require.Equal(t, Event{Progress: 0}, <-c.C)
}

func TestMultiObserver(t *testing.T) {
	partitiontest.PartitionTest(t)

	var a, b int
	m := MultiObserver{
		ObserverFunc(func(Event) { a++ }),
		nil,
		ObserverFunc(func(Event) { b++ }),
	}
	m.Notify(Event{Done: true})
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}
