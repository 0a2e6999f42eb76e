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

package codecs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-microledger/test/partitiontest"
)

type testValue struct {
	Bool    bool
	String  string
	Int     int
	Peers   []string
	Verkeys map[string]string
}

func TestIsDefaultValue(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := require.New(t)

	v := testValue{
		Bool:   true,
		String: "default",
		Int:    1,
	}
	def := testValue{
		Bool:   true,
		String: "default",
		Int:    2,
	}

	objectValues := createValueMap(reflect.ValueOf(v))
	defaultValues := createValueMap(reflect.ValueOf(def))

	a.True(isDefaultValue("Bool", objectValues, defaultValues))
	a.True(isDefaultValue("String", objectValues, defaultValues))
	a.False(isDefaultValue("Int", objectValues, defaultValues))
	a.True(isDefaultValue("Missing", objectValues, defaultValues))
}

func TestSaveNonDefaultValues(t *testing.T) {
	partitiontest.PartitionTest(t)

	def := testValue{String: "default", Int: 2}
	v := testValue{
		String:  "default",
		Int:     2,
		Peers:   []string{"did:a", "did:b"},
		Verkeys: map[string]string{"did:a": "key"},
	}

	filename := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, SaveNonDefaultValuesToFile(filename, v, def, []string{"Int"}, true))

	raw, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"String"`)
	require.NotContains(t, string(raw), `"Bool"`)
	require.Contains(t, string(raw), `"Int": 2`)

	var back testValue
	require.NoError(t, LoadObjectFromFile(filename, &back))
	require.Equal(t, v.Peers, back.Peers)
	require.Equal(t, v.Verkeys, back.Verkeys)
	require.Equal(t, 2, back.Int)

	require.Error(t, SaveNonDefaultValuesToFile(filename, v, struct{}{}, nil, false))
}
