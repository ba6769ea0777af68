// Copyright 2025 Sonic Labs
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSet_DrainComputesRootOfMergedState(t *testing.T) {
	b := newTestBackend(t, map[string]string{"a": "1", "b": "2"})
	storageKey := append(append([]byte{}, DefaultChildPrefix...), "c"...)

	changes := NewChangeSet()
	changes.Set([]byte("a"), []byte("10"))
	changes.Delete([]byte("b"))
	changes.Set([]byte("z"), nil)
	changes.SetChild(storageKey, []byte("k"), []byte("v"))
	assert.Equal(t, 4, changes.Len())

	diff, err := changes.Drain(b, StateV1)
	require.NoError(t, err)

	want := NewBackend()
	want.Insert([]byte("a"), []byte("10"))
	want.Insert([]byte("z"), []byte{})
	want.InsertChild(storageKey, []byte("k"), []byte("v"))
	wantRoot, err := want.Seal(StateV1)
	require.NoError(t, err)
	assert.Equal(t, wantRoot, diff.TransactionRoot)

	ext := NewExternalities(b, StateV1)
	ext.Apply(diff)
	assert.Equal(t, wantRoot, ext.Root())
	_, ok := ext.Storage([]byte("b"))
	assert.False(t, ok)
}

func TestChangeSet_CanOnlyBeDrainedOnce(t *testing.T) {
	changes := NewChangeSet()
	changes.Set([]byte("a"), []byte("1"))

	_, err := changes.Drain(NewBackend(), StateV0)
	require.NoError(t, err)

	_, err = changes.Drain(NewBackend(), StateV0)
	assert.ErrorIs(t, err, ErrChangesDrained)
}

func TestChangeSet_DrainWithInvalidVersionKeepsChanges(t *testing.T) {
	changes := NewChangeSet()
	changes.Set([]byte("a"), []byte("1"))

	_, err := changes.Drain(NewBackend(), StateVersion(7))
	require.Error(t, err)

	_, err = changes.Drain(NewBackend(), StateV0)
	assert.NoError(t, err)
}

func TestChangeSet_EmptyChangeSetKeepsRoot(t *testing.T) {
	b := newTestBackend(t, map[string]string{"a": "1"})
	diff, err := NewChangeSet().Drain(b, StateV1)
	require.NoError(t, err)
	assert.Equal(t, b.Root(), diff.TransactionRoot)
	assert.Equal(t, 0, diff.Transaction.Len())
}

func TestChangeSet_Get(t *testing.T) {
	changes := NewChangeSet()
	changes.Set([]byte("a"), []byte("1"))
	changes.Delete([]byte("b"))

	v, ok := changes.Get([]byte("a"))
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	v, ok = changes.Get([]byte("b"))
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = changes.Get([]byte("c"))
	assert.False(t, ok)
}

func TestTransaction_Touches(t *testing.T) {
	tx := &Transaction{Top: []KeyMutation{{Key: []byte(":code")}, {Key: []byte("b")}}}
	assert.True(t, tx.Touches(CodeKey))
	assert.True(t, tx.Touches([]byte("b")))
	assert.False(t, tx.Touches([]byte("a")))
}
