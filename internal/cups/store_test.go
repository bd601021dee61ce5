// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cups

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cups.json")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.List())

	a, err := s.Create("  ada ", "espresso")
	require.NoError(t, err)
	assert.Equal(t, "ada", a.Owner)
	assert.True(t, a.Active)
	_, err = uuid.Parse(a.ID)
	require.NoError(t, err)
	b, err := s.Create("ada", "big mug")
	require.NoError(t, err)

	_, err = s.SetActive(a.ID, false)
	require.NoError(t, err)

	s, err = Open(path)
	require.NoError(t, err)
	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, b, list[0])
	assert.Equal(t, a.ID, list[1].ID)
	assert.False(t, list[1].Active)

	require.NoError(t, s.Delete(b.ID))
	s, err = Open(path)
	require.NoError(t, err)
	assert.Len(t, s.List(), 1)
}

func TestStoreGet(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	c, err := s.Create("bob", "tea")
	require.NoError(t, err)

	got, err := s.Get(strings.ToUpper(c.ID))
	require.NoError(t, err)
	assert.Equal(t, c, got)

	for _, id := range []string{"", "cup", uuid.NewString()} {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
	_, err = s.SetActive("nope", true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestStoreInvalid(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	_, err = s.Create("", "tea")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.Create("bob", " ")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, s.List())
}

func TestStoreBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cups.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestStoreConcurrent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cups.json"))
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				c, err := s.Create("eve", "cup")
				assert.NoError(t, err)
				_, err = s.Get(c.ID)
				assert.NoError(t, err)
				s.List()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.List(), 40)
}
