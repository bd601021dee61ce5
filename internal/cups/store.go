// Copyright 2024 The cupqr Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cups keeps cup records in a JSON file.
package cups

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("cups: no such cup")
	ErrInvalid  = errors.New("cups: owner and name are required")
)

// A Cup is a tracked cup.  Its QR code holds the ID.
type Cup struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// A Store holds cups in memory and writes them all to its file after
// each change.  A Store with no file keeps cups in memory only.
type Store struct {
	path string
	mu   sync.RWMutex
	cups map[string]Cup
}

// Open loads the store at path.  A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, cups: make(map[string]Cup)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	} else if err != nil {
		return nil, err
	}
	var list []Cup
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("cups: %s: %w", path, err)
	}
	for _, c := range list {
		s.cups[c.ID] = c
	}
	return s, nil
}

// List returns all cups ordered by owner, name and ID.
func (s *Store) List() []Cup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list()
}

func (s *Store) list() []Cup {
	list := make([]Cup, 0, len(s.cups))
	for _, c := range s.cups {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return list
}

// Get returns the cup with the given ID.
func (s *Store) Get(id string) (Cup, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return Cup{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cups[u.String()]
	if !ok {
		return Cup{}, ErrNotFound
	}
	return c, nil
}

// Create adds an active cup with a new random ID.
func (s *Store) Create(owner, name string) (Cup, error) {
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if owner == "" || name == "" {
		return Cup{}, ErrInvalid
	}
	c := Cup{ID: uuid.NewString(), Owner: owner, Name: name, Active: true}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cups[c.ID] = c
	if err := s.save(); err != nil {
		delete(s.cups, c.ID)
		return Cup{}, err
	}
	return c, nil
}

// SetActive marks the cup with the given ID as active or retired.
func (s *Store) SetActive(id string, active bool) (Cup, error) {
	c, err := s.Get(id)
	if err != nil {
		return Cup{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.cups[c.ID]
	if !ok {
		return Cup{}, ErrNotFound
	}
	c = old
	c.Active = active
	s.cups[c.ID] = c
	if err := s.save(); err != nil {
		s.cups[c.ID] = old
		return Cup{}, err
	}
	return c, nil
}

// Delete removes the cup with the given ID.
func (s *Store) Delete(id string) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.cups[c.ID]
	if !ok {
		return ErrNotFound
	}
	delete(s.cups, c.ID)
	if err := s.save(); err != nil {
		s.cups[c.ID] = old
		return err
	}
	return nil
}

// save writes all cups to a temporary file and renames it over the
// store file.  The caller holds s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.list(), "", "  ")
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(s.path), ".cups-*.json")
	if err != nil {
		return err
	}
	if _, err = f.Write(append(data, '\n')); err == nil {
		err = f.Close()
	} else {
		f.Close()
	}
	if err == nil {
		err = os.Rename(f.Name(), s.path)
	}
	if err != nil {
		os.Remove(f.Name())
	}
	return err
}
