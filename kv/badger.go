/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package kv provides the concrete verify.Store backing a Verifier run: a
// single badger database holding the per-record metadata collected during
// pass 1, grounded on the teacher's index database wiring (minus its
// background batching/GC goroutines, which serve bulk indexing throughput
// rather than the Verifier's narrow get/put/prefix-scan needs).
package kv

import (
	"os"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/nlnwa/warccore/verify"
)

// BadgerStore implements verify.Store on top of a badger.DB.
type BadgerStore struct {
	db  *badger.DB
	dir string
}

// badgerLogger adapts logrus to badger's Logger interface.
type badgerLogger struct {
	*log.Logger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Logger.Warnf(format, args...)
}

// OpenBadgerStore opens (creating if necessary) a badger database rooted at
// dir, logging through logrus at the standard logger's configured level.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log.StandardLogger()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, dir: dir}, nil
}

// Get implements verify.Store.
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return verify.ErrNotFound
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == verify.ErrNotFound {
		return nil, verify.ErrNotFound
	}
	return val, err
}

// Put implements verify.Store.
func (s *BadgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// IterPrefix implements verify.Store, scanning keys in byte order.
func (s *BadgerStore) IterPrefix(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close flushes and closes the underlying badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// DeleteAll removes the entire database directory; used after pass 2 when
// the caller asked for a scratch verification run rather than a persistent
// side-index (spec.md §4.7: "the map is created at pass-1 start and
// deleted ... after pass-2" unless the caller says otherwise).
func (s *BadgerStore) DeleteAll() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(s.dir)
}

