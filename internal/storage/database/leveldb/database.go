// Package leveldb implements database.DB on top of syndtr/goleveldb.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/LeJamon/xrpl-ingest/internal/storage/database"
)

type DB struct {
	mu sync.RWMutex
	db *leveldb.DB
}

// Open opens or creates a leveldb database at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb database %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

var syncWrites = &opt.WriteOptions{Sync: true}

func (l *DB) handle() (*leveldb.DB, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return nil, database.ErrDBClosed
	}
	return l.db, nil
}

func (l *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	db, err := l.handle()
	if err != nil {
		return nil, err
	}
	val, err := db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, database.ErrKeyNotFound
	}
	return val, err
}

func (l *DB) Write(ctx context.Context, key, value []byte) error {
	db, err := l.handle()
	if err != nil {
		return err
	}
	return db.Put(key, value, syncWrites)
}

func (l *DB) Delete(ctx context.Context, key []byte) error {
	db, err := l.handle()
	if err != nil {
		return err
	}
	return db.Delete(key, syncWrites)
}

func (l *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	db, err := l.handle()
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			batch.Put(op.Key, op.Value)
		case database.BatchDelete:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}
	if err := db.Write(batch, syncWrites); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func (l *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	db, err := l.handle()
	if err != nil {
		return nil, err
	}
	return &Iterator{iter: db.NewIterator(&util.Range{Start: start, Limit: end}, nil)}, nil
}

func (l *DB) Last(ctx context.Context, start, end []byte) ([]byte, []byte, error) {
	db, err := l.handle()
	if err != nil {
		return nil, nil, err
	}

	iter := db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	defer iter.Release()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, nil, err
		}
		return nil, nil, database.ErrKeyNotFound
	}
	return clone(iter.Key()), clone(iter.Value()), nil
}

func (l *DB) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

type Iterator struct {
	iter       iterator.Iterator
	key, value []byte
}

func (it *Iterator) Next() bool {
	if !it.iter.Next() {
		return false
	}
	it.key = clone(it.iter.Key())
	it.value = clone(it.iter.Value())
	return true
}

func (it *Iterator) Key() []byte {
	return it.key
}

func (it *Iterator) Value() []byte {
	return it.value
}

func (it *Iterator) Error() error {
	return it.iter.Error()
}

func (it *Iterator) Close() error {
	it.iter.Release()
	return nil
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
