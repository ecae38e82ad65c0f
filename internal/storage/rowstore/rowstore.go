// Package rowstore keeps rows in an ordered key-value database. Each row is
// msgpack encoded and compressed, under the key table NUL rowkey.
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/ugorji/go/codec"

	"github.com/LeJamon/xrpl-ingest/internal/storage/compression"
	"github.com/LeJamon/xrpl-ingest/internal/storage/database"
	"github.com/LeJamon/xrpl-ingest/internal/storage/database/leveldb"
	"github.com/LeJamon/xrpl-ingest/internal/storage/database/pebble"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
)

const tableSep = 0x00

var msgpack = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	h.MapType = reflect.TypeOf(map[string]any(nil))
	return h
}()

// Store implements rows.Store on a database.DB.
type Store struct {
	db         database.DB
	compressor compression.Compressor
}

// New wraps db. compressor may be nil for uncompressed values.
func New(db database.DB, compressor compression.Compressor) *Store {
	if compressor == nil {
		compressor = compression.NoCompressor{}
	}
	return &Store{db: db, compressor: compressor}
}

// Open opens a pebble or leveldb database under dir.
func Open(backend, dir, compressor string) (*Store, error) {
	c, err := compression.Get(compressor)
	if err != nil {
		return nil, err
	}

	var db database.DB
	switch backend {
	case "pebble":
		db, err = pebble.Open(filepath.Join(dir, "rows.pebble"))
	case "leveldb":
		db, err = leveldb.Open(filepath.Join(dir, "rows.leveldb"))
	default:
		return nil, fmt.Errorf("%w: %s", database.ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}
	return New(db, c), nil
}

func key(table, rowkey string) []byte {
	k := make([]byte, 0, len(table)+1+len(rowkey))
	k = append(k, table...)
	k = append(k, tableSep)
	return append(k, rowkey...)
}

func (s *Store) encode(row rows.Row) ([]byte, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, msgpack).Encode(map[string]any(row)); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return s.compressor.Compress(buf)
}

func (s *Store) decode(data []byte) (rows.Row, error) {
	raw, err := s.compressor.Decompress(data)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := codec.NewDecoderBytes(raw, msgpack).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return rows.Row(m), nil
}

func (s *Store) PutRows(ctx context.Context, table string, batch map[string]rows.Row) error {
	ops := make([]database.BatchOperation, 0, len(batch))
	for rowkey, row := range batch {
		value, err := s.encode(row)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", table, rowkey, err)
		}
		ops = append(ops, database.Put(key(table, rowkey), value))
	}
	return s.db.Batch(ctx, ops)
}

func (s *Store) PutRow(ctx context.Context, table, rowkey string, row rows.Row) error {
	value, err := s.encode(row)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", table, rowkey, err)
	}
	return s.db.Write(ctx, key(table, rowkey), value)
}

func (s *Store) GetRow(ctx context.Context, table, rowkey string) (rows.Row, error) {
	value, err := s.db.Read(ctx, key(table, rowkey))
	if errors.Is(err, database.ErrKeyNotFound) {
		return nil, rows.ErrRowNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.decode(value)
}

func (s *Store) Scan(ctx context.Context, table, from, to string, fn func(string, rows.Row) error) error {
	it, err := s.db.Iterator(ctx, key(table, from), key(table, to))
	if err != nil {
		return err
	}
	defer it.Close()

	prefix := len(table) + 1
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := s.decode(it.Value())
		if err != nil {
			return err
		}
		if err := fn(string(it.Key()[prefix:]), row); err != nil {
			return err
		}
	}
	return it.Error()
}

func (s *Store) Last(ctx context.Context, table, from, to string) (string, rows.Row, error) {
	k, value, err := s.db.Last(ctx, key(table, from), key(table, to))
	if errors.Is(err, database.ErrKeyNotFound) {
		return "", nil, rows.ErrRowNotFound
	}
	if err != nil {
		return "", nil, err
	}
	row, err := s.decode(value)
	if err != nil {
		return "", nil, err
	}
	return string(k[len(table)+1:]), row, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
