package kv

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store is a linearizable key-value store on top of badger. Every operation
// runs in its own badger transaction, so a compare-and-swap is atomic.
type Store struct {
	db     *badger.DB
	path   string
	logger *logrus.Entry
}

// NewStore opens, or creates, the database in path.
func NewStore(path string, logger *logrus.Entry) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithLogger(logger)

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger in %s", path)
	}

	return &Store{
		db:     handle,
		path:   path,
		logger: logger,
	}, nil
}

// Read returns the value under key.
func (s *Store) Read(key string) (json.RawMessage, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if isDBKeyNotFound(err) {
		return nil, common.NewRPCErrf(common.KeyDoesNotExist, "key %q does not exist", key)
	}
	if err != nil {
		return nil, err
	}

	return json.RawMessage(value), nil
}

// Write stores value under key.
func (s *Store) Write(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return common.NewRPCErrf(common.MalformedRequest, "value for %q is not JSON", key)
	}

	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), compact(value))
	})
}

// CAS replaces from with to under key, atomically.
func (s *Store) CAS(key string, from, to json.RawMessage, create bool) error {
	if !json.Valid(to) {
		return common.NewRPCErrf(common.MalformedRequest, "value for %q is not JSON", key)
	}

	return s.update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))

		switch {
		case isDBKeyNotFound(err):
			if !create {
				return common.NewRPCErrf(common.KeyDoesNotExist, "key %q does not exist", key)
			}
		case err != nil:
			return err
		default:
			current, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !SameValue(current, from) {
				return common.NewRPCErrf(common.PreconditionFailed,
					"expected %s under %q, found %s", abbreviate(from), key, abbreviate(current))
			}
		}

		return txn.Set([]byte(key), compact(to))
	})
}

// update retries transactions that lost a race inside badger; the outcome of
// a compare-and-swap is only decided by a transaction that commits.
func (s *Store) update(f func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(f)
		if err != badger.ErrConflict {
			return err
		}
		s.logger.Debug("Retrying conflicting badger transaction")
	}
}

// Close ...
func (s *Store) Close() error {
	return s.db.Close()
}

// SameValue reports whether two JSON documents hold the same value.
func SameValue(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}

	va, errA := decodeValue(a)
	vb, errB := decodeValue(b)
	if errA != nil || errB != nil {
		return false
	}

	return reflect.DeepEqual(va, vb)
}

func decodeValue(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func compact(value []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return value
	}
	return buf.Bytes()
}

func abbreviate(value []byte) string {
	const max = 64
	if len(value) <= max {
		return string(value)
	}
	return string(value[:max]) + "..."
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}
