package txn

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Commit strategies.
const (
	StrategyDocument = "document"
	StrategyPerKey   = "per-key"
)

// DocumentKey is the key holding the whole database under the document
// strategy.
const DocumentKey = "db"

// KV is the key-value service transactions commit to. kv.Client and kv.Store
// are KVs.
type KV interface {
	Read(key string) (json.RawMessage, error)
	CAS(key string, from, to json.RawMessage, create bool) error
}

// Strategy commits the micro-ops of one transaction and returns their results.
type Strategy interface {
	Name() string
	Commit(ops []MicroOp) ([]MicroOp, error)
}

// NewStrategy ...
func NewStrategy(name string, kv KV, cache bool, logger *logrus.Entry) (Strategy, error) {
	switch name {
	case StrategyDocument:
		return NewDocument(kv, cache, logger), nil
	case StrategyPerKey:
		return NewPerKey(kv, logger), nil
	default:
		return nil, fmt.Errorf("unknown commit strategy %q", name)
	}
}

// casConflict turns the refusals of a compare-and-swap into a transaction
// conflict. Anything else, a timeout in particular, keeps its own code: the
// write may or may not have happened.
func casConflict(err error, key string) error {
	if common.IsRPC(err, common.PreconditionFailed) || common.IsRPC(err, common.KeyDoesNotExist) {
		return common.NewRPCErrf(common.TxnConflict, "cas on %q failed: %v", key, common.AsRPC(err).Text)
	}
	return err
}

// Document keeps the whole database in a single value. A transaction reads
// it, applies every op to a local copy, and swaps the copy in with one
// compare-and-swap from the value it read. Concurrent transactions that read
// the same value race on the swap and all but one abort, so transactions are
// atomic and serializable. Aborted transactions are not retried.
//
// The database is stored as a JSON string holding its canonical encoding.
//
// With cache enabled, the value written by the last successful commit stands
// in for the read. A stale cache only costs an aborted transaction, after
// which the cache is dropped.
type Document struct {
	kv     KV
	logger *logrus.Entry

	cache     bool
	cached    json.RawMessage
	cachedDB  *Database
	cacheLock sync.Mutex
}

// NewDocument ...
func NewDocument(kv KV, cache bool, logger *logrus.Entry) *Document {
	return &Document{
		kv:     kv,
		logger: logger,
		cache:  cache,
	}
}

// Name implements the Strategy interface.
func (d *Document) Name() string {
	return StrategyDocument
}

// Commit implements the Strategy interface.
func (d *Document) Commit(ops []MicroOp) ([]MicroOp, error) {
	from, db, err := d.load()
	if err != nil {
		return nil, err
	}

	next := db.Clone()
	res, err := next.Apply(ops)
	if err != nil {
		return nil, err
	}

	to, err := encodeDocument(next)
	if err != nil {
		return nil, err
	}

	if err := d.kv.CAS(DocumentKey, from, to, true); err != nil {
		d.forget()
		return nil, casConflict(err, DocumentKey)
	}

	d.remember(to, next)

	return res, nil
}

// load returns the current document, as a raw value and decoded. A missing
// document is an empty database.
func (d *Document) load() (json.RawMessage, *Database, error) {
	if raw, db, ok := d.fromCache(); ok {
		return raw, db, nil
	}

	raw, err := d.kv.Read(DocumentKey)
	if common.IsRPC(err, common.KeyDoesNotExist) {
		db := NewDatabase()
		empty, err := encodeDocument(db)
		return empty, db, err
	}
	if err != nil {
		return nil, nil, err
	}

	db, err := decodeDocument(raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decoding database document")
	}

	return raw, db, nil
}

func (d *Document) fromCache() (json.RawMessage, *Database, bool) {
	if !d.cache {
		return nil, nil, false
	}
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()
	return d.cached, d.cachedDB, d.cachedDB != nil
}

func (d *Document) remember(raw json.RawMessage, db *Database) {
	if !d.cache {
		return
	}
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()
	d.cached, d.cachedDB = raw, db
}

func (d *Document) forget() {
	if !d.cache {
		return
	}
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()
	d.cached, d.cachedDB = nil, nil
	d.logger.Debug("Dropped cached document")
}

func encodeDocument(db *Database) (json.RawMessage, error) {
	b, err := db.Marshal()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(b))
}

func decodeDocument(raw json.RawMessage) (*Database, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	db := NewDatabase()
	if err := db.Unmarshal([]byte(s)); err != nil {
		return nil, err
	}
	return db, nil
}

// PerKey keeps every list under its own key and commits each append with its
// own read and compare-and-swap. The first failure aborts the remaining ops,
// but appends already committed stay: transactions touching several keys are
// not atomic.
type PerKey struct {
	kv     KV
	logger *logrus.Entry
}

// NewPerKey ...
func NewPerKey(kv KV, logger *logrus.Entry) *PerKey {
	return &PerKey{
		kv:     kv,
		logger: logger,
	}
}

// Name implements the Strategy interface.
func (p *PerKey) Name() string {
	return StrategyPerKey
}

// Commit implements the Strategy interface.
func (p *PerKey) Commit(ops []MicroOp) ([]MicroOp, error) {
	res := make([]MicroOp, 0, len(ops))

	for i, op := range ops {
		r, err := p.commit(op)
		if err != nil {
			if i > 0 {
				p.logger.WithFields(logrus.Fields{
					"failed_op": op.String(),
					"committed": i,
				}).Debug("Aborting after partial commit")
			}
			return nil, err
		}
		res = append(res, r)
	}

	return res, nil
}

func (p *PerKey) commit(op MicroOp) (MicroOp, error) {
	key := strconv.FormatUint(op.Key, 10)

	from, list, err := p.load(key)
	if err != nil {
		return MicroOp{}, err
	}

	db := NewDatabase()
	if list != nil {
		db.lists[op.Key] = list
	}

	res, err := db.apply(op)
	if err != nil || !op.IsWrite() {
		return res, err
	}

	next, _ := db.Get(op.Key)
	to, err := json.Marshal(next)
	if err != nil {
		return MicroOp{}, err
	}

	if err := p.kv.CAS(key, from, to, true); err != nil {
		return MicroOp{}, casConflict(err, key)
	}

	return res, nil
}

// load returns the list under key, nil if there is none.
func (p *PerKey) load(key string) (json.RawMessage, []uint64, error) {
	raw, err := p.kv.Read(key)
	if common.IsRPC(err, common.KeyDoesNotExist) {
		return json.RawMessage("null"), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var list []uint64
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, nil, errors.Wrapf(err, "decoding list under %q", key)
	}

	return raw, list, nil
}
