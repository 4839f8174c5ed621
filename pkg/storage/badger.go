// Package storage provides the node's two persistence idioms: an embedded
// Badger KV store (msgpack-encoded values, prefix-scoped per entity type,
// generalized from the teacher's entity-prefixed event store) for the
// peer table, and a plain JSON file reader/writer for the
// spec-mandated config.json/peers.json shapes.
package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// KV is a prefix-scoped view over a shared Badger database, generalized
// from the teacher's entity-prefixed event store to hold any msgpack-able
// value rather than just one fixed event type.
type KV struct {
	entityPrefix []byte
	db           *badger.DB
}

// Open opens (or creates) a Badger database at dir.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger at %s: %w", dir, err)
	}
	return db, nil
}

// New scopes a KV to entityType within db, e.g. "peer" or "run".
func New(entityType string, db *badger.DB) *KV {
	return &KV{entityPrefix: []byte(entityType), db: db}
}

func (k *KV) buildKey(key string) []byte {
	return []byte(fmt.Sprintf("%s/%s", k.entityPrefix, key))
}

func (k *KV) buildValue(value interface{}) ([]byte, error) {
	buf, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal %s/%s: %w", k.entityPrefix, "value", err)
	}
	return buf, nil
}

// Put marshals value with msgpack and stores it under key.
func (k *KV) Put(key string, value interface{}) error {
	buf, err := k.buildValue(value)
	if err != nil {
		return err
	}
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k.buildKey(key), buf)
	})
}

// Get unmarshals the value stored under key into dst. It returns
// badger.ErrKeyNotFound (checkable with errors.Is) when absent.
func (k *KV) Get(key string, dst interface{}) error {
	return k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k.buildKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, dst)
		})
	})
}

// Delete removes key, if present.
func (k *KV) Delete(key string) error {
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k.buildKey(key))
	})
}

// List decodes every value stored under this KV's prefix. newItem must
// return a fresh pointer to decode the next value into; filterFunc (nil
// accepts all) decides whether a decoded item is kept.
func (k *KV) List(newItem func() interface{}, filterFunc func(item interface{}) bool) ([]interface{}, error) {
	var out []interface{}
	err := k.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(k.entityPrefix); it.ValidForPrefix(k.entityPrefix); it.Next() {
			item := newItem()
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, item)
			}); err != nil {
				return err
			}
			if filterFunc != nil && !filterFunc(item) {
				continue
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", k.entityPrefix, err)
	}
	return out, nil
}
