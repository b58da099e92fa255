// Package leveldbstore persists ledger state in LevelDB. Each transaction is
// written as one synced batch.
package leveldbstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const (
	prefixRecord   byte = 'r'
	prefixLamports byte = 'l'

	DefaultCacheSize = 4096
)

var metaKey = []byte("m:meta")

var ErrCorruptBalance = errors.New("leveldbstore: corrupt balance entry")

type Backend struct {
	db    *leveldb.DB
	cache *lru.Cache[models.Key, []byte]
}

// Open opens or creates a database directory at path.
func Open(path string, cacheSize int) (*Backend, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return wrap(db, cacheSize)
}

// OpenStorage opens a database over an explicit leveldb storage, such as
// storage.NewMemStorage in tests.
func OpenStorage(stor storage.Storage, cacheSize int) (*Backend, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, err
	}
	return wrap(db, cacheSize)
}

func wrap(db *leveldb.DB, cacheSize int) (*Backend, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[models.Key, []byte](cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{db: db, cache: cache}, nil
}

func recordKey(key models.Key) []byte {
	return append([]byte{prefixRecord}, key[:]...)
}

func lamportsKey(key models.Key) []byte {
	return append([]byte{prefixLamports}, key[:]...)
}

func (b *Backend) Record(key models.Key) ([]byte, bool, error) {
	if data, ok := b.cache.Get(key); ok {
		return data, true, nil
	}
	data, err := b.db.Get(recordKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b.cache.Add(key, data)
	return data, true, nil
}

func (b *Backend) Lamports(key models.Key) (uint64, error) {
	raw, err := b.db.Get(lamportsKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeLamports(raw)
}

func decodeLamports(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, ErrCorruptBalance
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (b *Backend) Meta() (store.Meta, error) {
	var meta store.Meta
	raw, err := b.db.Get(metaKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if err := store.Decode(raw, &meta); err != nil {
		return meta, fmt.Errorf("decode meta: %w", err)
	}
	return meta, nil
}

func (b *Backend) ForEachBalance(fn func(models.Key, uint64) error) error {
	iter := b.db.NewIterator(util.BytesPrefix([]byte{prefixLamports}), nil)
	defer iter.Release()
	for iter.Next() {
		var key models.Key
		copy(key[:], iter.Key()[1:])
		lamports, err := decodeLamports(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(key, lamports); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (b *Backend) Commit(cs store.ChangeSet) error {
	batch := new(leveldb.Batch)
	for key, data := range cs.Records {
		batch.Put(recordKey(key), data)
	}
	for key, lamports := range cs.Lamports {
		if lamports == 0 {
			batch.Delete(lamportsKey(key))
			continue
		}
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], lamports)
		batch.Put(lamportsKey(key), raw[:])
	}
	meta, err := store.Encode(cs.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	batch.Put(metaKey, meta)
	if err := b.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return err
	}
	for key, data := range cs.Records {
		b.cache.Add(key, data)
	}
	return nil
}

func (b *Backend) Close() error {
	b.cache.Purge()
	return b.db.Close()
}
