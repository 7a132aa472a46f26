package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Reader exposes point lookups.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Writer exposes point mutations.
type Writer interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Txn is an atomic unit of work. Writes are invisible to other readers until
// Commit; Discard drops them. Only one transaction may be open at a time.
type Txn interface {
	Reader
	Writer
	Commit() error
	Discard()
}

// Database is the key-value store backing the ledger. The in-memory and the
// persistent variant share the same goleveldb engine.
type Database interface {
	Reader
	Writer
	Begin() (Txn, error)
	Close() error
}

// LevelDB is a goleveldb-backed Database.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB opens a LevelDB instance over volatile memory storage. It is used by
// tests and by ephemeral nodes.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), &opt.Options{})
	if err != nil {
		// Opening fresh memory storage cannot fail short of a programming error.
		panic(err)
	}
	return &LevelDB{db: db}
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	return value, mapErr(err)
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *LevelDB) Put(key []byte, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

// Begin opens a write transaction. Concurrent writes block until it is
// committed or discarded.
func (l *LevelDB) Begin() (Txn, error) {
	tx, err := l.db.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &levelTxn{tx: tx}, nil
}

// Close closes the database connection.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelTxn struct {
	tx   *leveldb.Transaction
	done bool
}

func (t *levelTxn) Get(key []byte) ([]byte, error) {
	value, err := t.tx.Get(key, nil)
	return value, mapErr(err)
}

func (t *levelTxn) Has(key []byte) (bool, error) {
	return t.tx.Has(key, nil)
}

func (t *levelTxn) Put(key []byte, value []byte) error {
	return t.tx.Put(key, value, nil)
}

func (t *levelTxn) Delete(key []byte) error {
	return t.tx.Delete(key, nil)
}

func (t *levelTxn) Commit() error {
	if t.done {
		return errors.New("storage: transaction already finished")
	}
	t.done = true
	return t.tx.Commit()
}

func (t *levelTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.tx.Discard()
}

func mapErr(err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
