package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/gobwas/glob"
)

// BadgerConfig contains settings specific to BadgerDB databases
type BadgerConfig struct {
	StorageDirPath string
	// Keep everything in memory. StorageDirPath is ignored.
	InMemory bool
	// Maximum size of each value log file, in bytes. Zero keeps Badger's
	// default.
	ValueLogFileSize int64
}

// BadgerDB represents the application's connection to an embedded BadgerDB
// database. Logical databases are key prefixes within it; use Namespace to
// get a Backend bound to one of them.
type BadgerDB struct {
	connection *badger.DB
}

// NewBadgerDB initializes the BadgerDB embedded database. It is up to the
// caller to close the database with Close().
func NewBadgerDB(conf *BadgerConfig) (*BadgerDB, error) {
	// See: https://dgraph.io/docs/badger/get-started/#opening-a-database
	opts := badger.DefaultOptions(conf.StorageDirPath).WithLogger(badgerLogger{})
	if conf.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if conf.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(conf.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open the db connection: %v", err)
	}

	return &BadgerDB{connection: db}, nil
}

// Namespace returns a Backend bound to logical database index.
func (db *BadgerDB) Namespace(index int) *Badger {
	return &Badger{
		db:     db.connection,
		prefix: []byte(strconv.Itoa(index) + "/"),
	}
}

// Cleanup performs BadgerDB's garbage collection routine with the
// recommended discardRatio.
//
// See: https://pkg.go.dev/github.com/dgraph-io/badger/v3#DB.RunValueLogGC
//
// This is the only time expired records are actually removed from disk.
func (db *BadgerDB) Cleanup() error {
	var discardRatio float64 = .5
	err := db.connection.RunValueLogGC(discardRatio)
	// If the GC determines that it can't rewrite anything, don't worry the
	// caller--just skip it. The same goes for in-memory databases, which
	// have no value log.
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close tears down the database connection, including every namespace
// handed out by it.
func (db *BadgerDB) Close() error {
	if err := db.connection.Close(); err != nil {
		return fmt.Errorf("could not close the database: %v", err)
	}
	return nil
}

// Badger implements Backend on top of one namespace of a BadgerDB.
//
// Plain keys live under "<index>/k/". Set members are stored one entry per
// member under "<index>/s/<len(setKey)>:<setKey>", the length prefix keeping
// set keys that prefix one another apart. Scan cursors are resume offsets
// into the namespace, so, like Redis, a scan racing with writes may skip or
// repeat keys.
type Badger struct {
	db     *badger.DB
	prefix []byte
}

const defaultScanCount = 10

func (b *Badger) dataPrefix() []byte {
	return append(append([]byte{}, b.prefix...), "k/"...)
}

func (b *Badger) dataKey(key string) []byte {
	return append(b.dataPrefix(), key...)
}

func (b *Badger) setPrefix(setKey string) []byte {
	p := append(append([]byte{}, b.prefix...), "s/"...)
	p = strconv.AppendInt(p, int64(len(setKey)), 10)
	p = append(p, ':')
	return append(p, setKey...)
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var val []byte
	found := false
	// See: https://dgraph.io/docs/badger/get-started/#read-only-transactions
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.dataKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		// We copy values rather than return them directly because item.Value()
		// is considered undefined behavior outside a transaction.
		val, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("can't copy the value from the database: %v", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return val, found, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(b.dataKey(key), value))
	})
}

func (b *Badger) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid expire time %v", ttl)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(b.dataKey(key), value).WithTTL(ttl))
	})
}

func (b *Badger) TTL(_ context.Context, key string) (time.Duration, error) {
	ttl := Missing
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.dataKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exp := item.ExpiresAt()
		if exp == 0 {
			ttl = NoExpiry
			return nil
		}
		ttl = time.Duration(int64(exp)-time.Now().Unix()) * time.Second
		return nil
	})
	return ttl, err
}

// update runs fn in a read-write transaction, retrying it for as long as it
// conflicts with a concurrent one. This makes read-modify-write commands on
// the same key serializable.
func (b *Badger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		err := b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (b *Badger) Incr(ctx context.Context, key string) (int64, error) {
	k := b.dataKey(key)
	var n int64
	err := b.update(ctx, func(txn *badger.Txn) error {
		n = 0
		entry := badger.NewEntry(k, nil)
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err = strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return ErrNotInteger
			}
			entry.ExpiresAt = item.ExpiresAt()
		}
		n++
		entry.Value = []byte(strconv.FormatInt(n, 10))
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// rewrite stores the current value of key again as built by entry. Missing
// keys are ignored.
func (b *Badger) rewrite(ctx context.Context, key string, entry func(k, val []byte) *badger.Entry) error {
	k := b.dataKey(key)
	return b.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if e := entry(k, val); e != nil {
			return txn.SetEntry(e)
		}
		return txn.Delete(k)
	})
}

func (b *Badger) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.rewrite(ctx, key, func(k, val []byte) *badger.Entry {
		if ttl <= 0 {
			return nil
		}
		return badger.NewEntry(k, val).WithTTL(ttl)
	})
}

func (b *Badger) Persist(ctx context.Context, key string) error {
	return b.rewrite(ctx, key, func(k, val []byte) *badger.Entry {
		return badger.NewEntry(k, val)
	})
}

func (b *Badger) Del(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.dataKey(key))
	})
}

func (b *Badger) SAdd(_ context.Context, setKey, member string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(b.setPrefix(setKey), member...), nil)
	})
}

func (b *Badger) SScan(_ context.Context, setKey string, cursor uint64, count int64) ([]string, uint64, error) {
	return b.scan(b.setPrefix(setKey), cursor, count, nil)
}

func (b *Badger) Scan(_ context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	var g glob.Glob
	if match != "" {
		var err error
		g, err = glob.Compile(match)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid match pattern %q: %v", match, err)
		}
	}
	return b.scan(b.dataPrefix(), cursor, count, g)
}

// scan returns the names under prefix found between offset cursor and
// cursor+count. As with Redis, entries filtered out by match still count
// towards the page size.
func (b *Badger) scan(prefix []byte, cursor uint64, count int64, match glob.Glob) ([]string, uint64, error) {
	if count <= 0 {
		count = defaultScanCount
	}
	var names []string
	var next uint64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var pos uint64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if pos < cursor {
				pos++
				continue
			}
			if pos-cursor >= uint64(count) {
				next = pos
				return nil
			}
			pos++
			name := string(it.Item().Key()[len(prefix):])
			if match != nil && !match.Match(name) {
				continue
			}
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return names, next, nil
}

func (b *Badger) FlushDB(_ context.Context) error {
	return b.db.DropPrefix(b.prefix)
}

// Close is a no-op: namespaces share the BadgerDB connection, which is
// closed through BadgerDB.Close.
func (b *Badger) Close() error {
	return nil
}
