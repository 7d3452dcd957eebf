package buffer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerStore keeps each record under
//
//	changes/<project id>/<sequence, zero padded>
//
// so a prefix scan yields a project's queue in order.
type badgerStore struct {
	db *badger.DB
}

const badgerPrefix = "changes/"

// NewBadgerChangeBuffer creates a change buffer backed by a Badger database
// in dir. An empty dir keeps the database in memory.
func NewBadgerChangeBuffer(dir string, maxChanges int) (*Buffer, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return newBuffer(&badgerStore{db: db}, maxChanges), nil
}

func projectPrefix(projectID string) []byte {
	return []byte(badgerPrefix + projectID + "/")
}

func recordKey(projectID string, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%s/%020d", badgerPrefix, projectID, seq)
}

func (s *badgerStore) Append(_ context.Context, projectID string, records [][]byte) error {
	if strings.Contains(projectID, "/") {
		return fmt.Errorf("invalid project id: %q", projectID)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		next, err := lastSeq(txn, projectID)
		if err != nil {
			return err
		}
		for _, r := range records {
			next++
			if err := txn.Set(recordKey(projectID, next), r); err != nil {
				return err
			}
		}
		return nil
	})
}

// lastSeq returns the highest sequence number queued for a project, or 0.
func lastSeq(txn *badger.Txn, projectID string) (uint64, error) {
	prefix := projectPrefix(projectID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(prefix, 0xFF))
	if !it.ValidForPrefix(prefix) {
		return 0, nil
	}
	key := it.Item().Key()
	seq, err := strconv.ParseUint(string(key[len(prefix):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing key %q: %w", key, err)
	}
	return seq, nil
}

func (s *badgerStore) Range(_ context.Context, projectID string) ([][]byte, error) {
	var records [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := projectPrefix(projectID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			records = append(records, value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	return records, nil
}

func (s *badgerStore) Trim(_ context.Context, projectID string, n int) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		keys := firstKeys(txn, projectPrefix(projectID), n)
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trimming queue: %w", err)
	}
	return nil
}

// firstKeys returns up to n keys with prefix, in order. The iterator is
// closed before returning so the caller may write in the same transaction.
func firstKeys(txn *badger.Txn, prefix []byte, n int) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix) && len(keys) < n; it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (s *badgerStore) Len(_ context.Context, projectID string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := projectPrefix(projectID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *badgerStore) Projects(context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := string(it.Item().Key()[len(prefix):])
			id, _, ok := strings.Cut(rest, "/")
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing queues: %w", err)
	}
	return ids, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
