// Package bolt implements history.Store on a bbolt database.
package bolt

import (
	"encoding/binary"
	"errors"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/history"
)

var (
	bucketMeta = []byte("meta")
	bucketRuns = []byte("runs")

	keyCount    = []byte("count")
	keyChecksum = []byte("checksum")
	keyUpdated  = []byte("updated")
	keyVersion  = []byte("version")
)

// MaxRuns bounds the run log; older entries are pruned on Save.
const MaxRuns = 100

// recordSize is the encoded size of one run: count, checksum, updated.
const recordSize = 24

var errCorruptRecord = errors.New("corrupt run record")

// boltStore implements history.Store using bbolt.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (history.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Latest() (domain.RunRecord, bool, error) {
	var rec domain.RunRecord
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		v, found := getUint64(b, keyVersion)
		if !found {
			return nil
		}
		rec.Version = v
		rec.RuleCount, _ = getUint64(b, keyCount)
		rec.Checksum, _ = getUint64(b, keyChecksum)
		if u, found := getUint64(b, keyUpdated); found {
			rec.UpdatedAt = time.Unix(int64(u), 0).UTC()
		}
		ok = true
		return nil
	})
	return rec, ok, err
}

func (s *boltStore) Save(rec domain.RunRecord) (domain.RunRecord, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		prev, _ := getUint64(meta, keyVersion)
		rec.Version = prev + 1

		for _, kv := range []struct {
			k []byte
			v uint64
		}{
			{keyVersion, rec.Version},
			{keyCount, rec.RuleCount},
			{keyChecksum, rec.Checksum},
			{keyUpdated, uint64(rec.UpdatedAt.Unix())},
		} {
			if err := meta.Put(kv.k, u64(kv.v)); err != nil {
				return err
			}
		}

		runs := tx.Bucket(bucketRuns)
		if err := runs.Put(u64(rec.Version), encodeRecord(rec)); err != nil {
			return err
		}
		return prune(runs, MaxRuns)
	})
	if err != nil {
		return domain.RunRecord{}, err
	}
	rec.UpdatedAt = time.Unix(rec.UpdatedAt.Unix(), 0).UTC()
	return rec, nil
}

func (s *boltStore) Recent(n int) ([]domain.RunRecord, error) {
	var out []domain.RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			rec, err := decodeRecord(k, v)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// prune deletes the oldest runs until at most keep remain. Keys are
// big-endian versions, so cursor order is chronological.
func prune(b *bbolt.Bucket, keep int) error {
	n := 0
	if err := b.ForEach(func(_, _ []byte) error {
		n++
		return nil
	}); err != nil {
		return err
	}
	excess := n - keep
	if excess <= 0 {
		return nil
	}
	c := b.Cursor()
	for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return err
		}
		excess--
	}
	return nil
}

func getUint64(b *bbolt.Bucket, key []byte) (uint64, bool) {
	v := b.Get(key)
	if len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

func u64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func encodeRecord(rec domain.RunRecord) []byte {
	buf := make([]byte, recordSize)
	binary.BigEndian.PutUint64(buf[0:8], rec.RuleCount)
	binary.BigEndian.PutUint64(buf[8:16], rec.Checksum)
	binary.BigEndian.PutUint64(buf[16:24], uint64(rec.UpdatedAt.Unix()))
	return buf
}

func decodeRecord(k, v []byte) (domain.RunRecord, error) {
	if len(k) != 8 || len(v) != recordSize {
		return domain.RunRecord{}, errCorruptRecord
	}
	return domain.RunRecord{
		Version:   binary.BigEndian.Uint64(k),
		RuleCount: binary.BigEndian.Uint64(v[0:8]),
		Checksum:  binary.BigEndian.Uint64(v[8:16]),
		UpdatedAt: time.Unix(int64(binary.BigEndian.Uint64(v[16:24])), 0).UTC(),
	}, nil
}
