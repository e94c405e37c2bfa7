package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketOutcomes = []byte("outcomes_by_code")

// OutcomeOK is the tally key for accepted proofs. Rejections are keyed by
// their error code.
const OutcomeOK = "OK"

// DB keeps aggregate verification outcomes. Proofs, addresses and messages
// are never written.
type DB struct {
	datadir  string
	db       *bolt.DB
	manifest *Manifest
}

// Open opens or creates the tally store under datadir. network is recorded
// in the manifest of a fresh datadir.
func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if err := ensureDir(datadir); err != nil {
		return nil, err
	}

	m, err := readManifest(datadir)
	switch {
	case err == nil:
		if m.SchemaVersion > SchemaVersionV1 {
			return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
		}
	case os.IsNotExist(err):
		m = &Manifest{SchemaVersion: SchemaVersionV1, Network: network, CreatedUnix: time.Now().Unix()}
		if err := writeManifestAtomic(datadir, m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	bdb, err := bolt.Open(DBPath(datadir), 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOutcomes); err != nil {
			return fmt.Errorf("create bucket %s: %w", string(bucketOutcomes), err)
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &DB{datadir: datadir, db: bdb, manifest: m}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Datadir() string { return d.datadir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

// Record increments the tally for outcome.
func (d *DB) Record(outcome string) error {
	if outcome == "" {
		return fmt.Errorf("outcome required")
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutcomes)
		n, err := decodeCount(b.Get([]byte(outcome)))
		if err != nil {
			return fmt.Errorf("tally %s: %w", outcome, err)
		}
		return b.Put([]byte(outcome), encodeCount(n+1))
	})
}

// Tally is one persisted outcome counter.
type Tally struct {
	Outcome string `json:"outcome"`
	Count   uint64 `json:"count"`
}

// Tallies returns every counter, sorted by outcome.
func (d *DB) Tallies() ([]Tally, error) {
	var out []Tally
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutcomes).ForEach(func(k, v []byte) error {
			n, err := decodeCount(v)
			if err != nil {
				return fmt.Errorf("tally %s: %w", string(k), err)
			}
			out = append(out, Tally{Outcome: string(k), Count: n})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Outcome < out[j].Outcome })
	return out, nil
}

func encodeCount(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func decodeCount(v []byte) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("bad counter length %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}
