// Package kv implements the ledger database on top of BoltDB. Bolt admits a
// single writer at a time, so every Update closure in this package observes a
// fully-applied prior state and commits atomically. That is the serializing
// transaction model the ledger operations assume.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombbolt "github.com/prysmaticlabs/prombbolt"
	bolt "go.etcd.io/bbolt"

	"github.com/pierce403/nweb-next/shared/params"
)

var databaseFileName = "ledger.db"

// Store defines an implementation of the ledger Database interface using
// BoltDB as the underlying persistent kv-store.
type Store struct {
	db           *bolt.DB
	databasePath string
	ledgerCfg    *params.LedgerConfig
	// Attestations are append-only (only the revoked bit ever flips), which
	// makes them safe to cache aggressively.
	attestationCache *ristretto.Cache
}

// Config options for the ledger db.
type Config struct {
	// LedgerParams overrides the protocol parameters, used in tests.
	LedgerParams *params.LedgerConfig
	CacheItems   int64
	MaxCacheSize int64
}

// NewKVStore initializes a new boltDB key-value store at the directory path
// specified, creates the kv-buckets based on the schema, seeds the bootstrap
// dataset cost table, and stores an open connection db object as a property
// of the Store struct.
func NewKVStore(dirPath string, cfg *Config) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.LedgerParams == nil {
		cfg.LedgerParams = params.Ledger()
	}
	if cfg.CacheItems == 0 {
		cfg.CacheItems = 20000
	}
	if cfg.MaxCacheSize == 0 {
		cfg.MaxCacheSize = 2 << 28 // 512MB.
	}
	kv := &Store{db: boltDB, databasePath: datafile, ledgerCfg: cfg.LedgerParams}
	attCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.CacheItems * 10,
		MaxCost:     cfg.MaxCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start attestation cache")
	}
	kv.attestationCache = attCache

	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			schemasBucket,
			attestationsBucket,
			stakesBucket,
			treasuryBucket,
			submissionsBucket,
			challengesBucket,
			bountiesBucket,
			datasetCostsBucket,
			// Indices buckets.
			submitterSubmissionIndexBucket,
			jobSubmissionIndexBucket,
			jobChallengeIndexBucket,
		)
	}); err != nil {
		return nil, err
	}
	if err := kv.seedDatasetCosts(); err != nil {
		return nil, err
	}
	err = prometheus.Register(createBoltCollector(kv.db))
	return kv, err
}

// Close closes the underlying boltdb database.
func (s *Store) Close() error {
	prometheus.Unregister(createBoltCollector(s.db))
	s.attestationCache.Close()
	return s.db.Close()
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	return s.db.Update(fn)
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	return s.db.View(fn)
}

// ClearDB removes any previously stored data at the configured data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	prometheus.Unregister(createBoltCollector(s.db))
	return os.Remove(s.databasePath)
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// Size returns the db size in bytes.
func (s *Store) Size() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// createBoltCollector returns a prometheus collector specifically configured for boltdb.
func createBoltCollector(db *bolt.DB) prometheus.Collector {
	return prombbolt.New("ledgerDB", db)
}
