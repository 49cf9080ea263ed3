package kv

import (
	"context"

	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/pierce403/nweb-next/shared/bytesutil"
)

// seedDatasetCosts writes the bootstrap cost table on first boot. Costs
// already present are left alone so operator overrides survive restarts.
func (s *Store) seedDatasetCosts() error {
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(datasetCostsBucket)
		for name, cost := range s.ledgerCfg.DefaultDatasetCosts {
			if bucket.Get([]byte(name)) != nil {
				continue
			}
			if err := bucket.Put([]byte(name), bytesutil.Bytes8(cost)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DatasetCost looks up the quota cost of a dataset type. The second return
// reports whether the type is configured at all.
func (s *Store) DatasetCost(ctx context.Context, datasetType string) (uint64, bool, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.DatasetCost")
	defer span.End()
	var cost uint64
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(datasetCostsBucket).Get([]byte(datasetType))
		if enc == nil {
			return nil
		}
		cost = bytesutil.FromBytes8(enc)
		found = true
		return nil
	})
	return cost, found, err
}

// DatasetCosts returns the full cost table.
func (s *Store) DatasetCosts(ctx context.Context) (map[string]uint64, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.DatasetCosts")
	defer span.End()
	costs := make(map[string]uint64)
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(datasetCostsBucket).ForEach(func(k, v []byte) error {
			costs[string(k)] = bytesutil.FromBytes8(v)
			return nil
		})
	})
	return costs, err
}

// SetDatasetCost upserts one cost table entry.
func (s *Store) SetDatasetCost(ctx context.Context, datasetType string, cost uint64) error {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SetDatasetCost")
	defer span.End()
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(datasetCostsBucket).Put([]byte(datasetType), bytesutil.Bytes8(cost))
	})
}
