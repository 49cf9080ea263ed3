package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/pierce403/nweb-next/ledger/types"
)

// Schema retrieves a registered attestation schema by uid, nil if none exists.
func (s *Store) Schema(ctx context.Context, uid types.UID) (*types.Schema, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.Schema")
	defer span.End()
	var schema *types.Schema
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(schemasBucket).Get(uid[:])
		if enc == nil {
			return nil
		}
		schema = &types.Schema{}
		return decode(enc, schema)
	})
	return schema, err
}

// SaveSchema persists a schema registration. Schemas are immutable: a second
// registration deriving the same uid fails with ErrDuplicateSchema.
func (s *Store) SaveSchema(ctx context.Context, schema *types.Schema) error {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SaveSchema")
	defer span.End()
	enc, err := encode(schema)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(schemasBucket)
		if existing := bucket.Get(schema.UID[:]); existing != nil {
			return errors.Wrapf(types.ErrDuplicateSchema, "uid %#x", schema.UID)
		}
		return bucket.Put(schema.UID[:], enc)
	})
}
