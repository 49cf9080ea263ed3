package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/pierce403/nweb-next/ledger/types"
)

// attestationCacheCost approximates the in-memory weight of one record.
const attestationCacheCost = 1

// Attestation retrieves an attestation by uid, nil if none exists.
func (s *Store) Attestation(ctx context.Context, uid types.UID) (*types.Attestation, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.Attestation")
	defer span.End()
	if cached, ok := s.attestationCache.Get(string(uid[:])); ok {
		return cached.(*types.Attestation), nil
	}
	var att *types.Attestation
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(attestationsBucket).Get(uid[:])
		if enc == nil {
			return nil
		}
		att = &types.Attestation{}
		return decode(enc, att)
	})
	if err != nil {
		return nil, err
	}
	if att != nil {
		s.attestationCache.Set(string(uid[:]), att, attestationCacheCost)
	}
	return att, err
}

// SaveAttestation appends an attestation to the log. The uid is derived
// inside the transaction from the input tuple plus the bucket's monotonic
// sequence number, so two attestations over identical inputs in the same
// second still receive distinct uids. Returns the assigned uid.
func (s *Store) SaveAttestation(ctx context.Context, att *types.Attestation) (types.UID, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SaveAttestation")
	defer span.End()
	var uid types.UID
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attestationsBucket)
		nonce, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		uid = types.AttestationUID(att.Attester, att.Subject, att.SchemaUID, att.Timestamp, nonce, att.Data)
		if existing := bucket.Get(uid[:]); existing != nil {
			return errors.Wrapf(types.ErrDuplicateAttestation, "uid %#x", uid)
		}
		att.UID = uid
		enc, err := encode(att)
		if err != nil {
			return err
		}
		return bucket.Put(uid[:], enc)
	})
	if err != nil {
		return types.ZeroUID, err
	}
	s.attestationCache.Set(string(uid[:]), att, attestationCacheCost)
	return uid, nil
}

// RevokeAttestation flips an attestation's revoked bit. The caller must be
// the original attester and the owning schema must permit revocation; a
// revoked attestation stays revoked. All checks and the write commit in one
// transaction.
func (s *Store) RevokeAttestation(ctx context.Context, caller types.Principal, uid types.UID) (*types.Attestation, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.RevokeAttestation")
	defer span.End()
	att := &types.Attestation{}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(attestationsBucket)
		enc := bucket.Get(uid[:])
		if enc == nil {
			return errors.Wrapf(types.ErrAttestationNotFound, "uid %#x", uid)
		}
		if err := decode(enc, att); err != nil {
			return err
		}
		if att.Attester != caller {
			return errors.Wrapf(types.ErrNotAttester, "caller %s", caller)
		}
		schemaEnc := tx.Bucket(schemasBucket).Get(att.SchemaUID[:])
		if schemaEnc == nil {
			return errors.Wrapf(types.ErrSchemaNotFound, "uid %#x", att.SchemaUID)
		}
		schema := &types.Schema{}
		if err := decode(schemaEnc, schema); err != nil {
			return err
		}
		if !schema.Revocable {
			return errors.Wrapf(types.ErrNotRevocable, "schema %#x", att.SchemaUID)
		}
		if att.Revoked {
			return errors.Wrapf(types.ErrAlreadyRevoked, "uid %#x", uid)
		}
		att.Revoked = true
		updated, err := encode(att)
		if err != nil {
			return err
		}
		return bucket.Put(uid[:], updated)
	})
	if err != nil {
		return nil, err
	}
	s.attestationCache.Del(string(uid[:]))
	return att, nil
}
