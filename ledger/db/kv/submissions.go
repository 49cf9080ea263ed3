package kv

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/pierce403/nweb-next/ledger/types"
)

// Submission retrieves a recorded submission by its attestation uid, nil if
// none exists.
func (s *Store) Submission(ctx context.Context, uid types.UID) (*types.Submission, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.Submission")
	defer span.End()
	var sub *types.Submission
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(submissionsBucket).Get(uid[:])
		if enc == nil {
			return nil
		}
		sub = &types.Submission{}
		return decode(enc, sub)
	})
	return sub, err
}

// SubmissionByJobID retrieves the submission indexed under a job id, nil if
// none exists. When several submissions share a job id the most recently
// recorded one owns the index entry.
func (s *Store) SubmissionByJobID(ctx context.Context, jobID string) (*types.Submission, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SubmissionByJobID")
	defer span.End()
	var sub *types.Submission
	err := s.view(func(tx *bolt.Tx) error {
		uid := tx.Bucket(jobSubmissionIndexBucket).Get([]byte(jobID))
		if uid == nil {
			return nil
		}
		enc := tx.Bucket(submissionsBucket).Get(uid)
		if enc == nil {
			return nil
		}
		sub = &types.Submission{}
		return decode(enc, sub)
	})
	return sub, err
}

// SubmitterSubmissions returns every submission recorded by a principal, in
// uid order, via a prefix scan over the submitter index.
func (s *Store) SubmitterSubmissions(ctx context.Context, submitter types.Principal) ([]*types.Submission, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SubmitterSubmissions")
	defer span.End()
	var subs []*types.Submission
	err := s.view(func(tx *bolt.Tx) error {
		subsBucket := tx.Bucket(submissionsBucket)
		c := tx.Bucket(submitterSubmissionIndexBucket).Cursor()
		prefix := []byte(submitter)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			enc := subsBucket.Get(v)
			if enc == nil {
				continue
			}
			sub := &types.Submission{}
			if err := decode(enc, sub); err != nil {
				return err
			}
			subs = append(subs, sub)
		}
		return nil
	})
	return subs, err
}

// AllSubmissions returns the full global submission index.
func (s *Store) AllSubmissions(ctx context.Context) ([]*types.Submission, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.AllSubmissions")
	defer span.End()
	var subs []*types.Submission
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(submissionsBucket).ForEach(func(k, v []byte) error {
			sub := &types.Submission{}
			if err := decode(v, sub); err != nil {
				return err
			}
			subs = append(subs, sub)
			return nil
		})
	})
	return subs, err
}

// SaveSubmission records a submission keyed by its attestation uid and
// appends it to the submitter and job-id indices. The quota gate is
// re-evaluated against the live stake entry inside the same transaction, so
// a concurrent withdrawal cannot slip a submission past a stale capacity
// check. One submission may ever exist per attestation uid.
func (s *Store) SaveSubmission(ctx context.Context, sub *types.Submission, cost uint64) error {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SaveSubmission")
	defer span.End()
	enc, err := encode(sub)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(submissionsBucket)
		if existing := bucket.Get(sub.UID[:]); existing != nil {
			return errors.Wrapf(types.ErrDuplicateSubmission, "uid %#x", sub.UID)
		}

		var quota uint64
		if stakeEnc := tx.Bucket(stakesBucket).Get([]byte(sub.Submitter)); stakeEnc != nil {
			entry := &types.StakeEntry{}
			if err := decode(stakeEnc, entry); err != nil {
				return err
			}
			quota = types.CalculateQuota(entry.Amount, entry.Reputation, s.ledgerCfg)
		}
		if quota < cost {
			return errors.Wrapf(types.ErrInsufficientQuota, "quota %d < cost %d", quota, cost)
		}

		if err := bucket.Put(sub.UID[:], enc); err != nil {
			return err
		}
		if err := tx.Bucket(submitterSubmissionIndexBucket).Put(encodeSubmitterUID(sub.Submitter, sub.UID), sub.UID[:]); err != nil {
			return err
		}
		return tx.Bucket(jobSubmissionIndexBucket).Put([]byte(sub.JobID), sub.UID[:])
	})
}
