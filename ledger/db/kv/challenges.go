package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/bytesutil"
)

// Challenge retrieves a challenge by uid, nil if none exists.
func (s *Store) Challenge(ctx context.Context, uid types.UID) (*types.Challenge, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.Challenge")
	defer span.End()
	var ch *types.Challenge
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(challengesBucket).Get(uid[:])
		if enc == nil {
			return nil
		}
		ch = &types.Challenge{}
		return decode(enc, ch)
	})
	return ch, err
}

// ChallengeByJobID retrieves the challenge indexed under a job id, nil if the
// job has never been challenged.
func (s *Store) ChallengeByJobID(ctx context.Context, jobID string) (*types.Challenge, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.ChallengeByJobID")
	defer span.End()
	var ch *types.Challenge
	err := s.view(func(tx *bolt.Tx) error {
		uid := tx.Bucket(jobChallengeIndexBucket).Get([]byte(jobID))
		if uid == nil {
			return nil
		}
		enc := tx.Bucket(challengesBucket).Get(uid)
		if enc == nil {
			return nil
		}
		ch = &types.Challenge{}
		return decode(enc, ch)
	})
	return ch, err
}

// AllChallenges returns every filed challenge.
func (s *Store) AllChallenges(ctx context.Context) ([]*types.Challenge, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.AllChallenges")
	defer span.End()
	var challenges []*types.Challenge
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(challengesBucket).ForEach(func(k, v []byte) error {
			ch := &types.Challenge{}
			if err := decode(v, ch); err != nil {
				return err
			}
			challenges = append(challenges, ch)
			return nil
		})
	})
	return challenges, err
}

// PendingBounties returns the unsettled challenger bounty queue in filing
// order.
func (s *Store) PendingBounties(ctx context.Context) ([]*types.BountyObligation, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.PendingBounties")
	defer span.End()
	var bounties []*types.BountyObligation
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bountiesBucket).ForEach(func(k, v []byte) error {
			b := &types.BountyObligation{}
			if err := decode(v, b); err != nil {
				return err
			}
			bounties = append(bounties, b)
			return nil
		})
	})
	return bounties, err
}

// SaveChallenge persists a freshly filed challenge and claims the job-id
// index entry for it. At most one challenge may ever be indexed per job id;
// the check and the claim commit in one transaction so two concurrent
// filings cannot both pass.
func (s *Store) SaveChallenge(ctx context.Context, ch *types.Challenge) error {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SaveChallenge")
	defer span.End()
	enc, err := encode(ch)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		index := tx.Bucket(jobChallengeIndexBucket)
		if existing := index.Get([]byte(ch.JobID)); existing != nil {
			return errors.Wrapf(types.ErrAlreadyChallenged, "job %s", ch.JobID)
		}
		bucket := tx.Bucket(challengesBucket)
		if existing := bucket.Get(ch.UID[:]); existing != nil {
			return errors.Wrapf(types.ErrAlreadyChallenged, "uid %#x", ch.UID)
		}
		if err := bucket.Put(ch.UID[:], enc); err != nil {
			return err
		}
		return index.Put([]byte(ch.JobID), ch.UID[:])
	})
}

// ResolveChallenge records a submitter's resolution. The unresolved check and
// the resolved flag flip are a single atomic check-and-set; a challenge
// resolves exactly once, ever.
func (s *Store) ResolveChallenge(ctx context.Context, uid types.UID, slash bool, amount uint64, notes, replacementCID string) (*types.Challenge, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.ResolveChallenge")
	defer span.End()
	ch := &types.Challenge{}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(challengesBucket)
		enc := bucket.Get(uid[:])
		if enc == nil {
			return errors.Wrapf(types.ErrChallengeNotFound, "uid %#x", uid)
		}
		if err := decode(enc, ch); err != nil {
			return err
		}
		if ch.Resolved {
			return errors.Wrapf(types.ErrAlreadyResolved, "uid %#x", uid)
		}
		ch.Resolved = true
		ch.Slash = slash
		ch.SlashAmount = amount
		ch.Notes = notes
		ch.ReplacementCID = replacementCID
		updated, err := encode(ch)
		if err != nil {
			return err
		}
		return bucket.Put(uid[:], updated)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ResolveChallengeByTimeout resolves an expired challenge against the
// submitter. The grace-deadline gate, the clamped slash computation, the
// stake deduction, the bounty-queue append and the resolved flag flip all
// commit in one transaction, so a timeout either fully applies or not at all.
func (s *Store) ResolveChallengeByTimeout(ctx context.Context, uid types.UID, submitter types.Principal, now uint64) (*types.Challenge, *types.TimeoutResult, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.ResolveChallengeByTimeout")
	defer span.End()
	ch := &types.Challenge{}
	result := &types.TimeoutResult{Submitter: submitter}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(challengesBucket)
		enc := bucket.Get(uid[:])
		if enc == nil {
			return errors.Wrapf(types.ErrChallengeNotFound, "uid %#x", uid)
		}
		if err := decode(enc, ch); err != nil {
			return err
		}
		if ch.Resolved {
			return errors.Wrapf(types.ErrAlreadyResolved, "uid %#x", uid)
		}
		if now < ch.GraceDeadline {
			return errors.Wrapf(types.ErrGracePeriodActive, "now %d < deadline %d", now, ch.GraceDeadline)
		}

		var balance uint64
		if stakeEnc := tx.Bucket(stakesBucket).Get([]byte(submitter)); stakeEnc != nil {
			entry := &types.StakeEntry{}
			if err := decode(stakeEnc, entry); err != nil {
				return err
			}
			balance = entry.Amount
		}
		result.SlashAmount = types.TimeoutSlashAmount(balance, s.ledgerCfg)
		if result.SlashAmount > 0 {
			entry := &types.StakeEntry{}
			if err := slashInTx(tx, entry, submitter, result.SlashAmount, now); err != nil {
				return err
			}
			result.Bounty = types.ChallengerBounty(result.SlashAmount, s.ledgerCfg)
			bounties := tx.Bucket(bountiesBucket)
			seq, err := bounties.NextSequence()
			if err != nil {
				return err
			}
			obligation, err := encode(&types.BountyObligation{
				ChallengeUID: uid,
				Challenger:   ch.Challenger,
				Amount:       result.Bounty,
				CreatedAt:    now,
			})
			if err != nil {
				return err
			}
			if err := bounties.Put(bytesutil.Bytes8(seq), obligation); err != nil {
				return err
			}
		}

		ch.Resolved = true
		ch.Slash = true
		ch.SlashAmount = result.SlashAmount
		updated, err := encode(ch)
		if err != nil {
			return err
		}
		return bucket.Put(uid[:], updated)
	})
	if err != nil {
		return nil, nil, err
	}
	return ch, result, nil
}
