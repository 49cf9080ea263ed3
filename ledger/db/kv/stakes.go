package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/bytesutil"
)

// StakeInfo retrieves a principal's stake entry, nil if the principal has
// never staked.
func (s *Store) StakeInfo(ctx context.Context, principal types.Principal) (*types.StakeEntry, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.StakeInfo")
	defer span.End()
	var entry *types.StakeEntry
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(stakesBucket).Get([]byte(principal))
		if enc == nil {
			return nil
		}
		entry = &types.StakeEntry{}
		return decode(enc, entry)
	})
	return entry, err
}

// BurnedTotal returns the cumulative amount forfeited to the treasury sink.
func (s *Store) BurnedTotal(ctx context.Context) (uint64, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.BurnedTotal")
	defer span.End()
	var total uint64
	err := s.view(func(tx *bolt.Tx) error {
		enc := tx.Bucket(treasuryBucket).Get(burnedTotalKey)
		if enc != nil {
			total = bytesutil.FromBytes8(enc)
		}
		return nil
	})
	return total, err
}

// DepositStake accumulates a deposit onto a principal's balance. The first
// deposit creates the entry and records the stake-start time; every deposit
// marks the entry slashable. Deposits under the protocol minimum are
// rejected.
func (s *Store) DepositStake(ctx context.Context, principal types.Principal, amount, now uint64) (*types.StakeEntry, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.DepositStake")
	defer span.End()
	if amount < s.ledgerCfg.MinimumStake {
		return nil, errors.Wrapf(types.ErrBelowMinimumStake, "%d < %d", amount, s.ledgerCfg.MinimumStake)
	}
	entry := &types.StakeEntry{}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stakesBucket)
		enc := bucket.Get([]byte(principal))
		if enc == nil {
			*entry = types.StakeEntry{Principal: principal, StakeStart: now}
		} else if err := decode(enc, entry); err != nil {
			return err
		}
		entry.Amount += amount
		entry.LastUpdate = now
		entry.Slashable = true
		updated, err := encode(entry)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(principal), updated)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// WithdrawStake deducts from a principal's balance. Draining the balance to
// zero clears the slashable flag.
func (s *Store) WithdrawStake(ctx context.Context, principal types.Principal, amount, now uint64) (*types.StakeEntry, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.WithdrawStake")
	defer span.End()
	entry := &types.StakeEntry{}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stakesBucket)
		enc := bucket.Get([]byte(principal))
		if enc == nil {
			return errors.Wrapf(types.ErrInsufficientStake, "%s has no stake", principal)
		}
		if err := decode(enc, entry); err != nil {
			return err
		}
		if entry.Amount < amount {
			return errors.Wrapf(types.ErrInsufficientStake, "%d < %d", entry.Amount, amount)
		}
		entry.Amount -= amount
		entry.LastUpdate = now
		entry.Slashable = entry.Amount > 0
		updated, err := encode(entry)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(principal), updated)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SlashStake forfeits part of a principal's balance into the treasury sink.
// Only slashable entries may be slashed; the deduction and the treasury
// accrual commit together.
func (s *Store) SlashStake(ctx context.Context, principal types.Principal, amount, now uint64) (*types.StakeEntry, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.SlashStake")
	defer span.End()
	entry := &types.StakeEntry{}
	err := s.update(func(tx *bolt.Tx) error {
		return slashInTx(tx, entry, principal, amount, now)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// slashInTx applies a slash inside an already-open transaction so timeout
// processing can combine it with challenge resolution atomically.
func slashInTx(tx *bolt.Tx, entry *types.StakeEntry, principal types.Principal, amount, now uint64) error {
	bucket := tx.Bucket(stakesBucket)
	enc := bucket.Get([]byte(principal))
	if enc == nil {
		return errors.Wrapf(types.ErrNotSlashable, "%s has no stake", principal)
	}
	if err := decode(enc, entry); err != nil {
		return err
	}
	if !entry.Slashable {
		return errors.Wrapf(types.ErrNotSlashable, "principal %s", principal)
	}
	if entry.Amount < amount {
		return errors.Wrapf(types.ErrInsufficientStake, "%d < %d", entry.Amount, amount)
	}
	entry.Amount -= amount
	entry.LastUpdate = now
	entry.Slashable = entry.Amount > 0
	updated, err := encode(entry)
	if err != nil {
		return err
	}
	if err := bucket.Put([]byte(principal), updated); err != nil {
		return err
	}
	treasury := tx.Bucket(treasuryBucket)
	var burned uint64
	if existing := treasury.Get(burnedTotalKey); existing != nil {
		burned = bytesutil.FromBytes8(existing)
	}
	return treasury.Put(burnedTotalKey, bytesutil.Bytes8(burned+amount))
}

// UpdateReputation applies a saturating reputation delta, floored at zero.
// A principal with no stake entry yet still gets one so reputation can
// accrue ahead of a first deposit.
func (s *Store) UpdateReputation(ctx context.Context, principal types.Principal, delta int64, now uint64) (*types.StakeEntry, error) {
	ctx, span := trace.StartSpan(ctx, "ledgerDB.UpdateReputation")
	defer span.End()
	entry := &types.StakeEntry{}
	err := s.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stakesBucket)
		enc := bucket.Get([]byte(principal))
		if enc == nil {
			*entry = types.StakeEntry{Principal: principal}
		} else if err := decode(enc, entry); err != nil {
			return err
		}
		if delta < 0 {
			dec := uint64(-delta)
			if dec > entry.Reputation {
				entry.Reputation = 0
			} else {
				entry.Reputation -= dec
			}
		} else {
			entry.Reputation += uint64(delta)
		}
		entry.LastUpdate = now
		updated, err := encode(entry)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(principal), updated)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
