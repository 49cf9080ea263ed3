// Package stake implements the stake ledger: deposits, withdrawals, slashing
// into the treasury sink, reputation accounting and the quota arithmetic that
// meters submission capacity.
package stake

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/pierce403/nweb-next/ledger/db"
	"github.com/pierce403/nweb-next/ledger/feed"
	"github.com/pierce403/nweb-next/ledger/types"
	"github.com/pierce403/nweb-next/shared/params"
)

var log = logrus.WithField("prefix", "stake")

var (
	stakeDeposited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stake_deposited_total",
		Help: "Total stake units deposited.",
	})
	stakeWithdrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stake_withdrawn_total",
		Help: "Total stake units withdrawn.",
	})
	stakeSlashed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_stake_slashed_total",
		Help: "Total stake units forfeited to the treasury sink.",
	})
)

// ServiceConfig bundles the dependencies of the stake ledger service.
type ServiceConfig struct {
	Database db.Database
	Feed     *event.Feed
	// LedgerParams overrides the protocol constants, used in tests.
	LedgerParams *params.LedgerConfig
	// Now overrides the clock, used in tests.
	Now func() time.Time
}

// Service manages staked balances, reputation and quota.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	db     db.Database
	feed   *event.Feed
	cfg    *params.LedgerConfig
	now    func() time.Time
}

// New instantiates the stake ledger service.
func New(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	ledgerParams := cfg.LedgerParams
	if ledgerParams == nil {
		ledgerParams = params.Ledger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		db:     cfg.Database,
		feed:   cfg.Feed,
		cfg:    ledgerParams,
		now:    now,
	}
}

// Start the stake ledger service.
func (s *Service) Start() {
	log.WithFields(logrus.Fields{
		"minimumStake": s.cfg.MinimumStake,
		"slashPercent": s.cfg.SlashPercent,
	}).Info("Starting stake ledger")
}

// Stop the stake ledger service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; the service holds no connections that can degrade.
func (s *Service) Status() error {
	return nil
}

// Deposit accumulates stake onto a principal's balance.
func (s *Service) Deposit(ctx context.Context, principal types.Principal, amount uint64) (*types.StakeEntry, error) {
	entry, err := s.db.DepositStake(ctx, principal, amount, uint64(s.now().Unix()))
	if err != nil {
		return nil, err
	}
	stakeDeposited.Add(float64(amount))
	log.WithFields(logrus.Fields{
		"principal": string(principal),
		"amount":    amount,
		"balance":   entry.Amount,
	}).Info("Stake deposited")
	s.feed.Send(&feed.Event{
		Type: feed.Staked,
		Data: &feed.StakeChangedData{Principal: principal, Amount: amount, Balance: entry.Amount},
	})
	return entry, nil
}

// Withdraw deducts stake from a principal's balance.
func (s *Service) Withdraw(ctx context.Context, principal types.Principal, amount uint64) (*types.StakeEntry, error) {
	entry, err := s.db.WithdrawStake(ctx, principal, amount, uint64(s.now().Unix()))
	if err != nil {
		return nil, err
	}
	stakeWithdrawn.Add(float64(amount))
	s.feed.Send(&feed.Event{
		Type: feed.Withdrawn,
		Data: &feed.StakeChangedData{Principal: principal, Amount: amount, Balance: entry.Amount},
	})
	return entry, nil
}

// Slash forfeits part of a principal's balance to the treasury sink.
func (s *Service) Slash(ctx context.Context, principal types.Principal, amount uint64) (*types.StakeEntry, error) {
	entry, err := s.db.SlashStake(ctx, principal, amount, uint64(s.now().Unix()))
	if err != nil {
		return nil, err
	}
	stakeSlashed.Add(float64(amount))
	log.WithFields(logrus.Fields{
		"principal": string(principal),
		"amount":    amount,
		"balance":   entry.Amount,
	}).Warn("Stake slashed")
	s.feed.Send(&feed.Event{
		Type: feed.Slashed,
		Data: &feed.StakeChangedData{Principal: principal, Amount: amount, Balance: entry.Amount},
	})
	return entry, nil
}

// UpdateReputation applies a saturating reputation delta, floored at zero.
func (s *Service) UpdateReputation(ctx context.Context, principal types.Principal, delta int64) (*types.StakeEntry, error) {
	entry, err := s.db.UpdateReputation(ctx, principal, delta, uint64(s.now().Unix()))
	if err != nil {
		return nil, err
	}
	s.feed.Send(&feed.Event{
		Type: feed.ReputationUpdated,
		Data: &feed.ReputationUpdatedData{Principal: principal, Delta: delta, Reputation: entry.Reputation},
	})
	return entry, nil
}

// Info retrieves a principal's stake entry, nil if the principal never staked.
func (s *Service) Info(ctx context.Context, principal types.Principal) (*types.StakeEntry, error) {
	return s.db.StakeInfo(ctx, principal)
}

// BurnedTotal returns the cumulative amount forfeited to the treasury sink.
func (s *Service) BurnedTotal(ctx context.Context) (uint64, error) {
	return s.db.BurnedTotal(ctx)
}

// Quota returns a principal's current submission capacity. A principal with
// no stake entry has zero quota.
func (s *Service) Quota(ctx context.Context, principal types.Principal) (uint64, error) {
	entry, err := s.db.StakeInfo(ctx, principal)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return types.CalculateQuota(entry.Amount, entry.Reputation, s.cfg), nil
}

// HasQuota reports whether a principal can currently afford a given cost.
// Advisory only: the recording transaction re-checks against the live entry.
func (s *Service) HasQuota(ctx context.Context, principal types.Principal, cost uint64) (bool, error) {
	quota, err := s.Quota(ctx, principal)
	if err != nil {
		return false, err
	}
	return quota >= cost, nil
}
