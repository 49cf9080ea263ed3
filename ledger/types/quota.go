package types

import (
	"github.com/pierce403/nweb-next/shared/mathutil"
	"github.com/pierce403/nweb-next/shared/params"
)

// CalculateQuota computes a principal's submission capacity from staked
// amount and reputation:
//
//	floor(sqrt(amount / minimumStake)) * (1 + min(reputation / 100, maxRepFactor))
//
// The arithmetic is pure integer math so every independent recomputation by
// an auditor yields an identical value. Quota is a point-in-time capacity
// check, not a consumable counter.
func CalculateQuota(amount, reputation uint64, cfg *params.LedgerConfig) uint64 {
	if amount == 0 {
		return 0
	}
	base := mathutil.IntegerSquareRoot(amount / cfg.MinimumStake)
	multiplier := 1 + mathutil.Min(reputation/100, cfg.MaxReputationFactor)
	return base * multiplier
}

// TimeoutSlashAmount computes the stake forfeited when a challenge times out:
// SlashPercent of the current balance, clamped so the post-slash balance
// never falls below the minimum stake. A balance already below minimum
// yields zero.
func TimeoutSlashAmount(balance uint64, cfg *params.LedgerConfig) uint64 {
	if balance < cfg.MinimumStake {
		return 0
	}
	amount := balance * cfg.SlashPercent / 100
	if balance-amount < cfg.MinimumStake {
		amount = balance - cfg.MinimumStake
	}
	return amount
}

// ChallengerBounty computes the challenger's share of a slashed amount. The
// obligation is recorded, never settled here.
func ChallengerBounty(slashed uint64, cfg *params.LedgerConfig) uint64 {
	return slashed * cfg.BountyPercent / 100
}
