// Package params defines the fixed protocol parameters of the nweb ledger.
// These values gate admission and slashing arithmetic and must not change
// post-deployment; independent auditors recompute quota and slash amounts
// from the same constants.
package params

// LedgerConfig contains the constants of the staking and dispute protocol.
type LedgerConfig struct {
	// MinimumStake is the smallest accepted deposit, in stake units. It is
	// also the floor a timeout slash may never drive a balance below.
	MinimumStake uint64
	// SlashPercent of the submitter's current stake forfeited when a
	// challenge times out unresolved.
	SlashPercent uint64
	// BountyPercent of the slashed amount computed as owed to the challenger.
	BountyPercent uint64
	// GracePeriodSeconds between challenge filing and timeout eligibility.
	GracePeriodSeconds uint64
	// MaxReputationFactor caps the reputation multiplier on quota.
	MaxReputationFactor uint64
	// DefaultDatasetCosts seeds the dataset-type cost table at first boot.
	DefaultDatasetCosts map[string]uint64
}

var ledgerConfig = MainnetConfig()

// LedgerConfig retrieves the ledger chain config.
func Ledger() *LedgerConfig {
	return ledgerConfig
}

// MainnetConfig returns the configuration used on the main nweb network.
func MainnetConfig() *LedgerConfig {
	return &LedgerConfig{
		MinimumStake:        100,
		SlashPercent:        10,
		BountyPercent:       50,
		GracePeriodSeconds:  259200, // 72h.
		MaxReputationFactor: 4,
		DefaultDatasetCosts: map[string]uint64{
			"quick-scan": 1,
			"top-ports":  2,
			"full-scan":  5,
			"diff":       1,
			"enrich":     1,
		},
	}
}

// OverrideLedgerConfig replaces the global ledger config. Tests that tweak
// protocol constants should restore the previous value when done.
func OverrideLedgerConfig(c *LedgerConfig) {
	ledgerConfig = c
}

// Copy returns a deep copy of the config so tests can mutate it safely.
func (c *LedgerConfig) Copy() *LedgerConfig {
	costs := make(map[string]uint64, len(c.DefaultDatasetCosts))
	for k, v := range c.DefaultDatasetCosts {
		costs[k] = v
	}
	cp := *c
	cp.DefaultDatasetCosts = costs
	return &cp
}
