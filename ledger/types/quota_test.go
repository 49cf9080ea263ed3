package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/pierce403/nweb-next/shared/params"
)

func TestCalculateQuota_ZeroAtZeroStake(t *testing.T) {
	cfg := params.MainnetConfig()
	assert.Equal(t, uint64(0), CalculateQuota(0, 0, cfg))
	assert.Equal(t, uint64(0), CalculateQuota(0, 500, cfg))
}

func TestCalculateQuota_KnownValues(t *testing.T) {
	cfg := params.MainnetConfig()
	tests := []struct {
		amount     uint64
		reputation uint64
		quota      uint64
	}{
		{amount: 400, reputation: 0, quota: 2},   // floor(sqrt(4)) * 1
		{amount: 100, reputation: 0, quota: 1},   // exactly minimum
		{amount: 99, reputation: 0, quota: 0},    // below minimum
		{amount: 250, reputation: 0, quota: 1},   // floor(sqrt(2))
		{amount: 900, reputation: 0, quota: 3},   // floor(sqrt(9))
		{amount: 400, reputation: 100, quota: 4}, // multiplier 2
		{amount: 400, reputation: 199, quota: 4}, // rep/100 floors to 1
		{amount: 400, reputation: 1000, quota: 10}, // capped at maxRepFactor=4
	}
	for _, tt := range tests {
		assert.Equal(t, tt.quota, CalculateQuota(tt.amount, tt.reputation, cfg),
			"amount=%d rep=%d", tt.amount, tt.reputation)
	}
}

func TestCalculateQuota_NonDecreasing(t *testing.T) {
	cfg := params.MainnetConfig()
	prev := uint64(0)
	for amount := uint64(0); amount <= 10000; amount += 50 {
		q := CalculateQuota(amount, 0, cfg)
		if q < prev {
			t.Fatalf("quota decreased in stake at %d: %d < %d", amount, q, prev)
		}
		prev = q
	}
	prev = 0
	for rep := uint64(0); rep <= 1000; rep += 25 {
		q := CalculateQuota(400, rep, cfg)
		if q < prev {
			t.Fatalf("quota decreased in reputation at %d: %d < %d", rep, q, prev)
		}
		prev = q
	}
}

func TestTimeoutSlashAmount_Clamps(t *testing.T) {
	cfg := params.MainnetConfig()
	tests := []struct {
		balance uint64
		slash   uint64
	}{
		{balance: 0, slash: 0},
		{balance: 99, slash: 0},    // already below minimum
		{balance: 100, slash: 0},   // 10% would breach the floor, clamped to 0
		{balance: 105, slash: 5},   // clamped to balance-minimum
		{balance: 1000, slash: 100},
		{balance: 10000, slash: 1000},
	}
	for _, tt := range tests {
		got := TimeoutSlashAmount(tt.balance, cfg)
		assert.Equal(t, tt.slash, got, "balance=%d", tt.balance)
		if tt.balance >= cfg.MinimumStake {
			assert.True(t, tt.balance-got >= cfg.MinimumStake,
				"post-slash balance below minimum for %d", tt.balance)
		}
	}
}

func TestChallengerBounty(t *testing.T) {
	cfg := params.MainnetConfig()
	assert.Equal(t, uint64(50), ChallengerBounty(100, cfg))
	assert.Equal(t, uint64(0), ChallengerBounty(0, cfg))
	assert.Equal(t, uint64(2), ChallengerBounty(5, cfg))
}
