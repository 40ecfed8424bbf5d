package config

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// XP granted per completed task (regular or special)
	XPPerTask = 4

	// Share of every reward credited to the referrer
	ReferralSharePercent = 15

	// XP granted to the referrer on registration, as a percent of the
	// referrer's current level threshold
	ReferralXPPercent = 10

	// Sweep intervals
	ReconcileInterval = 900 * time.Second
	NotifyInterval    = 910 * time.Second

	// Minimum gap between "new tasks" pushes per user
	NotificationCooldown = time.Hour

	// Gateway request timeout
	GatewayTimeout = 15 * time.Second

	// Max advertised links requested per gateway call
	GatewayMaxResults = 10

	// Concurrent gateway calls during a sweep
	SweepConcurrency = 8
)

var (
	// Reward for a provider-sourced channel task
	BaseReward = decimal.NewFromFloat(2.00)

	// Flat bonus credited to the referrer when a referral registers
	ReferralBonus = decimal.NewFromFloat(5.00)

	// Minimum withdrawal amount
	MinWithdrawal = decimal.NewFromFloat(50.00)
)

// LevelRewards is the one-time credit granted on reaching each level.
// Levels beyond the table pay nothing.
var LevelRewards = map[int]decimal.Decimal{
	1:  decimal.NewFromFloat(1.00),
	2:  decimal.NewFromFloat(2.00),
	3:  decimal.NewFromFloat(3.00),
	4:  decimal.NewFromFloat(4.00),
	5:  decimal.NewFromFloat(6.00),
	6:  decimal.NewFromFloat(9.00),
	7:  decimal.NewFromFloat(12.00),
	8:  decimal.NewFromFloat(16.00),
	9:  decimal.NewFromFloat(20.00),
	10: decimal.NewFromFloat(25.00),
}

// LevelReward returns the credit for reaching level, zero outside the table.
func LevelReward(level int) decimal.Decimal {
	if r, ok := LevelRewards[level]; ok {
		return r
	}
	return decimal.Zero
}

// LevelThreshold returns the XP needed to leave the given level.
func LevelThreshold(level int) int {
	return level * 100
}
