package stake

import (
	"github.com/shopspring/decimal"

	"github.com/lockstake/lockstake/internal/types"
)

// payable computes the reward owed to a stake of the given size for the
// span between the last claim and now.
//
// The elapsed time is credited in whole intervals: the fractional remainder
// of the current interval is subtracted out and stays claimable once the
// interval completes. The per-interval rate is the pool total spread evenly
// over the distribution's intervals and divided by the live unit count.
// Rounding happens exactly once, a floor on the final product, so truncation
// never compounds across factors.
func payable(cfg Config, last, now types.Timestamp, units uint64, amount types.Amount) types.Amount {
	elapsed := now.Seconds() - last.Seconds()
	interval := decimal.NewFromUint64(cfg.Interval)

	timeFactor := divTrunc(decimal.NewFromUint64(elapsed), interval)
	modTimeFactor := divTrunc(decimal.NewFromUint64(elapsed%cfg.Interval), interval)

	intervals := divTrunc(decimal.NewFromUint64(cfg.End.Seconds()-cfg.Start.Seconds()), interval)
	rewardFactor := divTrunc(divTrunc(decimal.NewFromUint64(uint64(cfg.Total)), intervals),
		decimal.NewFromUint64(units))

	reward := timeFactor.Sub(modTimeFactor).
		Mul(rewardFactor).
		Mul(decimal.NewFromUint64(uint64(amount))).
		Floor()
	return types.Amount(reward.BigInt().Uint64())
}

// divTrunc divides truncating at 18 fractional digits. The default Div
// rounds half-up at 16, which could nudge the reward factor above its true
// value before the final floor; truncation keeps every quotient at or below
// it, so a payout never exceeds the stake's exact pool share.
func divTrunc(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, 19).Truncate(18)
}
