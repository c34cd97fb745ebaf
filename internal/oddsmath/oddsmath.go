package oddsmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOdds marks an American odds value that no bookmaker can quote:
// zero, or magnitude below 100.
var ErrInvalidOdds = errors.New("invalid american odds")

// ErrInvalidProbability marks a probability input outside [0,1] (or a
// two-sided pair whose sum is not positive). It signals an upstream logic
// defect, not bad market data, so callers should surface it rather than clamp.
var ErrInvalidProbability = errors.New("invalid probability")

// ImpliedProbability converts American odds to implied probability.
// -150 → 0.6, +150 → 0.4, +100 → 0.5.
func ImpliedProbability(american int) (float64, error) {
	if err := validateAmerican(american); err != nil {
		return 0, err
	}
	if american < 0 {
		abs := float64(-american)
		return abs / (abs + 100.0), nil
	}
	return 100.0 / (float64(american) + 100.0), nil
}

// DecimalOdds converts American odds to decimal odds (total payout per unit
// staked). -150 → 1.667, +150 → 2.5. Always >= 1 for valid input.
func DecimalOdds(american int) (float64, error) {
	if err := validateAmerican(american); err != nil {
		return 0, err
	}
	if american < 0 {
		return 100.0/float64(-american) + 1.0, nil
	}
	return float64(american)/100.0 + 1.0, nil
}

// ExpectedValuePercent returns the expected profit per unit staked, as a
// percentage, when the true win probability is trueProb and the book pays
// the given American odds. EV% = ((p × decimal) − 1) × 100.
func ExpectedValuePercent(american int, trueProb float64) (float64, error) {
	if trueProb < 0 || trueProb > 1 {
		return 0, fmt.Errorf("%w: true probability %v outside [0,1]", ErrInvalidProbability, trueProb)
	}
	dec, err := DecimalOdds(american)
	if err != nil {
		return 0, err
	}
	return (trueProb*dec - 1.0) * 100.0, nil
}

// RemoveVig rescales a two-sided implied probability pair so it sums to
// exactly 1, removing the bookmaker margin proportionally. The ratio
// probA/probB is preserved.
func RemoveVig(probA, probB float64) (float64, float64, error) {
	total := probA + probB
	if total <= 0 {
		return 0, 0, fmt.Errorf("%w: probabilities sum to %v", ErrInvalidProbability, total)
	}
	return probA / total, probB / total, nil
}

// KellyFraction returns the Kelly-optimal fraction of bankroll to stake given
// the true win probability and decimal odds. f* = (b·p − q) / b with
// b = decimal − 1. Negative results (no edge) clamp to 0.
func KellyFraction(trueProb, decimal float64) (float64, error) {
	if trueProb < 0 || trueProb > 1 {
		return 0, fmt.Errorf("%w: true probability %v outside [0,1]", ErrInvalidProbability, trueProb)
	}
	if decimal <= 1 {
		return 0, fmt.Errorf("%w: decimal odds %v must exceed 1", ErrInvalidOdds, decimal)
	}
	b := decimal - 1.0
	kelly := (b*trueProb - (1.0 - trueProb)) / b
	return math.Max(0, kelly), nil
}

// Profit returns the winnings (excluding returned stake) on a winning bet.
// Favorite: stake × 100/|odds|. Underdog: stake × odds/100.
func Profit(stake float64, american int) (float64, error) {
	if err := validateAmerican(american); err != nil {
		return 0, err
	}
	if american < 0 {
		return stake * (100.0 / float64(-american)), nil
	}
	return stake * (float64(american) / 100.0), nil
}

func validateAmerican(american int) error {
	if american == 0 {
		return fmt.Errorf("%w: odds cannot be 0", ErrInvalidOdds)
	}
	abs := american
	if abs < 0 {
		abs = -abs
	}
	if abs < 100 {
		return fmt.Errorf("%w: |%d| < 100", ErrInvalidOdds, american)
	}
	return nil
}
