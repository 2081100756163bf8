package ledger

import "math"

const (
	DefaultStandardFeeBps     = 2000
	DefaultCancellationFeeBps = 1000
	RefundPenaltyBps          = 1000
	maxBps                    = 10000
)

// Rates are the platform fee rates callers pick from.
type Rates struct {
	StandardBps     int
	CancellationBps int
}

func DefaultRates() Rates {
	return Rates{StandardBps: DefaultStandardFeeBps, CancellationBps: DefaultCancellationFeeBps}
}

const (
	KindStandard     = "standard"
	KindCancellation = "cancellation"
)

func (r Rates) For(kind string) int {
	if kind == KindCancellation {
		return r.CancellationBps
	}
	return r.StandardBps
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

// share returns bps/10000 of cents, rounded half up.
func share(cents int64, bps int) int64 {
	return (cents*int64(bps) + maxBps/2) / maxBps
}

// SplitFee splits gross into the platform fee and the provider's net amount.
// Both are computed in whole cents so fee + net equals gross exactly at two decimals.
func SplitFee(gross float64, feeRateBps int) (fee, net float64) {
	cents := toCents(gross)
	feeCents := share(cents, feeRateBps)
	return fromCents(feeCents), fromCents(cents - feeCents)
}

// RefundPenalty is the provider-side charge on a refund: 10% of gross.
func RefundPenalty(gross float64) float64 {
	return fromCents(share(toCents(gross), RefundPenaltyBps))
}

// CancellationPenalty is the provider-side charge when an accepted job is cancelled.
func CancellationPenalty(gross float64, bps int) float64 {
	return fromCents(share(toCents(gross), bps))
}

func round2(v float64) float64 {
	return fromCents(toCents(v))
}
