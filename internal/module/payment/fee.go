package payment

import (
	"github.com/civic-os/payments/internal/shared/config"
	"github.com/shopspring/decimal"
)

// FeeCalculator computes the processing fee added on top of a base amount so
// that, after the provider deducts its percentage and flat fee from the total
// charged, the recipient still receives the full base amount.
//
// Charging base + base*p + F under-collects: the provider's percentage is
// taken from the grossed-up total, not the base. The correct gross-up is
//
//	total = (base + F) / (1 - p)
//	fee   = total - base
//
// The fee is rounded up to the nearest minor unit, so the recipient never
// receives less than base and the payer overpays by at most one minor unit.
type FeeCalculator struct {
	enabled    bool
	percent    decimal.Decimal // fraction, e.g. 0.029
	flatCents  decimal.Decimal
	refundable bool
}

// NewFeeCalculator creates a fee calculator from the configured policy.
func NewFeeCalculator(cfg *config.FeeConfig) *FeeCalculator {
	return &FeeCalculator{
		enabled:    cfg.Enabled,
		percent:    decimal.NewFromFloat(cfg.Percent).Div(decimal.NewFromInt(100)),
		flatCents:  decimal.NewFromInt(cfg.FlatCents),
		refundable: cfg.Refundable,
	}
}

// CalculateFee returns the processing fee in minor currency units for the
// given base amount in minor units. Returns 0 when fees are disabled. A zero
// base still yields the grossed-up flat fee.
func (f *FeeCalculator) CalculateFee(baseMinorUnits int64) int64 {
	if !f.enabled {
		return 0
	}

	base := decimal.NewFromInt(baseMinorUnits)
	total := base.Add(f.flatCents).Div(decimal.NewFromInt(1).Sub(f.percent))
	fee := total.Ceil().Sub(base)
	return fee.IntPart()
}

// Enabled reports whether the fee policy is active.
func (f *FeeCalculator) Enabled() bool {
	return f.enabled
}

// PercentValue returns the configured percentage (e.g. 2.9 for 2.9%).
func (f *FeeCalculator) PercentValue() float64 {
	v, _ := f.percent.Mul(decimal.NewFromInt(100)).Float64()
	return v
}

// FlatCents returns the configured flat fee in minor units.
func (f *FeeCalculator) FlatCents() int64 {
	return f.flatCents.IntPart()
}

// Refundable reports whether fees are returned on refund.
func (f *FeeCalculator) Refundable() bool {
	return f.refundable
}
