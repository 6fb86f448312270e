// Package indicators derives the three ratio indicators from mapped fields.
//
// Division policy: a zero, negative or absent denominator yields the absent
// sentinel, not zero and not an error. A zero denominator is a data-quality
// signal the rule engine consumes, never a computation failure. Negative
// mapped volumes also yield absent, so every indicator on a finalized record
// is a fraction in [0, inf); values above 1 are meaningful
// (over-concentration) and are not clamped.
package indicators

import (
	"log/slog"

	"fidcetl/pkg/contracts/domain"
)

// Calculator computes indicators for raw records.
type Calculator struct {
	logger *slog.Logger
}

// New creates a calculator.
func New(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// Apply returns the record augmented with its indicator fields. The input
// is not mutated.
func (c *Calculator) Apply(rec domain.FundRecord) domain.FundRecord {
	rec.Indicators = domain.Indicators{
		NonperformingTotal: nonperformingTotal(&rec),
	}
	rec.Indicators.NPLRatio = ratio(rec.Indicators.NonperformingTotal, rec.AcquiredCredits)
	rec.Indicators.LiquidityRatio = ratio(rec.CashHoldings, rec.TotalAssets)
	rec.Indicators.ConcentrationRatio = ratio(largestExposure(&rec), rec.AcquiredCredits)
	return rec
}

// ratio divides numerator by denominator. Ratios are defined only for a
// nonnegative numerator over a strictly positive denominator; an absent
// side, a negative volume or a zero denominator all yield absent. A
// finalized record never carries a negative indicator.
func ratio(num, den domain.Amount) domain.Amount {
	if !num.Valid || !den.Valid || num.Value < 0 || den.Value <= 0 {
		return domain.Absent
	}
	return domain.AmountOf(num.Value / den.Value)
}

// nonperformingTotal consolidates the defaulted volume: the larger of the
// existing-credit and receivables defaulted volumes, absent only when both
// are absent.
func nonperformingTotal(rec *domain.FundRecord) domain.Amount {
	a, b := rec.CreditsDefaulted, rec.ReceivablesDefaulted
	switch {
	case a.Valid && b.Valid:
		if b.Value > a.Value {
			return b
		}
		return a
	case a.Valid:
		return a
	case b.Valid:
		return b
	default:
		return domain.Absent
	}
}

// largestExposure is the biggest single portfolio-segmentation exposure.
// Segment sum rows are excluded; only reported leaves count.
func largestExposure(rec *domain.FundRecord) domain.Amount {
	largest := domain.Absent
	for _, f := range domain.Schema() {
		if f.Group != "segmentation" {
			continue
		}
		v := f.Amount(rec)
		if !v.Valid {
			continue
		}
		if !largest.Valid || v.Value > largest.Value {
			largest = v
		}
	}
	return largest
}
