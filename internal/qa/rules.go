// Package qa evaluates the five consistency flags on records that already
// carry indicators. Rules are independent: each reads only mapped fields
// and indicators, never another rule's output, so evaluation order does not
// matter. Absence is never treated as zero — a fund that did not report
// total assets is not a fund with zero assets.
package qa

import (
	"log/slog"

	"fidcetl/pkg/contracts/domain"
)

// Engine evaluates QA rules with a configurable divergence tolerance.
type Engine struct {
	tolerance float64
	logger    *slog.Logger
}

// New creates a rule engine. Tolerance is the divergence threshold as a
// fraction (0.005 = 0.5 percentage points).
func New(tolerance float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tolerance: tolerance, logger: logger}
}

// rule is one consistency check over a frozen view of the record.
type rule struct {
	name string
	eval func(r *domain.FundRecord, tolerance float64) bool
	set  func(f *domain.QAFlags, v bool)
}

var rules = []rule{
	{
		// Total assets reported as exactly zero. Absent does not count.
		name: "asset_zero",
		eval: func(r *domain.FundRecord, _ float64) bool {
			return r.TotalAssets.IsZero()
		},
		set: func(f *domain.QAFlags, v bool) { f.AssetZero = v },
	},
	{
		// Computed and reported liquidity disagree beyond tolerance. No
		// claim is made when either side is absent.
		name: "liquidity_divergence",
		eval: func(r *domain.FundRecord, tolerance float64) bool {
			return diverges(r.Indicators.LiquidityRatio, r.ReportedLiquidityRatio, tolerance)
		},
		set: func(f *domain.QAFlags, v bool) { f.LiquidityDivergence = v },
	},
	{
		// Empty gross portfolio yet strictly positive defaulted volume.
		name: "empty_portfolio_with_default",
		eval: func(r *domain.FundRecord, _ float64) bool {
			return r.AcquiredCredits.IsZero() && r.Indicators.NonperformingTotal.Positive()
		},
		set: func(f *domain.QAFlags, v bool) { f.EmptyPortfolioWithDefault = v },
	},
	{
		name: "npl_divergence",
		eval: func(r *domain.FundRecord, tolerance float64) bool {
			return diverges(r.Indicators.NPLRatio, r.ReportedNPLRatio, tolerance)
		},
		set: func(f *domain.QAFlags, v bool) { f.NPLDivergence = v },
	},
	{
		// Fund holds strictly positive assets but no credit position. This
		// is the one rule where an unreported value reads as zero: not
		// reporting a position and reporting none raise the same flag.
		name: "no_position",
		eval: func(r *domain.FundRecord, _ float64) bool {
			return r.CreditPosition.Or(0) == 0 && r.TotalAssets.Positive()
		},
		set: func(f *domain.QAFlags, v bool) { f.NoPosition = v },
	},
}

// diverges reports |computed - reported| > tolerance when both sides are
// present; absent on either side means no divergence claim.
func diverges(computed, reported domain.Amount, tolerance float64) bool {
	delta := computed.AbsDelta(reported)
	return delta.Valid && delta.Value > tolerance
}

// Apply evaluates all five rules against a frozen copy of the record and
// returns the record finalized with explicit flag values. Every flag is
// always set; there is no "not evaluated" state.
func (e *Engine) Apply(rec domain.FundRecord) domain.FundRecord {
	frozen := rec
	var flags domain.QAFlags
	for _, r := range rules {
		r.set(&flags, r.eval(&frozen, e.tolerance))
	}
	rec.Flags = flags
	rec.Finalized = true

	if flags.Any() {
		e.logger.Debug("qa flags raised",
			slog.String("key", rec.Key()),
			slog.Bool("asset_zero", flags.AssetZero),
			slog.Bool("liquidity_divergence", flags.LiquidityDivergence),
			slog.Bool("empty_portfolio_with_default", flags.EmptyPortfolioWithDefault),
			slog.Bool("npl_divergence", flags.NPLDivergence),
			slog.Bool("no_position", flags.NoPosition))
	}
	return rec
}

// Issues filters a snapshot down to the records with at least one raised
// flag, preserving order.
func Issues(records []domain.FundRecord) []domain.FundRecord {
	var out []domain.FundRecord
	for _, r := range records {
		if r.Flags.Any() {
			out = append(out, r)
		}
	}
	return out
}
