package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fidcetl/pkg/contracts/domain"
)

const tolerance = 0.005

func TestAssetZeroFlag(t *testing.T) {
	e := New(tolerance, nil)

	tests := []struct {
		name   string
		assets domain.Amount
		want   bool
	}{
		{"reported zero raises", domain.AmountOf(0), true},
		{"positive does not raise", domain.AmountOf(100), false},
		{"absent does not raise", domain.Absent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.Apply(domain.FundRecord{TotalAssets: tt.assets})
			assert.Equal(t, tt.want, rec.Flags.AssetZero)
		})
	}
}

func TestDivergenceFlags(t *testing.T) {
	e := New(tolerance, nil)

	tests := []struct {
		name     string
		computed domain.Amount
		reported domain.Amount
		want     bool
	}{
		{"within tolerance", domain.AmountOf(0.100), domain.AmountOf(0.104), false},
		{"at tolerance boundary", domain.AmountOf(0.100), domain.AmountOf(0.105), false},
		{"beyond tolerance", domain.AmountOf(0.100), domain.AmountOf(0.106), true},
		{"computed absent", domain.Absent, domain.AmountOf(0.5), false},
		{"reported absent", domain.AmountOf(0.5), domain.Absent, false},
		{"both absent", domain.Absent, domain.Absent, false},
	}

	for _, tt := range tests {
		t.Run("liquidity/"+tt.name, func(t *testing.T) {
			rec := domain.FundRecord{ReportedLiquidityRatio: tt.reported}
			rec.Indicators.LiquidityRatio = tt.computed
			out := e.Apply(rec)
			assert.Equal(t, tt.want, out.Flags.LiquidityDivergence)
		})
		t.Run("npl/"+tt.name, func(t *testing.T) {
			rec := domain.FundRecord{ReportedNPLRatio: tt.reported}
			rec.Indicators.NPLRatio = tt.computed
			out := e.Apply(rec)
			assert.Equal(t, tt.want, out.Flags.NPLDivergence)
		})
	}
}

func TestEmptyPortfolioWithDefaultFlag(t *testing.T) {
	e := New(tolerance, nil)

	tests := []struct {
		name          string
		portfolio     domain.Amount
		nonperforming domain.Amount
		want          bool
	}{
		{"zero portfolio with defaults", domain.AmountOf(0), domain.AmountOf(100), true},
		{"zero portfolio zero defaults", domain.AmountOf(0), domain.AmountOf(0), false},
		{"zero portfolio absent defaults", domain.AmountOf(0), domain.Absent, false},
		{"positive portfolio with defaults", domain.AmountOf(500), domain.AmountOf(100), false},
		{"absent portfolio with defaults", domain.Absent, domain.AmountOf(100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := domain.FundRecord{AcquiredCredits: tt.portfolio}
			rec.Indicators.NonperformingTotal = tt.nonperforming
			out := e.Apply(rec)
			assert.Equal(t, tt.want, out.Flags.EmptyPortfolioWithDefault)
		})
	}
}

func TestNoPositionFlag(t *testing.T) {
	e := New(tolerance, nil)

	tests := []struct {
		name     string
		position domain.Amount
		assets   domain.Amount
		want     bool
	}{
		{"zero position with assets", domain.AmountOf(0), domain.AmountOf(100), true},
		{"absent position with assets", domain.Absent, domain.AmountOf(100), true},
		{"position held", domain.AmountOf(50), domain.AmountOf(100), false},
		{"zero position zero assets", domain.AmountOf(0), domain.AmountOf(0), false},
		{"zero position absent assets", domain.AmountOf(0), domain.Absent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Apply(domain.FundRecord{
				CreditPosition: tt.position,
				TotalAssets:    tt.assets,
			})
			assert.Equal(t, tt.want, out.Flags.NoPosition)
		})
	}
}

func TestApplyFinalizesAndFreezes(t *testing.T) {
	e := New(tolerance, nil)

	raw := domain.FundRecord{TotalAssets: domain.AmountOf(0)}
	out := e.Apply(raw)

	assert.True(t, out.Finalized)
	assert.False(t, raw.Finalized, "input must stay untouched")
	assert.True(t, out.Flags.AssetZero)
}

// The degenerate all-zero fund raises asset-zero but not the portfolio
// anomaly: a zero nonperforming volume is not "> 0".
func TestAllZeroFund(t *testing.T) {
	e := New(tolerance, nil)

	rec := domain.FundRecord{
		TotalAssets:      domain.AmountOf(0),
		AcquiredCredits:  domain.AmountOf(0),
		CreditsDefaulted: domain.AmountOf(0),
	}
	rec.Indicators.NonperformingTotal = domain.AmountOf(0)

	out := e.Apply(rec)
	assert.True(t, out.Flags.AssetZero)
	assert.False(t, out.Flags.EmptyPortfolioWithDefault)
	assert.False(t, out.Flags.NoPosition)
}

func TestIssues(t *testing.T) {
	flagged := domain.FundRecord{ID: domain.FundID{CNPJ: "1"}}
	flagged.Flags.AssetZero = true
	clean := domain.FundRecord{ID: domain.FundID{CNPJ: "2"}}

	issues := Issues([]domain.FundRecord{clean, flagged, clean})
	assert.Len(t, issues, 1)
	assert.Equal(t, "1", issues[0].ID.CNPJ)

	assert.Empty(t, Issues(nil))
}
