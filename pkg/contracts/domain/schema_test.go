package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	t.Run("zero value is absent", func(t *testing.T) {
		var a Amount
		assert.False(t, a.Valid)
		assert.False(t, a.IsZero())
		assert.False(t, a.Positive())
		assert.Equal(t, "", a.String())
	})

	t.Run("reported zero is not absent", func(t *testing.T) {
		a := AmountOf(0)
		assert.True(t, a.IsZero())
		assert.False(t, a.Positive())
		assert.Equal(t, "0", a.String())
	})

	t.Run("AbsDelta", func(t *testing.T) {
		tests := []struct {
			name string
			a, b Amount
			want Amount
		}{
			{"both present", AmountOf(10), AmountOf(4), AmountOf(6)},
			{"negative direction", AmountOf(4), AmountOf(10), AmountOf(6)},
			{"left absent", Absent, AmountOf(10), Absent},
			{"right absent", AmountOf(10), Absent, Absent},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, tt.a.AbsDelta(tt.b))
			})
		}
	})

	t.Run("Equal with tolerance", func(t *testing.T) {
		assert.True(t, AmountOf(1.000).Equal(AmountOf(1.004), 0.005))
		assert.False(t, AmountOf(1.000).Equal(AmountOf(1.006), 0.005))
		assert.True(t, Absent.Equal(Absent, 0.005))
		assert.False(t, Absent.Equal(AmountOf(0), 0.005))
	})

	t.Run("JSON round trip", func(t *testing.T) {
		data, err := json.Marshal(AmountOf(12.5))
		require.NoError(t, err)
		assert.Equal(t, "12.5", string(data))

		data, err = json.Marshal(Absent)
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))

		var a Amount
		require.NoError(t, json.Unmarshal([]byte("null"), &a))
		assert.False(t, a.Valid)
		require.NoError(t, json.Unmarshal([]byte("42"), &a))
		assert.Equal(t, AmountOf(42), a)
	})
}

func TestSchema(t *testing.T) {
	fields := Schema()

	t.Run("covers the full field set", func(t *testing.T) {
		// 7 identification strings + 84 numeric leaves.
		assert.Len(t, fields, 91)
	})

	t.Run("identification comes first and is typed string", func(t *testing.T) {
		require.NotEmpty(t, fields)
		assert.Equal(t, "fund_cnpj", fields[0].Name)
		assert.Equal(t, KindString, fields[0].Kind)
		assert.True(t, fields[0].Required)
	})

	t.Run("only identification key fields are required", func(t *testing.T) {
		for _, f := range fields {
			if f.Required {
				assert.Equal(t, "identification", f.Group, "field %s", f.Name)
			}
		}
	})

	t.Run("paths are unique", func(t *testing.T) {
		seen := map[string]string{}
		for _, f := range fields {
			prev, dup := seen[f.Path]
			assert.False(t, dup, "path %s shared by %s and %s", f.Path, prev, f.Name)
			seen[f.Path] = f.Name
		}
	})

	t.Run("accessors read and write struct fields", func(t *testing.T) {
		var rec FundRecord
		for _, f := range fields {
			switch f.Kind {
			case KindAmount:
				f.SetAmount(&rec, AmountOf(7))
				assert.Equal(t, AmountOf(7), f.Amount(&rec), "field %s", f.Name)
			case KindString:
				f.SetString(&rec, "x")
				assert.Equal(t, "x", f.String(&rec), "field %s", f.Name)
			}
		}
		assert.Equal(t, AmountOf(7), rec.TotalAssets)
		assert.Equal(t, "x", rec.FundCNPJ)
	})

	t.Run("segmentation leaves exclude the sum rows", func(t *testing.T) {
		leaves := 0
		for _, f := range fields {
			if f.Group == "segmentation" {
				leaves++
				assert.NotContains(t, f.Name, "_total")
			}
		}
		assert.Equal(t, 28, leaves)
	})
}

func TestFundID(t *testing.T) {
	id := FundID{CNPJ: "51199121000145", Name: "FIDC Alfa"}
	assert.Equal(t, "51199121000145", id.Key())

	id.Class = "SR2"
	assert.Equal(t, "51199121000145/SR2", id.Key())
}

func TestQAFlagsAny(t *testing.T) {
	assert.False(t, QAFlags{}.Any())
	assert.True(t, QAFlags{NoPosition: true}.Any())
}
