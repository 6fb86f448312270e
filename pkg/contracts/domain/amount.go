package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Amount is a monetary or ratio value extracted from a filing. The zero
// value is "absent": a field the filing did not report. Absent is distinct
// from a reported zero, and the QA rules depend on that distinction.
type Amount struct {
	Value float64
	Valid bool
}

// AmountOf returns a present Amount with the given value.
func AmountOf(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// Absent is the explicit "no data" sentinel.
var Absent = Amount{}

// IsZero reports whether the amount was reported and equals zero.
func (a Amount) IsZero() bool {
	return a.Valid && a.Value == 0
}

// Positive reports whether the amount was reported and is strictly positive.
func (a Amount) Positive() bool {
	return a.Valid && a.Value > 0
}

// Or returns the amount's value, or fallback when absent.
func (a Amount) Or(fallback float64) float64 {
	if !a.Valid {
		return fallback
	}
	return a.Value
}

// AbsDelta returns |a - b| when both sides are present, absent otherwise.
func (a Amount) AbsDelta(b Amount) Amount {
	if !a.Valid || !b.Valid {
		return Absent
	}
	return AmountOf(math.Abs(a.Value - b.Value))
}

// Equal reports whether two amounts agree: both absent, or both present
// with |a-b| <= tolerance.
func (a Amount) Equal(b Amount, tolerance float64) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return math.Abs(a.Value-b.Value) <= tolerance
}

// String formats the value with minimal digits, or "" when absent.
func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

// MarshalJSON encodes absent amounts as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

// UnmarshalJSON decodes null as absent.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Absent
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = AmountOf(v)
	return nil
}
