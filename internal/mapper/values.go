package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"fidcetl/pkg/contracts/domain"
)

// ParseDecimal converts a filing numeric string into an Amount. It accepts
// both Brazilian ("1.234.567,89") and plain ("1234567.89") formats. A lone
// dot is ambiguous; exactly three trailing digits behind a short leading
// group read as a grouped integer ("1.000" is one thousand), anything else
// as a decimal. Empty strings and the bare dash placeholder mean the field
// was not reported and map to absent. Anything else unparsable is an error:
// the caller degrades the field to absent and records a warning instead of
// truncating silently.
func ParseDecimal(raw string) (domain.Amount, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return domain.Absent, nil
	}

	comma := strings.Count(s, ",")
	dot := strings.Count(s, ".")

	var normalized string
	switch {
	case comma > 1:
		return domain.Absent, fmt.Errorf("malformed decimal %q", raw)
	case comma == 1 && dot >= 1:
		if strings.LastIndex(s, ",") < strings.LastIndex(s, ".") {
			// "1,234,567.89" style is not a filing format.
			return domain.Absent, fmt.Errorf("malformed decimal %q", raw)
		}
		normalized = strings.ReplaceAll(s, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
	case comma == 1:
		normalized = strings.Replace(s, ",", ".", 1)
	case dot > 1:
		// Multiple dots can only be thousands separators.
		normalized = strings.ReplaceAll(s, ".", "")
	case dot == 1 && looksLikeThousandsGroup(s):
		// "1.000" is a grouped integer in a pt-BR filing, not 1.0.
		normalized = strings.ReplaceAll(s, ".", "")
	default:
		normalized = s
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return domain.Absent, fmt.Errorf("malformed decimal %q", raw)
	}
	return domain.AmountOf(v), nil
}

// looksLikeThousandsGroup reports whether a lone dot separates thousands
// rather than marking a decimal: exactly three digits behind a 1-3 digit
// leading group that does not start with zero. "1.000" groups, "1.5",
// "0.625" and "1500.125" do not.
func looksLikeThousandsGroup(s string) bool {
	head, tail, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	if len(tail) != 3 || !allDigits(head) || !allDigits(tail) {
		return false
	}
	return len(head) >= 1 && len(head) <= 3 && head[0] != '0'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CleanCNPJ normalizes a registration code: strips everything that is not a
// digit and left-pads to 14 digits. "51.199.121/0001-45" and
// "51199121000145" normalize identically.
func CleanCNPJ(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) > 14 {
		digits = digits[:14]
	}
	for len(digits) < 14 {
		digits = "0" + digits
	}
	return digits
}
