package report

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NA is shown for any value the engine did not provide
const NA = "N/A"

// FormatMoney renders a VND amount rounded to the dong with thousands separators
func FormatMoney(v float64) string {
	return FormatNumber(v, 0) + " VND"
}

// FormatMoneyPtr is FormatMoney for optional values
func FormatMoneyPtr(v *float64) string {
	if !finite(v) {
		return NA
	}
	return FormatMoney(*v)
}

// FormatBillions renders a large VND amount in billions
func FormatBillions(v *float64) string {
	if !finite(v) {
		return NA
	}
	return FormatNumber(*v/1e9, 2) + " bn VND"
}

// FormatNumber rounds to places and groups thousands with commas
func FormatNumber(v float64, places int32) string {
	s := decimal.NewFromFloat(v).Round(places).StringFixed(places)
	return groupThousands(s)
}

// FormatCount renders share counts and other integers
func FormatCount(v *float64) string {
	if !finite(v) {
		return NA
	}
	return FormatNumber(*v, 0)
}

// FormatRatio renders a multiple with two decimals
func FormatRatio(v *float64) string {
	if !finite(v) {
		return NA
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

// FormatPercent renders a percentage with two decimals
func FormatPercent(v *float64) string {
	if !finite(v) {
		return NA
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + "%"
}

// FormatSignedPercent always carries a sign for non-zero values
func FormatSignedPercent(v *float64) string {
	if !finite(v) {
		return NA
	}
	d := decimal.NewFromFloat(*v).Round(2)
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
