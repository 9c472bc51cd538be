// Package numfmt holds the total numeric coercion and display helpers used by
// the aggregation and rendering layers. None of the functions panic or return
// errors: malformed input maps to zero.
package numfmt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ToNumber coerces v to a finite float64. Strings may carry thousands
// separators; "-", "" and anything unparsable yield 0.
func ToNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		return ToNumber(string(n))
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" || s == "-" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case interface{ Float() float64 }:
		f = n.Float()
	case fmt.Stringer:
		return ToNumber(n.String())
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NonNegative is ToNumber floored at zero.
func NonNegative(v any) float64 {
	return math.Max(0, ToNumber(v))
}

// ClampPercent coerces v and clamps it to [0, 100].
func ClampPercent(v any) float64 {
	f := ToNumber(v)
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return f
}

// FormatInteger renders v rounded to an integer with locale grouping, e.g. "12,345".
func FormatInteger(v any) string {
	r := math.Round(ToNumber(v))
	if math.Abs(r) < 1<<62 {
		return printer.Sprintf("%d", int64(r))
	}
	// Beyond int64; group the decimal digits directly.
	digits := strconv.FormatFloat(math.Abs(r), 'f', 0, 64)
	var b strings.Builder
	if r < 0 {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// FormatPercent renders a clamped percentage with one decimal.
func FormatPercent(v any) string {
	return strconv.FormatFloat(ClampPercent(v), 'f', 1, 64) + "%"
}

var compactUnits = []struct {
	size   float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// FormatHoursCompact abbreviates large magnitudes for badges: 950 -> "950",
// 1234 -> "1.2K", 12345 -> "12K", 1234567 -> "1.2M". Values are rounded to
// two significant digits unless the integer part is longer.
func FormatHoursCompact(v any) string {
	f := ToNumber(v)
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	// 999.5 rounds to 1,000 and belongs to the thousands.
	if f < 1e3 && math.Round(f) >= 1e3 {
		f = 1e3
	}
	for i, unit := range compactUnits {
		if f < unit.size {
			continue
		}
		scaled := f / unit.size
		text := compactDigits(scaled)
		// 999,950 rounds up to "1000K"; promote to the next unit instead.
		if text == "1000" && i > 0 {
			text = "1"
			unit = compactUnits[i-1]
		}
		return sign + text + unit.suffix
	}
	return sign + FormatInteger(f)
}

func compactDigits(scaled float64) string {
	if scaled < 10 {
		rounded := math.Round(scaled*10) / 10
		if rounded < 10 {
			return strings.TrimSuffix(strconv.FormatFloat(rounded, 'f', 1, 64), ".0")
		}
	}
	return strconv.FormatFloat(math.Round(scaled), 'f', 0, 64)
}
