package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseMinorUnits extracts a non-negative amount from loosely formatted
// input ("$997", "1 997,50", "997.00 USD") and returns it in minor units.
// ok is false when nothing numeric could be read; the amount is then 0.
func ParseMinorUnits(raw string) (amount int64, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}

	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		// 1,997.50 style: commas group thousands
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		i := strings.LastIndex(s, ",")
		if tail := len(s) - i - 1; tail >= 1 && tail <= 2 && strings.Count(s, ",") == 1 {
			s = s[:i] + "." + s[i+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	whole, frac, _ := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return 0, false
	}
	if whole == "" {
		whole = "0"
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || major > math.MaxInt64/100-1 {
		return 0, false
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, false
	}
	return major*100 + minor, true
}

// FormatMajor renders minor units as a two-decimal major amount ("997.00").
func FormatMajor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// MajorNumber is FormatMajor as a JSON number.
func MajorNumber(minor int64) json.Number {
	return json.Number(FormatMajor(minor))
}
