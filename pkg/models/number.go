package models

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// maxExponent bounds the exponent of a parsed literal so "1e999999999" cannot expand into a
// gigabyte of digits.
const maxExponent = 1000

// ParseNumber reads a JSON number literal exactly. Integers of any size keep every digit.
func ParseNumber(text string) (Value, error) {
	canonical, f, err := canonicalNumber(text)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: KindNumber, n: f, num: canonical}, nil
}

// canonicalNumber renders a decimal literal as plain decimal text with no exponent, no
// trailing fraction zeros and no negative zero, along with its nearest float64.
func canonicalNumber(text string) (string, float64, error) {
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		exp, err := strconv.Atoi(text[i+1:])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return "", 0, fmt.Errorf("number %q is out of range", text)
		}
	}

	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return "", 0, fmt.Errorf("invalid number %q", text)
	}
	f, _ := r.Float64()
	return ratText(r), f, nil
}

func ratText(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(decimalPlaces(r.Denom()))
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// decimalPlaces is the fraction length needed to write 1/d exactly. Denominators of decimal
// and binary literals only hold factors 2 and 5.
func decimalPlaces(d *big.Int) int {
	count := func(factor int64) int {
		n := new(big.Int).Set(d)
		f := big.NewInt(factor)
		rem := new(big.Int)
		places := 0
		for {
			q, m := new(big.Int).QuoRem(n, f, rem)
			if m.Sign() != 0 {
				return places
			}
			n = q
			places++
		}
	}
	return max(count(2), count(5))
}

// FormatNumber is the canonical text of a float64, the same text ParseNumber gives for the
// float's shortest literal. NaN and infinities have no canonical form and print as Go does.
func FormatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	canonical, _, err := canonicalNumber(strconv.FormatFloat(n, 'g', -1, 64))
	if err != nil {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return canonical
}
