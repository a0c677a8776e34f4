package upstream

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// FirstNonEmpty は空白のみでない最初の値をトリムして返す。
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Rating は0〜10スケールの評価値を返す。NaN・負値・0はnil、10超は10に丸める。
func Rating(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	if v > 10 {
		v = 10
	}
	return &v
}

// RatingFromPercent は0〜100スケールの値を10で割り、最も近い整数に丸める。
func RatingFromPercent(v int) *float64 {
	if v <= 0 {
		return nil
	}
	return Rating(math.Round(float64(v) / 10))
}

// YearIn は文字列中に現れる最初の4桁の西暦を返す。
func YearIn(s string) *int {
	m := yearPattern.FindString(s)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &y
}

// Year は正の値のみを年として扱う。
func Year(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
