package entitlement

import (
	"strconv"
	"strings"
)

// DurationSpec は許可期間の指定をパースした結果を表す。
// Permanentがtrueの場合、Daysは意味を持たない。
type DurationSpec struct {
	Permanent bool
	Days      int
	// Fallback は入力を解釈できずデフォルト（30日）に落ちたことを示す。
	// 呼び出し元はログに残すために参照する。
	Fallback bool
}

// defaultDays は解釈できない期間指定のフォールバック日数。
// 暦演算は行わず、月=30日、年=365日の近似を意図的に採用する。
const defaultDays = 30

// 固定語彙のプリセット。プラン略称と期間指定の両方で使われる。
var presetDays = map[string]int{
	"1w": 7,
	"1m": 30,
	"3m": 90,
	"6m": 180,
	"1y": 365,
}

// ParseDurationSpec は期間指定文字列をパースする。
// 語彙: "life"/"perm"（永久）、"1w"/"1m"/"3m"/"6m"/"1y"（プリセット）、
// "<n>d"/"<n>m"/"<n>y"（日/月/年。月=30日、年=365日）、"<n>"（日数）。
// 解釈できない入力は30日にフォールバックし、Fallback=trueを立てて返す。
// この関数は全域的であり、どの入力に対してもエラーを返さない。
func ParseDurationSpec(raw string) DurationSpec {
	spec := strings.ToLower(strings.TrimSpace(raw))

	switch spec {
	case "life", "perm", "permanent", "lifetime":
		return DurationSpec{Permanent: true}
	}

	if days, ok := presetDays[spec]; ok {
		return DurationSpec{Days: days}
	}

	if spec != "" {
		unit := spec[len(spec)-1]
		digits := spec
		multiplier := 0
		switch unit {
		case 'd':
			digits, multiplier = spec[:len(spec)-1], 1
		case 'm':
			digits, multiplier = spec[:len(spec)-1], 30
		case 'y':
			digits, multiplier = spec[:len(spec)-1], 365
		default:
			multiplier = 1
		}
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			return DurationSpec{Days: n * multiplier}
		}
	}

	return DurationSpec{Days: defaultDays, Fallback: true}
}
