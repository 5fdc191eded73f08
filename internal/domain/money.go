package domain

import (
	"math"
	"strconv"
	"strings"
)

// ParsePrice — разбор строки цены ("$12.99") в число. Отбрасывает всё,
// кроме цифр и точки; нечитаемый ввод даёт 0, ошибок не бывает.
func ParsePrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatUSD — каноничная строка цены в долларах.
func FormatUSD(amount float64) string {
	return "$" + strconv.FormatFloat(Round2(amount), 'f', 2, 64)
}

// Round2 — округление до двух знаков, половина — от нуля.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
