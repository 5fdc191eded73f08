package domain

import "strconv"

// CurrencyInfo — валюта отображения цен. Rate — единиц валюты за 1 USD,
// у самого доллара курс всегда ровно 1.
type CurrencyInfo struct {
	Code   string  `json:"code"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
}

// DefaultCurrency — базовая валюта каталога.
func DefaultCurrency() CurrencyInfo {
	return CurrencyInfo{Code: "USD", Symbol: "$", Name: "US Dollar", Rate: 1}
}

// SupportedCurrencies — фиксированный каталог поддерживаемых валют.
// Курсы в каталоге номинальные, актуальный курс запрашивается при выборе.
func SupportedCurrencies() []CurrencyInfo {
	return []CurrencyInfo{
		{Code: "USD", Symbol: "$", Name: "US Dollar", Rate: 1},
		{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar", Rate: 1},
		{Code: "EUR", Symbol: "€", Name: "Euro", Rate: 1},
		{Code: "GBP", Symbol: "£", Name: "British Pound", Rate: 1},
		{Code: "AUD", Symbol: "A$", Name: "Australian Dollar", Rate: 1},
	}
}

// FindCurrency — валюта каталога по коду.
func FindCurrency(code string) (CurrencyInfo, bool) {
	for _, c := range SupportedCurrencies() {
		if c.Code == code {
			return c, true
		}
	}
	return CurrencyInfo{}, false
}

// CurrencyForCountry — код страны → код поддерживаемой валюты.
// Неизвестные страны получают USD.
func CurrencyForCountry(countryCode string) string {
	switch countryCode {
	case "CA":
		return "CAD"
	case "GB":
		return "GBP"
	case "AU":
		return "AUD"
	case "DE", "FR", "IT", "ES", "NL":
		return "EUR"
	default:
		return "USD"
	}
}

// FormatAmount — отображение уже сконвертированной суммы: евро
// пишется после суммы, остальные валюты — символ перед суммой.
func FormatAmount(c CurrencyInfo, amount float64) string {
	v := strconv.FormatFloat(Round2(amount), 'f', 2, 64)
	if c.Code == "EUR" {
		return v + c.Symbol
	}
	return c.Symbol + v
}
