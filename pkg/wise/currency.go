package wise

import (
	"strings"

	apperrors "sirius/pkg/errors"
)

// Currency is an ISO 4217 code supported for Wise balances
type Currency string

const (
	AED Currency = "AED"
	AUD Currency = "AUD"
	BDT Currency = "BDT"
	BGN Currency = "BGN"
	CAD Currency = "CAD"
	CHF Currency = "CHF"
	CLP Currency = "CLP"
	CNY Currency = "CNY"
	CRC Currency = "CRC"
	CZK Currency = "CZK"
	DKK Currency = "DKK"
	EGP Currency = "EGP"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	GEL Currency = "GEL"
	HKD Currency = "HKD"
	HUF Currency = "HUF"
	IDR Currency = "IDR"
	ILS Currency = "ILS"
	INR Currency = "INR"
	JPY Currency = "JPY"
	KES Currency = "KES"
	KRW Currency = "KRW"
	LKR Currency = "LKR"
	MAD Currency = "MAD"
	MXN Currency = "MXN"
	MYR Currency = "MYR"
	NGN Currency = "NGN"
	NOK Currency = "NOK"
	NPR Currency = "NPR"
	NZD Currency = "NZD"
	PHP Currency = "PHP"
	PKR Currency = "PKR"
	PLN Currency = "PLN"
	RON Currency = "RON"
	SEK Currency = "SEK"
	SGD Currency = "SGD"
	THB Currency = "THB"
	TRY Currency = "TRY"
	TZS Currency = "TZS"
	UAH Currency = "UAH"
	UGX Currency = "UGX"
	USD Currency = "USD"
	UYU Currency = "UYU"
	VND Currency = "VND"
	XOF Currency = "XOF"
	ZAR Currency = "ZAR"
)

var currencies = map[Currency]struct{}{
	AED: {}, AUD: {}, BDT: {}, BGN: {}, CAD: {}, CHF: {}, CLP: {}, CNY: {}, CRC: {}, CZK: {},
	DKK: {}, EGP: {}, EUR: {}, GBP: {}, GEL: {}, HKD: {}, HUF: {}, IDR: {}, ILS: {}, INR: {},
	JPY: {}, KES: {}, KRW: {}, LKR: {}, MAD: {}, MXN: {}, MYR: {}, NGN: {}, NOK: {}, NPR: {},
	NZD: {}, PHP: {}, PKR: {}, PLN: {}, RON: {}, SEK: {}, SGD: {}, THB: {}, TRY: {}, TZS: {},
	UAH: {}, UGX: {}, USD: {}, UYU: {}, VND: {}, XOF: {}, ZAR: {},
}

// ParseCurrency accepts a code in any letter case
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := currencies[c]; !ok {
		return "", apperrors.NewNotFound("currency", code)
	}
	return c, nil
}

// IsValid reports whether c is a supported code
func (c Currency) IsValid() bool {
	_, ok := currencies[c]
	return ok
}
