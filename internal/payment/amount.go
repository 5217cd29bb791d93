package payment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultAmount is charged when a trace carries no parseable price, in
// minor units of the default currency.
const DefaultAmount int64 = 100000

var currencyMarkers = []struct {
	re       *regexp.Regexp
	currency string
}{
	{regexp.MustCompile(`₹|(?i)\b(?:inr|rs\.?|rupees?)\b`), "inr"},
	{regexp.MustCompile(`\$|(?i)\b(?:usd|dollars?)\b`), "usd"},
	{regexp.MustCompile(`€|(?i)\b(?:eur|euros?)\b`), "eur"},
	{regexp.MustCompile(`¥|(?i)\b(?:jpy|yen)\b`), "jpy"},
}

// zeroDecimal currencies have no minor unit.
var zeroDecimal = map[string]bool{"jpy": true}

var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseAmount converts a display price such as "₹4,350" or "$650.50" into
// minor units and a lower-case ISO currency. fallback is used when the
// price names no currency.
func ParseAmount(price, fallback string) (int64, string, bool) {
	m := amountPattern.FindString(strings.ReplaceAll(price, ",", ""))
	if m == "" {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, "", false
	}

	currency := strings.ToLower(fallback)
	for _, cm := range currencyMarkers {
		if cm.re.MatchString(price) {
			currency = cm.currency
			break
		}
	}
	if zeroDecimal[currency] {
		return int64(math.Round(v)), currency, true
	}
	return int64(math.Round(v * 100)), currency, true
}

// FormatAmount renders minor units for display, e.g. 435000 inr -> "INR 4350.00".
func FormatAmount(amount int64, currency string) string {
	code := strings.ToUpper(currency)
	if zeroDecimal[strings.ToLower(currency)] {
		return code + " " + strconv.FormatInt(amount, 10)
	}
	return code + " " + strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
}
