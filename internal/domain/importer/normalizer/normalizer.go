// Package normalizer converts raw spreadsheet cell text into typed canonical
// values. Every function here is total: unparseable input degrades to a zero
// value or a documented default, never an error.
package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical frequency values.
const (
	FrequencyWeekly      = "weekly"
	FrequencyFortnightly = "fortnightly"
	FrequencyMonthly     = "monthly"
	FrequencyQuarterly   = "quarterly"
	FrequencyAnnually    = "annually"
)

// Canonical debt types. Unknown inputs fall back to DebtTypeOther because
// debt type is required and a safe default beats a spurious validation
// failure.
const (
	DebtTypeCreditCard = "credit_card"
	DebtTypeLoan       = "loan"
	DebtTypeMortgage   = "mortgage"
	DebtTypeStoreCard  = "store_card"
	DebtTypeOverdraft  = "overdraft"
	DebtTypeOther      = "other"
)

var frequencySynonyms = map[string]string{
	"weekly":          FrequencyWeekly,
	"week":            FrequencyWeekly,
	"every week":      FrequencyWeekly,
	"fortnightly":     FrequencyFortnightly,
	"bi-weekly":       FrequencyFortnightly,
	"biweekly":        FrequencyFortnightly,
	"every 2 weeks":   FrequencyFortnightly,
	"every two weeks": FrequencyFortnightly,
	"monthly":         FrequencyMonthly,
	"month":           FrequencyMonthly,
	"every month":     FrequencyMonthly,
	"quarterly":       FrequencyQuarterly,
	"every 3 months":  FrequencyQuarterly,
	"annually":        FrequencyAnnually,
	"annual":          FrequencyAnnually,
	"yearly":          FrequencyAnnually,
	"year":            FrequencyAnnually,
	"every year":      FrequencyAnnually,
}

var debtTypeSynonyms = map[string]string{
	"credit card":   DebtTypeCreditCard,
	"creditcard":    DebtTypeCreditCard,
	"cc":            DebtTypeCreditCard,
	"card":          DebtTypeCreditCard,
	"loan":          DebtTypeLoan,
	"personal loan": DebtTypeLoan,
	"car loan":      DebtTypeLoan,
	"student loan":  DebtTypeLoan,
	"finance":       DebtTypeLoan,
	"mortgage":      DebtTypeMortgage,
	"home loan":     DebtTypeMortgage,
	"store card":    DebtTypeStoreCard,
	"storecard":     DebtTypeStoreCard,
	"catalogue":     DebtTypeStoreCard,
	"overdraft":     DebtTypeOverdraft,
	"other":         DebtTypeOther,
}

var boolSynonyms = map[string]bool{
	"yes":   true,
	"y":     true,
	"true":  true,
	"1":     true,
	"on":    true,
	"no":    false,
	"n":     false,
	"false": false,
	"0":     false,
	"off":   false,
}

// Amount parses a currency amount, stripping symbols, thousands separators
// and whitespace, and rounds to 2 decimal places. Returns nil when the input
// is empty or unparseable.
func Amount(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '£', r == '$', r == '€':
			// dropped
		default:
			return nil
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return nil
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Round(2).Float64()
	return &f
}

// The serial-number epoch used by Excel and Lotus 1-2-3. Using 30 December
// 1899 absorbs the historical 1900 leap-year bug.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Largest serial we accept, 31 December 9999.
const maxSerial = 2958465

// Date parses a cell into canonical YYYY-MM-DD. It accepts an Excel serial
// number, ISO dates, and UK day-first dates with /, - or . separators and 2-
// or 4-digit years (2-digit years are assumed 2000+). Returns "" when the
// value does not parse. Idempotent on its own output.
func Date(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if serial, err := strconv.Atoi(s); err == nil {
		if serial < 1 || serial > maxSerial {
			return ""
		}
		return serialEpoch.AddDate(0, 0, serial).Format("2006-01-02")
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02")
	}

	return parseDayFirst(s)
}

func parseDayFirst(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) != 3 {
		return ""
	}

	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}

	if len(parts[2]) == 2 {
		year += 2000
	}
	if year < 1900 || year > 9999 || month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != time.Month(month) {
		// Overflowed an invalid calendar date such as 31/02.
		return ""
	}
	return t.Format("2006-01-02")
}

// DueDay extracts a day-of-month. A value that parses as a date yields its
// day; otherwise a bare integer in [1,31] is accepted. Returns 0 when
// neither applies.
func DueDay(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	// A bare day number wins over date parsing: in a due-day column "5"
	// means the 5th, not Excel serial 5. Ordinal suffixes such as "1st"
	// or "15th" are tolerated. Out-of-range integers are rejected rather
	// than reinterpreted as serial dates.
	trimmed := strings.TrimRight(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	if day, err := strconv.Atoi(trimmed); err == nil {
		if day >= 1 && day <= 31 {
			return day
		}
		if day < 100 {
			return 0
		}
	}

	if iso := Date(s); iso != "" {
		t, err := time.Parse("2006-01-02", iso)
		if err == nil {
			return t.Day()
		}
	}
	return 0
}

// Frequency maps a cell to a canonical frequency, or "" when unknown.
func Frequency(raw string) string {
	return frequencySynonyms[normalizeToken(raw)]
}

// DebtType maps a cell to a canonical debt type. Unknown non-empty values
// fall back to DebtTypeOther; empty input yields "".
func DebtType(raw string) string {
	token := normalizeToken(raw)
	if token == "" {
		return ""
	}
	if canonical, ok := debtTypeSynonyms[token]; ok {
		return canonical
	}
	return DebtTypeOther
}

// Bool parses common boolean spellings. The second return is false when the
// value is not recognized.
func Bool(raw string) (value, ok bool) {
	value, ok = boolSynonyms[normalizeToken(raw)]
	return value, ok
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
