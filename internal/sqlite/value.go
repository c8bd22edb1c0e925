package sqlite

import (
	"fmt"
	"strconv"
	"strings"
)

// NoPrecision disables float rounding in EncodeValue.
const NoPrecision = -1

// EncodeValue renders one scalar as a SQL literal. precision, when not
// NoPrecision, rounds reals to that many fractional digits and trims trailing
// zeros so equal values always serialize identically.
func EncodeValue(v any, precision int) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return encodeFloat(val, precision)
	case []byte:
		return fmt.Sprintf("X'%X'", val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return quoteText(val)
	default:
		return quoteText(fmt.Sprint(val))
	}
}

func encodeFloat(f float64, precision int) string {
	if precision < 0 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-" {
		return "0.0"
	}
	return s
}

// quoteText single-quotes s, doubling embedded quotes.
func quoteText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent double-quotes an identifier for use in generated statements.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
