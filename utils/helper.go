package utils

import (
	"database/sql"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DecimalFromAny converts whatever the ERP driver scanned into an exact
// decimal. Malformed values are classified as missing (zero, ok=false) rather
// than raising; a single bad record must never abort a batch.
func DecimalFromAny(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case []byte:
		return decimalFromString(string(t))
	case string:
		return decimalFromString(t)
	case sql.NullString:
		if !t.Valid {
			return decimal.Zero, false
		}
		return decimalFromString(t.String)
	case sql.NullFloat64:
		if !t.Valid {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t.Float64), true
	default:
		return decimal.Zero, false
	}
}

func decimalFromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Dec128 converts a decimal to its BSON Decimal128 form for use inside raw
// update documents, where the registry codec does not apply.
func Dec128(d decimal.Decimal) primitive.Decimal128 {
	d128, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		d128, _ = primitive.ParseDecimal128("0")
	}
	return d128
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func DurationFromEnvSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
