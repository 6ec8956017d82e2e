package scalars

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"nestql/internal/uuidutil"
)

func NonNegativeInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "NonNegativeInt",
		Description: "An integer greater than or equal to zero.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			intValue, ok := valueAST.(*ast.IntValue)
			if !ok {
				return nil
			}
			parsed, err := strconv.Atoi(intValue.Value)
			if err != nil || parsed < 0 {
				return nil
			}
			return parsed
		},
	})
}

func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "Arbitrary JSON value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return string(v)
			case string:
				return v
			case nil:
				return nil
			default:
				serialized, err := json.Marshal(v)
				if err != nil {
					slog.Default().Warn("failed to serialize JSON scalar", slog.String("error", err.Error()))
					return nil
				}
				return string(serialized)
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return s
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return sv.Value
			}
			return nil
		},
	})
}

func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "BigInt",
		Description: "64-bit integer value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case int:
				return strconv.FormatInt(int64(v), 10)
			case int8:
				return strconv.FormatInt(int64(v), 10)
			case int16:
				return strconv.FormatInt(int64(v), 10)
			case int32:
				return strconv.FormatInt(int64(v), 10)
			case int64:
				return strconv.FormatInt(v, 10)
			case uint:
				return strconv.FormatUint(uint64(v), 10)
			case uint8:
				return strconv.FormatUint(uint64(v), 10)
			case uint16:
				return strconv.FormatUint(uint64(v), 10)
			case uint32:
				return strconv.FormatUint(uint64(v), 10)
			case uint64:
				return strconv.FormatUint(v, 10)
			case float64:
				parsed, ok := float64ToInt64(v)
				if !ok {
					return nil
				}
				return strconv.FormatInt(parsed, 10)
			case string:
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					return v
				}
				return nil
			case []byte:
				strVal := string(v)
				if _, err := strconv.ParseInt(strVal, 10, 64); err == nil {
					return strVal
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case int:
				return int64(v)
			case int8:
				return int64(v)
			case int16:
				return int64(v)
			case int32:
				return int64(v)
			case int64:
				return v
			case uint:
				return int64(v)
			case uint8:
				return int64(v)
			case uint16:
				return int64(v)
			case uint32:
				return int64(v)
			case uint64:
				if v > math.MaxInt64 {
					return nil
				}
				return int64(v)
			case float64:
				parsed, ok := float64ToInt64(v)
				if !ok {
					return nil
				}
				return parsed
			case string:
				parsed, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				parsed, err := strconv.ParseInt(v.Value, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			case *ast.StringValue:
				parsed, err := strconv.ParseInt(v.Value, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			default:
				return nil
			}
		},
	})
}

func Decimal() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Decimal",
		Description: "Fixed-point decimal value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return decimalString(string(v))
			case string:
				return decimalString(v)
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
				return fmt.Sprintf("%v", v)
			case float32, float64:
				return fmt.Sprintf("%v", v)
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				return decimalString(v)
			case []byte:
				return decimalString(string(v))
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
				return fmt.Sprintf("%v", v)
			case float32, float64:
				return fmt.Sprintf("%v", v)
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.StringValue:
				return decimalString(v.Value)
			case *ast.IntValue:
				return v.Value
			case *ast.FloatValue:
				return v.Value
			default:
				return nil
			}
		},
	})
}

func Date() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Date",
		Description: "Date value serialized as YYYY-MM-DD.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.UTC().Format("2006-01-02")
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.UTC().Format("2006-01-02")
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v
			case string:
				if parsed, err := time.Parse("2006-01-02", v); err == nil {
					return parsed
				}
				if parsed, err := time.Parse(time.RFC3339, v); err == nil {
					return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
				}
				return nil
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if parsed, err := time.Parse("2006-01-02", sv.Value); err == nil {
					return parsed
				}
				if parsed, err := time.Parse(time.RFC3339, sv.Value); err == nil {
					return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
				}
			}
			return nil
		},
	})
}

func Time() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Time",
		Description: "Time-of-day or elapsed time value serialized as [-]HHH:MM:SS[.fraction].",
		Serialize: func(value interface{}) interface{} {
			if normalized, ok := coerceTime(value); ok {
				return normalized
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if normalized, ok := coerceTime(value); ok {
				return normalized
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if normalized, ok := coerceTime(sv.Value); ok {
					return normalized
				}
			}
			return nil
		},
	})
}

func Year() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Year",
		Description: "Year value serialized as a four-digit string.",
		Serialize: func(value interface{}) interface{} {
			if normalized, ok := coerceYear(value); ok {
				return normalized
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if normalized, ok := coerceYear(value); ok {
				return normalized
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.StringValue:
				if normalized, ok := coerceYear(v.Value); ok {
					return normalized
				}
			case *ast.IntValue:
				if normalized, ok := coerceYear(v.Value); ok {
					return normalized
				}
			}
			return nil
		},
	})
}

func Bytes() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Bytes",
		Description: "Binary value serialized as a standard base64 string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return base64.StdEncoding.EncodeToString(v)
			case string:
				return base64.StdEncoding.EncodeToString([]byte(v))
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				decoded, err := base64.StdEncoding.DecodeString(v)
				if err != nil {
					return nil
				}
				return decoded
			case []byte:
				return v
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				decoded, err := base64.StdEncoding.DecodeString(sv.Value)
				if err != nil {
					return nil
				}
				return decoded
			}
			return nil
		},
	})
}

func UUID() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "UUID",
		Description: "RFC 4122 UUID serialized in canonical lower-case form.",
		Serialize: func(value interface{}) interface{} {
			if canonical, ok := coerceUUID(value); ok {
				return canonical
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if canonical, ok := coerceUUID(value); ok {
				return canonical
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if canonical, ok := coerceUUID(sv.Value); ok {
					return canonical
				}
			}
			return nil
		},
	})
}

func coerceUUID(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		_, canonical, err := uuidutil.ParseString(v)
		if err != nil {
			return "", false
		}
		return canonical, true
	case []byte:
		// binary(16) storage returns RFC-order bytes
		if len(v) == 16 {
			_, canonical, err := uuidutil.ParseBytes(v)
			if err != nil {
				return "", false
			}
			return canonical, true
		}
		_, canonical, err := uuidutil.ParseString(string(v))
		if err != nil {
			return "", false
		}
		return canonical, true
	default:
		return "", false
	}
}

// coerceTime normalizes MySQL TIME values to [-]HHH:MM:SS with an optional
// fractional part of up to six digits. Bare numeric literals follow MySQL's
// right-aligned HHMMSS interpretation.
func coerceTime(value interface{}) (string, bool) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(raw, "-") {
		negative = true
		raw = raw[1:]
	}

	base := raw
	fraction := ""
	if idx := strings.Index(raw, "."); idx != -1 {
		base = raw[:idx]
		fraction = raw[idx+1:]
		if fraction == "" || len(fraction) > 6 || !isDigits(fraction) {
			return "", false
		}
	}

	var hours, minutes, seconds int
	if strings.Contains(base, ":") {
		parts := strings.Split(base, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return "", false
		}
		for _, part := range parts {
			if part == "" || !isDigits(part) {
				return "", false
			}
		}
		hours, _ = strconv.Atoi(parts[0])
		minutes, _ = strconv.Atoi(parts[1])
		if len(parts) == 3 {
			seconds, _ = strconv.Atoi(parts[2])
		}
	} else {
		if !isDigits(base) || len(base) > 7 {
			return "", false
		}
		numeric, err := strconv.Atoi(base)
		if err != nil {
			return "", false
		}
		seconds = numeric % 100
		minutes = (numeric / 100) % 100
		hours = numeric / 10000
	}

	if hours > 838 || minutes > 59 || seconds > 59 {
		return "", false
	}
	if hours == 838 && minutes == 59 && seconds == 59 && fraction != "" && strings.Trim(fraction, "0") != "" {
		return "", false
	}

	formatted := fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	if fraction != "" {
		formatted += "." + fraction
	}
	if negative {
		formatted = "-" + formatted
	}
	return formatted, true
}

// coerceYear accepts MySQL YEAR values: 0000 or 1901 through 2155.
// Two-digit shorthand is rejected to avoid silent century guessing.
func coerceYear(value interface{}) (string, bool) {
	var year int
	switch v := value.(type) {
	case int:
		year = v
	case int16:
		year = int(v)
	case int32:
		year = int(v)
	case int64:
		year = int(v)
	case uint16:
		year = int(v)
	case uint32:
		year = int(v)
	case uint64:
		if v > 2155 {
			return "", false
		}
		year = int(v)
	case float64:
		if v != math.Trunc(v) {
			return "", false
		}
		year = int(v)
	case string:
		return coerceYearString(v)
	case []byte:
		return coerceYearString(string(v))
	default:
		return "", false
	}
	return formatYear(year)
}

func coerceYearString(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 4 || !isDigits(raw) {
		return "", false
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return "", false
	}
	return formatYear(year)
}

func formatYear(year int) (string, bool) {
	if year != 0 && (year < 1901 || year > 2155) {
		return "", false
	}
	return fmt.Sprintf("%04d", year), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// float64ToInt64 rejects fractional values and anything outside the int64
// range instead of letting the conversion wrap.
func float64ToInt64(v float64) (int64, bool) {
	if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// decimalString returns the value unchanged when it is a well-formed signed
// decimal literal with an optional fraction and exponent, nil otherwise.
func decimalString(s string) interface{} {
	if validDecimal(s) {
		return s
	}
	return nil
}

func validDecimal(s string) bool {
	mantissa := s
	if idx := strings.IndexAny(s, "eE"); idx != -1 {
		mantissa = s[:idx]
		exp := s[idx+1:]
		if len(exp) > 0 && (exp[0] == '+' || exp[0] == '-') {
			exp = exp[1:]
		}
		if !isDigits(exp) {
			return false
		}
	}
	if len(mantissa) > 0 && (mantissa[0] == '+' || mantissa[0] == '-') {
		mantissa = mantissa[1:]
	}
	intPart := mantissa
	fracPart := ""
	if idx := strings.Index(mantissa, "."); idx != -1 {
		intPart = mantissa[:idx]
		fracPart = mantissa[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return false
	}
	if intPart != "" && !isDigits(intPart) {
		return false
	}
	if fracPart != "" && !isDigits(fracPart) {
		return false
	}
	return true
}

func coerceNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int32:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
