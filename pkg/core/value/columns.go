package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Колонки значения в таблице данных
const (
	ColNumber = "nVl"
	ColString = "sVl"
	ColText   = "tVl"
	ColRaw    = "rVl"
)

// Columns - колонки значения в порядке таблицы
var Columns = []string{ColNumber, ColString, ColText, ColRaw}

// Encoded - форма хранения Value: typ, перезаписываемые колонки
// и колонки, которые сохраняют прежнее значение
type Encoded struct {
	Typ     int64
	Cols    []string
	Vals    []any
	Untouch []string
}

// Encode раскладывает v по колонкам таблицы данных
func (v Value) Encode() Encoded {
	enc := Encoded{Typ: int64(v.kind)}

	switch v.kind {
	case KindShortString:
		enc.Cols = []string{ColString}
		enc.Vals = []any{v.str}
	case KindText:
		enc.Cols = []string{ColString, ColText}
		enc.Vals = []any{Hash(v.str), v.str}
	case KindInt:
		enc.Cols = []string{ColNumber}
		enc.Vals = []any{v.num}
	case KindFloat:
		// в sVl точная запись, nVl для диапазонов
		var num any
		if !math.IsNaN(v.flt) && !math.IsInf(v.flt, 0) && math.Abs(v.flt) < numericLimit {
			num = v.flt
		}
		enc.Cols = []string{ColNumber, ColString}
		enc.Vals = []any{num, formatFloat(v.flt)}
	case KindBytes:
		raw := v.raw
		if raw == nil {
			raw = []byte{}
		}
		enc.Cols = []string{ColRaw}
		enc.Vals = []any{raw}
	}

	for _, col := range Columns {
		if !contains(enc.Cols, col) {
			enc.Untouch = append(enc.Untouch, col)
		}
	}
	return enc
}

// Decode восстанавливает Value из строки данных.
// Драйверы отдают DECIMAL и TINYINT разными Go-типами, принимаются все
func Decode(typ, nVl, sVl, tVl, rVl any) (Value, error) {
	t, err := ToInt64(typ)
	if err != nil {
		return Value{}, fmt.Errorf("decode typ: %w", err)
	}

	switch Kind(t) {
	case KindNull:
		return Null(), nil
	case KindShortString:
		return Value{kind: KindShortString, str: ToString(sVl)}, nil
	case KindText:
		return Value{kind: KindText, str: ToString(tVl)}, nil
	case KindInt:
		n, err := ToInt64(nVl)
		if err != nil {
			return Value{}, fmt.Errorf("decode nVl: %w", err)
		}
		return Int(n), nil
	case KindFloat:
		if s := ToString(sVl); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err == nil {
				return Float(f), nil
			}
		}
		f, err := ToFloat64(nVl)
		if err != nil {
			return Value{}, fmt.Errorf("decode nVl: %w", err)
		}
		return Float(f), nil
	case KindBytes:
		switch b := rVl.(type) {
		case []byte:
			return Bytes(b), nil
		case string:
			return Bytes([]byte(b)), nil
		case nil:
			return Bytes(nil), nil
		default:
			return Value{}, fmt.Errorf("decode rVl: unexpected %T", rVl)
		}
	default:
		return Value{}, fmt.Errorf("decode: unknown typ %d", t)
	}
}

// Hash - hex xxh3 длинного текста, хранится в sVl
func Hash(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// ToInt64 приводит значение драйвера к int64
func ToInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseDecimalInt(string(x))
	case string:
		return parseDecimalInt(x)
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

// ToFloat64 приводит значение драйвера к float64
func ToFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

// ToString приводит значение драйвера к строке, NULL - ""
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// parseDecimalInt разбирает "123", "-5.000000000000" и т.п.
func parseDecimalInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, err
			}
			return int64(f), nil
		}
		s = s[:i]
	}
	if s == "" || s == "-" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
