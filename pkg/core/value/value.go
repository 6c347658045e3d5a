// Package value - значения атрибутов объекта и их отображение
// на типизированные колонки таблицы данных.
package value

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Kind - вид значения, хранится в колонке typ
type Kind uint8

const (
	KindNull        Kind = 0
	KindShortString Kind = 1
	KindText        Kind = 2
	KindInt         Kind = 3
	KindFloat       Kind = 4
	KindBytes       Kind = 5
)

// ShortStringMax - максимальная длина строки в байтах для индексируемой sVl.
// Длинные строки идут в tVl, в sVl остается хэш
const ShortStringMax = 64

// numericLimit - предел модуля для DECIMAL(36,12)
const numericLimit = 1e23

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindShortString:
		return "string"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value - неизменяемое значение атрибута. Нулевое Value - Null
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	raw  []byte
}

func Null() Value { return Value{} }

// String - короткая строка или текст, по длине в байтах
func String(s string) Value {
	if len(s) <= ShortStringMax {
		return Value{kind: KindShortString, str: s}
	}
	return Value{kind: KindText, str: s}
}

func Int(i int64) Value { return Value{kind: KindInt, num: i} }

func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bytes копирует срез
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, raw: cp}
}

// Of преобразует Go-значение в Value. Поддерживаются nil, Value, string, []byte,
// целые, float32, float64 и bool (как 0/1)
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Value{}, fmt.Errorf("value: %d overflows int64", x)
		}
		return Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, fmt.Errorf("value: %d overflows int64", x)
		}
		return Int(int64(x)), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case bool:
		if x {
			return Int(1), nil
		}
		return Int(0), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", v)
	}
}

// MustOf - Of с паникой, для литералов в тестах
func MustOf(v any) Value {
	val, err := Of(v)
	if err != nil {
		panic(err)
	}
	return val
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) IsString() bool { return v.kind == KindShortString || v.kind == KindText }

func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

func (v Value) Str() (string, bool) { return v.str, v.IsString() }

// Int64 - целое значение; дробная часть Float отбрасывается
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.num, true
	case KindFloat:
		return int64(v.flt), true
	}
	return 0, false
}

func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.num), true
	case KindFloat:
		return v.flt, true
	}
	return 0, false
}

func (v Value) Raw() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// Interface - nil, string, int64, float64 или []byte
func (v Value) Interface() any {
	switch v.kind {
	case KindShortString, KindText:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBytes:
		return v.raw
	}
	return nil
}

// Equal сравнивает вид и значение; NaN равен NaN
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindShortString, KindText:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt || (math.IsNaN(v.flt) && math.IsNaN(o.flt))
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	}
	return true
}

// String - представление для логов и CLI
func (v Value) String() string {
	switch v.kind {
	case KindShortString, KindText:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return formatFloat(v.flt)
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.raw))
	}
	return "null"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
