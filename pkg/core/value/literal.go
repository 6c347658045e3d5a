package value

import (
	"errors"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var errUnsupportedJSON = errors.New("value: arrays and objects are not values")

// ParseLiteral разбирает литерал из командной строки или query string:
//
//	null        -> Null
//	42, -7      -> Int
//	3.5, 1e3    -> Float
//	"00123"     -> String (в кавычках цифры остаются строкой)
//	остальное   -> String
func ParseLiteral(s string) Value {
	switch {
	case s == "null":
		return Null()
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		var str string
		if err := json.Unmarshal([]byte(s), &str); err == nil {
			return String(str)
		}
		return String(s[1 : len(s)-1])
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXnN") {
		return Float(f)
	}
	return String(s)
}

// FromJSON преобразует значение из JSON тела запроса.
// Объект с полем "t" - форма Value, прочие объекты и массивы отклоняются.
// Числа ожидаются как json.Number; целые становятся Int
func FromJSON(raw json.RawMessage) (Value, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var members map[string]json.RawMessage
		if err := json.Unmarshal(raw, &members); err != nil {
			return Value{}, err
		}
		if _, ok := members["t"]; !ok {
			return Value{}, errUnsupportedJSON
		}
		var v Value
		err := json.Unmarshal(raw, &v)
		return v, err
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return Value{}, err
	}
	switch n := x.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case []any, map[string]any:
		return Value{}, errUnsupportedJSON
	default:
		return Of(x)
	}
}
