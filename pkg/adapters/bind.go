package adapters

import (
	"fmt"

	"github.com/ruslano69/eavsql/pkg/core/value"
)

// bindArgs приводит аргументы к типам, которые принимают все драйверы
// Поддерживаются nil, string, int, int32, int64, float32, float64, []byte, bool и value.Value
// bool передается как 0/1 (TINYINT)
func bindArgs(args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	out := make([]any, len(args))
	for i, arg := range args {
		bound, err := bindArg(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = bound
	}
	return out, nil
}

func bindArg(arg any) (any, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case []byte:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case value.Value:
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}
