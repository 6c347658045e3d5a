package value

import (
	"fmt"

	"github.com/goccy/go-json"
)

type wireValue struct {
	T Kind     `json:"t"`
	S *string  `json:"s,omitempty"`
	I *int64   `json:"i,omitempty"`
	F *float64 `json:"f,omitempty"`
	B []byte   `json:"b,omitempty"`
}

// MarshalJSON сохраняет вид значения: {"t":typ, ...}
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{T: v.kind}
	switch v.kind {
	case KindShortString, KindText:
		s := v.str
		w.S = &s
	case KindInt:
		n := v.num
		w.I = &n
	case KindFloat:
		f := v.flt
		w.F = &f
	case KindBytes:
		w.B = v.raw
		if w.B == nil {
			w.B = []byte{}
		}
	}
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.T {
	case KindNull:
		*v = Null()
	case KindShortString, KindText:
		if w.S == nil {
			return fmt.Errorf("value: %s without payload", w.T)
		}
		*v = String(*w.S)
	case KindInt:
		if w.I == nil {
			return fmt.Errorf("value: int without payload")
		}
		*v = Int(*w.I)
	case KindFloat:
		if w.F == nil {
			return fmt.Errorf("value: float without payload")
		}
		*v = Float(*w.F)
	case KindBytes:
		*v = Bytes(w.B)
	default:
		return fmt.Errorf("value: unknown kind %d", w.T)
	}
	return nil
}
