package value

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in       string
		expected Value
	}{
		{"null", Null()},
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"3.5", Float(3.5)},
		{"1e3", Float(1000)},
		{`"00123"`, String("00123")},
		{`"a\"b"`, String(`a"b`)},
		{"ann", String("ann")},
		{"NaN", String("NaN")},
		{"Inf", String("Inf")},
		{"", String("")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseLiteral(tt.in)
			if !got.Equal(tt.expected) {
				t.Errorf("ParseLiteral(%q) = %v (%s), expected %v (%s)", tt.in, got, got.Kind(), tt.expected, tt.expected.Kind())
			}
		})
	}
}

func TestFromJSON(t *testing.T) {
	tests := []struct {
		in       string
		expected Value
		wantErr  bool
	}{
		{`"ann"`, String("ann"), false},
		{`31`, Int(31), false},
		{`2.5`, Float(2.5), false},
		{`null`, Null(), false},
		{`true`, Int(1), false},
		{`{"t":5,"b":"aGk="}`, Bytes([]byte("hi")), false},
		{`{"t":4,"f":3}`, Float(3), false},
		{`[1,2]`, Value{}, true},
		{`{"t":42}`, Value{}, true},
		{`{"a":1}`, Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FromJSON(json.RawMessage(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Errorf("FromJSON(%s): expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromJSON(%s): %v", tt.in, err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("FromJSON(%s) = %v (%s), expected %v", tt.in, got, got.Kind(), tt.expected)
			}
		})
	}
}
