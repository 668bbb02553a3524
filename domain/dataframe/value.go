package dataframe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which scalar a Value carries
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "invalid"
	}
}

// Value is a tagged string-or-number scalar. The zero Value is invalid and
// stands for "no value".
type Value struct {
	Kind Kind
	Str  string
	Num  float64
}

// String builds a string Value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number builds a numeric Value
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Int builds a numeric Value from an integer, typically a year
func Int(i int) Value { return Value{Kind: KindNumber, Num: float64(i)} }

// Strings converts plain strings into string Values
func Strings(ss ...string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// Ints converts integers into numeric Values
func Ints(is ...int) []Value {
	out := make([]Value, len(is))
	for i, n := range is {
		out[i] = Int(n)
	}
	return out
}

// IsValid reports whether the value carries a scalar
func (v Value) IsValid() bool { return v.Kind != KindInvalid }

// Float returns the numeric payload. Strings never coerce.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Num, true
}

// String renders the value the way group keys and exports display it.
// Numbers use the shortest representation, so 2021.0 renders as "2021".
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal compares kind and payload exactly
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindNumber {
		return v.Num == o.Num
	}
	return v.Str == o.Str
}

// Compare orders values: numbers before strings, numbers numerically,
// strings lexically.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind == KindNumber {
			return -1
		}
		if b.Kind == KindNumber {
			return 1
		}
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNumber:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	default:
		return strings.Compare(a.Str, b.Str)
	}
}

// MarshalJSON encodes strings as JSON strings, numbers as JSON numbers and
// the invalid value as null
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, number or null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("value must be a string or number: %w", err)
	}
	*v = Number(f)
	return nil
}
