package runtime

import (
	"fmt"
	"strconv"
)

// Kind is the runtime type tag of a Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "boolean"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is an int or a boolean. Values are small and passed by copy; the
// tag is fixed at construction.
type Value struct {
	kind Kind
	i    int64
	b    bool
}

func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func Zero(k Kind) Value { return Value{kind: k} }
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer payload; ok is false for booleans.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

// AsBool returns the boolean payload; ok is false for integers.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Equal compares two values of the same kind. Values of different kinds are
// never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindInt {
		return v.i == o.i
	}
	return v.b == o.b
}

// String renders booleans as 1/0, matching the default print format.
func (v Value) String() string {
	if v.kind == KindBool {
		if v.b {
			return "1"
		}
		return "0"
	}
	return strconv.FormatInt(v.i, 10)
}

// BoolFormat selects how print renders booleans.
type BoolFormat int

const (
	BoolNumeric BoolFormat = iota // 1 / 0
	BoolWords                     // true / false
)

// Format renders v for program output.
func (v Value) Format(f BoolFormat) string {
	if v.kind == KindBool && f == BoolWords {
		return strconv.FormatBool(v.b)
	}
	return v.String()
}
