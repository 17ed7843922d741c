package codec

import (
	"fmt"
	"strconv"
)

// Kind enumerates the logical value types a field can decode to.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindReal
	KindText
)

// Value is one decoded field value. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	r    float64
	s    string
}

var Null = Value{}

func Int(v int64) Value    { return Value{kind: KindInt, i: v} }
func Real(v float64) Value { return Value{kind: KindReal, r: v} }
func Text(v string) Value  { return Value{kind: KindText, s: v} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Int() int64    { return v.i }
func (v Value) Real() float64 { return v.r }
func (v Value) Text() string  { return v.s }

// Any returns the value in driver-bindable form: int64, float64, string or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindReal:
		return v.r
	case KindText:
		return v.s
	default:
		return nil
	}
}

// String renders the value for logs and the dump tool.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.r, 'f', -1, 64)
	case KindText:
		return v.s
	default:
		return "<null>"
	}
}

// Equal reports field-by-field equality; used by tests and the fake driver.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindReal:
		return v.r == o.r
	case KindText:
		return v.s == o.s
	default:
		return true
	}
}

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// GoString helps test failure output.
func (v Value) GoString() string {
	return fmt.Sprintf("codec.Value(%s:%s)", v.kind, v.String())
}
