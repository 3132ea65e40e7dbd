package ast

import (
	"strconv"
)

// ValueKind is the kind of a constant's literal value.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueInt
	ValueUint
	ValueFloat
	ValueString
)

// Value is the literal carried by a Constant declaration.
type Value struct {
	Kind  ValueKind
	Int   int64
	Uint  uint64
	Float float64
	Str   string
}

func IntValue(v int64) Value     { return Value{Kind: ValueInt, Int: v} }
func UintValue(v uint64) Value   { return Value{Kind: ValueUint, Uint: v} }
func FloatValue(v float64) Value { return Value{Kind: ValueFloat, Float: v} }
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }

// String renders the value as a literal usable in generated source.
func (v Value) String() string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Str)
	default:
		return ""
	}
}
