package models

import (
	"math"
	"time"
)

// Data type discriminators. The mapping between source family and target
// table is 1:1, so source records and target records share these tags.
const (
	TypeXbondQuote      = "xbond-quote"
	TypeXbondTrade      = "xbond-trade"
	TypeBondFutureQuote = "bond-future-quote"
)

// Sentinel values for unset numeric fields. Downstream consumers rely on
// these to tell "not set" apart from a real zero.
const (
	SentinelInt = int64(-1)
)

// SentinelFloat returns the unset marker for floating point fields.
func SentinelFloat() float64 { return math.NaN() }

// Kind is the declared type of a record field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDateString // "YYYY.MM.DD" string, source side
	KindDate       // calendar date, target side
	KindDateTime   // local wall-clock time, source side
	KindInstant    // absolute instant, target side
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDateString:
		return "date-string"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindInstant:
		return "instant"
	default:
		return "unknown"
	}
}

// FieldSpec declares one named, typed field of a record shape.
type FieldSpec struct {
	Name string
	Kind Kind
}

// Value is a typed field value. Null carries the unset state through the
// pipeline so that target sentinels survive mapping.
type Value struct {
	Kind  Kind
	Null  bool
	Str   string
	Int   int64
	Float float64
	Time  time.Time
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s, Null: s == ""}
}

func DateStringValue(s string) Value {
	return Value{Kind: KindDateString, Str: s, Null: s == ""}
}

// LongValue treats the -1 sentinel as null so an unset source field never
// overwrites a target sentinel with a fake value.
func LongValue(v int64) Value {
	return Value{Kind: KindLong, Int: v, Null: v == SentinelInt}
}

func IntValue(v int64) Value {
	return Value{Kind: KindInt, Int: v, Null: v == SentinelInt}
}

func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Float: v, Null: math.IsNaN(v)}
}

func DateTimeValue(t time.Time) Value {
	return Value{Kind: KindDateTime, Time: t, Null: t.IsZero()}
}

func InstantValue(t time.Time) Value {
	return Value{Kind: KindInstant, Time: t, Null: t.IsZero()}
}

func DateValue(t time.Time) Value {
	return Value{Kind: KindDate, Time: t, Null: t.IsZero()}
}

// NullOf returns the unset value for a kind, carrying the numeric sentinel.
func NullOf(k Kind) Value {
	v := Value{Kind: k, Null: true}
	switch k {
	case KindInt, KindLong:
		v.Int = SentinelInt
	case KindFloat:
		v.Float = SentinelFloat()
	}
	return v
}
