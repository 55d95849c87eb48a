package models

import (
	"fmt"
	"time"
)

// TargetRecord is one column-ordered row bound for a transient target
// table. The column order is the target type's declared order and matches
// the table definition exactly; numeric cells start at their sentinel so
// unset stays distinguishable from zero after mapping.
type TargetRecord struct {
	dataType string
	schema   []FieldSpec
	index    map[string]int
	values   []Value
}

// NewTargetRecord builds an all-sentinel row for the given data type.
func NewTargetRecord(dataType string) (*TargetRecord, error) {
	s, ok := targetSchemas[dataType]
	if !ok {
		return nil, fmt.Errorf("unknown target data type %q", dataType)
	}
	values := make([]Value, len(s.fields))
	for i, f := range s.fields {
		values[i] = NullOf(f.Kind)
	}
	return &TargetRecord{dataType: dataType, schema: s.fields, index: s.index, values: values}, nil
}

// TargetSchema returns the declared column-ordered field list of a data type.
func TargetSchema(dataType string) ([]FieldSpec, bool) {
	s, ok := targetSchemas[dataType]
	if !ok {
		return nil, false
	}
	return s.fields, true
}

func (r *TargetRecord) DataType() string { return r.dataType }

func (r *TargetRecord) Schema() []FieldSpec { return r.schema }

// Columns returns field names in declared table order.
func (r *TargetRecord) Columns() []string {
	cols := make([]string, len(r.schema))
	for i, f := range r.schema {
		cols[i] = f.Name
	}
	return cols
}

// FieldIndex resolves a column name to its position.
func (r *TargetRecord) FieldIndex(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Set writes one cell by name. The value's kind must match the declared
// column kind.
func (r *TargetRecord) Set(name string, v Value) error {
	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("%s: no such column %q", r.dataType, name)
	}
	return r.SetIndex(i, v)
}

// SetIndex writes one cell by position.
func (r *TargetRecord) SetIndex(i int, v Value) error {
	if i < 0 || i >= len(r.values) {
		return fmt.Errorf("%s: column index %d out of range", r.dataType, i)
	}
	if v.Kind != r.schema[i].Kind {
		return fmt.Errorf("%s.%s: cannot store %s into %s column", r.dataType, r.schema[i].Name, v.Kind, r.schema[i].Kind)
	}
	r.values[i] = v
	return nil
}

// Get reads one cell by name.
func (r *TargetRecord) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Values renders the row for a column-ordered typed insert. Unset numeric
// cells keep their sentinel, unset strings become "", unset times nil.
func (r *TargetRecord) Values() []any {
	out := make([]any, len(r.values))
	for i, v := range r.values {
		switch v.Kind {
		case KindString:
			out[i] = v.Str
		case KindInt, KindLong:
			out[i] = v.Int
		case KindFloat:
			out[i] = v.Float
		case KindDate, KindInstant:
			if v.Null {
				out[i] = nil
			} else {
				out[i] = v.Time
			}
		default:
			out[i] = nil
		}
	}
	return out
}

// ReceiveTime returns the load-time sort key, false when the row has none.
func (r *TargetRecord) ReceiveTime() (time.Time, bool) {
	v, ok := r.Get("receive_time")
	if !ok || v.Null {
		return time.Time{}, false
	}
	return v.Time, true
}

type targetSchema struct {
	fields []FieldSpec
	index  map[string]int
}

func makeTargetSchema(fields []FieldSpec) targetSchema {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Name] = i
	}
	return targetSchema{fields: fields, index: index}
}

// targetSchemas pins the column order of every transient table. Derived
// from the source shapes with source-side kinds lowered to storage kinds
// (date-string -> date, local datetime -> instant) and the trade family's
// trade_side renamed to last_trade_side.
var targetSchemas = map[string]targetSchema{
	TypeXbondQuote:      makeTargetSchema(lowerKinds(xbondQuoteSchema, nil)),
	TypeXbondTrade:      makeTargetSchema(lowerKinds(xbondTradeSchema, map[string]string{"trade_side": "last_trade_side"})),
	TypeBondFutureQuote: makeTargetSchema(lowerKinds(bondFutureQuoteSchema, nil)),
}

func lowerKinds(src []FieldSpec, renames map[string]string) []FieldSpec {
	out := make([]FieldSpec, len(src))
	for i, f := range src {
		name := f.Name
		if renamed, ok := renames[name]; ok {
			name = renamed
		}
		kind := f.Kind
		switch kind {
		case KindDateString:
			kind = KindDate
		case KindDateTime:
			kind = KindInstant
		}
		out[i] = FieldSpec{Name: name, Kind: kind}
	}
	return out
}
