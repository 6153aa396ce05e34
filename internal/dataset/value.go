package dataset

import (
	"cmp"
	"encoding/json"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

type Kind int

const (
	KindInt Kind = iota + 1
	KindFloat
	KindCategory
	KindBool
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindCategory:
		return "category"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Value is a typed cell read out of a Record through its Column.
type Value struct {
	Kind  Kind
	Null  bool
	Int   int64
	Float float64
	Bool  bool
	Str   string
	Time  time.Time
}

func intValue(p *int64) Value {
	if p == nil {
		return Value{Kind: KindInt, Null: true}
	}
	return Value{Kind: KindInt, Int: *p}
}

func floatValue(p *float64) Value {
	if p == nil {
		return Value{Kind: KindFloat, Null: true}
	}
	return Value{Kind: KindFloat, Float: *p}
}

func boolValue(p *bool) Value {
	if p == nil {
		return Value{Kind: KindBool, Null: true}
	}
	return Value{Kind: KindBool, Bool: *p}
}

func dateValue(p *time.Time) Value {
	if p == nil {
		return Value{Kind: KindDate, Null: true}
	}
	return Value{Kind: KindDate, Time: *p}
}

func textValue(kind Kind, s string) Value {
	if s == "" {
		return Value{Kind: kind, Null: true}
	}
	return Value{Kind: kind, Str: s}
}

// String renders the value the way it is written back to CSV. Null renders
// as the empty string.
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindDate:
		return v.Time.Format(dateLayout)
	default:
		return v.Str
	}
}

// Number returns the numeric reading of an int or float value.
func (v Value) Number() (float64, bool) {
	if v.Null {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// groupKey is unique per value within one column. Null gets a sentinel that
// no rendered value can produce.
func (v Value) groupKey() string {
	if v.Null {
		return "\x00"
	}
	return v.String()
}

// CompareValues orders two values of the same kind ascending. Null sorts after
// every non-null value.
func CompareValues(a, b Value) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return 1
	case b.Null:
		return -1
	}
	switch a.Kind {
	case KindInt:
		return cmp.Compare(a.Int, b.Int)
	case KindFloat:
		return cmp.Compare(a.Float, b.Float)
	case KindDate:
		return a.Time.Compare(b.Time)
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	default:
		return cmp.Compare(a.Str, b.Str)
	}
}

// Native returns the Go value behind v: int64, float64, bool, string or nil.
func (v Value) Native() any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	default:
		return v.String()
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

func (v Value) MarshalYAML() (any, error) {
	return v.Native(), nil
}
