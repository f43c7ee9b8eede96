package DS

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueType enumerates the supported column types.
type ValueType int

const (
	TypeNull   ValueType = iota
	TypeInt              // int64
	TypeFloat            // float64
	TypeString           // string
	TypeBytes            // []byte
	TypeBool             // bool
)

var typeNames = []string{"NULL", "INTEGER", "REAL", "TEXT", "BLOB", "BOOLEAN"}

func (t ValueType) String() string {
	if int(t) < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// Value holds a single typed datum.
type Value struct {
	Type  ValueType
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

func NullValue() Value           { return Value{Type: TypeNull} }
func IntValue(v int64) Value     { return Value{Type: TypeInt, Int: v} }
func FloatValue(v float64) Value { return Value{Type: TypeFloat, Float: v} }
func StringValue(v string) Value { return Value{Type: TypeString, Str: v} }
func BoolValue(v bool) Value {
	b := int64(0)
	if v {
		b = 1
	}
	return Value{Type: TypeBool, Int: b}
}
func BytesValue(v []byte) Value { return Value{Type: TypeBytes, Bytes: v} }

// FromInterface converts a driver-level Go value into a Value. BLOBs are
// referenced, not copied; call Dup to take ownership.
func FromInterface(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return val
	case int64:
		return IntValue(val)
	case int:
		return IntValue(int64(val))
	case int32:
		return IntValue(int64(val))
	case uint32:
		return IntValue(int64(val))
	case float64:
		return FloatValue(val)
	case float32:
		return FloatValue(float64(val))
	case string:
		return StringValue(val)
	case []byte:
		if val == nil {
			return NullValue()
		}
		return BytesValue(val)
	case bool:
		return BoolValue(val)
	case time.Time:
		return StringValue(val.Format(time.RFC3339Nano))
	default:
		return StringValue(fmt.Sprintf("%v", v))
	}
}

// Interface returns the plain Go representation used by database/sql.
func (v Value) Interface() interface{} {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeString:
		return v.Str
	case TypeBytes:
		return v.Bytes
	case TypeBool:
		return v.Int != 0
	default:
		return nil
	}
}

// Dup returns a copy that shares no memory with v.
func (v Value) Dup() Value {
	if v.Type == TypeBytes {
		v.Bytes = bytes.Clone(v.Bytes)
	}
	return v
}

// IsNull returns true if the value is NULL.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// String returns a human-readable representation.
func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeString:
		return v.Str
	case TypeBool:
		if v.Int != 0 {
			return "true"
		}
		return "false"
	case TypeBytes:
		return fmt.Sprintf("%x", v.Bytes)
	default:
		return "?"
	}
}

// Text returns v as SQL TEXT: BLOB bytes are taken verbatim and NULL is
// the empty string.
func (v Value) Text() string {
	switch v.Type {
	case TypeBytes:
		return string(v.Bytes)
	case TypeNull:
		return ""
	default:
		return v.String()
	}
}

// Key returns the exact textual identity of v. Two values with the same Key
// render to the same text, which is how column keys are compared.
func (v Value) Key() string {
	return v.Text()
}

// Equal returns true when the two values are equal (NULL != NULL per SQL semantics).
func (v Value) Equal(other Value) bool {
	if v.Type == TypeNull || other.Type == TypeNull {
		return false
	}
	return Compare(v, other) == 0
}

// Compare compares two Values. Returns -1, 0, or 1.
// NULL is treated as less than everything else.
// When types differ the numeric types are coerced; otherwise type order is used.
func Compare(a, b Value) int {
	if a.Type == TypeNull && b.Type == TypeNull {
		return 0
	}
	if a.Type == TypeNull {
		return -1
	}
	if b.Type == TypeNull {
		return 1
	}

	af, aIsNum := toFloat(a)
	bf, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		if a.Type != TypeFloat && b.Type != TypeFloat {
			return cmpInt(a.Int, b.Int)
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	if a.Type == b.Type {
		switch a.Type {
		case TypeString:
			return cmpString(a.Str, b.Str)
		case TypeBytes:
			return bytes.Compare(a.Bytes, b.Bytes)
		}
	}

	// numbers < text < blob, as SQLite orders mixed columns
	return cmpInt(int64(sortClass(a)), int64(sortClass(b)))
}

func sortClass(v Value) int {
	switch v.Type {
	case TypeInt, TypeFloat, TypeBool:
		return 1
	case TypeString:
		return 2
	case TypeBytes:
		return 3
	}
	return 0
}

func toFloat(v Value) (float64, bool) {
	switch v.Type {
	case TypeInt, TypeBool:
		return float64(v.Int), true
	case TypeFloat:
		return v.Float, true
	}
	return math.NaN(), false
}

func cmpInt(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
