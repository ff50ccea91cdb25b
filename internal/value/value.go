// Package value implements ChronoScript's dynamically-typed Value model
// (C1): a tagged union over Empty/Integer/Decimal/Pointer/String/Object/List,
// plus the refcounted string cache strings and containers are interned into.
//
// Objects and Lists are not stored here: only their heap slot index is. The
// container heap itself lives in package heap (C2), which this package is
// deliberately kept free of importing, to mirror the teacher's layering of
// IR types beneath instruction/printer logic.
package value

import "fmt"

// Tag discriminates the variant carried by a Value.
type Tag uint8

const (
	Empty Tag = iota
	Integer
	Decimal
	Pointer
	String
	Object
	List
)

func (t Tag) String() string {
	switch t {
	case Empty:
		return "empty"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Pointer:
		return "pointer"
	case String:
		return "string"
	case Object:
		return "object"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Value is ChronoScript's tagged dynamic value. Only the field matching Tag
// is meaningful; Idx doubles as the string-cache index (Tag == String) or
// the container-heap slot (Tag == Object / Tag == List).
type Value struct {
	Tag     Tag
	Int     int32
	Dec     float64
	PtrType uint8
	PtrID   uint32
	Idx     int32
}

// Empty returns the null value.
func Nil() Value { return Value{Tag: Empty} }

func Int(i int32) Value { return Value{Tag: Integer, Int: i} }

func Dec(d float64) Value { return Value{Tag: Decimal, Dec: d} }

func Ptr(ptrType uint8, id uint32) Value { return Value{Tag: Pointer, PtrType: ptrType, PtrID: id} }

func Str(cacheIdx int32) Value { return Value{Tag: String, Idx: cacheIdx} }

func Obj(heapSlot int32) Value { return Value{Tag: Object, Idx: heapSlot} }

func Lst(heapSlot int32) Value { return Value{Tag: List, Idx: heapSlot} }

// IsNumeric reports whether v is Integer or Decimal.
func (v Value) IsNumeric() bool { return v.Tag == Integer || v.Tag == Decimal }

// AsFloat64 returns v's numeric value promoted to float64. Callers must
// check IsNumeric first.
func (v Value) AsFloat64() float64 {
	if v.Tag == Integer {
		return float64(v.Int)
	}
	return v.Dec
}

func (v Value) GoString() string {
	switch v.Tag {
	case Empty:
		return "Empty"
	case Integer:
		return fmt.Sprintf("Integer(%d)", v.Int)
	case Decimal:
		return fmt.Sprintf("Decimal(%g)", v.Dec)
	case Pointer:
		return fmt.Sprintf("Pointer(type=%d,id=%d)", v.PtrType, v.PtrID)
	case String:
		return fmt.Sprintf("String(#%d)", v.Idx)
	case Object:
		return fmt.Sprintf("Object(#%d)", v.Idx)
	case List:
		return fmt.Sprintf("List(#%d)", v.Idx)
	default:
		return "?"
	}
}
