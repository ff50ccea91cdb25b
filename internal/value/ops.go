package value

import (
	"fmt"
	"strconv"
)

// OpError is a runtime value-operation failure (§7 "Runtime errors").
type OpError struct {
	Msg string
}

func (e *OpError) Error() string { return e.Msg }

func fail(format string, args ...any) error {
	return &OpError{Msg: fmt.Sprintf(format, args...)}
}

// IsTrue implements ChronoScript truthiness (§4.8): Empty and numeric zero
// are false, everything else — including every string, container, and
// non-null pointer — is true. Grounded on ScriptVariant_IsTrue.
func IsTrue(v Value) bool {
	switch v.Tag {
	case Integer:
		return v.Int != 0
	case Decimal:
		return v.Dec != 0.0
	case Pointer:
		return v.PtrID != 0
	case String, Object, List:
		return true
	default:
		return false
	}
}

// IsEqual implements same-tag structural equality with numeric promotion
// across tags, grounded on ScriptVariant_IsEqual.
func IsEqual(c *Cache, a, b Value) bool {
	if a.Tag == b.Tag {
		switch a.Tag {
		case Integer:
			return a.Int == b.Int
		case Decimal:
			return a.Dec == b.Dec
		case String:
			return c.Get(a.Idx) == c.Get(b.Idx)
		case Pointer:
			return a.PtrType == b.PtrType && a.PtrID == b.PtrID
		case Object, List:
			return a.Idx == b.Idx
		case Empty:
			return true
		default:
			return false
		}
	}
	if a.IsNumeric() && b.IsNumeric() {
		return a.AsFloat64() == b.AsFloat64()
	}
	return false
}

// ContainerToString lets callers (package heap/vm, which see both Value
// and the container heap) supply Object/List stringification without
// value importing heap.
type ContainerToString func(tag Tag, heapIdx int32) string

// ToString renders v the way ScriptVariant_ToString does.
func ToString(c *Cache, v Value, containers ContainerToString) string {
	switch v.Tag {
	case Empty:
		return "NULL"
	case Integer:
		return strconv.FormatInt(int64(v.Int), 10)
	case Decimal:
		return strconv.FormatFloat(v.Dec, 'f', 6, 64)
	case Pointer:
		return fmt.Sprintf("0x%x", v.PtrID)
	case String:
		return c.Get(v.Idx)
	case Object, List:
		if containers != nil {
			return containers(v.Tag, v.Idx)
		}
		return ""
	default:
		return "<Unprintable VARIANT type.>"
	}
}

func lengthAsString(c *Cache, v Value, containers ContainerToString) int {
	if v.Tag == String {
		return c.Len(v.Idx)
	}
	return len(ToString(c, v, containers))
}

// decimalValue mirrors ScriptVariant_DecimalValue: succeeds for Integer
// and Decimal only.
func decimalValue(v Value) (float64, bool) {
	switch v.Tag {
	case Integer:
		return float64(v.Int), true
	case Decimal:
		return v.Dec, true
	default:
		return 0, false
	}
}

func integerValue(v Value) (int32, bool) {
	switch v.Tag {
	case Integer:
		return v.Int, true
	case Decimal:
		return int32(v.Dec), true
	default:
		return 0, false
	}
}

func addGeneric(c *Cache, a, b Value, containers ContainerToString, popString func(string) int32) (Value, error) {
	if a.Tag == Integer && b.Tag == Integer {
		return Int(a.Int + b.Int), nil
	}
	if da, ok1 := decimalValue(a); ok1 {
		if db, ok2 := decimalValue(b); ok2 {
			return Dec(da + db), nil
		}
	}
	if a.Tag == String || b.Tag == String {
		s := ToString(c, a, containers) + ToString(c, b, containers)
		idx := popString(s)
		c.SetHash(idx)
		return Str(idx), nil
	}
	return Nil(), fail("Invalid operands for addition (must be number + number or string + string)")
}

// Add is the runtime `+`, using the plain (temporary) string pool.
func Add(c *Cache, a, b Value, containers ContainerToString) (Value, error) {
	return addGeneric(c, a, b, containers, c.Pop)
}

// AddFolding is `+` as used by constant folding (C11): any new string
// result must survive past the next temporary sweep.
func AddFolding(c *Cache, a, b Value, containers ContainerToString) (Value, error) {
	return addGeneric(c, a, b, containers, c.PopPersistent)
}

func Sub(a, b Value) (Value, error) {
	if a.Tag == b.Tag {
		switch a.Tag {
		case Integer:
			return Int(a.Int - b.Int), nil
		case Decimal:
			return Dec(a.Dec - b.Dec), nil
		}
	}
	if da, ok1 := decimalValue(a); ok1 {
		if db, ok2 := decimalValue(b); ok2 {
			if a.Tag == Decimal || b.Tag == Decimal {
				return Dec(da - db), nil
			}
			return Int(int32(da - db)), nil
		}
	}
	return Nil(), fail("Invalid operands for subtraction (must be 2 numbers)")
}

func Mul(a, b Value) (Value, error) {
	if a.Tag == Integer && b.Tag == Integer {
		return Int(a.Int * b.Int), nil
	}
	if a.Tag == Decimal && b.Tag == Decimal {
		return Dec(a.Dec * b.Dec), nil
	}
	if da, ok1 := decimalValue(a); ok1 {
		if db, ok2 := decimalValue(b); ok2 {
			if a.Tag == Decimal || b.Tag == Decimal {
				return Dec(da * db), nil
			}
			return Int(int32(da * db)), nil
		}
	}
	return Nil(), fail("Invalid operands for multiplication (must be 2 numbers)")
}

func Div(a, b Value) (Value, error) {
	if a.Tag == Integer && b.Tag == Integer {
		if b.Int == 0 {
			return Nil(), fail("Attempt to divide by 0!")
		}
		return Int(a.Int / b.Int), nil
	}
	if a.Tag == Decimal && b.Tag == Decimal {
		return Dec(a.Dec / b.Dec), nil
	}
	if da, ok1 := decimalValue(a); ok1 {
		if db, ok2 := decimalValue(b); ok2 {
			if db == 0 {
				return Nil(), fail("Attempt to divide by 0!")
			}
			return Dec(da / db), nil
		}
	}
	return Nil(), fail("Invalid operands for division (must be 2 numbers)")
}

func Mod(a, b Value) (Value, error) {
	l1, ok1 := integerValue(a)
	l2, ok2 := integerValue(b)
	if !ok1 || !ok2 {
		return Nil(), fail("Invalid operands for '%%' (requires 2 numbers)")
	}
	if l2 == 0 {
		return Nil(), fail("Attempt to divide by 0!")
	}
	return Int(l1 % l2), nil
}

func BitOr(a, b Value) (Value, error) {
	if a.Tag != Integer || b.Tag != Integer {
		return Nil(), fail("Invalid operands for bitwise 'or' operation (requires 2 integers)")
	}
	return Int(a.Int | b.Int), nil
}

func BitXor(a, b Value) (Value, error) {
	if a.Tag != Integer || b.Tag != Integer {
		return Nil(), fail("Invalid operands for bitwise 'xor' operation (requires 2 integers)")
	}
	return Int(a.Int ^ b.Int), nil
}

func BitAnd(a, b Value) (Value, error) {
	if a.Tag != Integer || b.Tag != Integer {
		return Nil(), fail("Invalid operands for bitwise 'and' operation (requires 2 integers)")
	}
	return Int(a.Int & b.Int), nil
}

func Shl(a, b Value) (Value, error) {
	if a.Tag != Integer || b.Tag != Integer {
		return Nil(), fail("Invalid operands for << operation (requires 2 integers)")
	}
	return Int(int32(uint32(a.Int) << uint32(b.Int))), nil
}

func Shr(a, b Value) (Value, error) {
	if a.Tag != Integer || b.Tag != Integer {
		return Nil(), fail("Invalid operands for >> operation (requires 2 integers)")
	}
	return Int(int32(uint32(a.Int) >> uint32(b.Int))), nil
}

func Neg(a Value) (Value, error) {
	switch a.Tag {
	case Decimal:
		return Dec(-a.Dec), nil
	case Integer:
		return Int(-a.Int), nil
	default:
		return Nil(), fail("Invalid operand for negation operator (requires a number)")
	}
}

func BoolNot(v Value) Value {
	if IsTrue(v) {
		return Int(0)
	}
	return Int(1)
}

// BitNot is the two's-complement bitwise complement. The original source
// (ScriptVariant_Bit_Not) returns its operand unchanged instead of
// complementing it — a documented bug (spec §9) fixed here.
func BitNot(a Value) (Value, error) {
	if a.Tag != Integer {
		return Nil(), fail("Invalid operand for '~' operator (requires an integer)")
	}
	return Int(^a.Int), nil
}

func Bool(v Value) Value {
	if IsTrue(v) {
		return Int(1)
	}
	return Int(0)
}

func Eq(c *Cache, a, b Value) Value { return Bool01(IsEqual(c, a, b)) }
func Ne(c *Cache, a, b Value) Value { return Bool01(!IsEqual(c, a, b)) }

func Bool01(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// cmp implements the shared structure of Lt/Gt/Ge/Le: same-tag ordering
// (numbers, strings), numeric promotion across tags, else false.
func cmp(c *Cache, a, b Value, intCmp func(int32, int32) bool, decCmp func(float64, float64) bool, strCmp func(string, string) bool) Value {
	if a.Tag == b.Tag {
		switch a.Tag {
		case Integer:
			return Bool01(intCmp(a.Int, b.Int))
		case Decimal:
			return Bool01(decCmp(a.Dec, b.Dec))
		case String:
			return Bool01(strCmp(c.Get(a.Idx), c.Get(b.Idx)))
		default:
			return Int(0)
		}
	}
	if da, ok1 := decimalValue(a); ok1 {
		if db, ok2 := decimalValue(b); ok2 {
			return Bool01(decCmp(da, db))
		}
	}
	return Int(0)
}

func Lt(c *Cache, a, b Value) Value {
	return cmp(c, a, b, func(x, y int32) bool { return x < y }, func(x, y float64) bool { return x < y }, func(x, y string) bool { return x < y })
}

func Gt(c *Cache, a, b Value) Value {
	return cmp(c, a, b, func(x, y int32) bool { return x > y }, func(x, y float64) bool { return x > y }, func(x, y string) bool { return x > y })
}

func Ge(c *Cache, a, b Value) Value {
	return cmp(c, a, b, func(x, y int32) bool { return x >= y }, func(x, y float64) bool { return x >= y }, func(x, y string) bool { return x >= y })
}

func Le(c *Cache, a, b Value) Value {
	return cmp(c, a, b, func(x, y int32) bool { return x <= y }, func(x, y float64) bool { return x <= y }, func(x, y string) bool { return x <= y })
}

// ParseStringConstant interns a literal string into the persistent cache,
// reusing an existing referenced entry when one matches content
// (grounded on ScriptVariant_ParseStringConstant).
func ParseStringConstant(c *Cache, s string) Value {
	if idx := c.FindString(s); idx >= 0 {
		c.Ref(idx)
		return Str(idx)
	}
	idx := c.PopPersistent(s)
	c.SetHash(idx)
	return Str(idx)
}
