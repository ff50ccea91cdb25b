// Package builtins implements ChronoScript's free-function and method
// host-call registries (C10), grounded on original_source/Builtins.cpp:
// two independently sorted tables, `log`/`get_args`/conversions/list and
// object operations as free builtins, `substring`/`length`/`append`/
// `has_key`/`keys`/`move` as methods whose first argument is always the
// receiver.
package builtins

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"chronoscript/internal/value"
	"chronoscript/internal/vm"
)

type entry struct {
	name string
	fn   vm.Builtin
}

// Host carries the small amount of state a registry of otherwise-stateless
// builtins needs across calls within one Machine's lifetime: the lazily
// created globals() object. Grounded on Builtins.cpp's static
// globalsObject, but scoped per-Host instead of process-wide so that
// multiple Machines (e.g. in tests) never share it.
type Host struct {
	globalsIdx int32
	hasGlobals bool
}

// RegisterAll installs every free builtin and method onto m, in the same
// alphabetical order the tables below are declared in — that order is
// also what BuiltinNames/MethodNames (and therefore the compiled
// bytecode's BuiltinIndex operand) key off of.
func RegisterAll(m *vm.Machine) {
	h := &Host{}
	for _, e := range builtinsTable(h) {
		m.RegisterBuiltin(e.name, e.fn)
	}
	for _, e := range methodsTable() {
		m.RegisterMethod(e.name, e.fn)
	}
}

// Resolver returns a module.BuiltinResolver-compatible lookup the parser
// consults while building SSA, to decide whether an unbound call name
// should become OpCallBuiltin instead of a plain OpCall (spec §4.7).
// Indices match RegisterAll's registration order exactly, since both
// walk the same sorted table.
func Resolver() func(name string) (int, bool) {
	names := make([]string, len(freeBuiltinNames))
	copy(names, freeBuiltinNames)
	return func(name string) (int, bool) {
		i := sort.SearchStrings(names, name)
		if i < len(names) && names[i] == name {
			return i, true
		}
		return 0, false
	}
}

// MethodResolver is Resolver's counterpart for the methods table.
func MethodResolver() func(name string) (int, bool) {
	names := make([]string, len(methodNames))
	copy(names, methodNames)
	return func(name string) (int, bool) {
		i := sort.SearchStrings(names, name)
		if i < len(names) && names[i] == name {
			return i, true
		}
		return 0, false
	}
}

// define each builtin IN ALPHABETICAL ORDER, or Resolver's binary search
// over freeBuiltinNames won't find it.
var freeBuiltinNames = []string{
	"cc_constant",
	"char_from_integer",
	"create_entity",
	"create_model",
	"file_read",
	"get_args",
	"globals",
	"list_append",
	"list_insert",
	"list_remove",
	"log",
	"log_write",
	"new_list",
	"new_object",
	"string_char_at",
	"to_decimal",
	"to_integer",
	"to_string",
}

func builtinsTable(h *Host) []entry {
	return []entry{
		{"cc_constant", builtinCcConstant},
		{"char_from_integer", builtinCharFromInteger},
		{"create_entity", builtinCreateEntity},
		{"create_model", builtinCreateModel},
		{"file_read", builtinFileRead},
		{"get_args", builtinGetArgs},
		{"globals", h.builtinGlobals},
		{"list_append", builtinListAppend},
		{"list_insert", builtinListInsert},
		{"list_remove", builtinListRemove},
		{"log", builtinLog},
		{"log_write", builtinLogWrite},
		{"new_list", builtinNewList},
		{"new_object", builtinNewObject},
		{"string_char_at", builtinStringCharAt},
		{"to_decimal", builtinToDecimal},
		{"to_integer", builtinToInteger},
		{"to_string", builtinToString},
	}
}

// methods, also alphabetical.
var methodNames = []string{
	"append",
	"char_at",
	"has_key",
	"insert",
	"keys",
	"length",
	"move",
	"remove",
	"substring",
}

func methodsTable() []entry {
	return []entry{
		{"append", methodAppend},
		{"char_at", methodCharAt},
		{"has_key", methodHasKey},
		{"insert", methodInsert},
		{"keys", methodKeys},
		{"length", methodLength},
		{"move", methodMove},
		{"remove", methodRemove},
		{"substring", methodSubstring},
	}
}

func logBuiltinCommon(m *vm.Machine, args []value.Value, newline bool) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = value.ToString(m.Strings, a, m.ContainerToString)
	}
	out := strings.Join(parts, " ")
	if newline {
		fmt.Println(out)
	} else {
		fmt.Print(out)
	}
	return value.Nil(), nil
}

// log([a, [b, [...]]]) writes each parameter separated by a space,
// followed by a newline.
func builtinLog(m *vm.Machine, args []value.Value) (value.Value, error) {
	return logBuiltinCommon(m, args, true)
}

// log_write([a, [b, [...]]]) is log() without the trailing newline.
func builtinLogWrite(m *vm.Machine, args []value.Value) (value.Value, error) {
	return logBuiltinCommon(m, args, false)
}

// get_args() returns runscript's command-line arguments as a list.
func builtinGetArgs(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil(), fmt.Errorf("get_args() takes no parameters")
	}
	idx := m.Heap.PopList()
	for _, a := range m.ScriptArgs {
		sidx := m.Strings.Pop(a)
		m.Strings.SetHash(sidx)
		m.Heap.AppendToList(idx, value.Str(sidx))
	}
	return value.Lst(idx), nil
}

// engineConstants mirrors scriptConstantValue's sample constants pulled
// from the host engine's headers.
var engineConstants = map[string]int32{
	"COMPATIBLEVERSION": 0x00033748,
	"MAX_ENTS":          150,
	"MAX_SPECIALS":      8,
}

// cc_constant(name) returns the value of a named host engine constant.
func builtinCcConstant(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("cc_constant(constant_name) requires exactly 1 parameter")
	}
	if args[0].Tag != value.String {
		return value.Nil(), fmt.Errorf("cc_constant(): first parameter must be a string")
	}
	name := m.Strings.Get(args[0].Idx)
	v, ok := engineConstants[name]
	if !ok {
		return value.Nil(), fmt.Errorf("cc_constant(): no constant named '%s'", name)
	}
	return value.Int(v), nil
}

// builtinNewList/builtinNewObject back the parser's list/object literal
// lowering (spec §6 `[val, …]` / `{key: val, …}`): each literal compiles
// to a call here followed by one list_append/Set per element, mirroring
// how ObjectHeap::popList/popObject are the only construction path for
// either container kind (C2).
func builtinNewList(m *vm.Machine, args []value.Value) (value.Value, error) {
	return value.Lst(m.Heap.PopList()), nil
}

func builtinNewObject(m *vm.Machine, args []value.Value) (value.Value, error) {
	return value.Obj(m.Heap.PopObject()), nil
}

func builtinListAppend(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil(), fmt.Errorf("list_append(list, value) requires exactly 2 parameters")
	}
	if args[0].Tag != value.List {
		return value.Nil(), fmt.Errorf("list_append: first parameter must be a list")
	}
	m.Heap.AppendToList(args[0].Idx, args[1])
	return value.Nil(), nil
}

func builtinListInsert(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.Nil(), fmt.Errorf("list_insert(list, position, value) requires exactly 3 parameters")
	}
	if args[0].Tag != value.List {
		return value.Nil(), fmt.Errorf("list_insert: first parameter must be a list")
	}
	if args[1].Tag != value.Integer {
		return value.Nil(), fmt.Errorf("list_insert: second parameter must be an integer")
	}
	if args[1].Int < 0 {
		return value.Nil(), fmt.Errorf("list_insert: position cannot be negative")
	}
	if err := m.Heap.InsertIntoList(args[0].Idx, int(args[1].Int), args[2]); err != nil {
		return value.Nil(), fmt.Errorf("list_insert failed: %w", err)
	}
	return value.Nil(), nil
}

func builtinListRemove(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil(), fmt.Errorf("list_remove(list, position) requires exactly 2 parameters")
	}
	if args[0].Tag != value.List {
		return value.Nil(), fmt.Errorf("list_remove: first parameter must be a list")
	}
	if args[1].Tag != value.Integer {
		return value.Nil(), fmt.Errorf("list_remove: second parameter must be an integer")
	}
	if args[1].Int < 0 {
		return value.Nil(), fmt.Errorf("list_remove: position cannot be negative")
	}
	if err := m.Heap.RemoveFromList(args[0].Idx, int(args[1].Int)); err != nil {
		return value.Nil(), fmt.Errorf("list_remove failed: %w", err)
	}
	return value.Nil(), nil
}

// globals() returns an object holding process-lifetime global variants,
// created lazily on first call and ref'd persistent.
func (h *Host) builtinGlobals(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Nil(), fmt.Errorf("globals() takes no parameters")
	}
	if !h.hasGlobals {
		h.globalsIdx = m.Heap.PopObject()
		m.Heap.Ref(h.globalsIdx)
		h.hasGlobals = true
	}
	return value.Obj(h.globalsIdx), nil
}

func builtinStringCharAt(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Nil(), fmt.Errorf("string_char_at(string, index) requires exactly 2 parameters")
	}
	if args[0].Tag != value.String {
		return value.Nil(), fmt.Errorf("string_char_at(string, index): first parameter must be a string")
	}
	if args[1].Tag != value.Integer {
		return value.Nil(), fmt.Errorf("string_char_at(string, index): second parameter must be an integer")
	}
	s := m.Strings.Get(args[0].Idx)
	idx := int(args[1].Int)
	if idx < 0 {
		return value.Nil(), fmt.Errorf("string_char_at: index (%d) is negative", idx)
	}
	if idx >= len(s) {
		return value.Nil(), fmt.Errorf("string_char_at: index (%d) >= string length (%d)", idx, len(s))
	}
	return value.Int(int32(s[idx])), nil
}

// to_decimal(value) converts integers/decimals/numeric strings to a
// Decimal. The original's string path (strtod + an errno/endptr check)
// has a legacy branch that reports success on a non-numeric string
// instead of failing (spec §9); here strconv.ParseFloat's error is
// propagated directly, so a non-numeric string always fails.
func builtinToDecimal(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("to_decimal(value) requires exactly 1 parameter")
	}
	switch args[0].Tag {
	case value.Integer:
		return value.Dec(float64(args[0].Int)), nil
	case value.Decimal:
		return args[0], nil
	case value.String:
		s := m.Strings.Get(args[0].Idx)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Nil(), fmt.Errorf("'%s' is not a number", s)
		}
		return value.Dec(f), nil
	default:
		return value.Nil(), fmt.Errorf("to_decimal(value) only accepts an integer, decimal, or string as its parameter")
	}
}

func builtinToInteger(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("to_integer(value) requires exactly 1 parameter")
	}
	switch args[0].Tag {
	case value.Integer:
		return args[0], nil
	case value.Decimal:
		d := args[0].Dec
		if isNanOrInf(d) {
			return value.Nil(), fmt.Errorf("cannot convert NaN or infinity to an integer")
		}
		if d < -2147483648 || d > 2147483647 {
			return value.Nil(), fmt.Errorf("%f is too large or small to fit in a 32-bit integer", d)
		}
		return value.Int(int32(d)), nil
	case value.String:
		s := m.Strings.Get(args[0].Idx)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return value.Nil(), fmt.Errorf("'%s' is not an integer", s)
		}
		// accept anything that fits in either a signed or unsigned 32-bit int
		if n < -2147483648 || n > 4294967295 {
			return value.Nil(), fmt.Errorf("'%s' is too large or small to fit in a 32-bit integer", s)
		}
		return value.Int(int32(n)), nil
	default:
		return value.Nil(), fmt.Errorf("to_integer(value) only accepts an integer, decimal, or string as its parameter")
	}
}

func isNanOrInf(d float64) bool {
	return d != d || d > 1.7976931348623157e+308 || d < -1.7976931348623157e+308
}

func builtinToString(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("to_string(value) requires exactly 1 parameter")
	}
	if args[0].Tag == value.String {
		return args[0], nil
	}
	s := value.ToString(m.Strings, args[0], m.ContainerToString)
	idx := m.Strings.Pop(s)
	m.Strings.SetHash(idx)
	return value.Str(idx), nil
}

func builtinCharFromInteger(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("char_from_integer(ascii) requires exactly 1 parameter")
	}
	if args[0].Tag != value.Integer {
		return value.Nil(), fmt.Errorf("char_from_integer(ascii): parameter must be an integer")
	}
	idx := m.Strings.Pop(string([]byte{byte(args[0].Int)}))
	m.Strings.SetHash(idx)
	return value.Str(idx), nil
}

func builtinFileRead(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("file_read(path) requires exactly 1 parameter")
	}
	if args[0].Tag != value.String {
		return value.Nil(), fmt.Errorf("file_read(path): parameter must be a string")
	}
	path := m.Strings.Get(args[0].Idx)
	data, err := os.ReadFile(path)
	if err != nil {
		return value.Nil(), fmt.Errorf("failed to open file '%s'", path)
	}
	idx := m.Strings.Pop(string(data))
	m.Strings.SetHash(idx)
	return value.Str(idx), nil
}

// ---- methods (receiver is always args[0]) ----

func methodCharAt(m *vm.Machine, args []value.Value) (value.Value, error) {
	return builtinStringCharAt(m, args)
}

func methodAppend(m *vm.Machine, args []value.Value) (value.Value, error) {
	return builtinListAppend(m, args)
}

func methodInsert(m *vm.Machine, args []value.Value) (value.Value, error) {
	return builtinListInsert(m, args)
}

func methodRemove(m *vm.Machine, args []value.Value) (value.Value, error) {
	return builtinListRemove(m, args)
}

func methodLength(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("the length() method takes no parameters")
	}
	switch args[0].Tag {
	case value.String:
		return value.Int(int32(m.Strings.Len(args[0].Idx))), nil
	case value.List:
		return value.Int(int32(m.Heap.List(args[0].Idx).Len())), nil
	default:
		return value.Nil(), fmt.Errorf("invalid type for length() method")
	}
}

func methodSubstring(m *vm.Machine, args []value.Value) (value.Value, error) {
	if args[0].Tag != value.String {
		return value.Nil(), fmt.Errorf("only strings have the substring() method")
	}
	if len(args) != 2 && len(args) != 3 {
		return value.Nil(), fmt.Errorf("the substring(start[, end]) method requires 1 or 2 parameters, not %d", len(args)-1)
	}
	if args[1].Tag != value.Integer || (len(args) > 2 && args[2].Tag != value.Integer) {
		return value.Nil(), fmt.Errorf("the parameter(s) of the substring() method must be integers")
	}
	s := m.Strings.Get(args[0].Idx)
	start := int(args[1].Int)
	end := len(s)
	if len(args) > 2 {
		end = int(args[2].Int)
	}
	if start < 0 || start >= len(s) {
		return value.Nil(), fmt.Errorf("start position %d is not a valid index in the string '%s' with length %d", start, s, len(s))
	}
	if end < start {
		return value.Nil(), fmt.Errorf("end (%d) is before start (%d)", end, start)
	}
	if end > len(s) {
		return value.Nil(), fmt.Errorf("end (%d) is beyond the end of the string '%s' with length %d", end, s, len(s))
	}
	idx := m.Strings.Pop(s[start:end])
	m.Strings.SetHash(idx)
	return value.Str(idx), nil
}

func methodHasKey(m *vm.Machine, args []value.Value) (value.Value, error) {
	if args[0].Tag != value.Object {
		return value.Nil(), fmt.Errorf("only objects have the has_key() method")
	}
	if len(args) != 2 {
		return value.Nil(), fmt.Errorf("object.has_key(key) takes 1 argument, got %d instead", len(args)-1)
	}
	if args[1].Tag != value.String {
		// no need to report an error here; a non-string key just isn't present
		return value.Bool01(false), nil
	}
	key := m.Strings.Get(args[1].Idx)
	return value.Bool01(m.Heap.Object(args[0].Idx).HasKey(key)), nil
}

func methodKeys(m *vm.Machine, args []value.Value) (value.Value, error) {
	if args[0].Tag != value.Object {
		return value.Nil(), fmt.Errorf("only objects have the keys() method")
	}
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("object.keys() takes no arguments, got %d instead", len(args)-1)
	}
	idx := m.Heap.PopList()
	for _, k := range m.Heap.Object(args[0].Idx).Keys() {
		sidx := m.Strings.Pop(k)
		m.Strings.SetHash(sidx)
		m.Heap.AppendToList(idx, value.Str(sidx))
	}
	return value.Lst(idx), nil
}
