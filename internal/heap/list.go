package heap

import (
	"fmt"
	"strings"

	"chronoscript/internal/value"
)

// List is ChronoScript's dense sequence container, grounded on
// ScriptList.cpp.
type List struct {
	items []value.Value
}

func NewList() *List {
	return &List{}
}

func (l *List) Len() int { return len(l.items) }

// Get mirrors ScriptList::get: fails silently (ok=false) on out-of-range.
func (l *List) Get(i int) (value.Value, bool) {
	if i < 0 || i >= len(l.items) {
		return value.Nil(), false
	}
	return l.items[i], true
}

// Set overwrites index i; returns an error when out of bounds, matching
// the interpreter's "list index %i is out of bounds" runtime error.
func (l *List) Set(i int, v value.Value) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("list index %d is out of bounds", i)
	}
	l.items[i] = v
	return nil
}

// Append adds v to the end of the list (mirrors the `append` method,
// spec §4.7).
func (l *List) Append(v value.Value) {
	l.items = append(l.items, v)
}

// Insert places v at index i, shifting subsequent elements right (mirrors
// the `insert` method).
func (l *List) Insert(i int, v value.Value) error {
	if i < 0 || i > len(l.items) {
		return fmt.Errorf("list index %d is out of bounds", i)
	}
	l.items = append(l.items, value.Nil())
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v
	return nil
}

// Remove deletes the element at index i, shifting subsequent elements
// left (mirrors the `remove` method).
func (l *List) Remove(i int) error {
	if i < 0 || i >= len(l.items) {
		return fmt.Errorf("list index %d is out of bounds", i)
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return nil
}

func (l *List) ToString(containers value.ContainerToString) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range l.items {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v.Tag {
		case value.Object, value.List:
			if containers != nil {
				b.WriteString(containers(v.Tag, v.Idx))
			}
		default:
			b.WriteString(v.GoString())
		}
	}
	b.WriteByte(']')
	return b.String()
}
