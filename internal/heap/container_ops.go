package heap

import (
	"fmt"

	"chronoscript/internal/value"
)

// Get implements `get(container, key)` (spec §4.8): Object requires a
// String key, List requires a non-negative in-range Integer key.
// Grounded on ScriptVariant_ContainerGet.
func (h *Heap) Get(sc *value.Cache, container, key value.Value) (value.Value, error) {
	switch container.Tag {
	case value.Object:
		if key.Tag != value.String {
			return value.Nil(), fmt.Errorf("object key must be a string")
		}
		k := sc.Get(key.Idx)
		v, ok := h.Object(container.Idx).Get(k)
		if !ok {
			return value.Nil(), fmt.Errorf("object has no member named %s", k)
		}
		return v, nil
	case value.List:
		if key.Tag != value.Integer {
			return value.Nil(), fmt.Errorf("list index must be an integer")
		}
		if key.Int < 0 {
			return value.Nil(), fmt.Errorf("list index cannot be negative")
		}
		v, ok := h.List(container.Idx).Get(int(key.Int))
		if !ok {
			return value.Nil(), fmt.Errorf("list index %d is out of bounds", key.Int)
		}
		return v, nil
	default:
		return value.Nil(), fmt.Errorf("cannot fetch a member from a non-container")
	}
}

// Set implements `set(container, key, value)`, performing the GC write
// barrier. Grounded on ScriptVariant_ContainerSet/ObjectHeap_SetObjectMember
// /ObjectHeap_SetListMember.
func (h *Heap) Set(sc *value.Cache, container, key, val value.Value) error {
	switch container.Tag {
	case value.Object:
		if key.Tag != value.String {
			return fmt.Errorf("object key must be a string")
		}
		h.SetObjectMember(container.Idx, sc.Get(key.Idx), val)
		return nil
	case value.List:
		if key.Tag != value.Integer {
			return fmt.Errorf("list index must be an integer")
		}
		if key.Int < 0 {
			return fmt.Errorf("list index cannot be negative")
		}
		return h.SetListMember(container.Idx, int(key.Int), val)
	default:
		return fmt.Errorf("cannot assign a member on a non-container")
	}
}

// ToString resolves a container's string form for value.ToString's
// callback hook, handling the cycle-safe textual rendering both
// Object/List implement directly.
func (h *Heap) ToString(tag value.Tag, idx int32) string {
	if tag == value.List {
		return h.List(idx).ToString(h.ToString)
	}
	return h.Object(idx).ToString(h.ToString)
}
