// Package heap implements ChronoScript's container heap (C2): a dense
// slab of slots holding Objects (hash tables) and Lists, combining
// refcounting with a tri-color mark-and-sweep cycle collector, grounded
// on original_source/ObjectHeap.h and ObjectHeap.cpp.
package heap

import "chronoscript/internal/value"

type GCColor uint8

const (
	White GCColor = iota
	Gray
	Black
)

// Container is either an Object or a List slot payload.
type Container struct {
	IsList bool
	Obj    *Object
	Lst    *List
}

type slot struct {
	container  *Container
	gcColor    GCColor
	refcount   int32
	persistent bool
}

// Heap is the process-wide container heap singleton.
type Heap struct {
	slots          []slot
	freeList       []int32
	pendingRelease []int32
	grayStack      []int32
}

func New() *Heap {
	return &Heap{}
}

func (h *Heap) alloc() int32 {
	if n := len(h.freeList); n > 0 {
		idx := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		return idx
	}
	idx := int32(len(h.slots))
	h.slots = append(h.slots, slot{})
	return idx
}

func (h *Heap) pop() int32 {
	idx := h.alloc()
	h.slots[idx] = slot{gcColor: White, refcount: 0}
	h.pendingRelease = append(h.pendingRelease, idx)
	return idx
}

// PopObject creates a temporary Object with refcount 0 (mirrors
// ObjectHeap::popObject).
func (h *Heap) PopObject() int32 {
	idx := h.pop()
	h.slots[idx].container = &Container{Obj: NewObject()}
	return idx
}

// PopList creates a temporary List with refcount 0 (mirrors
// ObjectHeap::popList).
func (h *Heap) PopList() int32 {
	idx := h.pop()
	h.slots[idx].container = &Container{IsList: true, Lst: NewList()}
	return idx
}

func (h *Heap) Container(index int32) *Container { return h.slots[index].container }

func (h *Heap) Object(index int32) *Object { return h.slots[index].container.Obj }

func (h *Heap) List(index int32) *List { return h.slots[index].container.Lst }

func (h *Heap) IsList(index int32) bool {
	return h.slots[index].container != nil && h.slots[index].container.IsList
}

func (h *Heap) GCColor(index int32) GCColor { return h.slots[index].gcColor }

func (h *Heap) IsPersistent(index int32) bool { return h.slots[index].persistent }

// Ref promotes index to persistent on first call (mirrors
// ObjectHeap_Ref's "make persistent or ref if already persistent").
func (h *Heap) Ref(index int32) {
	h.slots[index].persistent = true
	h.slots[index].refcount++
}

// Unref decrements refcount, re-enrolling the slot for possible release
// (mirrors ObjectHeap::unref).
func (h *Heap) Unref(index int32) {
	s := &h.slots[index]
	if s.container == nil {
		return
	}
	s.refcount--
	if s.refcount == 0 {
		h.pendingRelease = append(h.pendingRelease, index)
	}
}

// ClearTemporary frees every enrolled slot that is either refcount-0 or
// was never promoted to persistent (mirrors
// ObjectHeap::clearTemporaryReferences).
func (h *Heap) ClearTemporary() {
	for _, idx := range h.pendingRelease {
		s := &h.slots[idx]
		if s.container != nil && (s.refcount == 0 || !s.persistent) {
			s.container = nil
			h.freeList = append(h.freeList, idx)
		}
	}
	h.pendingRelease = h.pendingRelease[:0]
}

// PushGray schedules index for marking (mirrors ObjectHeap::pushGray).
func (h *Heap) PushGray(index int32) {
	h.slots[index].gcColor = Gray
	h.grayStack = append(h.grayStack, index)
}

func (h *Heap) processOneGraySub(v value.Value) {
	if v.Tag == value.Object || v.Tag == value.List {
		if h.slots[v.Idx].gcColor == White {
			h.PushGray(v.Idx)
		}
	}
}

func (h *Heap) processOneGray() {
	n := len(h.grayStack)
	idx := h.grayStack[n-1]
	h.grayStack = h.grayStack[:n-1]
	c := h.slots[idx].container
	if c.IsList {
		for _, v := range c.Lst.items {
			h.processOneGraySub(v)
		}
	} else {
		for _, v := range c.Obj.entries {
			h.processOneGraySub(v.Value)
		}
	}
	h.slots[idx].gcColor = Black
}

// MarkAll drains the gray stack (mirrors ObjectHeap::markAll).
func (h *Heap) MarkAll() {
	for len(h.grayStack) > 0 {
		h.processOneGray()
	}
}

// Sweep frees every white container slot (mirrors ObjectHeap::sweep).
// Callers must ensure MarkAll has drained the gray stack first.
func (h *Heap) Sweep() {
	for i := range h.slots {
		s := &h.slots[i]
		if s.container != nil && s.gcColor == White {
			s.container = nil
			h.freeList = append(h.freeList, int32(i))
		}
	}
}

// writeBarrier enforces "a persistent container may only hold
// persistent children" by ref-promoting v when parent is persistent,
// then re-greys a white child assigned into a persistent black parent
// to preserve the tri-color invariant (mirrors the barrier duplicated
// across ObjectHeap_SetObjectMember/SetListMember/InsertInList, each of
// which calls ScriptVariant_Ref(value) whenever the parent is
// persistent before touching the slot).
func (h *Heap) writeBarrier(parent int32, v value.Value) {
	if !h.slots[parent].persistent {
		return
	}
	if v.Tag != value.Object && v.Tag != value.List {
		return
	}
	h.Ref(v.Idx)
	if h.slots[parent].gcColor == Black && h.slots[v.Idx].gcColor == White {
		h.PushGray(v.Idx)
	}
}

// SetObjectMember performs obj[key] = val with the GC write barrier
// (mirrors ObjectHeap_SetObjectMember).
func (h *Heap) SetObjectMember(index int32, key string, val value.Value) {
	h.writeBarrier(index, val)
	h.Object(index).Set(key, val)
}

// SetListMember performs lst[i] = val with the GC write barrier.
func (h *Heap) SetListMember(index int32, i int, val value.Value) error {
	h.writeBarrier(index, val)
	return h.List(index).Set(i, val)
}

// AppendToList appends val to a list with the GC write barrier.
func (h *Heap) AppendToList(index int32, val value.Value) {
	h.writeBarrier(index, val)
	h.List(index).Append(val)
}

// InsertIntoList inserts val at position i with the GC write barrier
// (mirrors ObjectHeap_InsertInList).
func (h *Heap) InsertIntoList(index int32, i int, val value.Value) error {
	h.writeBarrier(index, val)
	return h.List(index).Insert(i, val)
}

// RemoveFromList deletes the element at position i (no write barrier
// needed: removal can only turn a black parent's reachable set smaller).
func (h *Heap) RemoveFromList(index int32, i int) error {
	return h.List(index).Remove(i)
}
