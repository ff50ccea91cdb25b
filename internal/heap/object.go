package heap

import (
	"fmt"
	"sort"
	"strings"

	"chronoscript/internal/value"
)

// Object is ChronoScript's hash-table container, grounded on
// ScriptObject.cpp. The original implements Brent-style open-addressed
// displacement over interned string-index keys; here it is simplified to
// Go's native map keyed by the string's content (the string cache already
// makes string content comparison content-addressable, so the collision
// strategy is an implementation detail the spec does not pin down).
// Insertion order is tracked separately so printing/iteration
// (`keys`, GC marking, toString) is deterministic, matching the spec's
// intent that Object is not ordered by hash bucket for observers.
type Object struct {
	index   map[string]int
	entries []objEntry
}

type objEntry struct {
	Key   string
	Value value.Value
}

func NewObject() *Object {
	return &Object{index: make(map[string]int)}
}

// Get returns the value for key and whether it was present (mirrors
// ScriptObject::get).
func (o *Object) Get(key string) (value.Value, bool) {
	i, ok := o.index[key]
	if !ok {
		return value.Nil(), false
	}
	return o.entries[i].Value, true
}

// Set inserts or updates key's value (mirrors ScriptObject::set).
func (o *Object) Set(key string, v value.Value) {
	if i, ok := o.index[key]; ok {
		o.entries[i].Value = v
		return
	}
	o.index[key] = len(o.entries)
	o.entries = append(o.entries, objEntry{Key: key, Value: v})
}

// HasKey reports whether key is present.
func (o *Object) HasKey(key string) bool {
	_, ok := o.index[key]
	return ok
}

// Keys returns the object's keys in insertion order (mirrors the `keys`
// method, spec §4.7).
func (o *Object) Keys() []string {
	keys := make([]string, len(o.entries))
	for i, e := range o.entries {
		keys[i] = e.Key
	}
	return keys
}

// SortedKeys is a deterministic debug helper, not used by script
// semantics (insertion order is what `keys` observes).
func (o *Object) SortedKeys() []string {
	keys := o.Keys()
	sort.Strings(keys)
	return keys
}

// ToString renders the object the way ScriptObject::toString does,
// delegating nested containers back through containers.
func (o *Object) ToString(containers value.ContainerToString) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range o.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: ", e.Key)
		switch e.Value.Tag {
		case value.Object, value.List:
			if containers != nil {
				b.WriteString(containers(e.Value.Tag, e.Value.Idx))
			}
		default:
			b.WriteString(e.Value.GoString())
		}
	}
	b.WriteByte('}')
	return b.String()
}
