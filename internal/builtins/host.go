package builtins

import (
	"fmt"

	"chronoscript/internal/value"
	"chronoscript/internal/vm"
)

// Host pointer type tags (caller-chosen, per vm.Machine.RegisterHandle's
// doc comment), grounded on FakeEngineTypes.hpp's ScriptHandle subclasses.
const (
	ptrTypeModel uint8 = iota + 1
	ptrTypeEntity
)

// Model mirrors FakeEngineTypes.cpp's Model: a read-only handle wrapping
// a model name.
type Model struct {
	Name string
}

func (mdl *Model) GetProperty(m *vm.Machine, name string) (value.Value, error) {
	if name != "name" {
		return value.Nil(), fmt.Errorf("Model has no property '%s'", name)
	}
	idx := m.Strings.Pop(mdl.Name)
	m.Strings.SetHash(idx)
	return value.Str(idx), nil
}

func (m *Model) SetProperty(_ *vm.Machine, name string, _ value.Value) error {
	return fmt.Errorf("Model.%s is read-only", name)
}

// Entity mirrors FakeEngineTypes.cpp's Entity: position/velocity plus a
// back-reference to its Model, with velocity writable and position only
// mutated through move().
type Entity struct {
	ModelHandle *Model
	X, Y, Z     float64
	VX, VY, VZ  float64
}

func (e *Entity) GetProperty(m *vm.Machine, name string) (value.Value, error) {
	switch name {
	case "model":
		if e.ModelHandle == nil {
			return value.Nil(), nil
		}
		id := m.RegisterHandle(e.ModelHandle)
		return value.Ptr(ptrTypeModel, id), nil
	case "pos_x":
		return value.Dec(e.X), nil
	case "pos_y":
		return value.Dec(e.Y), nil
	case "pos_z":
		return value.Dec(e.Z), nil
	case "vx":
		return value.Dec(e.VX), nil
	case "vy":
		return value.Dec(e.VY), nil
	case "vz":
		return value.Dec(e.VZ), nil
	default:
		return value.Nil(), fmt.Errorf("Entity has no property '%s'", name)
	}
}

func (e *Entity) SetProperty(_ *vm.Machine, name string, v value.Value) error {
	switch name {
	case "vx", "vy", "vz":
		d, ok := decimalOf(v)
		if !ok {
			return fmt.Errorf("Entity.%s must be assigned a number", name)
		}
		switch name {
		case "vx":
			e.VX = d
		case "vy":
			e.VY = d
		case "vz":
			e.VZ = d
		}
		return nil
	default:
		return fmt.Errorf("Entity.%s is read-only", name)
	}
}

// decimalOf widens an Integer or Decimal value.Value to a float64; package
// value keeps its own equivalent helper unexported, so builtins carries a
// small local copy.
func decimalOf(v value.Value) (float64, bool) {
	switch v.Tag {
	case value.Integer:
		return float64(v.Int), true
	case value.Decimal:
		return v.Dec, true
	default:
		return 0, false
	}
}

// create_model(name) returns a handle to a (fake) model resource.
func builtinCreateModel(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil(), fmt.Errorf("create_model(name) requires exactly 1 parameter")
	}
	if args[0].Tag != value.String {
		return value.Nil(), fmt.Errorf("create_model(name): parameter must be a string")
	}
	mdl := &Model{Name: m.Strings.Get(args[0].Idx)}
	id := m.RegisterHandle(mdl)
	return value.Ptr(ptrTypeModel, id), nil
}

// create_entity(model, x, y, z) places a new entity in the world. The
// original reads the z coordinate from params[1] (the x slot) a second
// time instead of params[3], so every spawned entity lands with x==z and
// an unreachable y; spec §9 names this bug explicitly, fixed here by
// reading params[3].
func builtinCreateEntity(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 4 {
		return value.Nil(), fmt.Errorf("create_entity(model, x, y, z) requires exactly 4 parameters")
	}
	h, ok := m.HandleFor(args[0])
	if !ok {
		return value.Nil(), fmt.Errorf("create_entity: first parameter must be a model handle")
	}
	mdl, ok := h.(*Model)
	if !ok {
		return value.Nil(), fmt.Errorf("create_entity: first parameter must be a model handle")
	}
	x, ok1 := decimalOf(args[1])
	y, ok2 := decimalOf(args[2])
	z, ok3 := decimalOf(args[3])
	if !ok1 || !ok2 || !ok3 {
		return value.Nil(), fmt.Errorf("create_entity: x, y, and z must be numbers")
	}
	ent := &Entity{ModelHandle: mdl, X: x, Y: y, Z: z}
	id := m.RegisterHandle(ent)
	return value.Ptr(ptrTypeEntity, id), nil
}

// move(entity, dx, dy, dz) displaces an entity by a relative offset.
// Builtins.cpp's method_move carries the same unflagged bug as
// create_entity (dz read from params[1] a second time instead of
// params[3]); not one of the three bugs spec §9 names, but identical in
// shape to the named create_entity bug, so fixed the same way rather
// than reproduced.
func methodMove(m *vm.Machine, args []value.Value) (value.Value, error) {
	if len(args) != 4 {
		return value.Nil(), fmt.Errorf("entity.move(dx, dy, dz) requires exactly 3 parameters")
	}
	h, ok := m.HandleFor(args[0])
	if !ok {
		return value.Nil(), fmt.Errorf("move() called on something other than an entity")
	}
	ent, ok := h.(*Entity)
	if !ok {
		return value.Nil(), fmt.Errorf("move() called on something other than an entity")
	}
	dx, ok1 := decimalOf(args[1])
	dy, ok2 := decimalOf(args[2])
	dz, ok3 := decimalOf(args[3])
	if !ok1 || !ok2 || !ok3 {
		return value.Nil(), fmt.Errorf("move(): dx, dy, and dz must be numbers")
	}
	ent.X += dx
	ent.Y += dy
	ent.Z += dz
	return value.Nil(), nil
}
