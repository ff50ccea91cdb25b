package ssa

// scope is one stacked lexical symbol table frame (spec §4.1 "Scope
// discipline").
type scope struct {
	names  map[string]bool
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{names: make(map[string]bool), parent: parent}
}

func (s *scope) has(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.names[name] {
			return true
		}
	}
	return false
}

func (s *scope) hasLocal(name string) bool {
	return s.names[name]
}

// GlobalState tracks every declared global variable, each materialised
// as a stable GlobalRef id (mirrors GlobalState::declareGlobalVariable/
// readGlobalVariable).
type GlobalState struct {
	ids   map[string]int
	names []string
}

func NewGlobalState() *GlobalState {
	return &GlobalState{ids: make(map[string]int)}
}

// Declare registers name as a global, failing if it is already declared
// (spec §7 "Compile errors" — global-variable redefinition).
func (g *GlobalState) Declare(name string) (int, bool) {
	if _, exists := g.ids[name]; exists {
		return 0, false
	}
	id := len(g.names)
	g.ids[name] = id
	g.names = append(g.names, name)
	return id, true
}

// Lookup returns (id, true) if name is a declared global.
func (g *GlobalState) Lookup(name string) (int, bool) {
	id, ok := g.ids[name]
	return id, ok
}

func (g *GlobalState) Names() []string { return g.names }
