package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoscript/internal/builtins"
	"chronoscript/internal/module"
	"chronoscript/internal/ssa"
	"chronoscript/internal/value"
	"chronoscript/internal/vm"
)

// parseAndRun parses source through the real lexer/parser, links it as a
// standalone unit (no imports), and runs its "main" function — exercising
// the whole front end instead of hand-building SSA directly.
func parseAndRun(t *testing.T, source string) (value.Value, *vm.Machine) {
	t.Helper()
	globals := ssa.NewGlobalState()
	sc := value.NewCache()

	p, err := New("test.cs", source, globals, sc, builtins.Resolver(), builtins.MethodResolver())
	require.NoError(t, err)
	result, err := p.ParseProgram()
	require.NoError(t, err)

	mod, bySSA := module.CompileFunctions(result.Functions, globals)
	unit := module.Link("test.cs", mod, result.Functions, bySSA, nil, builtins.Resolver(), result.Reporter)
	require.Zero(t, result.Reporter.ErrorCount())

	mainFn, ok := unit.Module.ByName["main"]
	require.True(t, ok, "no 'main' function compiled")

	m := vm.NewMachineWithStrings(unit.Module, sc)
	builtins.RegisterAll(m)

	ret, err := m.Call(mainFn, nil)
	require.NoError(t, err)
	return ret, m
}

// Scenario 1: arithmetic and type promotion (spec §8).
func TestArithmeticAndTypePromotion(t *testing.T) {
	cases := []struct {
		name   string
		expr   string
		tag    value.Tag
		dec    float64
		intVal int32
		str    string
	}{
		{name: "DecimalDivision", expr: "10 / 2.5", tag: value.Decimal, dec: 4.0},
		{name: "IntegerDivision", expr: "10 / 3", tag: value.Integer, intVal: 3},
		{name: "StringConcat", expr: `"a " + "b"`, tag: value.String, str: "a b"},
		{name: "IntegerPlusString", expr: `10 + "x"`, tag: value.String, str: "10x"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := "int main() { return " + c.expr + "; }"
			ret, m := parseAndRun(t, src)
			require.Equal(t, c.tag, ret.Tag)
			switch c.tag {
			case value.Decimal:
				assert.InDelta(t, c.dec, ret.Dec, 1e-9)
			case value.Integer:
				assert.Equal(t, c.intVal, ret.Int)
			case value.String:
				assert.Equal(t, c.str, m.Strings.Get(ret.Idx))
			}
		})
	}
}

// Scenario 2: prime check by trial division up to floor(sqrt(n)). No
// sqrt builtin exists, so the bound is kept as an integer comparison
// i*i <= n the way a ChronoScript author without a sqrt builtin would.
func TestPrimeCheck(t *testing.T) {
	const src = `
int is_prime(int n) {
	if (n < 2) {
		return 0;
	}
	int i;
	i = 2;
	while (i * i <= n) {
		if (n % i == 0) {
			return 0;
		}
		i = i + 1;
	}
	return 1;
}

int main() {
	return is_prime(17);
}
`
	ret, _ := parseAndRun(t, src)
	require.Equal(t, value.Integer, ret.Tag)
	assert.Equal(t, int32(1), ret.Int)
}

func TestPrimeCheckTable(t *testing.T) {
	const fn = `
int is_prime(int n) {
	if (n < 2) {
		return 0;
	}
	int i;
	i = 2;
	while (i * i <= n) {
		if (n % i == 0) {
			return 0;
		}
		i = i + 1;
	}
	return 1;
}
`
	cases := []struct {
		n    int32
		want int32
	}{
		{1, 0},
		{2, 1},
		{17, 1},
		{21, 0},
	}
	for _, c := range cases {
		src := fn + "\nint main() { return is_prime(" + itoa(c.n) + "); }\n"
		ret, _ := parseAndRun(t, src)
		require.Equal(t, value.Integer, ret.Tag)
		assert.Equal(t, c.want, ret.Int, "is_prime(%d)", c.n)
	}
}

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Scenario 3: switch with an intentional, commented fallthrough. case 1
// omits `break;` but is preceded by a fall-through comment before case
// 2, so no warning is reported and case 2's body runs for input 1.
func TestSwitchFallthrough(t *testing.T) {
	const src = `
string classify(int n) {
	string result;
	result = "unknown";
	switch (n) {
	case 1:
		/* fall through */
	case 2:
		result = "one or two";
		break;
	default:
		result = "unknown";
	}
	return result;
}

string main() {
	return classify(1);
}
`
	ret, m := parseAndRun(t, src)
	require.Equal(t, value.String, ret.Tag)
	assert.Equal(t, "one or two", m.Strings.Get(ret.Idx))
}

func TestSwitchNoFallthroughWarningWhenCommented(t *testing.T) {
	globals := ssa.NewGlobalState()
	sc := value.NewCache()
	const src = `
string classify(int n) {
	string result;
	switch (n) {
	case 1:
		/* fall through */
	case 2:
		result = "one or two";
		break;
	default:
		result = "unknown";
	}
	return result;
}

string main() { return classify(2); }
`
	p, err := New("test.cs", src, globals, sc, builtins.Resolver(), builtins.MethodResolver())
	require.NoError(t, err)
	result, err := p.ParseProgram()
	require.NoError(t, err)
	assert.Zero(t, result.Reporter.ErrorCount())
	for _, d := range result.Reporter.Diagnostics() {
		assert.NotContains(t, d.Message, "falls through", "a commented fall-through must not warn")
	}
}

// Scenario 4: triple-nested for loop. A dead-phi-cycle regression guard
// — this must compile and run without a spurious "undefined value" error.
func TestNestedLoopsCount(t *testing.T) {
	const src = `
int main() {
	int count;
	count = 0;
	int a;
	for (a = 1; a < 10; a = a + 1) {
		int b;
		for (b = 2; b < 10; b = b + 1) {
			int c;
			for (c = 3; c < 10; c = c + 1) {
				count = count + 1;
			}
		}
	}
	return count;
}
`
	ret, _ := parseAndRun(t, src)
	require.Equal(t, value.Integer, ret.Tag)
	assert.Equal(t, int32(9*8*7), ret.Int)
}

// Scenario 5: an import cycle between two units, each calling the
// other's function with a base case, compiled through the same two-phase
// parse-then-link approach cmd/chronoscript's compileFile uses (parse
// both units fully before linking either one).
func TestImportCycleLinkResolvesBothDirections(t *testing.T) {
	globals := ssa.NewGlobalState()
	sc := value.NewCache()

	const srcA = `
int a_is_odd(int n) {
	if (n == 0) {
		return 0;
	}
	return b_is_even(n - 1);
}

int main() {
	return a_is_odd(7);
}
`
	const srcB = `
int b_is_even(int n) {
	if (n == 0) {
		return 1;
	}
	return a_is_odd(n - 1);
}
`
	pa, err := New("a.cs", srcA, globals, sc, builtins.Resolver(), builtins.MethodResolver())
	require.NoError(t, err)
	ra, err := pa.ParseProgram()
	require.NoError(t, err)

	pb, err := New("b.cs", srcB, globals, sc, builtins.Resolver(), builtins.MethodResolver())
	require.NoError(t, err)
	rb, err := pb.ParseProgram()
	require.NoError(t, err)

	modA, bySSAA := module.CompileFunctions(ra.Functions, globals)
	modB, bySSAB := module.CompileFunctions(rb.Functions, globals)

	// Both modules are fully built before either links, so each can see
	// the other's by-name table regardless of which "file" is linked first.
	unitB := module.Link("b.cs", modB, rb.Functions, bySSAB, []*module.Unit{{Path: "a.cs", Module: modA}}, builtins.Resolver(), rb.Reporter)
	unitA := module.Link("a.cs", modA, ra.Functions, bySSAA, []*module.Unit{{Path: "b.cs", Module: modB}}, builtins.Resolver(), ra.Reporter)
	require.Zero(t, ra.Reporter.ErrorCount())
	require.Zero(t, rb.Reporter.ErrorCount())
	_ = unitB

	mainFn, ok := unitA.Module.ByName["main"]
	require.True(t, ok)

	m := vm.NewMachineWithStrings(unitA.Module, sc)
	builtins.RegisterAll(m)

	ret, err := m.Call(mainFn, nil)
	require.NoError(t, err)
	require.Equal(t, value.Integer, ret.Tag)
	assert.Equal(t, int32(1), ret.Int, "a_is_odd(7) via b_is_even should be true")
}

// An unresolved call is a link warning, not a fatal compile error, and
// only becomes a runtime error if the call actually executes (spec §4.6
// step 5, §7).
func TestUnresolvedCallIsNonFatalLinkWarningAndRuntimeErrorOnlyIfCalled(t *testing.T) {
	globals := ssa.NewGlobalState()
	sc := value.NewCache()
	const src = `
int main() {
	return 1;
}

int never_called() {
	return phantom_function();
}
`
	p, err := New("test.cs", src, globals, sc, builtins.Resolver(), builtins.MethodResolver())
	require.NoError(t, err)
	result, err := p.ParseProgram()
	require.NoError(t, err)

	mod, bySSA := module.CompileFunctions(result.Functions, globals)
	unit := module.Link("test.cs", mod, result.Functions, bySSA, nil, builtins.Resolver(), result.Reporter)

	// The unresolved call is reported but does not fail the link.
	require.Zero(t, result.Reporter.ErrorCount())
	foundWarning := false
	for _, d := range result.Reporter.Diagnostics() {
		if d.Warning {
			foundWarning = true
		}
	}
	assert.True(t, foundWarning, "an unresolved call must be reported as a warning")

	mainFn, ok := unit.Module.ByName["main"]
	require.True(t, ok)
	m := vm.NewMachineWithStrings(unit.Module, sc)
	builtins.RegisterAll(m)

	// main() never calls the unresolved function, so running it succeeds.
	ret, err := m.Call(mainFn, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ret.Int)

	// Calling the function with the unresolved target is a runtime error.
	neverCalled, ok := unit.Module.ByName["never_called"]
	require.True(t, ok)
	_, err = m.Call(neverCalled, nil)
	assert.Error(t, err)
}
