// Package logging installs ChronoScript's ambient logging backend,
// grounded on the teacher's cmd/kanso-lsp/main.go ("commonlog.Configure(1,
// nil)" at process startup). ChronoScript has no LSP surface to log for,
// but the same facade fits a CLI's status lines. Script log()/log_write()
// output, compiler diagnostics (internal/diag) and preprocessor #warning
// lines (cmd/chronoscript) are printed with fmt, not through this package.
package logging

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Init configures the default commonlog backend at the given verbosity
// (0 = quiet, higher = more verbose, matching commonlog.Configure's own
// convention) and returns a named logger for the caller's component.
func Init(verbosity int, name string) commonlog.Logger {
	commonlog.Configure(verbosity, nil)
	return commonlog.GetLogger(name)
}

// Default is package-level so library code that wasn't handed a logger
// explicitly still has somewhere to write without importing os/fmt; no
// package in this module uses it.
var Default = commonlog.GetLogger("chronoscript")
