// Package config parses ChronoScript's CLI invocation (spec §6:
// "runscript <path> [script-args...]"), grounded on the teacher's
// cmd/kanso-cli/main.go minimal flag handling and on original_source/
// Main.cpp's own argc/argv split (script_arg_count/script_args start
// at argv[2]).
package config

import "fmt"

// Config is the parsed command line: the script to run, the arguments
// forwarded to it via get_args(), and development-time flags.
type Config struct {
	Path         string
	ScriptArgs   []string
	DumpBytecode bool
}

// Parse reads args (os.Args[1:]). A leading "-dump-bytecode" flag (in
// any position before the script path) requests a disassembly dump of
// the compiled module before execution; everything after the path is
// forwarded to the script unmodified.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	i := 0
	for i < len(args) {
		if args[i] == "-dump-bytecode" {
			cfg.DumpBytecode = true
			i++
			continue
		}
		break
	}
	if i >= len(args) {
		return nil, fmt.Errorf("no file specified\nusage: runscript [-dump-bytecode] script.c [args...]")
	}
	cfg.Path = args[i]
	cfg.ScriptArgs = append([]string(nil), args[i+1:]...)
	return cfg, nil
}
