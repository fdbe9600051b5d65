package main

import (
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// ErrUnknownCommand indicates an unrecognized subcommand.
var ErrUnknownCommand = errors.New("unknown command")

// command runs one subcommand with its arguments.
type command func(args []string, env *Environment) error

// commands maps subcommand names to their implementation.
var commands = map[string]command{
	"new":     runNew,
	"edit":    runEdit,
	"pages":   runPages,
	"export":  runExport,
	"draft":   runDraft,
	"suggest": runSuggest,
}

// runMain dispatches args (including the program name) and returns the exit code.
func runMain(args []string, env *Environment) int {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	name, rest := args[1], args[2:]
	switch name {
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "sopdoc %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(env.Stderr, "error: %v: %s\n\n", ErrUnknownCommand, name)
		printUsage(env.Stderr)
		return ExitUsage
	}

	err := cmd(rest, env)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
	}
	return exitCodeFor(err)
}

// isCommand reports whether name is a known subcommand.
func isCommand(name string) bool {
	switch strings.ToLower(name) {
	case "version", "help", "doctor":
		return true
	}
	_, ok := commands[name]
	return ok
}
