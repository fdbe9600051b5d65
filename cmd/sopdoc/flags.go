package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
)

// ErrUsage wraps flag and argument errors.
var ErrUsage = errors.New("invalid usage")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs and timing")
}

// metaFlags holds document metadata flags.
type metaFlags struct {
	title     string
	sopID     string
	version   string
	date      string
	cycleTime string
	author    string
}

// metaFlagNames maps flag names to the metadata field they edit.
var metaFlagNames = []struct {
	flag  string
	field string
}{
	{"title", "title"},
	{"sop-id", "sopId"},
	{"doc-version", "version"},
	{"date", "date"},
	{"cycle-time", "cycleTime"},
	{"author", "author"},
}

// addMetaFlags adds document metadata flags to a FlagSet.
func addMetaFlags(fs *flag.FlagSet, f *metaFlags) {
	fs.StringVar(&f.title, "title", "", "procedure title")
	fs.StringVar(&f.sopID, "sop-id", "", "SOP reference, e.g. SOP-012")
	fs.StringVar(&f.version, "doc-version", "", "document revision")
	fs.StringVar(&f.date, "date", "", "date: YYYY-MM-DD, DD-MM-YYYY or \"today\"")
	fs.StringVar(&f.cycleTime, "cycle-time", "", "cycle time, e.g. \"45 min\"")
	fs.StringVar(&f.author, "author", "", "author name")
}

// value returns the flag value for a metadata flag name.
func (f *metaFlags) value(name string) string {
	switch name {
	case "title":
		return f.title
	case "sop-id":
		return f.sopID
	case "doc-version":
		return f.version
	case "date":
		return f.date
	case "cycle-time":
		return f.cycleTime
	case "author":
		return f.author
	}
	return ""
}

// newFlagSet creates a ContinueOnError FlagSet whose usage goes to w.
func newFlagSet(name string, w io.Writer, usage func(io.Writer)) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() { usage(w) }
	fs.SortFlags = false
	return fs
}

// parseFlags parses args, wrapping failures in ErrUsage.
// flag.ErrHelp is returned unwrapped so callers can exit successfully.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// stepAssignment is a parsed "N=value" flag argument.
type stepAssignment struct {
	step  int // 1-based display number
	value string
}

// parseStepAssignment parses "N=value". When valueRequired is false, a bare
// "N" is accepted with an empty value.
func parseStepAssignment(flagName, s string, valueRequired bool) (stepAssignment, error) {
	num, value, found := strings.Cut(s, "=")
	if !found && valueRequired {
		return stepAssignment{}, fmt.Errorf("%w: --%s expects N=VALUE, got %q", ErrUsage, flagName, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 1 {
		return stepAssignment{}, fmt.Errorf("%w: --%s: step number must be a positive integer, got %q", ErrUsage, flagName, num)
	}
	return stepAssignment{step: n, value: value}, nil
}

// parseStepAssignments parses every value of a repeated N=VALUE flag.
func parseStepAssignments(flagName string, values []string, valueRequired bool) ([]stepAssignment, error) {
	out := make([]stepAssignment, 0, len(values))
	for _, v := range values {
		a, err := parseStepAssignment(flagName, v, valueRequired)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// requireArgs checks the positional argument count.
func requireArgs(fs *flag.FlagSet, minArgs, maxArgs int) error {
	n := fs.NArg()
	switch {
	case n < minArgs:
		return fmt.Errorf("%w: %s: missing argument", ErrUsage, fs.Name())
	case maxArgs >= 0 && n > maxArgs:
		return fmt.Errorf("%w: %s: unexpected argument %q", ErrUsage, fs.Name(), fs.Arg(maxArgs))
	}
	return nil
}
