// Package argparser is a small command-line argument parser in the
// style of a named ArgParser with declared options and positional
// arguments, scaled down to what nstreectl's handful of subcommands
// need: long/short flags, required values, and a help flag every
// command gets for free.
package argparser

import (
	"fmt"
	"strconv"
	"strings"
)

// OptionType controls whether an Option takes a value.
type OptionType int

const (
	Flag OptionType = iota
	Value
	RequiredValue
)

// Option describes one flag a command accepts.
type Option struct {
	Name    string
	Abbrev  string
	Type    OptionType
	ValDesc string
	Desc    string
}

// ArgParser parses one command's arguments against its declared
// options, collecting the rest as positional arguments.
type ArgParser struct {
	Name       string
	MaxArgs    int
	Supported  []*Option
	byNameOrAb map[string]*Option
}

func New(name string, maxArgs int) *ArgParser {
	return &ArgParser{Name: name, MaxArgs: maxArgs, byNameOrAb: map[string]*Option{}}
}

func (ap *ArgParser) Supports(opt *Option) *ArgParser {
	ap.Supported = append(ap.Supported, opt)
	ap.byNameOrAb[opt.Name] = opt
	if opt.Abbrev != "" {
		ap.byNameOrAb[opt.Abbrev] = opt
	}
	return ap
}

// Result is the outcome of a successful Parse.
type Result struct {
	Options map[string]string
	Args    []string
}

func (r Result) Has(name string) bool         { _, ok := r.Options[name]; return ok }
func (r Result) Get(name string) string       { return r.Options[name] }
func (r Result) GetInt(name string) (int, error) {
	v, ok := r.Options[name]
	if !ok {
		return 0, fmt.Errorf("nstreectl: missing --%s", name)
	}
	return strconv.Atoi(v)
}

// Parse consumes args against ap's declared options. Unrecognized
// --flags are an error; anything not starting with a dash is a
// positional argument.
func (ap *ArgParser) Parse(args []string) (Result, error) {
	res := Result{Options: map[string]string{}}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			res.Args = append(res.Args, a)
			continue
		}
		name := strings.TrimLeft(a, "-")
		if name == "help" || name == "h" {
			res.Options["help"] = "true"
			continue
		}
		opt, ok := ap.byNameOrAb[name]
		if !ok {
			return res, fmt.Errorf("nstreectl: %s: unrecognized option %q", ap.Name, a)
		}
		if opt.Type == Flag {
			res.Options[opt.Name] = "true"
			continue
		}
		if i+1 >= len(args) {
			return res, fmt.Errorf("nstreectl: %s: --%s requires a value", ap.Name, opt.Name)
		}
		i++
		res.Options[opt.Name] = args[i]
	}
	for _, opt := range ap.Supported {
		if opt.Type == RequiredValue && !res.Has(opt.Name) {
			return res, fmt.Errorf("nstreectl: %s: missing required --%s (%s)", ap.Name, opt.Name, opt.ValDesc)
		}
	}
	if ap.MaxArgs >= 0 && len(res.Args) > ap.MaxArgs {
		return res, fmt.Errorf("nstreectl: %s: too many positional arguments: expected at most %d, got %d", ap.Name, ap.MaxArgs, len(res.Args))
	}
	return res, nil
}

// Usage renders a one-option-per-line summary of ap's declared
// options, in the order they were added.
func (ap *ArgParser) Usage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", ap.Name)
	for _, opt := range ap.Supported {
		flag := "--" + opt.Name
		if opt.Abbrev != "" {
			flag += ", -" + opt.Abbrev
		}
		fmt.Fprintf(&b, "  %-24s %s\n", flag, opt.Desc)
	}
	return b.String()
}
