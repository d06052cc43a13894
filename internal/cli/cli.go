// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/romsync/internal/detector"
	"github.com/retroenv/romsync/internal/options"
	"github.com/retroenv/romsync/internal/resolver"
)

var policies = []string{resolver.PolicyPrompt, resolver.PolicyMemory, resolver.PolicyFile}

// ParseFlags parses command line flags and returns program options
func ParseFlags() (options.Program, error) {
	return parseArgs(os.Args)
}

func parseArgs(osArgs []string) (options.Program, error) {
	flags := flag.NewFlagSet(osArgs[0], flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(osArgs[1:])
	args := flags.Args()
	if err != nil || len(args) == 0 {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, err
	}
	opts.Command = strings.ToLower(args[0])

	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}
	if err := validateOptionCombinations(opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: romsync [options] <%s>\n\n", strings.Join(options.Commands, "|"))
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg != "" && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after command, please pass the command as last argument", arg),
			}
		}
	}
	if len(args) > 1 {
		return &UsageError{
			msg: fmt.Sprintf("unexpected arguments after command: %s", strings.Join(args[1:], " ")),
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	if !slices.Contains(options.Commands, opts.Command) {
		return &UsageError{
			msg: fmt.Sprintf("unsupported command: %s. Valid commands: %s",
				opts.Command, strings.Join(options.Commands, ", ")),
		}
	}

	opts.Resolve = strings.ToLower(opts.Resolve)
	if !slices.Contains(policies, opts.Resolve) {
		return fmt.Errorf("unsupported resolve policy: %s. Valid options: %s",
			opts.Resolve, strings.Join(policies, ", "))
	}

	opts.Format = strings.ToLower(opts.Format)
	if opts.Format != "" && !detector.Valid(opts.Format) {
		return fmt.Errorf("unsupported document format: %s. Valid options: %s",
			opts.Format, strings.Join(detector.Formats(), ", "))
	}
	return nil
}

// validateOptionCombinations checks the options required by the command.
func validateOptionCombinations(opts options.Program) error {
	if opts.Input == "" && opts.Batch == "" {
		return &UsageError{msg: "no input file given, use -i or -batch"}
	}
	if opts.Input != "" && opts.Batch != "" {
		return fmt.Errorf("-i and -batch can not be combined")
	}

	if opts.Command == options.CommandImport {
		if opts.Document == "" {
			return &UsageError{msg: "import needs a document to import, use -json"}
		}
		if opts.Batch != "" {
			return fmt.Errorf("import does not support -batch")
		}
	}

	if opts.Batch != "" && opts.Output != "" {
		return fmt.Errorf("-o can not be used with -batch, output names are generated")
	}
	if opts.Batch != "" && opts.State != "" {
		return fmt.Errorf("-state can not be used with -batch, state names are generated")
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input ROM file")
	flags.StringVar(&opts.Output, "o", "", "name of the output document file, <input>.json if no name given, or layout config file for the layout command")
	flags.StringVar(&opts.Config, "c", "", "JSON layout config file, overriding the default table locations")
	flags.StringVar(&opts.Document, "json", "", "interchange document to import")
	flags.StringVar(&opts.State, "state", "", "state document keeping names between sessions, <input>.state.json if no name given")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask, for example *.nes")
	flags.StringVar(&opts.Format, "format", "", "document format (json/json.zst/json.sz), detected from the file extension if not set")
	flags.StringVar(&opts.Resolve, "resolve", resolver.PolicyPrompt, "resolve external changes of the ROM (prompt/memory/file)")
	flags.BoolVar(&opts.Binary, "binary", false, "read input file as raw binary file without any header")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
