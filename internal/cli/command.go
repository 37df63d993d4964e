package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one lurchy subcommand: its flags, help text and body.
type Command struct {
	// Flags holds the command's own flags; global flags are parsed by Run.
	Flags *flag.FlagSet

	// Usage follows "lurchy" in help output, e.g. "bench [flags]". Its
	// first word is the command name.
	Usage string

	// Short is the one-line summary in the command list.
	Short string

	// Long is the full description for "lurchy <cmd> --help". Short is
	// used when it is empty.
	Long string

	// Exec runs with the flags already parsed and the remaining args.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's row in the global command list.
func (c *Command) HelpLine() string {
	return "  " + padRight(c.Usage, 22) + " " + c.Short
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}

	return s + strings.Repeat(" ", n-len(s))
}

// writeHelp renders usage, description and flag defaults to w.
func (c *Command) writeHelp(w io.Writer) {
	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	fprintln(w, "Usage: lurchy", c.Usage)
	fprintln(w)
	fprintln(w, desc)

	if c.Flags.HasFlags() {
		fprintln(w)
		fprintln(w, "Flags:")
		_, _ = io.WriteString(w, c.Flags.FlagUsages())
	}
}

// Run parses args into c.Flags and runs Exec. Help requested with -h or
// --help goes to stdout; a flag error prints the error and the help to
// stderr. Returns the exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.writeHelp(o.out)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.writeHelp(o.errOut)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}
