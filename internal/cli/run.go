package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/lurch/internal/config"
	"github.com/jedisct1/dlog"
	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
//
// A value on sigCh cancels the running command; sigCh may be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("lurchy", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	flagHelp := globals.BoolP("help", "h", false, "Show help")
	flagCwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globals.StringP("config", "c", "", "Use specified config `file`")
	flagOrdering := globals.String("ordering", "", "Table ordering: none, insertion, modified, access")
	flagLimit := globals.Int("limit", 0, "Evict the oldest entry above `n` entries (0 = no limit)")
	flagCapacity := globals.Int("capacity", 0, "Expected number of entries")
	flagLogLevel := globals.String("log-level", "", "Log level: debug, info, notice, warning, error")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, nil)

		return 1
	}

	rest := globals.Args()

	if *flagHelp || len(rest) == 0 {
		printUsage(out, nil)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		Env:             env,
		Overrides: config.Overrides{
			Ordering: changedString(globals, "ordering", *flagOrdering),
			Limit:    changedInt(globals, "limit", *flagLimit),
			Capacity: changedInt(globals, "capacity", *flagCapacity),
			LogLevel: changedString(globals, "log-level", *flagLogLevel),
		},
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	applyLogLevel(&cfg)
	dlog.Debugf("config loaded (global=%q project=%q)", cfg.Sources.Global, cfg.Sources.Project)

	commands := []*Command{
		ReplCmd(&cfg, in),
		BenchCmd(&cfg),
		DemoCmd(),
		PrintConfigCmd(&cfg),
	}

	name := rest[0]
	if name == "help" {
		printUsage(out, commands)

		return 0
	}

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			select {
			case sig, ok := <-sigCh:
				if ok {
					dlog.Noticef("received %v, stopping", sig)
					cancel()
				}
			case <-ctx.Done():
			}
		}()

		return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
	}

	fprintln(errOut, "error:", fmt.Errorf("%w: %s", errUnknownCommand, name))
	printUsage(errOut, commands)

	return 1
}

var errUnknownCommand = errors.New("unknown command")

func changedString(fs *flag.FlagSet, name, v string) *string {
	if !fs.Changed(name) {
		return nil
	}

	return &v
}

func changedInt(fs *flag.FlagSet, name string, v int) *int {
	if !fs.Changed(name) {
		return nil
	}

	return &v
}

func printUsage(w io.Writer, commands []*Command) {
	if commands == nil {
		cfg := config.Default()
		commands = []*Command{ReplCmd(&cfg, nil), BenchCmd(&cfg), DemoCmd(), PrintConfigCmd(&cfg)}
	}

	fprintln(w, "lurchy - explore a concurrent ordered hash table")
	fprintln(w)
	fprintln(w, "Usage: lurchy [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, "  -h, --help             Show help")
	fprintln(w, "  -C, --cwd <dir>        Run as if started in <dir>")
	fprintln(w, "  -c, --config <file>    Use specified config file")
	fprintln(w, "      --ordering <name>  none, insertion, modified or access")
	fprintln(w, "      --limit <n>        Evict the oldest entry above n entries")
	fprintln(w, "      --capacity <n>     Expected number of entries")
	fprintln(w, "      --log-level <lvl>  debug, info, notice, warning or error")
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'lurchy <command> --help' for more information on a command.")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
