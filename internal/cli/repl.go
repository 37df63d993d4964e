package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/calvinalkan/lurch/internal/config"
	"github.com/calvinalkan/lurch/pkg/lurch"
	"github.com/google/uuid"
	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"github.com/valyala/bytebufferpool"
)

var errUsage = errors.New("usage")

// replCommands lists every REPL command, used for completion.
var replCommands = []string{
	"set", "add", "get", "del", "update", "peek", "dequeue", "ls", "keys",
	"len", "limit", "info", "bulk", "dump", "clear", "help", "exit", "quit",
}

// ReplCmd returns the repl command.
func ReplCmd(cfg *config.Config, in io.Reader) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Interactive session over a string table",
		Long: "Start an interactive session over a table built from the effective configuration.\n" +
			"When stdin is not the terminal, commands are read line by line and the\n" +
			"command fails if any line failed. Type 'help' for commands.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return execRepl(ctx, o, cfg, in)
		},
	}
}

// lineReader is the input side of the REPL.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

func execRepl(ctx context.Context, o *IO, cfg *config.Config, in io.Reader) error {
	sess, err := openSession(cfg)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := sess.Close()
		if closeErr != nil && !errors.Is(closeErr, lurch.ErrClosed) {
			o.Warn("close: %v", closeErr)
		}
	}()

	r := &repl{io: o, table: sess.table, cwd: cfg.EffectiveCwd}

	var (
		lines       lineReader
		interactive bool
	)

	if in == os.Stdin {
		lines = newLinerReader(cfg.HistoryFile)
		interactive = true

		o.Printf("lurchy %s table (capacity %d). Type 'help' for commands.\n", cfg.Ordering, cfg.Capacity)
	} else {
		lines = newScanReader(in)
	}

	defer func() { _ = lines.Close() }()

	failed := 0

	for ctx.Err() == nil {
		line, err := lines.Prompt("lurchy> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines.AppendHistory(line)

		quit, err := r.exec(line)
		if err != nil {
			failed++

			o.ErrPrintln("error:", err)
		}

		if quit {
			break
		}
	}

	if !interactive && failed > 0 {
		return fmt.Errorf("%d command(s) failed", failed)
	}

	return nil
}

// repl executes single command lines against a table.
type repl struct {
	io    *IO
	table *lurch.Table[string, string]
	cwd   string
}

// exec runs one command line. quit reports whether the session should end.
func (r *repl) exec(line string) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}

	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "set":
		err = r.cmdSet(args)
	case "add":
		err = r.cmdAdd(args)
	case "get":
		err = r.cmdGet(args)
	case "del", "delete", "rm":
		err = r.cmdDel(args)
	case "update":
		err = r.cmdUpdate(args)
	case "peek":
		err = r.cmdPeek()
	case "dequeue", "pop":
		err = r.cmdDequeue()
	case "ls", "list":
		err = r.cmdList(args)
	case "keys":
		err = r.cmdKeys(args)
	case "len":
		r.io.Println(r.table.Len())
	case "limit":
		err = r.cmdLimit(args)
	case "info", "stats":
		err = r.cmdInfo()
	case "bulk":
		err = r.cmdBulk(args)
	case "dump":
		err = r.cmdDump(args)
	case "clear":
		err = r.cmdClear()
	case "help", "?":
		printReplHelp(r.io)
	case "exit", "quit", "q":
		return true, nil
	default:
		err = fmt.Errorf("unknown command %q (type 'help')", cmd)
	}

	return false, err
}

func (r *repl) cmdSet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: set <key> <value>", errUsage)
	}

	err := r.table.Set(args[0], args[1])
	if err != nil {
		return err
	}

	r.io.Println("OK")

	return nil
}

func (r *repl) cmdAdd(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: add <key> <value>", errUsage)
	}

	err := r.table.Add(args[0], args[1])
	if err != nil {
		return err
	}

	r.io.Println("OK")

	return nil
}

func (r *repl) cmdGet(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: get <key>", errUsage)
	}

	v, ok, err := r.table.Get(args[0])
	if err != nil {
		return err
	}

	if !ok {
		r.io.Println("(nil)")

		return nil
	}

	r.io.Println(v)

	return nil
}

func (r *repl) cmdDel(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: del <key>", errUsage)
	}

	v, ok, err := r.table.TryRemove(args[0])
	if err != nil {
		return err
	}

	if !ok {
		r.io.Println("(nil)")

		return nil
	}

	r.io.Println(v)

	return nil
}

func (r *repl) cmdUpdate(args []string) error {
	var (
		ok  bool
		err error
	)

	switch len(args) {
	case 2:
		ok, err = r.table.TryUpdate(args[0], args[1])
	case 3:
		ok, err = r.table.TryUpdateCompare(args[0], args[1], args[2])
	default:
		return fmt.Errorf("%w: update <key> <value> [expected]", errUsage)
	}

	if err != nil {
		return err
	}

	if !ok {
		r.io.Println("(not updated)")

		return nil
	}

	r.io.Println("OK")

	return nil
}

func (r *repl) cmdPeek() error {
	e, ok, err := r.table.Peek()
	if err != nil {
		return err
	}

	r.printEntry(e, ok)

	return nil
}

func (r *repl) cmdDequeue() error {
	e, ok, err := r.table.TryDequeue()
	if err != nil {
		return err
	}

	r.printEntry(e, ok)

	return nil
}

func (r *repl) printEntry(e lurch.Entry[string, string], ok bool) {
	if !ok {
		r.io.Println("(empty)")

		return
	}

	r.io.Printf("%s=%s\n", e.Key, e.Value)
}

// cmdList prints entries sorted by key, or oldest first with "ls ordered".
func (r *repl) cmdList(args []string) error {
	ordered := false

	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "ordered":
		ordered = true
	default:
		return fmt.Errorf("%w: ls [ordered]", errUsage)
	}

	if ordered && r.table.Ordering() == lurch.None {
		return lurch.ErrUnordered
	}

	var entries []lurch.Entry[string, string]

	seq := r.table.All()
	if ordered {
		seq = r.table.Ordered()
	}

	for k, v := range seq {
		entries = append(entries, lurch.Entry[string, string]{Key: k, Value: v})
	}

	if !ordered {
		slices.SortFunc(entries, func(a, b lurch.Entry[string, string]) int {
			return strings.Compare(a.Key, b.Key)
		})
	}

	for _, e := range entries {
		r.io.Printf("%s=%s\n", e.Key, e.Value)
	}

	return nil
}

// cmdKeys snapshots the keys into an immutable radix tree and walks the
// requested prefix, which yields them in byte order.
func (r *repl) cmdKeys(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: keys [prefix]", errUsage)
	}

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	txn := iradix.New().Txn()
	for k, v := range r.table.All() {
		txn.Insert([]byte(k), v)
	}

	tree := txn.Commit()

	tree.Root().WalkPrefix([]byte(prefix), func(k []byte, _ interface{}) bool {
		r.io.Println(string(k))

		return false
	})

	return nil
}

func (r *repl) cmdLimit(args []string) error {
	switch len(args) {
	case 0:
		r.io.Println(r.table.Limit())

		return nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: limit must be a number: %q", errUsage, args[0])
		}

		err = r.table.SetLimit(n)
		if err != nil {
			return err
		}

		r.io.Println("OK")

		return nil
	default:
		return fmt.Errorf("%w: limit [n]", errUsage)
	}
}

func (r *repl) cmdInfo() error {
	st, err := r.table.Stats()
	if err != nil {
		return err
	}

	r.io.Printf("len=%d\n", st.Len)
	r.io.Printf("limit=%d\n", st.Limit)
	r.io.Printf("ordering=%s\n", st.Ordering)
	r.io.Printf("slots_used=%d\n", st.SlotsUsed)
	r.io.Printf("slots_free=%d\n", st.SlotsFree)
	r.io.Printf("slabs=%d\n", st.Slabs)
	r.io.Printf("slab_size=%d\n", st.SlabSize)
	r.io.Printf("buckets=%d\n", st.Buckets)
	r.io.Printf("locks=%d\n", st.Locks)
	r.io.Printf("free_shards=%d\n", st.FreeShards)

	return nil
}

// cmdBulk inserts n entries under random UUID keys.
func (r *repl) cmdBulk(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: bulk <n>", errUsage)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("%w: bulk count must be a non-negative number: %q", errUsage, args[0])
	}

	for i := range n {
		err = r.table.Set(uuid.NewString(), strconv.Itoa(i))
		if err != nil {
			return err
		}
	}

	r.io.Printf("added %d\n", n)

	return nil
}

// cmdDump writes every entry as a line of two quoted strings and replaces
// the target file atomically. Ordered tables are written oldest first.
func (r *repl) cmdDump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: dump <file>", errUsage)
	}

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.cwd, path)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	n := 0

	for k, v := range r.table.Ordered() {
		_, _ = buf.WriteString(strconv.Quote(k))
		_ = buf.WriteByte(' ')
		_, _ = buf.WriteString(strconv.Quote(v))
		_ = buf.WriteByte('\n')
		n++
	}

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("dump %s: %w", path, err)
	}

	err = atomic.WriteFile(path, bytes.NewReader(buf.B))
	if err != nil {
		return fmt.Errorf("dump %s: %w", path, err)
	}

	r.io.Printf("wrote %d entries to %s\n", n, path)

	return nil
}

func (r *repl) cmdClear() error {
	err := r.table.Clear()
	if err != nil {
		return err
	}

	r.io.Println("OK")

	return nil
}

func printReplHelp(o *IO) {
	o.Println("Commands:")
	o.Println("  set <key> <value>               Insert or replace")
	o.Println("  add <key> <value>               Insert, fail if present")
	o.Println("  get <key>                       Read (refreshes access order)")
	o.Println("  del <key>                       Remove and print the value")
	o.Println("  update <key> <value> [expected] Replace if present (and equal to expected)")
	o.Println("  peek                            Show the oldest entry")
	o.Println("  dequeue                         Remove and show the oldest entry")
	o.Println("  ls [ordered]                    List entries by key, or oldest first")
	o.Println("  keys [prefix]                   List keys in byte order")
	o.Println("  len                             Number of entries")
	o.Println("  limit [n]                       Show or set the eviction limit (0 = none)")
	o.Println("  info                            Table statistics")
	o.Println("  bulk <n>                        Insert n entries with random keys")
	o.Println("  dump <file>                     Write all entries to a file")
	o.Println("  clear                           Remove all entries")
	o.Println("  help                            Show this help")
	o.Println("  exit                            Leave")
}

// linerReader reads from the terminal with line editing and history.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(completeCommand)

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linerReader{state: state, historyFile: historyFile}
}

func (l *linerReader) Prompt(prompt string) (string, error) {
	return l.state.Prompt(prompt)
}

func (l *linerReader) AppendHistory(line string) {
	l.state.AppendHistory(line)
}

func (l *linerReader) Close() error {
	if l.historyFile != "" {
		if f, err := os.Create(l.historyFile); err == nil {
			_, _ = l.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return l.state.Close()
}

func completeCommand(line string) []string {
	var matches []string

	lower := strings.ToLower(line)
	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, lower) {
			matches = append(matches, cmd)
		}
	}

	return matches
}

// scanReader reads commands from a non-interactive stream.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	if in == nil {
		in = strings.NewReader("")
	}

	return &scanReader{scanner: bufio.NewScanner(in)}
}

func (s *scanReader) Prompt(string) (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}

	err := s.scanner.Err()
	if err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanReader) AppendHistory(string) {}

func (*scanReader) Close() error { return nil }
