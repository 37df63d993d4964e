package cli

import (
	"context"
	"strconv"

	"github.com/calvinalkan/lurch/internal/config"
	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("capacity=" + strconv.Itoa(cfg.Capacity))
	io.Println("ordering=" + cfg.Ordering)
	io.Println("limit=" + strconv.Itoa(cfg.Limit))
	io.Println("hash_size=" + strconv.Itoa(cfg.HashSize))
	io.Println("slab_size=" + strconv.Itoa(cfg.SlabSize))
	io.Println("lock_count=" + strconv.Itoa(cfg.LockCount))
	io.Println("log_level=" + cfg.LogLevel)

	if cfg.EventLog != "" {
		io.Println("event_log=" + cfg.EventLog)
		io.Println("event_log_max_size_mb=" + strconv.Itoa(cfg.EventLogMaxSizeMB))
		io.Println("event_log_max_backups=" + strconv.Itoa(cfg.EventLogMaxBackups))
		io.Println("event_log_max_age_days=" + strconv.Itoa(cfg.EventLogMaxAgeDays))
	}

	if cfg.HistoryFile != "" {
		io.Println("history_file=" + cfg.HistoryFile)
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
