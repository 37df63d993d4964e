package cli

import (
	"fmt"

	"github.com/calvinalkan/lurch/internal/config"
	"github.com/calvinalkan/lurch/pkg/lurch"
)

// session owns the table a command works on plus the optional event log.
type session struct {
	table  *lurch.Table[string, string]
	events *eventLog
}

// openSession builds a string table from the effective configuration.
func openSession(cfg *config.Config) (*session, error) {
	s := &session{events: openEventLog(cfg)}

	opts := lurch.Options[string, string]{
		Capacity:  cfg.Capacity,
		Ordering:  cfg.TableOrdering(),
		Limit:     cfg.Limit,
		HashSize:  cfg.HashSize,
		SlabSize:  cfg.SlabSize,
		LockCount: cfg.LockCount,
		Logf:      tableLogf,
	}

	if s.events != nil {
		opts.Observers = append(opts.Observers, s.events)
	}

	table, err := lurch.New(opts)
	if err != nil {
		if s.events != nil {
			_ = s.events.Close()
		}

		return nil, fmt.Errorf("open table: %w", err)
	}

	s.table = table

	return s, nil
}

// Close closes the table and then the event log.
func (s *session) Close() error {
	err := s.table.Close()

	if s.events != nil {
		closeErr := s.events.Close()
		if err == nil {
			err = closeErr
		}
	}

	return err
}
