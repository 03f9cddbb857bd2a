package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"capkv/internal/metrics"

	"github.com/tidwall/wal"
)

var ErrClosed = errors.New("journal closed")

// Journal is an append-only log of what a simulation run observed: run
// markers, every client operation and every detected inconsistency.
type Journal struct {
	mu sync.Mutex

	dir  string
	log  *wal.Log
	next uint64
}

// Open opens or creates the journal in dir. Appending continues after the
// last record already on disk.
func Open(dir string, noSync bool) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	opts := *wal.DefaultOptions
	opts.NoSync = noSync
	log, err := wal.Open(dir, &opts)
	if err != nil {
		return nil, fmt.Errorf("wal.Open: %w", err)
	}

	last, err := log.LastIndex()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("wal.LastIndex: %w", err)
	}

	slog.Debug("journal opened", "dir", dir, "records", last)
	return &Journal{dir: dir, log: log, next: last + 1}, nil
}

func (j *Journal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.log == nil {
		return ErrClosed
	}
	if err := j.log.Write(j.next, marshalRecord(r)); err != nil {
		return fmt.Errorf("wal.Write(%d): %w", j.next, err)
	}
	j.next++
	metrics.JournalAppendsTotal.WithLabelValues(r.Type.String()).Inc()
	return nil
}

// Replay calls fn for every record in append order and stops at the first
// error fn returns.
func (j *Journal) Replay(fn func(Record) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.log == nil {
		return ErrClosed
	}

	first, err := j.log.FirstIndex()
	if err != nil {
		return fmt.Errorf("wal.FirstIndex: %w", err)
	}
	last, err := j.log.LastIndex()
	if err != nil {
		return fmt.Errorf("wal.LastIndex: %w", err)
	}
	if last == 0 {
		return nil
	}

	for idx := first; idx <= last; idx++ {
		data, err := j.log.Read(idx)
		if err != nil {
			return fmt.Errorf("wal.Read(%d): %w", idx, err)
		}
		r, err := unmarshalRecord(data)
		if err != nil {
			return fmt.Errorf("record %d: %w", idx, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many records the journal holds.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next - 1
}

func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.log == nil {
		return nil
	}
	err := j.log.Close()
	j.log = nil
	return err
}
