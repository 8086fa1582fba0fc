// ABOUTME: Append-only JSONL audit log of committed workspace events.
// ABOUTME: Provides fsynced append, sequential replay, tail reads, and repair of a truncated final line.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/2389-research/funnel/board/core"
)

// JsonlLog is an append-only file of one JSON-encoded event per line.
type JsonlLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenJsonl opens (or creates) the log at path in append mode, creating
// parent directories.
func OpenJsonl(path string) (*JsonlLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dirs: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl file: %w", err)
	}
	return &JsonlLog{path: path, file: file}, nil
}

// Path returns the file path.
func (l *JsonlLog) Path() string {
	return l.path
}

// Append writes events as consecutive lines and fsyncs once.
func (l *JsonlLog) Append(events ...core.Event) error {
	if len(events) == 0 {
		return nil
	}
	var buf []byte
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.EventID, err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("write event lines: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	return nil
}

// Close closes the file.
func (l *JsonlLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func scanLines(path string, fn func(line string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReplayJsonl reads every event in order. A missing file yields no events.
func ReplayJsonl(path string) ([]core.Event, error) {
	var events []core.Event
	err := scanLines(path, func(line string) error {
		var ev core.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return fmt.Errorf("parse event line: %w", err)
		}
		events = append(events, ev)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	return events, nil
}

// TailJsonl returns the last n events, oldest first.
func TailJsonl(path string, n int) ([]core.Event, error) {
	events, err := ReplayJsonl(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// RepairJsonl rewrites the log keeping only complete, parseable lines and
// returns how many were kept. The rewrite goes through a temp file, fsync
// and rename.
func RepairJsonl(path string) (int, error) {
	var valid []string
	err := scanLines(path, func(line string) error {
		var ev core.Event
		if json.Unmarshal([]byte(line), &ev) == nil {
			valid = append(valid, line)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan jsonl for repair: %w", err)
	}

	var buf strings.Builder
	for _, line := range valid {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := writeAtomic(path, []byte(buf.String())); err != nil {
		return 0, fmt.Errorf("rewrite jsonl: %w", err)
	}
	return len(valid), nil
}
