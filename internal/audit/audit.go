// Package audit provides append-only structured logging for item operations.
//
// Every save, fetch, delete and rotation is recorded to an audit log at
// ~/.strongbox/audit.log as newline-delimited JSON. Item values are never
// written.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/benaskins/strongbox/keychain"
)

// Action describes what happened.
type Action string

const (
	ActionItemSave   Action = "item_save"
	ActionItemFetch  Action = "item_fetch"
	ActionItemDelete Action = "item_delete"
	ActionItemRotate Action = "item_rotate"
)

// Trigger records what caused an operation.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerManifest Trigger = "manifest"
	TriggerHook     Trigger = "hook"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp   time.Time `json:"ts"`
	Action      Action    `json:"action"`
	Service     string    `json:"service"`
	Account     string    `json:"account"`
	AccessGroup string    `json:"access_group,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Trigger     Trigger   `json:"trigger,omitempty"`
	Command     string    `json:"command,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewEntry returns an entry for an operation on key within group. A non-nil
// err marks the entry failed.
func NewEntry(action Action, key keychain.Key, group string, err error) Entry {
	e := Entry{
		Action:      action,
		Service:     key.Service,
		Account:     key.Account,
		AccessGroup: group,
		Trigger:     TriggerManual,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Key returns the item the entry refers to.
func (e Entry) Key() keychain.Key {
	return keychain.Key{Service: e.Service, Account: e.Account}
}

// Failed reports whether the operation returned an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry, stamping it with the current time if unset.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Read parses entries from r in file order. Lines that are not valid entries
// are skipped with a warning.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			slog.Warn("skipping malformed audit line", "line", line, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}

// ReadFile parses the audit log at path. A missing file has no entries.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// ForKey returns the entries that refer to key, in order.
func ForKey(entries []Entry, key keychain.Key) []Entry {
	var result []Entry
	for _, e := range entries {
		if e.Key() == key {
			result = append(result, e)
		}
	}
	return result
}
