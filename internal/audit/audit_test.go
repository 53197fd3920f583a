package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benaskins/strongbox/keychain"
)

func TestLoggerWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	ts := time.Date(2026, 2, 19, 10, 30, 0, 0, time.UTC)

	l.Log(Entry{
		Timestamp: ts,
		Action:    ActionItemFetch,
		Service:   "com.example.chat",
		Account:   "database-url",
		Trigger:   TriggerManifest,
	})

	l.Log(Entry{
		Timestamp:   ts.Add(time.Hour),
		Action:      ActionItemSave,
		Service:     "com.example.chat",
		Account:     "api-key",
		AccessGroup: "TEAM.com.example",
		Actor:       "cli",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var e1 Entry
	json.Unmarshal([]byte(lines[0]), &e1)
	if e1.Action != ActionItemFetch {
		t.Errorf("expected item_fetch, got %v", e1.Action)
	}
	if e1.Account != "database-url" {
		t.Errorf("expected database-url, got %q", e1.Account)
	}
	if e1.Trigger != TriggerManifest {
		t.Errorf("expected manifest, got %q", e1.Trigger)
	}

	var e2 Entry
	json.Unmarshal([]byte(lines[1]), &e2)
	if e2.Action != ActionItemSave {
		t.Errorf("expected item_save, got %v", e2.Action)
	}
	if e2.Actor != "cli" {
		t.Errorf("expected cli, got %q", e2.Actor)
	}
	if e2.AccessGroup != "TEAM.com.example" {
		t.Errorf("expected access group, got %q", e2.AccessGroup)
	}
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l1, _ := NewLogger(path)
	l1.Log(Entry{Action: ActionItemSave, Service: "app", Account: "first"})
	l1.Close()

	l2, _ := NewLogger(path)
	l2.Log(Entry{Action: ActionItemFetch, Service: "app", Account: "second"})
	l2.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestLoggerDefaultTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, _ := NewLogger(path)
	defer l.Close()

	before := time.Now().UTC()
	l.Log(Entry{Action: ActionItemFetch, Service: "app", Account: "test"})
	after := time.Now().UTC()

	data, _ := os.ReadFile(path)
	var e Entry
	json.Unmarshal(data, &e)

	if e.Timestamp.Before(before) || e.Timestamp.After(after) {
		t.Errorf("timestamp %v not between %v and %v", e.Timestamp, before, after)
	}
}

func TestLoggerFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, _ := NewLogger(path)
	l.Close()

	info, _ := os.Stat(path)
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("expected 0600, got %o", perm)
	}
}

func TestNewEntry(t *testing.T) {
	key := keychain.Key{Service: "com.example.chat", Account: "api-key"}

	e := NewEntry(ActionItemDelete, key, "TEAM.com.example", errors.New("item not found"))
	if e.Key() != key {
		t.Errorf("expected key %v, got %v", key, e.Key())
	}
	if e.AccessGroup != "TEAM.com.example" {
		t.Errorf("expected access group, got %q", e.AccessGroup)
	}
	if e.Trigger != TriggerManual {
		t.Errorf("expected manual trigger, got %q", e.Trigger)
	}
	if !e.Failed() || e.Error != "item not found" {
		t.Errorf("expected failed entry, got %+v", e)
	}

	if NewEntry(ActionItemSave, key, "", nil).Failed() {
		t.Error("expected entry without error to not be failed")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, _ := NewLogger(path)
	chat := keychain.Key{Service: "com.example.chat", Account: "api-key"}
	other := keychain.Key{Service: "com.example.chat", Account: "database-url"}
	l.Log(NewEntry(ActionItemSave, chat, "", nil))
	l.Log(NewEntry(ActionItemFetch, other, "", nil))
	l.Log(NewEntry(ActionItemRotate, chat, "", nil))
	l.Close()

	// A torn write from a crashed process.
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	f.WriteString("{\"action\":\"item_sa\n")
	f.Close()

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	chatEntries := ForKey(entries, chat)
	if len(chatEntries) != 2 {
		t.Fatalf("expected 2 entries for %s, got %d", chat, len(chatEntries))
	}
	if chatEntries[1].Action != ActionItemRotate {
		t.Errorf("expected item_rotate last, got %v", chatEntries[1].Action)
	}
}

func TestReadFileMissing(t *testing.T) {
	entries, err := ReadFile(filepath.Join(t.TempDir(), "absent.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
