// Package secrets layers audit logging, metadata tracking and rotation on
// top of a keychain.Store.
package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/benaskins/strongbox/internal/audit"
	"github.com/benaskins/strongbox/keychain"
)

var _ keychain.Store = (*AuditedStore)(nil)

// AuditedStore wraps a Store and adds audit logging and metadata tracking.
// Store errors are returned unchanged so callers can match them with
// errors.Is.
type AuditedStore struct {
	inner       keychain.Store
	audit       *audit.Logger
	metadata    *MetadataStore
	actor       string // "cli", "exec"
	accessGroup string
	now         func() time.Time
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner keychain.Store, auditLog *audit.Logger, metadata *MetadataStore, actor string) *AuditedStore {
	s := &AuditedStore{
		inner:    inner,
		audit:    auditLog,
		metadata: metadata,
		actor:    actor,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if g, ok := inner.(interface{ AccessGroup() string }); ok {
		s.accessGroup = g.AccessGroup()
	}
	return s
}

// MetadataKey returns the key metadata for an item is tracked under:
// "service/account", prefixed with "group|" when the store has an access
// group.
func (s *AuditedStore) MetadataKey(key keychain.Key) string {
	if s.accessGroup == "" {
		return key.String()
	}
	return s.accessGroup + "|" + key.String()
}

// record logs an entry. Audit logging is best-effort; a failure to log does
// not block the operation.
func (s *AuditedStore) record(action audit.Action, key keychain.Key, trigger audit.Trigger, command string, err error) {
	e := audit.NewEntry(action, key, s.accessGroup, err)
	e.Actor = s.actor
	e.Trigger = trigger
	e.Command = command
	s.audit.Log(e)
}

func (s *AuditedStore) SaveData(data []byte, key keychain.Key) error {
	err := s.inner.SaveData(data, key)
	s.record(audit.ActionItemSave, key, audit.TriggerManual, "", err)
	if err != nil {
		return err
	}

	if err := s.touch(key, false); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	return nil
}

func (s *AuditedStore) FetchData(key keychain.Key) ([]byte, error) {
	return s.fetch(key, audit.TriggerManual)
}

// FetchForManifest retrieves an item and logs it as a manifest read.
func (s *AuditedStore) FetchForManifest(key keychain.Key) ([]byte, error) {
	return s.fetch(key, audit.TriggerManifest)
}

func (s *AuditedStore) fetch(key keychain.Key, trigger audit.Trigger) ([]byte, error) {
	data, err := s.inner.FetchData(key)
	s.record(audit.ActionItemFetch, key, trigger, "", err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *AuditedStore) Delete(key keychain.Key) error {
	err := s.inner.Delete(key)
	s.record(audit.ActionItemDelete, key, audit.TriggerManual, "", err)
	if err != nil {
		return err
	}

	if err := s.metadata.Delete(s.MetadataKey(key)); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	return nil
}

// Rotate runs a rotation command, stores its output as the new value and
// logs the rotation. If the command or the write fails the stored value is
// left alone and the failure is audited.
func (s *AuditedStore) Rotate(ctx context.Context, key keychain.Key, command string) error {
	output, err := runRotationCommand(ctx, command)
	if err != nil {
		s.record(audit.ActionItemRotate, key, audit.TriggerHook, command, err)
		return fmt.Errorf("rotation command failed: %w", err)
	}

	q := keychain.NewQuery[string](key.Service, key.Account, keychain.Text{})
	if err := keychain.Save(s.inner, output, q); err != nil {
		s.record(audit.ActionItemRotate, key, audit.TriggerHook, command, err)
		return fmt.Errorf("storing rotated value: %w", err)
	}
	s.record(audit.ActionItemRotate, key, audit.TriggerHook, command, nil)

	if err := s.touch(key, true); err != nil {
		return fmt.Errorf("saving rotation metadata: %w", err)
	}
	return nil
}

// SetRotateEvery records the rotation interval for key, creating its
// metadata if needed.
func (s *AuditedStore) SetRotateEvery(key keychain.Key, every string) error {
	mk := s.MetadataKey(key)
	meta := s.metadata.Get(mk)
	if meta == nil {
		meta = &SecretMetadata{CreatedAt: s.now()}
	}
	meta.RotateEvery = every
	return s.metadata.Set(mk, meta)
}

// Metadata returns the metadata store for direct access.
func (s *AuditedStore) Metadata() *MetadataStore {
	return s.metadata
}

func (s *AuditedStore) touch(key keychain.Key, rotated bool) error {
	mk := s.MetadataKey(key)
	now := s.now()
	meta := s.metadata.Get(mk)
	if meta == nil {
		meta = &SecretMetadata{CreatedAt: now}
	}
	meta.UpdatedAt = now
	if rotated {
		meta.LastRotated = now
	}
	return s.metadata.Set(mk, meta)
}
