package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benaskins/strongbox/internal/audit"
	"github.com/benaskins/strongbox/internal/config"
	"github.com/benaskins/strongbox/internal/secrets"
	"github.com/benaskins/strongbox/keychain"
	"github.com/benaskins/strongbox/keychain/filestore"
)

// session holds the opened store and the resources behind it.
type session struct {
	cfg     *config.Config
	store   *secrets.AuditedStore
	closers []io.Closer
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			slog.Debug("close failed", "error", err)
		}
	}
}

// service returns the --service flag or the configured default.
func (s *session) service() string {
	return defaultService(s.cfg)
}

func defaultService(cfg *config.Config) string {
	if serviceFlag != "" {
		return serviceFlag
	}
	return cfg.Service
}

func (s *session) key(account string) keychain.Key {
	return itemKey(s.cfg, account)
}

func itemKey(cfg *config.Config, account string) keychain.Key {
	return keychain.Key{Service: defaultService(cfg), Account: account}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if groupFlag != "" {
		cfg.AccessGroup = groupFlag
	}
	return cfg, nil
}

// openSession loads config, opens the configured backend and wraps it with
// audit logging. actor is recorded on every audit entry.
func openSession(actor string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}

	native, err := openNative(cfg, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	auditPath, err := stateFile(cfg.AuditLog, "audit.log")
	if err != nil {
		s.Close()
		return nil, err
	}
	metaPath, err := stateFile(cfg.Metadata, "metadata.json")
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(auditPath), 0700); err != nil {
		s.Close()
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0700); err != nil {
		s.Close()
		return nil, fmt.Errorf("creating metadata dir: %w", err)
	}

	auditLog, err := audit.NewLogger(auditPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, auditLog)

	meta, err := secrets.NewMetadataStore(metaPath)
	if err != nil {
		s.Close()
		return nil, err
	}

	kc := keychain.New(native, keychain.WithAccessGroup(cfg.AccessGroup))
	s.store = secrets.NewAuditedStore(kc, auditLog, meta, actor)
	slog.Debug("store opened", "backend", cfg.Backend, "service", s.service(), "access_group", cfg.AccessGroup)
	return s, nil
}

// stateFile returns configured, or name under ~/.strongbox when unset.
func stateFile(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := strongboxHome()
	if err != nil {
		return "", fmt.Errorf("finding home dir: %w", err)
	}
	return filepath.Join(home, name), nil
}

func openNative(cfg *config.Config, s *session) (keychain.Native, error) {
	switch cfg.Backend {
	case config.BackendFile:
		key, err := fileKey(cfg.File.KeyEnv)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0700); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
		store, err := filestore.Open(cfg.File.Path, key)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		return store, nil
	case config.BackendMemory:
		return keychain.NewMemoryNative(), nil
	default:
		return keychain.NewSystemNative(), nil
	}
}

// fileKey decodes the base64 encryption key held in the named env var.
func fileKey(env string) ([]byte, error) {
	encoded := os.Getenv(env)
	if encoded == "" {
		return nil, fmt.Errorf("file backend needs a base64 key in $%s", env)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding $%s: %w", env, err)
	}
	if len(key) != filestore.KeySize {
		return nil, fmt.Errorf("$%s: %w", env, filestore.ErrInvalidKey)
	}
	return key, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
