package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benaskins/strongbox/internal/manifest"
	"github.com/benaskins/strongbox/keychain"
)

type manifestFetcher interface {
	FetchForManifest(key keychain.Key) ([]byte, error)
}

// ResolveEnv fetches every item a manifest references and returns
// NAME=value pairs in name order. Items that do not exist are skipped with a
// warning; any other failure aborts.
func ResolveEnv(s keychain.Store, m *manifest.Manifest, logger *slog.Logger) ([]string, error) {
	var env []string
	for _, name := range m.EnvNames() {
		ref := m.Secrets[name]
		key := keychain.Key{Service: m.ServiceFor(ref), Account: ref.Account}

		var data []byte
		var err error
		if mf, ok := s.(manifestFetcher); ok {
			data, err = mf.FetchForManifest(key)
		} else {
			data, err = s.FetchData(key)
		}
		if errors.Is(err, keychain.ErrNotFound) {
			logger.Warn("secret not found, skipping", "env_var", name, "service", key.Service, "account", key.Account)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}

		val, err := keychain.Text{}.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		env = append(env, name+"="+val)
		logger.Debug("resolved secret", "env_var", name)
	}
	return env, nil
}

// RotateDue rotates every manifest item that has a rotation command and whose
// interval has elapsed at now. Items never rotated are measured from their
// creation time; items never written through s are rotated immediately. It
// returns the names of the rotated variables.
func RotateDue(ctx context.Context, s *AuditedStore, m *manifest.Manifest, now time.Time) ([]string, error) {
	var rotated []string
	for _, name := range m.EnvNames() {
		ref := m.Secrets[name]
		if ref.RotateCommand == "" || ref.RotateEvery.Duration <= 0 {
			continue
		}
		key := keychain.Key{Service: m.ServiceFor(ref), Account: ref.Account}
		every := ref.RotateEvery.Duration.String()

		meta := s.Metadata().Get(s.MetadataKey(key))
		if err := s.SetRotateEvery(key, every); err != nil {
			return rotated, fmt.Errorf("recording rotation interval for %s: %w", name, err)
		}
		if meta != nil && !meta.UpdatedAt.IsZero() {
			meta.RotateEvery = every
			if !meta.due(now) {
				continue
			}
		}

		if err := s.Rotate(ctx, key, ref.RotateCommand); err != nil {
			return rotated, fmt.Errorf("rotating %s: %w", name, err)
		}
		rotated = append(rotated, name)
	}
	return rotated, nil
}
