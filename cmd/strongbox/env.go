package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benaskins/strongbox/internal/config"
	"github.com/benaskins/strongbox/internal/manifest"
	"github.com/benaskins/strongbox/internal/secrets"
	"github.com/spf13/cobra"
)

var rotateDue bool

var envCmd = &cobra.Command{
	Use:   "env <manifest>",
	Short: "Print NAME=value lines for every item a manifest references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := resolveManifest(cmd.Context(), args[0], "cli")
		if err != nil {
			return err
		}
		for _, kv := range env {
			fmt.Println(kv)
		}
		return nil
	},
}

// loadManifest reads a manifest, fills in the default service when it names
// none, then validates it.
func loadManifest(path string, cfg *config.Config) (*manifest.Manifest, error) {
	m, err := manifest.Read(path)
	if err != nil {
		return nil, err
	}
	if m.Service == "" {
		m.Service = defaultService(cfg)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", path, err)
	}
	return m, nil
}

// resolveManifest loads a manifest, optionally rotates due items, and
// returns its resolved environment.
func resolveManifest(ctx context.Context, path, actor string) ([]string, error) {
	s, err := openSession(actor)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	m, err := loadManifest(path, s.cfg)
	if err != nil {
		return nil, err
	}

	if rotateDue {
		rotated, err := secrets.RotateDue(ctx, s.store, m, time.Now().UTC())
		for _, name := range rotated {
			slog.Info("rotated", "env_var", name)
		}
		if err != nil {
			return nil, err
		}
	}

	return secrets.ResolveEnv(s.store, m, slog.Default())
}

func init() {
	envCmd.Flags().BoolVar(&rotateDue, "rotate-due", false, "Rotate items whose interval has elapsed before resolving")
	rootCmd.AddCommand(envCmd)
}
