package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/benaskins/strongbox/internal/manifest"
	"github.com/spf13/cobra"
)

type checkResult struct {
	Path    string `json:"path"`
	Service string `json:"service,omitempty"`
	Secrets int    `json:"secrets,omitempty"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check [file-or-dir...]",
	Short: "Validate secret manifests",
	Long:  "Parse and validate YAML secret manifests. Checks the given files and directories, or the default manifest directory (~/.strongbox/manifests/).",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets := args
	if len(targets) == 0 {
		targets = []string{defaultManifestDir()}
	}

	var files []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", target, err)
		}
		if !info.IsDir() {
			files = append(files, target)
			continue
		}
		found, err := manifest.Files(target)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("no YAML files found in %s", target)
		}
		files = append(files, found...)
	}

	var results []checkResult
	var failed int
	for _, path := range files {
		m, err := loadManifest(path, cfg)
		if err != nil {
			results = append(results, checkResult{Path: path, Valid: false, Error: err.Error()})
			failed++
		} else {
			results = append(results, checkResult{Path: path, Service: m.Service, Secrets: len(m.Secrets), Valid: true})
		}
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("OK    %s (%d secrets)\n", r.Path, r.Secrets)
			} else {
				fmt.Fprintf(os.Stderr, "FAIL  %s\n      %v\n", r.Path, r.Error)
			}
		}
		if len(files) > 1 {
			fmt.Printf("\n%d/%d manifests valid\n", len(files)-failed, len(files))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d manifest(s) failed validation", failed)
	}
	return nil
}

func defaultManifestDir() string {
	dir, err := strongboxHome()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "manifests")
}
