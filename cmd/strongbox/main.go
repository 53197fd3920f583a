package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	serviceFlag string
	groupFlag   string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "strongbox",
	Short:         "Store and inject secrets from the platform credential store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.strongbox/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serviceFlag, "service", "", "Service name items are stored under")
	rootCmd.PersistentFlags().StringVar(&groupFlag, "access-group", "", "Keychain access group")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *childExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
