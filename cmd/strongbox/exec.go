package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// childExitError carries a child's exit code back to main.
type childExitError struct {
	code int
}

func (e *childExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var execCmd = &cobra.Command{
	Use:   "exec <manifest> -- <command> [args...]",
	Short: "Run a command with a manifest's items in its environment",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := resolveManifest(cmd.Context(), args[0], "exec")
		if err != nil {
			return err
		}
		return runChild(args[1], args[2:], append(os.Environ(), env...))
	},
}

func runChild(name string, args, env []string) error {
	child := exec.Command(name, args...)
	child.Env = env
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	done := forwardSignals(sigCh, child.Process)

	err := child.Wait()
	signal.Stop(sigCh)
	close(sigCh)
	<-done

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &childExitError{code: exitErr.ExitCode()}
	}
	return err
}

// forwardSignals relays signals from sigCh to p until sigCh is closed. The
// returned channel is closed once forwarding has stopped.
func forwardSignals(sigCh <-chan os.Signal, p interface{ Signal(os.Signal) error }) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for sig := range sigCh {
			if err := p.Signal(sig); err != nil {
				slog.Debug("forwarding signal failed", "signal", sig, "error", err)
			}
		}
	}()
	return done
}

func init() {
	execCmd.Flags().BoolVar(&rotateDue, "rotate-due", false, "Rotate items whose interval has elapsed before resolving")
	rootCmd.AddCommand(execCmd)
}
