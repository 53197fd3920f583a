package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benaskins/strongbox/keychain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage items in the credential store",
}

var secretSaveCmd = &cobra.Command{
	Use:   "save <account> [value]",
	Short: "Store an item, replacing any existing value",
	Long:  "Store an item. If value is omitted, reads from stdin (useful for piping).",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			v, err := readValue(os.Stdin)
			if err != nil {
				return err
			}
			value = v
		}

		s, err := openSession("cli")
		if err != nil {
			return err
		}
		defer s.Close()

		q := keychain.NewQuery[string](s.service(), args[0], keychain.Text{})
		if err := keychain.Save(s.store, value, q); err != nil {
			return err
		}
		fmt.Printf("Item %q stored\n", q.Key)
		return nil
	},
}

// readValue prompts on a terminal, otherwise reads all of r.
func readValue(r *os.File) (string, error) {
	if term.IsTerminal(int(r.Fd())) {
		fmt.Fprint(os.Stderr, "Enter secret value: ")
		b, err := term.ReadPassword(int(r.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

var secretFetchCmd = &cobra.Command{
	Use:   "fetch <account>",
	Short: "Print an item's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession("cli")
		if err != nil {
			return err
		}
		defer s.Close()

		val, err := keychain.Fetch(s.store, keychain.NewQuery[string](s.service(), args[0], keychain.Text{}))
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var ignoreMissing bool

var secretDeleteCmd = &cobra.Command{
	Use:     "delete <account>",
	Short:   "Remove an item",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession("cli")
		if err != nil {
			return err
		}
		defer s.Close()

		key := s.key(args[0])
		err = s.store.Delete(key)
		if ignoreMissing && errors.Is(err, keychain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Item %q deleted\n", key)
		return nil
	},
}

var secretRotateCmd = &cobra.Command{
	Use:   "rotate <account> <command>",
	Short: "Replace an item with the output of a shell command",
	Long:  "Run command with /bin/sh and store its stdout as the item's new value. The old value is kept if the command fails.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession("cli")
		if err != nil {
			return err
		}
		defer s.Close()

		key := s.key(args[0])
		if err := s.store.Rotate(cmd.Context(), key, args[1]); err != nil {
			return err
		}
		fmt.Printf("Item %q rotated\n", key)
		return nil
	},
}

var secretStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List items whose rotation interval has elapsed",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession("cli")
		if err != nil {
			return err
		}
		defer s.Close()

		now := time.Now().UTC()
		stale := s.store.Metadata().Stale(now)
		if len(stale) == 0 {
			fmt.Println("No stale items")
			return nil
		}

		all := s.store.Metadata().All()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM\tROTATE EVERY\tLAST ROTATED")
		for _, k := range stale {
			meta := all[k]
			last := "never"
			if !meta.LastRotated.IsZero() {
				last = meta.LastRotated.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", k, meta.RotateEvery, last)
		}
		return w.Flush()
	},
}

func init() {
	secretDeleteCmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "Succeed when the item does not exist")
	secretCmd.AddCommand(secretSaveCmd)
	secretCmd.AddCommand(secretFetchCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	secretCmd.AddCommand(secretRotateCmd)
	secretCmd.AddCommand(secretStaleCmd)
	rootCmd.AddCommand(secretCmd)
}
