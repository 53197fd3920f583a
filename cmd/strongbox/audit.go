package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/benaskins/strongbox/internal/audit"
	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit [account]",
	Short: "Show recent audit log entries",
	Long:  "Show the most recent audit log entries, optionally only those for one account under the current service.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := stateFile(cfg.AuditLog, "audit.log")
		if err != nil {
			return err
		}

		entries, err := audit.ReadFile(path)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			entries = audit.ForKey(entries, itemKey(cfg, args[0]))
		}
		if auditLimit > 0 && len(entries) > auditLimit {
			entries = entries[len(entries)-auditLimit:]
		}

		if jsonOut {
			if entries == nil {
				entries = []audit.Entry{}
			}
			return printJSON(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No audit entries")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tITEM\tTRIGGER\tRESULT")
		for _, e := range entries {
			result := "ok"
			if e.Failed() {
				result = e.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Action, e.Key(), e.Trigger, result)
		}
		return w.Flush()
	},
}

func init() {
	auditCmd.Flags().Bool("json", false, "Output entries as JSON")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Show at most this many entries (0 for all)")
	rootCmd.AddCommand(auditCmd)
}
