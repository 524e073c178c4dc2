package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reverielabs/reverie/internal/config"
	"github.com/reverielabs/reverie/internal/wakelock"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Show session lock state",
	Long: `Show the session lock records a supervisor has written to disk.

Each record names the session token, the supervisor process that holds it
and when it was acquired. Records whose owning process is gone are marked
stale; a running supervisor cleans those up at startup.

For the live in-memory state of a running supervisor, send it SIGUSR1
instead.`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lockDir := cfg.Lock.ResolveLockDir(config.DataDir())

	locks, err := wakelock.List(lockDir)
	if err != nil {
		return fmt.Errorf("failed to read lock directory: %w", err)
	}

	fmt.Printf("Lock directory: %s\n", lockDir)
	if len(locks) == 0 {
		fmt.Println("No session locks held.")
		return nil
	}

	for _, l := range locks {
		state := "held"
		if !l.OwnerAlive() {
			state = "stale"
		}
		fmt.Printf("  %s  %s\n", l.Token, state)
		fmt.Printf("    pid: %d (%s)\n", l.PID, l.Hostname)
		fmt.Printf("    acquired: %s (%s ago)\n",
			l.AcquiredAt.Format(time.RFC3339),
			time.Since(l.AcquiredAt).Round(time.Second))
	}
	return nil
}
