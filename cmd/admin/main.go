package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	persistlog "megabots.dev/internal/persistence/log"
	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/world"
)

var dataDir string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Inspect warehouse worlds: data dir, sqlite index, journal and the live admin API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")

	root.AddCommand(newListCmd(), newDBCmd(), newJournalCmd(), newStateCmd(), newRobotCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List worlds under the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(filepath.Join(dataDir, "worlds"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintln(cmd.OutOrStdout(), e.Name())
				}
			}
			return nil
		},
	}
}

func newJournalCmd() *cobra.Command {
	var (
		worldID  string
		typ      string
		fromTick uint64
		toTick   uint64
		digests  bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print journaled frames as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return persistlog.ReadJournal(filepath.Join(dataDir, "worlds", worldID), func(e world.JournalEntry) error {
				if e.Tick < fromTick || (toTick > 0 && e.Tick > toTick) {
					return nil
				}
				if len(e.Frame) == 0 {
					if digests {
						return enc.Encode(e)
					}
					return nil
				}
				if typ != "" {
					msg, err := protocol.Decode(e.Frame)
					if err != nil || msg.Type != typ {
						return nil
					}
				}
				return enc.Encode(e)
			})
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "world id")
	cmd.Flags().StringVar(&typ, "type", "", "message type filter, e.g. robot_tick_done")
	cmd.Flags().Uint64Var(&fromTick, "from-tick", 0, "first tick (inclusive)")
	cmd.Flags().Uint64Var(&toTick, "to-tick", 0, "last tick (inclusive, optional)")
	cmd.Flags().BoolVar(&digests, "digests", false, "also print digest records")
	_ = cmd.MarkFlagRequired("world")
	return cmd
}
