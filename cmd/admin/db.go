package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"megabots.dev/internal/persistence/indexdb"
)

func newDBCmd() *cobra.Command {
	var (
		worldID string
		dbPath  string
		limit   int
	)
	open := func() (*sql.DB, error) {
		path := strings.TrimSpace(dbPath)
		if path == "" {
			if strings.TrimSpace(worldID) == "" {
				return nil, fmt.Errorf("missing --world or --db")
			}
			path = filepath.Join(dataDir, "worlds", worldID, "index", "world.sqlite")
		}
		return indexdb.OpenReader(path)
	}
	query := func(fn func(db *sql.DB) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			out, err := fn(db)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		}
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Query the sqlite tick/audit index",
	}
	cmd.PersistentFlags().StringVar(&worldID, "world", "", "world id (required unless --db)")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite db path (optional)")
	cmd.PersistentFlags().IntVar(&limit, "limit", 20, "result limit")

	cmd.AddCommand(&cobra.Command{
		Use:   "ticks",
		Short: "Most recent tick summaries",
		Args:  cobra.NoArgs,
		RunE: query(func(db *sql.DB) (any, error) {
			return indexdb.RecentTicks(db, limit)
		}),
	})

	var robotID int
	var action string
	audits := &cobra.Command{
		Use:   "audits",
		Short: "Audit trail for one robot",
		Args:  cobra.NoArgs,
		RunE: query(func(db *sql.DB) (any, error) {
			return indexdb.RobotAudits(db, robotID, strings.ToUpper(strings.TrimSpace(action)), limit)
		}),
	}
	audits.Flags().IntVar(&robotID, "robot", 0, "robot id")
	audits.Flags().StringVar(&action, "action", "", "action filter, e.g. GOTO, PICKUP, CANCEL")
	_ = audits.MarkFlagRequired("robot")
	cmd.AddCommand(audits)

	cmd.AddCommand(&cobra.Command{
		Use:   "tasks",
		Short: "Pickup tasks with their drop waypoints",
		Args:  cobra.NoArgs,
		RunE: query(func(db *sql.DB) (any, error) {
			return indexdb.Tasks(db, limit)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tuning",
		Short: "Tuning the world was started with",
		Args:  cobra.NoArgs,
		RunE: query(func(db *sql.DB) (any, error) {
			var raw string
			if err := db.QueryRow(`SELECT json FROM config WHERE name='tuning'`).Scan(&raw); err != nil {
				return nil, err
			}
			return json.RawMessage(raw), nil
		}),
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
