// Command dataplane is the operator CLI for the semantic layer: it
// deploys datasets, authors metrics and dashboards, runs agent turns,
// and diagnoses a local install. Organized the way cmd/bd lays out
// one file per subcommand, each registering itself onto rootCmd from
// its own init().
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/untoldecay/dataplane/internal/catalog"
	"github.com/untoldecay/dataplane/internal/config"
	"github.com/untoldecay/dataplane/internal/logging"
	"github.com/untoldecay/dataplane/internal/permissions"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/storage/sqlite"
)

var (
	rootCtx = context.Background()

	jsonOutput bool
	dbPath     string
	orgIDFlag  string
	orgID      uuid.UUID

	store storage.Storage
	wh    *catalog.Fake
	gate  *permissions.Gate
)

var rootCmd = &cobra.Command{
	Use:   "dataplane",
	Short: "Semantic layer CLI: deploy datasets, author metrics and dashboards, run agent turns",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logging.Init()

		if orgIDFlag != "" {
			id, err := uuid.Parse(orgIDFlag)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			orgID = id
		}

		switch cmd.Name() {
		case "help", "completion":
			return nil
		}

		s, err := sqlite.New(rootCtx, dbPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		store = s
		wh = catalog.NewFake()
		gate = &permissions.Gate{Store: store}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "assets", Title: "Asset commands:"},
		&cobra.Group{ID: "deploy", Title: "Deployment commands:"},
		&cobra.Group{ID: "agent", Title: "Agent commands:"},
		&cobra.Group{ID: "ops", Title: "Operational commands:"},
	)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "dataplane.db", "Path to the local SQLite metadata store")
	rootCmd.PersistentFlags().StringVar(&orgIDFlag, "org", "", "Organization id (UUID) the command operates within")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
