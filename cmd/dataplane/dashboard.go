package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/untoldecay/dataplane/internal/assets"
	"github.com/untoldecay/dataplane/internal/transformer"
	"github.com/untoldecay/dataplane/internal/types"
	"github.com/untoldecay/dataplane/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "assets",
	Short:   "Create, update, and inspect dashboards",
}

var (
	dashboardFile    string
	dashboardRestore int
	dashboardYes     bool
)

func dashboardService() *assets.DashboardService {
	return &assets.DashboardService{Store: store}
}

var dashboardCreateCmd = &cobra.Command{
	Use:   "create <file.yml>",
	Short: "Create a dashboard from a DashboardYml file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content types.DashboardYml
		if err := readYAML(args[0], &content); err != nil {
			return err
		}
		d, err := dashboardService().Create(rootCtx, assets.CreateDashboardInput{
			OrganizationID: orgID,
			Content:        content,
		})
		if err != nil {
			return err
		}
		return printDashboard(d)
	},
}

var dashboardUpdateCmd = &cobra.Command{
	Use:   "update <dashboard-id>",
	Short: "Update a dashboard: full YAML replace, or restore a prior version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid dashboard id: %w", err)
		}

		in := assets.UpdateDashboardInput{DashboardID: id}
		if cmd.Flags().Changed("restore") {
			v := dashboardRestore
			if !dashboardYes {
				current, err := store.GetDashboardFile(rootCtx, id)
				if err != nil {
					return err
				}
				if current == nil {
					return fmt.Errorf("dashboard not found")
				}
				if !ui.ConfirmRestore("dashboard", current.Name, current.VersionHistory.Latest, v) {
					fmt.Println("aborted")
					return nil
				}
			}
			in.RestoreToVersion = &v
		} else if dashboardFile != "" {
			var content types.DashboardYml
			if err := readYAML(dashboardFile, &content); err != nil {
				return err
			}
			in.FullYAML = &content
		} else {
			return fmt.Errorf("specify --file or --restore")
		}

		d, err := dashboardService().Update(rootCtx, in)
		if err != nil {
			return err
		}
		return printDashboard(d)
	},
}

func printDashboard(d *types.DashboardFile) error {
	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	lines, err := transformer.RenderDashboardSnapshot(d.Content)
	if err != nil {
		return err
	}
	body := "# " + d.Name + "\n\n"
	for _, l := range lines {
		body += "    " + l.Text + "\n"
	}
	if !ui.ShouldUseColor() {
		fmt.Println(body)
	} else if rendered, err := glamour.Render(body, ui.GlamourStyle()); err == nil {
		fmt.Println(rendered)
	} else {
		fmt.Println(body)
	}
	fmt.Printf("version %d\n", d.VersionHistory.Latest)
	return nil
}

func init() {
	dashboardUpdateCmd.Flags().StringVar(&dashboardFile, "file", "", "Full DashboardYml replacement file")
	dashboardUpdateCmd.Flags().IntVar(&dashboardRestore, "restore", 0, "Version number to restore")
	dashboardUpdateCmd.Flags().BoolVarP(&dashboardYes, "yes", "y", false, "Skip the restore confirmation prompt")

	dashboardCmd.AddCommand(dashboardCreateCmd, dashboardUpdateCmd)
	rootCmd.AddCommand(dashboardCmd)
}
