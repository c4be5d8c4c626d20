package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/untoldecay/dataplane/internal/analyzer"
	"github.com/untoldecay/dataplane/internal/assets"
	"github.com/untoldecay/dataplane/internal/transformer"
	"github.com/untoldecay/dataplane/internal/types"
	"github.com/untoldecay/dataplane/internal/ui"
)

var metricCmd = &cobra.Command{
	Use:     "metric",
	GroupID: "assets",
	Short:   "Create, update, and inspect metrics",
}

var (
	metricFile    string
	metricActor   string
	metricSource  string
	metricRestore int
	metricYes     bool
)

func metricService() *assets.MetricService {
	return &assets.MetricService{
		Store:       store,
		Analyzer:    analyzer.New(analyzer.DialectPostgres),
		Catalog:     wh,
		Permissions: gate,
	}
}

var metricCreateCmd = &cobra.Command{
	Use:   "create <file.yml>",
	Short: "Create a metric from a MetricYml file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content types.MetricYml
		if err := readYAML(args[0], &content); err != nil {
			return err
		}
		actor, dataSourceID, err := resolveActorAndSource()
		if err != nil {
			return err
		}

		m, err := metricService().Create(rootCtx, assets.CreateMetricInput{
			OrganizationID: orgID,
			DataSourceID:   dataSourceID,
			Actor:          actor,
			Content:        content,
		})
		if err != nil {
			return err
		}
		return printMetric(m)
	},
}

var metricUpdateCmd = &cobra.Command{
	Use:   "update <metric-id>",
	Short: "Update a metric: full YAML replace, or restore a prior version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid metric id: %w", err)
		}
		actor, _, err := resolveActorAndSource()
		if err != nil {
			return err
		}

		in := assets.UpdateMetricInput{MetricID: id, Actor: actor}
		if cmd.Flags().Changed("restore") {
			v := metricRestore
			if !metricYes {
				current, err := store.GetMetricFile(rootCtx, id)
				if err != nil {
					return err
				}
				if current == nil {
					return fmt.Errorf("metric not found")
				}
				if !ui.ConfirmRestore("metric", current.Name, current.VersionHistory.Latest, v) {
					fmt.Println("aborted")
					return nil
				}
			}
			in.RestoreToVersion = &v
		} else if metricFile != "" {
			var content types.MetricYml
			if err := readYAML(metricFile, &content); err != nil {
				return err
			}
			in.FullYAML = &content
		} else {
			return fmt.Errorf("specify --file or --restore")
		}

		m, err := metricService().Update(rootCtx, in)
		if err != nil {
			return err
		}
		return printMetric(m)
	},
}

func printMetric(m *types.MetricFile) error {
	if jsonOutput {
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	lines, err := transformer.RenderMetricSnapshot(m.Content)
	if err != nil {
		return err
	}
	body := "# " + m.Name + "\n\n"
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
	fmt.Printf("version %d, verification: %s\n", m.VersionHistory.Latest, m.Verification)
	return nil
}

func readYAML(path string, out any) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func init() {
	metricCreateCmd.Flags().StringVar(&metricActor, "actor", "", "Acting user id (UUID)")
	metricCreateCmd.Flags().StringVar(&metricSource, "data-source", "", "Data source id (UUID)")
	metricUpdateCmd.Flags().StringVar(&metricActor, "actor", "", "Acting user id (UUID)")
	metricUpdateCmd.Flags().StringVar(&metricFile, "file", "", "Full MetricYml replacement file")
	metricUpdateCmd.Flags().IntVar(&metricRestore, "restore", 0, "Version number to restore")
	metricUpdateCmd.Flags().BoolVarP(&metricYes, "yes", "y", false, "Skip the restore confirmation prompt")

	metricCmd.AddCommand(metricCreateCmd, metricUpdateCmd)
	rootCmd.AddCommand(metricCmd)
}
