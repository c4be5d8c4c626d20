package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/untoldecay/dataplane/internal/datasets"
	"github.com/untoldecay/dataplane/internal/semantic"
	"github.com/untoldecay/dataplane/internal/ui"
)

var (
	deployEnv            string
	deployDataSourceName string
	deployDatabase       string
	deploySchema         string
	deployActorFlag      string
	deployYes            bool
)

var deployCmd = &cobra.Command{
	Use:     "deploy <model-directory>",
	GroupID: "deploy",
	Short:   "Deploy semantic-layer models into datasets and columns",
	Long: `Discover every *.yml model under the given directory, resolve its
defaults (data source, database, schema), and upsert the resulting
datasets and columns in one atomic batch per data source group. Models
are not checked against the warehouse catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		paths, err := semantic.Discover(root)
		if err != nil {
			return fmt.Errorf("discover models: %w", err)
		}
		if len(paths) == 0 {
			fmt.Fprintln(os.Stderr, "no model files found")
			return nil
		}

		projectDefaults := semantic.Defaults{
			DataSourceName: deployDataSourceName,
			Database:       deployDatabase,
			Schema:         deploySchema,
		}

		var inputs []datasets.Input
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			models, err := semantic.Parse(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
				continue
			}
			for _, m := range models {
				resolved, err := semantic.Resolve(m, projectDefaults, semantic.Defaults{})
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %s in %s: %v\n", m.Name, path, err)
					continue
				}
				sql, err := semantic.LocateSQL(path, resolved)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %s: %v\n", resolved.Name, err)
					continue
				}
				inputs = append(inputs, datasets.Input{Model: resolved, Env: deployEnv, SQL: sql, YMLFile: path})
			}
		}

		actor := uuid.New()
		if deployActorFlag != "" {
			actor, err = uuid.Parse(deployActorFlag)
			if err != nil {
				return fmt.Errorf("invalid --actor: %w", err)
			}
		}

		if !deployYes && !ui.PromptYesNo(fmt.Sprintf("deploy %d model(s) to %s", len(inputs), deployEnv), false) {
			fmt.Fprintln(os.Stderr, "aborted")
			return nil
		}

		deployer := datasets.Deployer{Resolver: wh, Catalog: wh, Store: store}
		result := deployer.Deploy(rootCtx, orgID, actor, inputs)
		renderDeployResult(result)
		if result.Summary.Failed > 0 {
			return fmt.Errorf("%d of %d models failed to deploy", result.Summary.Failed, result.Summary.Total)
		}
		return nil
	},
}

func renderDeployResult(result datasets.Result) {
	t := ui.NewAssetSummaryTable("Model", "Data Source", "Schema", "Status", "Errors")

	for _, r := range result.PerModelResult {
		status := ui.TableSuccessStyle.Render("ok")
		if !r.Success {
			status = ui.TableWarningStyle.Render("failed")
		}
		t.Row(r.ModelName, r.DataSourceName, r.Schema, status, joinErrors(r.Errors))
	}
	fmt.Println(t)
	fmt.Printf("%s succeeded, %s failed, %s total\n",
		humanize.Comma(int64(result.Summary.Succeeded)),
		humanize.Comma(int64(result.Summary.Failed)),
		humanize.Comma(int64(result.Summary.Total)))
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}

func init() {
	deployCmd.Flags().StringVar(&deployEnv, "env", "production", "Deployment environment")
	deployCmd.Flags().StringVar(&deployDataSourceName, "data-source", "", "Default data source name for models that omit one")
	deployCmd.Flags().StringVar(&deployDatabase, "database", "", "Default database for models that omit one")
	deployCmd.Flags().StringVar(&deploySchema, "schema", "", "Default schema for models that omit one")
	deployCmd.Flags().StringVar(&deployActorFlag, "actor", "", "Acting user id (UUID); a random one is used if omitted")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deployCmd)
}
