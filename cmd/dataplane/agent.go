package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/untoldecay/dataplane/internal/agent"
	"github.com/untoldecay/dataplane/internal/assets"
	"github.com/untoldecay/dataplane/internal/config"
	"github.com/untoldecay/dataplane/internal/transformer"
)

// sinkObserver adapts a transformer.Sink to agent.Observer, projecting
// tool dispatch timing and created-asset snapshots into the sink's
// wire events as the turn's dispatch loop runs.
type sinkObserver struct {
	sink *transformer.Sink
}

func (o *sinkObserver) ToolStarted(messageID string, call agent.ToolCall) {
	transformer.ProjectToolStarted(o.sink, messageID, call)
}

func (o *sinkObserver) ToolFinished(messageID string, call agent.ToolCall, result agent.ToolResult, started, ended time.Time) {
	transformer.ProjectToolResult(o.sink, messageID, call, result, started, ended)
}

func (o *sinkObserver) AssetCreated(messageID string, snapshot agent.AssetSnapshot) {
	switch snapshot.Kind {
	case "metric":
		_ = transformer.ProjectMetricSnapshot(o.sink, messageID, snapshot.Metric, snapshot.VersionNumber)
	case "dashboard":
		_ = transformer.ProjectDashboardSnapshot(o.sink, messageID, snapshot.Dashboard, snapshot.VersionNumber)
	}
}

var (
	agentModeName string
	agentActor    string
	agentSource   string
	agentDatasets string
)

var agentCmd = &cobra.Command{
	Use:     "agent",
	GroupID: "agent",
	Short:   "Run agent turns against a named mode",
}

var agentRunCmd = &cobra.Command{
	Use:   "run <message>",
	Short: "Run a single turn of a named mode and print the resulting history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modesPath := config.GetString("agent.modes-file")
		data, err := os.ReadFile(modesPath)
		if err != nil {
			return fmt.Errorf("read modes file: %w", err)
		}
		cfgs, err := agent.LoadModeConfigs(data)
		if err != nil {
			return err
		}

		var cfg *agent.ModeConfig
		for i := range cfgs {
			if cfgs[i].Name == agentModeName {
				cfg = &cfgs[i]
				break
			}
		}
		if cfg == nil {
			return fmt.Errorf("no such mode: %s", agentModeName)
		}

		actor, dataSourceID, err := parseAgentIdentity()
		if err != nil {
			return err
		}

		collaborators := &agent.Collaborators{
			Catalog:        wh,
			Metrics:        &assets.MetricService{Store: store, Catalog: wh, Permissions: gate},
			Dashboards:     &assets.DashboardService{Store: store},
			OrganizationID: orgID,
			DataSourceID:   dataSourceID,
			Actor:          actor,
		}

		mode := agent.BuildMode(*cfg, agent.AnalystToolLoader(collaborators))

		llm, err := agent.NewAnthropicClient("")
		if err != nil {
			return fmt.Errorf("build LLM client: %w", err)
		}

		a := agent.New(mode, llm)

		sink := transformer.NewSink(32, uuid.New().String())
		a.Observer = &sinkObserver{sink: sink}
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for e := range sink.Live {
				printEvent(e)
			}
		}()

		runErr := a.RunTurn(rootCtx, args[0], agentDatasets)
		sink.Close()
		<-drained
		if runErr != nil {
			return fmt.Errorf("run turn: %w", runErr)
		}

		printHistory(a.History)
		return nil
	},
}

// printEvent writes one projected wire event to stderr as it streams
// in, keeping stdout reserved for the final transcript printHistory
// renders.
func printEvent(e transformer.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}

func parseAgentIdentity() (actor uuid.UUID, dataSourceID uuid.UUID, err error) {
	actor = uuid.New()
	if agentActor != "" {
		actor, err = uuid.Parse(agentActor)
		if err != nil {
			return actor, dataSourceID, err
		}
	}
	if agentSource != "" {
		dataSourceID, err = uuid.Parse(agentSource)
		if err != nil {
			return actor, dataSourceID, err
		}
	}
	return actor, dataSourceID, nil
}

func printHistory(history []agent.Message) {
	for _, m := range history {
		switch m.Role {
		case agent.RoleUser:
			fmt.Printf("> %s\n", m.Content)
		case agent.RoleAssistant:
			if m.Content != "" {
				fmt.Println(m.Content)
			}
			for _, tc := range m.ToolCalls {
				fmt.Printf("  [tool] %s\n", tc.Name)
			}
		case agent.RoleTool:
			if m.ToolResult != nil {
				fmt.Printf("  [result] %s\n", m.ToolResult.Content)
			}
		}
	}
}

func init() {
	agentRunCmd.Flags().StringVar(&agentModeName, "mode", "analyst", "Mode name from the modes.jsonc registry")
	agentRunCmd.Flags().StringVar(&agentActor, "actor", "", "Acting user id (UUID)")
	agentRunCmd.Flags().StringVar(&agentSource, "data-source", "", "Data source id (UUID) the turn operates against")
	agentRunCmd.Flags().StringVar(&agentDatasets, "datasets", "", "Dataset summary text injected into the prompt template")

	agentCmd.AddCommand(agentRunCmd)
	rootCmd.AddCommand(agentCmd)
}
