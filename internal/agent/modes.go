package agent

import (
	"encoding/json"
	"fmt"

	"github.com/muhammadmuzzammil1998/jsonc"
)

// ModeConfig is one entry of the operator-editable mode registry file
// (modes.jsonc). JSON-with-comments so operators can annotate why a
// tool is wired into a mode without a separate docs file.
type ModeConfig struct {
	Name             string   `json:"name"`
	PromptTemplate   string   `json:"prompt_template"`
	ModelName        string   `json:"model_name"`
	Tools            []string `json:"tools"`
	TerminatingTools []string `json:"terminating_tools"`
}

// LoadModeConfigs parses a modes.jsonc document into its ModeConfig
// entries.
func LoadModeConfigs(data []byte) ([]ModeConfig, error) {
	var cfgs []ModeConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfgs); err != nil {
		return nil, fmt.Errorf("parse modes.jsonc: %w", err)
	}
	return cfgs, nil
}

// BuildMode turns a ModeConfig into a runnable Mode. allTools registers
// the full built-in tool catalog; the returned mode's tool_loader keeps
// only the subset named in cfg.Tools, so the same catalog backs every
// mode while each mode exposes a different slice of it.
func BuildMode(cfg ModeConfig, allTools ToolLoader) Mode {
	wanted := make(map[string]bool, len(cfg.Tools))
	for _, name := range cfg.Tools {
		wanted[name] = true
	}
	terminating := make(map[string]bool, len(cfg.TerminatingTools))
	for _, name := range cfg.TerminatingTools {
		terminating[name] = true
	}

	return Mode{
		Name:           cfg.Name,
		PromptTemplate: cfg.PromptTemplate,
		ModelName:      cfg.ModelName,
		ToolLoader: func(reg *Registry) {
			full := NewRegistry()
			allTools(full)
			for name := range wanted {
				if t, ok := full.Get(name); ok {
					reg.Register(*t)
				}
			}
		},
		TerminatingToolNames: terminating,
	}
}

// DefaultAnalystPromptTemplate is the built-in system prompt for the
// data-analyst mode.
const DefaultAnalystPromptTemplate = `You are a data analyst assistant. Today's date is {TODAYS_DATE}.

Datasets available in this workspace:
{DATASETS}

Search the data catalog before writing SQL against a table you have not
already inspected. You cannot execute Python, train models, or export
files directly — you can only create metrics and dashboards backed by
SQL, and must end every turn by calling respond_to_user.`
