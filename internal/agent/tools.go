package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/assets"
	"github.com/untoldecay/dataplane/internal/catalog"
	"github.com/untoldecay/dataplane/internal/logging"
	"github.com/untoldecay/dataplane/internal/types"
)

// assetSnapshotKey is the well-known state key a tool executor that
// creates or updates a versioned asset uses to hand the result to the
// turn's Observer, the same pattern as the searched_data_catalog and
// metrics_available enablement flags below.
const assetSnapshotKey = "asset_snapshot"

// AssetSnapshot is stashed under assetSnapshotKey by create_metric and
// create_dashboard so RunTurn's dispatch loop can project it without
// the agent core depending on the assets or types packages.
type AssetSnapshot struct {
	Kind          string // "metric" or "dashboard"
	Metric        *types.MetricFile
	Dashboard     *types.DashboardFile
	VersionNumber int
}

// Collaborators bundles the services the built-in analyst mode's tools
// dispatch into. A mode's tool_loader closes over one of these per
// conversation.
type Collaborators struct {
	Catalog        catalog.WarehouseCatalog
	Metrics        *assets.MetricService
	Dashboards     *assets.DashboardService
	OrganizationID uuid.UUID
	DataSourceID   uuid.UUID
	Actor          uuid.UUID
}

// AnalystToolLoader registers the built-in search/create tool set,
// gated in the natural order of an analysis session: cataloging before
// metric authoring, metrics before dashboard assembly.
func AnalystToolLoader(c *Collaborators) ToolLoader {
	return func(reg *Registry) {
		reg.Register(Tool{
			Schema: ToolSchema{
				Name:        "search_data_catalog",
				Description: "List warehouse columns for a schema.table so SQL can be written against real column names.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"database": map[string]any{"type": "string"},
						"schema":   map[string]any{"type": "string"},
						"table":    map[string]any{"type": "string"},
					},
					"required": []string{"schema", "table"},
				},
			},
			Executor: c.searchDataCatalog,
		})

		reg.Register(Tool{
			Schema: ToolSchema{
				Name:        "create_metric",
				Description: "Create a new metric from a name, SQL query, and time frame.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"sql":         map[string]any{"type": "string"},
						"time_frame":  map[string]any{"type": "string"},
					},
					"required": []string{"name", "sql"},
				},
			},
			Executor: c.createMetric,
			Enabled: func(state map[string]any) bool {
				searched, _ := state["searched_data_catalog"].(bool)
				return searched
			},
		})

		reg.Register(Tool{
			Schema: ToolSchema{
				Name:        "create_dashboard",
				Description: "Assemble previously created metrics into a dashboard, one row of tiles summing to 12 columns each.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"metric_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"name", "metric_ids"},
				},
			},
			Executor: c.createDashboard,
			Enabled: func(state map[string]any) bool {
				available, _ := state["metrics_available"].(bool)
				return available
			},
		})

		reg.Register(Tool{
			Schema: ToolSchema{
				Name:        "respond_to_user",
				Description: "Send a final natural-language answer and end the turn.",
				InputSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"message": map[string]any{"type": "string"}},
					"required":   []string{"message"},
				},
			},
			Executor: func(ctx context.Context, input json.RawMessage, state map[string]any, set StateSetter) (string, error) {
				var args struct {
					Message string `json:"message"`
				}
				if err := json.Unmarshal(input, &args); err != nil {
					return "", err
				}
				return args.Message, nil
			},
		})
	}
}

func (c *Collaborators) searchDataCatalog(ctx context.Context, input json.RawMessage, state map[string]any, set StateSetter) (string, error) {
	var args struct {
		Database string `json:"database"`
		Schema   string `json:"schema"`
		Table    string `json:"table"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", err
	}
	cols, err := c.Catalog.Columns(ctx, c.DataSourceID.String(), args.Database, args.Schema, args.Table)
	if err != nil {
		logging.For(logging.ComponentAgent).Warn("catalog lookup failed",
			slog.String("schema", args.Schema), slog.String("table", args.Table), slog.String("error", err.Error()))
		return "", err
	}
	logging.For(logging.ComponentAgent).Debug("catalog searched", slog.String("schema", args.Schema), slog.String("table", args.Table))
	set("searched_data_catalog", true)
	set("data_context", cols)

	out, err := json.Marshal(cols)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Collaborators) createMetric(ctx context.Context, input json.RawMessage, state map[string]any, set StateSetter) (string, error) {
	var args struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		SQL         string `json:"sql"`
		TimeFrame   string `json:"time_frame"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", err
	}

	m, err := c.Metrics.Create(ctx, assets.CreateMetricInput{
		OrganizationID: c.OrganizationID,
		DataSourceID:   c.DataSourceID,
		Actor:          c.Actor,
		Content: types.MetricYml{
			Name:        args.Name,
			Description: args.Description,
			SQL:         args.SQL,
			TimeFrame:   args.TimeFrame,
		},
	})
	if err != nil {
		logging.For(logging.ComponentAgent).Warn("create_metric tool call failed", slog.String("error", err.Error()))
		return "", err
	}
	set("metrics_available", true)
	set(assetSnapshotKey, AssetSnapshot{Kind: "metric", Metric: m, VersionNumber: m.VersionHistory.Latest})
	return fmt.Sprintf("created metric %s (id %s)", m.Name, m.ID), nil
}

// dashboardRowCapacity is the max tiles per row; a row of n<=4 tiles
// always divides 12 evenly (12, 6+6, 4+4+4, 3+3+3+3), so chunking
// metric ids into rows of this size keeps every span in {3,4,6,12}
// without a remainder to distribute.
const dashboardRowCapacity = 4

func (c *Collaborators) createDashboard(ctx context.Context, input json.RawMessage, state map[string]any, set StateSetter) (string, error) {
	var args struct {
		Name      string   `json:"name"`
		MetricIDs []string `json:"metric_ids"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", err
	}
	if len(args.MetricIDs) == 0 {
		return "", fmt.Errorf("create_dashboard requires at least one metric id")
	}

	ids := make([]uuid.UUID, 0, len(args.MetricIDs))
	for _, idStr := range args.MetricIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return "", fmt.Errorf("invalid metric id %q: %w", idStr, err)
		}
		ids = append(ids, id)
	}

	var rows []types.DashboardRow
	for start := 0; start < len(ids); start += dashboardRowCapacity {
		end := start + dashboardRowCapacity
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		span := 12 / len(chunk)
		items := make([]types.DashboardItem, 0, len(chunk))
		for _, id := range chunk {
			items = append(items, types.DashboardItem{ID: id, ColumnSpan: span})
		}
		rows = append(rows, types.DashboardRow{Items: items})
	}

	d, err := c.Dashboards.Create(ctx, assets.CreateDashboardInput{
		OrganizationID: c.OrganizationID,
		Content: types.DashboardYml{
			Name: args.Name,
			Rows: rows,
		},
	})
	if err != nil {
		return "", err
	}
	set(assetSnapshotKey, AssetSnapshot{Kind: "dashboard", Dashboard: d, VersionNumber: d.VersionHistory.Latest})
	return fmt.Sprintf("created dashboard %s (id %s)", d.Name, d.ID), nil
}
