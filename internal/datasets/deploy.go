// Package datasets implements dataset deployment: grouping
// resolved semantic-layer models by data source and upserting datasets
// and their columns. Models are not checked against the warehouse
// catalog's tables or columns.
package datasets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/catalog"
	"github.com/untoldecay/dataplane/internal/logging"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

// Input is one resolved model ready for deployment: its typed content plus
// the canonical SQL located for it (semantic.LocateSQL) and the deployment
// environment it targets. Env is deployment context, not part of the model
// YAML itself — the same model file can be deployed to more than one
// environment.
type Input struct {
	Model   types.Model
	Env     string
	SQL     string
	YMLFile string
}

// Column is one warehouse column discovered for a model's target table,
// already resolved to the dataset-column shape.
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	Description  string
	SemanticType string
	DimType      string
	Expr         string
}

// ModelResult is the per-model outcome.
type ModelResult struct {
	Success        bool
	ModelName      string
	DataSourceName string
	Schema         string
	Errors         []string
}

// Summary aggregates ModelResult across the whole batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Result is the full deployment outcome.
type Result struct {
	PerModelResult []ModelResult
	Summary        Summary
}

// groupKey is (data_source_name, env, database).
type groupKey struct {
	dataSourceName string
	env            string
	database       string
}

// Deployer performs dataset deployment against a warehouse catalog and a
// persistence store.
type Deployer struct {
	Resolver catalog.DataSourceResolver
	Catalog  catalog.WarehouseCatalog
	Store    storage.Storage
}

// Deploy groups inputs by data source and writes each group's datasets
// and columns in one transaction; the Catalog field is not consulted.
// actor is the acting
// user id, recorded as created_by/updated_by on new and touched datasets.
func (d *Deployer) Deploy(ctx context.Context, organizationID uuid.UUID, actor uuid.UUID, inputs []Input) Result {
	groups := map[groupKey][]Input{}
	order := make([]groupKey, 0)
	for _, in := range inputs {
		k := groupKey{dataSourceName: in.Model.DataSourceName, env: in.Env, database: in.Model.Database}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], in)
	}

	var results []ModelResult
	for _, k := range order {
		results = append(results, d.deployGroup(ctx, organizationID, actor, k, groups[k])...)
	}

	summary := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	logging.For(logging.ComponentDeploy).Info("deploy finished",
		slog.Int("total", summary.Total), slog.Int("succeeded", summary.Succeeded), slog.Int("failed", summary.Failed))
	return Result{PerModelResult: results, Summary: summary}
}

func failAll(inputs []Input, reason string) []ModelResult {
	out := make([]ModelResult, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, ModelResult{
			Success: false, ModelName: in.Model.Name, DataSourceName: in.Model.DataSourceName,
			Schema: in.Model.Schema, Errors: []string{reason},
		})
	}
	return out
}

// deployGroup implements steps 2-5 for one (data_source_name, env,
// database) group. Failure at any step fails every as-yet-unreported model
// in the group and the group's writes do not commit (step 6's per-group
// atomicity, step 2's group-wide DATA_SOURCE_ERROR).
func (d *Deployer) deployGroup(ctx context.Context, organizationID uuid.UUID, actor uuid.UUID, k groupKey, inputs []Input) []ModelResult {
	ds, err := d.Resolver.Resolve(ctx, organizationID.String(), k.dataSourceName, k.env, k.database)
	if err != nil || ds == nil {
		logging.For(logging.ComponentDeploy).Error("data source resolution failed",
			slog.String("data_source", k.dataSourceName), slog.String("env", k.env), slog.Any("error", err))
		return failAll(inputs, fmt.Sprintf("DATA_SOURCE_ERROR: %v", err))
	}
	dataSourceID, err := uuid.Parse(ds.ID)
	if err != nil {
		return failAll(inputs, fmt.Sprintf("DATA_SOURCE_ERROR: invalid data source id %q", ds.ID))
	}

	targets, warnings := dedupeTargets(inputs, dataSourceID)

	now := time.Now()
	var results []ModelResult
	err = d.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for key, target := range targets {
			datasetID, upsertErr := tx.UpsertDataset(ctx, types.Dataset{
				Name: target.in.Model.Name, Schema: target.in.Model.Schema, DatabaseName: target.in.Model.Database,
				DataSourceID: dataSourceID, DatabaseIdentifier: ds.Database,
				Definition: target.in.SQL, WhenToUse: target.in.Model.Description,
				Type: types.DatasetTypeView, Enabled: true, OrganizationID: organizationID,
				YMLFile: target.in.YMLFile, Model: target.in.Model.Name,
				CreatedBy: actor, UpdatedBy: actor, CreatedAt: now,
			})
			if upsertErr != nil {
				return fmt.Errorf("upsert dataset %s: %w", key.name, upsertErr)
			}

			cols, colWarnings := dedupeColumns(columnsFromModel(target.in.Model))
			warnings = append(warnings, colWarnings...)

			if err := d.syncColumns(ctx, tx, datasetID, cols, now); err != nil {
				return fmt.Errorf("sync columns for %s: %w", key.name, err)
			}

			results = append(results, ModelResult{
				Success: true, ModelName: target.in.Model.Name,
				DataSourceName: target.in.Model.DataSourceName, Schema: target.in.Model.Schema,
			})
		}
		return nil
	})
	if err != nil {
		return failAll(inputs, err.Error())
	}
	return results
}

type targetKey struct{ name string }

type target struct{ in Input }

// dedupeTargets implements step 3's last-wins-per-(model.name, data_source_id)
// rule. Since the whole group shares one data_source_id, the map key
// collapses to model name.
func dedupeTargets(inputs []Input, dataSourceID uuid.UUID) (map[targetKey]target, []string) {
	out := map[targetKey]target{}
	var order []targetKey
	for _, in := range inputs {
		k := targetKey{name: in.Model.Name}
		if _, seen := out[k]; !seen {
			order = append(order, k)
		}
		out[k] = target{in: in} // last-wins
	}
	sort.Slice(order, func(i, j int) bool { return order[i].name < order[j].name })
	return out, nil
}

func columnsFromModel(m types.Model) []types.DatasetColumn {
	cols := make([]types.DatasetColumn, 0, len(m.Dimensions)+len(m.Measures))
	for _, dim := range m.Dimensions {
		cols = append(cols, types.DatasetColumn{Name: dim.Name, Type: dim.Type, Description: dim.Description, DimType: "dimension"})
	}
	for _, meas := range m.Measures {
		cols = append(cols, types.DatasetColumn{Name: meas.Name, Type: meas.Type, Description: meas.Description, DimType: "measure"})
	}
	return cols
}

// dedupeColumns implements step 3's first-wins-per-column-name rule,
// logging (returning) a warning for every later duplicate dropped.
func dedupeColumns(cols []types.DatasetColumn) ([]types.DatasetColumn, []string) {
	seen := map[string]bool{}
	var out []types.DatasetColumn
	var warnings []string
	for _, c := range cols {
		if seen[c.Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate column %q dropped (first-wins)", c.Name))
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out, warnings
}

// syncColumns implements step 5: soft-delete columns no longer present,
// then upsert the desired set, un-deleting any that reappear.
func (d *Deployer) syncColumns(ctx context.Context, tx storage.Transaction, datasetID uuid.UUID, desired []types.DatasetColumn, at time.Time) error {
	current, err := d.Store.ListDatasetColumns(ctx, datasetID, false)
	if err != nil {
		return err
	}
	desiredNames := map[string]bool{}
	for i := range desired {
		desired[i].DatasetID = datasetID
		desiredNames[desired[i].Name] = true
	}

	var toDelete []string
	for _, c := range current {
		if !desiredNames[c.Name] {
			toDelete = append(toDelete, c.Name)
		}
	}
	if len(toDelete) > 0 {
		if err := tx.SoftDeleteDatasetColumns(ctx, datasetID, toDelete, at); err != nil {
			return err
		}
	}
	if len(desired) > 0 {
		if err := tx.UpsertDatasetColumns(ctx, desired); err != nil {
			return err
		}
	}
	return nil
}
