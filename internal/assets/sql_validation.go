package assets

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/analyzer"
	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/assets/schemas"
	"github.com/untoldecay/dataplane/internal/logging"
	"github.com/untoldecay/dataplane/internal/types"
)

// sqlValidationResult carries the three things the pipeline produces: the
// resolved dataset associations, the probe-derived metadata, and the
// chart config with regenerated column-label formats.
type sqlValidationResult struct {
	datasetIDs  []uuid.UUID
	metadata    *types.DataMetadata
	chartConfig types.ChartConfig
}

// validateSQL runs the five-step SQL validation pipeline.
func (s *MetricService) validateSQL(ctx context.Context, actingUser uuid.UUID, m *types.MetricFile, sql string) (*sqlValidationResult, error) {
	summary, err := s.Analyzer.Analyze(sql)
	if err != nil {
		// Vague (unqualified) references are a non-structural finding: the
		// query still parsed and its tables still resolved. Downgrade
		// rather than fail, using the bound summary the analyzer attaches
		// to the error. A genuine parse failure has no such summary to
		// fall back on and remains a hard failure.
		var vague *analyzer.VagueReferences
		if errors.As(err, &vague) && vague.Summary != nil {
			logging.For(logging.ComponentAssets).Debug("downgrading vague sql reference finding",
				slog.Any("columns", vague.Columns), slog.Any("tables", vague.Tables))
			summary = vague.Summary
		} else {
			return nil, apperr.SQLValidationFailed(err.Error())
		}
	}

	var datasetIDs []uuid.UUID
	for _, table := range summary.Tables {
		ds, err := s.Store.GetDatasetBySchemaAndName(ctx, m.DataSourceID, table.Schema, table.Name)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if ds == nil {
			// Step 2: a non-matching name downgrades to a warning, not a
			// hard failure; the metric associates with zero datasets for
			// unmatched tables rather than aborting.
			continue
		}

		// Dataset access in this system is organization-membership based
		// (datasets carry no per-asset ACL rows of their own, unlike
		// metrics/dashboards/collections) — step 3 is satisfied by the
		// acting user belonging to the dataset's organization at all.
		memberships, err := s.Store.ListOrgMemberships(ctx, actingUser)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !hasMembership(memberships, ds.OrganizationID) {
			return nil, apperr.PermissionDenied("missing access to dataset " + ds.Name)
		}
		datasetIDs = append(datasetIDs, ds.ID)
	}

	metadata, err := s.Catalog.Probe(ctx, m.DataSourceID.String(), sql, probeRowCap, probeTimeout)
	if err != nil {
		return nil, apperr.SQLValidationFailed(err.Error())
	}

	chartConfig := m.Content.ChartConfig
	chartConfig.Base.ColumnLabelFormats = regenerateColumnLabelFormats(metadata, chartConfig.Base.ColumnLabelFormats)
	chartConfig.Base.ColumnSettings = nil
	chartConfig.Base.Trendlines = nil

	if err := validateChartConfigKind(chartConfig); err != nil {
		return nil, err
	}

	return &sqlValidationResult{datasetIDs: datasetIDs, metadata: metadata, chartConfig: chartConfig}, nil
}

// validateChartConfigKind checks the kind-specific fields carried in
// Extra against the discriminated-union schema for that chart kind.
// An empty kind (the chart is not yet configured) is skipped; a kind
// with no schema on file is rejected as unknown.
func validateChartConfigKind(c types.ChartConfig) error {
	if c.Kind == "" {
		return nil
	}
	schema, known, err := schemas.Compile(string(c.Kind))
	if err != nil {
		return apperr.Internal(err)
	}
	if !known {
		return apperr.NewValidation(apperr.SubYaml, "unknown chart_config kind: "+string(c.Kind))
	}
	instance := map[string]any{}
	for k, v := range c.Extra {
		instance[k] = v
	}
	if err := schema.Validate(instance); err != nil {
		return apperr.NewValidation(apperr.SubYaml, "chart_config invalid for kind "+string(c.Kind)+": "+err.Error())
	}
	return nil
}

func hasMembership(memberships []types.OrgMembership, organizationID uuid.UUID) bool {
	for _, m := range memberships {
		if m.OrganizationID == organizationID {
			return true
		}
	}
	return false
}
