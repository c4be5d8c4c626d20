package assets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/assets/schemas"
	"github.com/untoldecay/dataplane/internal/logging"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

// DashboardService implements dashboard creation and update.
type DashboardService struct {
	Store storage.Storage
}

// CreateDashboardInput is the input to Create.
type CreateDashboardInput struct {
	OrganizationID uuid.UUID
	Content        types.DashboardYml
}

// Create parses, validates metric-id references, and creates the first
// version.
func (s *DashboardService) Create(ctx context.Context, in CreateDashboardInput) (*types.DashboardFile, error) {
	if err := validateDashboardYml(in.Content); err != nil {
		return nil, err
	}
	metricIDs, err := s.validateMetricRefs(ctx, in.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	d := types.DashboardFile{
		ID:             uuid.New(),
		Name:           in.Content.Name,
		Content:        in.Content,
		OrganizationID: in.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	d.VersionHistory = types.NewVersionHistory(d.Content, now)

	err = s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateDashboardFile(ctx, d); err != nil {
			return err
		}
		return tx.ReplaceDashboardMetricLinks(ctx, d.ID, metricIDs, now)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logging.For(logging.ComponentAssets).Info("dashboard created", slog.String("dashboard_id", d.ID.String()), slog.String("name", d.Name))
	return &d, nil
}

// UpdateDashboardInput carries two of UpdateMetricInput's modes (full
// YAML replace and restore_to_version); there are no discrete field
// patches and no SQL validation (dashboards have no SQL of their own).
type UpdateDashboardInput struct {
	DashboardID      uuid.UUID
	FullYAML         *types.DashboardYml
	RestoreToVersion *int
	UpdateVersion    *bool
}

func (s *DashboardService) Update(ctx context.Context, in UpdateDashboardInput) (*types.DashboardFile, error) {
	d, err := s.Store.GetDashboardFile(ctx, in.DashboardID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if d == nil || d.DeletedAt != nil {
		return nil, apperr.NotFound("dashboard not found")
	}

	var newContent types.DashboardYml
	append_ := false
	switch {
	case in.RestoreToVersion != nil:
		v, ok := d.VersionHistory.At(*in.RestoreToVersion)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("version %d does not exist", *in.RestoreToVersion))
		}
		content, ok := v.Content.(types.DashboardYml)
		if !ok {
			return nil, apperr.Internal(fmt.Errorf("version %d content is not a DashboardYml", *in.RestoreToVersion))
		}
		newContent = content
		append_ = true
	case in.FullYAML != nil:
		newContent = *in.FullYAML
	default:
		return nil, apperr.Validation("update requires full yaml or restore_to_version")
	}

	if err := validateDashboardYml(newContent); err != nil {
		return nil, err
	}
	// Missing metric ids abort the update entirely.
	metricIDs, err := s.validateMetricRefs(ctx, newContent)
	if err != nil {
		return nil, err
	}

	if !append_ {
		append_ = in.UpdateVersion == nil || *in.UpdateVersion
	}

	now := time.Now()
	d.Name = newContent.Name
	d.Content = newContent
	d.UpdatedAt = now

	if append_ {
		d.VersionHistory.Append(newContent, now)
	} else {
		d.VersionHistory.Overwrite(newContent, now)
	}

	err = s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SaveDashboardFile(ctx, *d); err != nil {
			return err
		}
		return tx.ReplaceDashboardMetricLinks(ctx, d.ID, metricIDs, now)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logging.For(logging.ComponentAssets).Info("dashboard updated", slog.String("dashboard_id", d.ID.String()))
	return d, nil
}

func validateDashboardYml(d types.DashboardYml) error {
	if d.Name == "" {
		return apperr.NewValidation(apperr.SubYaml, "dashboard name is required")
	}
	if err := validateDashboardLayoutSchema(d); err != nil {
		return err
	}
	for _, row := range d.Rows {
		if len(row.Items) > maxRowItems {
			return apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("dashboard row has %d items, must be at most %d", len(row.Items), maxRowItems))
		}
		span := 0
		for _, item := range row.Items {
			if !validColumnSpans[item.ColumnSpan] {
				return apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("dashboard tile column_span %d is invalid, must be one of 3, 4, 6, 12", item.ColumnSpan))
			}
			span += item.ColumnSpan
		}
		if span != 12 {
			return apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("dashboard row column spans sum to %d, must be 12", span))
		}
	}
	return nil
}

const maxRowItems = 4

var validColumnSpans = map[int]bool{3: true, 4: true, 6: true, 12: true}

// validateDashboardLayoutSchema checks the row/item shape against the
// embedded dashboard layout schema, catching malformed rows (missing
// tile ids, out-of-range spans) before the span-sum check runs.
func validateDashboardLayoutSchema(d types.DashboardYml) error {
	schema, known, err := schemas.Compile(schemas.Dashboard)
	if err != nil {
		return apperr.Internal(err)
	}
	if !known {
		return nil
	}

	rows := make([]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		items := make([]any, 0, len(row.Items))
		for _, item := range row.Items {
			items = append(items, map[string]any{
				"id":          item.ID.String(),
				"column_span": item.ColumnSpan,
			})
		}
		rows = append(rows, map[string]any{"items": items})
	}
	instance := map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"rows":        rows,
	}
	if err := schema.Validate(instance); err != nil {
		return apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("dashboard layout invalid: %v", err))
	}
	return nil
}

// validateMetricRefs extracts the metric ids referenced by content and
// checks each exists and is not soft-deleted.
func (s *DashboardService) validateMetricRefs(ctx context.Context, content types.DashboardYml) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, row := range content.Rows {
		for _, item := range row.Items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			m, err := s.Store.GetMetricFile(ctx, item.ID)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			if m == nil || m.DeletedAt != nil {
				return nil, apperr.NewValidation(apperr.SubUnknownDatasetRef, fmt.Sprintf("dashboard references unknown metric %s", item.ID))
			}
			ids = append(ids, item.ID)
		}
	}
	return ids, nil
}
