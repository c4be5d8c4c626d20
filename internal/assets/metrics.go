// Package assets implements the versioned asset store for metrics and
// dashboards: creation, field-patch/full-body/restore updates,
// SQL validation, and version history bookkeeping.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/analyzer"
	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/catalog"
	"github.com/untoldecay/dataplane/internal/logging"
	"github.com/untoldecay/dataplane/internal/permissions"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

const probeRowCap = 100
const probeTimeout = 30 * time.Second

// MetricService implements metric creation and update.
type MetricService struct {
	Store       storage.Storage
	Analyzer    *analyzer.Analyzer
	Catalog     catalog.WarehouseCatalog
	Permissions *permissions.Gate

	// LockDir holds one advisory lock file per metric_id, serializing
	// concurrent updates to the same metric across processes. Defaults
	// to os.TempDir() when empty.
	LockDir string
}

// metricLock acquires a non-blocking advisory lock on the given metric
// id, returning a release function. Two concurrent updates to the same
// metric fail fast rather than racing on version-history append.
func (s *MetricService) metricLock(id uuid.UUID) (func(), error) {
	dir := s.LockDir
	if dir == "" {
		dir = os.TempDir()
	}
	lock := flock.New(filepath.Join(dir, "metric-"+id.String()+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("acquiring metric lock: %w", err))
	}
	if !locked {
		return nil, apperr.Conflict("metric " + id.String() + " is being updated by another request")
	}
	return func() { _ = lock.Unlock() }, nil
}

// CreateMetricInput is the input to Create.
type CreateMetricInput struct {
	OrganizationID uuid.UUID
	DataSourceID   uuid.UUID
	Actor          uuid.UUID
	Content        types.MetricYml
}

// Create validates, creates with a single
// version, and run SQL validation since a freshly created metric always has
// SQL to check.
func (s *MetricService) Create(ctx context.Context, in CreateMetricInput) (*types.MetricFile, error) {
	if err := validateMetricYml(in.Content); err != nil {
		return nil, err
	}

	now := time.Now()
	m := types.MetricFile{
		ID:             uuid.New(),
		Name:           in.Content.Name,
		Content:        in.Content,
		DataSourceID:   in.DataSourceID,
		OrganizationID: in.OrganizationID,
		Verification:   types.VerificationNotVerified,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.VersionHistory = types.NewVersionHistory(m.Content, now)

	validation, err := s.validateSQL(ctx, in.Actor, &m, in.Content.SQL)
	if err != nil {
		return nil, err
	}
	m.Content.ChartConfig = validation.chartConfig
	m.DataMetadata = validation.metadata
	m.VersionHistory.Overwrite(m.Content, now) // fold validation-adjusted content into version 1

	var datasetIDs []uuid.UUID
	err = s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreateMetricFile(ctx, m); err != nil {
			return err
		}
		datasetIDs = validation.datasetIDs
		return tx.ReplaceMetricFileToDataset(ctx, m.ID, m.VersionHistory.Latest, datasetIDs, now)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logging.For(logging.ComponentAssets).Info("metric created", slog.String("metric_id", m.ID.String()), slog.String("name", m.Name))
	return &m, nil
}

// UpdateMetricInput carries the three mutually-exclusive update modes named
// RestoreToVersion takes precedence over FullYAML, which
// takes precedence over FieldPatch, if more than one is supplied.
type UpdateMetricInput struct {
	MetricID         uuid.UUID
	Actor            uuid.UUID
	FieldPatch       *MetricFieldPatch
	FullYAML         *types.MetricYml
	RestoreToVersion *int
	UpdateVersion    *bool // nil or non-false means "append"; explicit false means "overwrite"
}

// MetricFieldPatch is the discrete-field update mode.
type MetricFieldPatch struct {
	Name             *string
	Description      *string
	TimeFrame        *string
	SQL              *string
	Verification     *types.VerificationStatus
	ChartConfigPatch map[string]any
}

// Update applies one of three mutually-exclusive update modes.
func (s *MetricService) Update(ctx context.Context, in UpdateMetricInput) (*types.MetricFile, error) {
	release, err := s.metricLock(in.MetricID)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := s.Store.GetMetricFile(ctx, in.MetricID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if m == nil || m.DeletedAt != nil {
		return nil, apperr.NotFound("metric not found")
	}

	var newContent types.MetricYml
	var sqlChanged bool
	append_ := false

	switch {
	case in.RestoreToVersion != nil:
		v, ok := m.VersionHistory.At(*in.RestoreToVersion)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("version %d does not exist", *in.RestoreToVersion))
		}
		content, ok := v.Content.(types.MetricYml)
		if !ok {
			return nil, apperr.Internal(fmt.Errorf("version %d content is not a MetricYml", *in.RestoreToVersion))
		}
		newContent = content
		sqlChanged = true // SQL validation always re-runs on restore
		append_ = true    // restores always append, never overwrite

	case in.FullYAML != nil:
		newContent = *in.FullYAML
		sqlChanged = newContent.SQL != m.Content.SQL

	case in.FieldPatch != nil:
		newContent = m.Content
		sqlChanged = applyFieldPatch(&newContent, in.FieldPatch)

	default:
		return nil, apperr.Validation("update requires one of field_patch, full yaml, or restore_to_version")
	}

	if err := validateMetricYml(newContent); err != nil {
		return nil, err
	}

	if !append_ {
		append_ = in.UpdateVersion == nil || *in.UpdateVersion
	}

	now := time.Now()
	var datasetIDs []uuid.UUID
	if sqlChanged {
		validation, err := s.validateSQL(ctx, in.Actor, m, newContent.SQL)
		if err != nil {
			return nil, err
		}
		newContent.ChartConfig = validation.chartConfig
		m.DataMetadata = validation.metadata
		datasetIDs = validation.datasetIDs
	} else {
		// SQL unchanged: skip the probe, carry the prior association set
		// forward.
		prior, err := s.Store.ListMetricFileDatasets(ctx, m.ID, m.VersionHistory.Latest)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		datasetIDs = prior
	}

	m.Name = newContent.Name
	m.Content = newContent
	m.UpdatedAt = now

	var version int
	if append_ {
		version = m.VersionHistory.Append(newContent, now)
	} else {
		m.VersionHistory.Overwrite(newContent, now)
		version = m.VersionHistory.Latest
	}

	err = s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SaveMetricFile(ctx, *m); err != nil {
			return err
		}
		return tx.ReplaceMetricFileToDataset(ctx, m.ID, version, datasetIDs, now)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logging.For(logging.ComponentAssets).Info("metric updated", slog.String("metric_id", m.ID.String()), slog.Int("version", version))
	return m, nil
}

// applyFieldPatch mutates content in place per the supplied patch and
// reports whether sql changed.
func applyFieldPatch(content *types.MetricYml, patch *MetricFieldPatch) bool {
	if patch.Name != nil {
		content.Name = *patch.Name
	}
	if patch.Description != nil {
		content.Description = *patch.Description
	}
	if patch.TimeFrame != nil {
		content.TimeFrame = *patch.TimeFrame
	}
	sqlChanged := false
	if patch.SQL != nil && *patch.SQL != content.SQL {
		content.SQL = *patch.SQL
		sqlChanged = true
	}
	if patch.ChartConfigPatch != nil {
		content.ChartConfig = mergeChartConfigPatch(content.ChartConfig, patch.ChartConfigPatch)
	}
	return sqlChanged
}

func validateMetricYml(m types.MetricYml) error {
	if m.Name == "" {
		return apperr.NewValidation(apperr.SubYaml, "metric name is required")
	}
	if m.SQL == "" {
		return apperr.NewValidation(apperr.SubYaml, "metric sql is required")
	}
	return nil
}

// mergeChartConfigPatch implements the deep-JSON-merge rule for
// chart_config patches.
func mergeChartConfigPatch(existing types.ChartConfig, patch map[string]any) types.ChartConfig {
	raw, err := existing.MarshalJSON()
	if err != nil {
		return existing
	}
	var base map[string]any
	if err := json.Unmarshal(raw, &base); err != nil {
		return existing
	}
	merged := deepMergeJSON(base, patch)
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return existing
	}
	var out types.ChartConfig
	if err := out.UnmarshalJSON(mergedRaw); err != nil {
		return existing
	}
	return out
}
