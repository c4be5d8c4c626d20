package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/types"
)

func (s *SQLiteStorage) GetMetricFile(ctx context.Context, id uuid.UUID) (*types.MetricFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, organization_id, data_source_id, content, data_metadata, verification,
		       version_history, created_at, updated_at, deleted_at
		FROM metric_files WHERE id = ?`, id.String())
	return scanMetricFile(row)
}

func (s *SQLiteStorage) GetMetricFileByName(ctx context.Context, organizationID uuid.UUID, name string) (*types.MetricFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, organization_id, data_source_id, content, data_metadata, verification,
		       version_history, created_at, updated_at, deleted_at
		FROM metric_files WHERE organization_id = ? AND name = ? AND deleted_at IS NULL`,
		organizationID.String(), name)
	return scanMetricFile(row)
}

func scanMetricFile(row *sql.Row) (*types.MetricFile, error) {
	var m types.MetricFile
	var id, orgID, dataSourceID, content, versionHistory string
	var dataMetadata sql.NullString
	var deletedAt sql.NullTime
	err := row.Scan(&id, &m.Name, &orgID, &dataSourceID, &content, &dataMetadata, &m.Verification,
		&versionHistory, &m.CreatedAt, &m.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.ID = uuid.MustParse(id)
	m.OrganizationID = uuid.MustParse(orgID)
	m.DataSourceID = uuid.MustParse(dataSourceID)
	if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
		return nil, err
	}
	if dataMetadata.Valid && dataMetadata.String != "" {
		var dm types.DataMetadata
		if err := json.Unmarshal([]byte(dataMetadata.String), &dm); err != nil {
			return nil, err
		}
		m.DataMetadata = &dm
	}
	if err := json.Unmarshal([]byte(versionHistory), &m.VersionHistory); err != nil {
		return nil, err
	}
	if err := rehydrateVersionHistory[types.MetricYml](&m.VersionHistory); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.Time
	}
	return &m, nil
}

func (s *SQLiteStorage) ListMetricFileDatasets(ctx context.Context, metricID uuid.UUID, version int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dataset_id FROM metric_file_to_dataset WHERE metric_file_id = ? AND metric_version_number = ?`,
		metricID.String(), version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, uuid.MustParse(id))
	}
	return out, rows.Err()
}

func (t *connTx) CreateMetricFile(ctx context.Context, m types.MetricFile) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return err
	}
	versionHistory, err := json.Marshal(m.VersionHistory)
	if err != nil {
		return err
	}
	_, err = t.conn.ExecContext(ctx, `
		INSERT INTO metric_files (id, name, organization_id, data_source_id, content, data_metadata,
		                          verification, version_history, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, NULL)`,
		m.ID.String(), m.Name, m.OrganizationID.String(), m.DataSourceID.String(), string(content),
		m.Verification, string(versionHistory), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (t *connTx) SaveMetricFile(ctx context.Context, m types.MetricFile) error {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return err
	}
	var dataMetadata sql.NullString
	if m.DataMetadata != nil {
		raw, err := json.Marshal(m.DataMetadata)
		if err != nil {
			return err
		}
		dataMetadata = sql.NullString{String: string(raw), Valid: true}
	}
	versionHistory, err := json.Marshal(m.VersionHistory)
	if err != nil {
		return err
	}
	var deletedAt sql.NullTime
	if m.DeletedAt != nil {
		deletedAt = sql.NullTime{Time: *m.DeletedAt, Valid: true}
	}
	_, err = t.conn.ExecContext(ctx, `
		UPDATE metric_files SET name = ?, content = ?, data_metadata = ?, verification = ?,
		       version_history = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		m.Name, string(content), dataMetadata, m.Verification, string(versionHistory), m.UpdatedAt, deletedAt, m.ID.String(),
	)
	return err
}

// ReplaceMetricFileToDataset rebuilds the join table wholesale for the
// current version, the pattern used for both create and
// update: "drop and recreate the join rows for this metric".
func (t *connTx) ReplaceMetricFileToDataset(ctx context.Context, metricID uuid.UUID, version int, datasetIDs []uuid.UUID, at time.Time) error {
	if _, err := t.conn.ExecContext(ctx, `DELETE FROM metric_file_to_dataset WHERE metric_file_id = ?`, metricID.String()); err != nil {
		return err
	}
	for _, dsID := range datasetIDs {
		if _, err := t.conn.ExecContext(ctx, `
			INSERT INTO metric_file_to_dataset (metric_file_id, dataset_id, metric_version_number, created_at)
			VALUES (?, ?, ?, ?)`, metricID.String(), dsID.String(), version, at,
		); err != nil {
			return err
		}
	}
	return nil
}
