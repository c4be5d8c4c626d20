package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/storage"
	"github.com/untoldecay/dataplane/internal/types"
)

func (s *SQLiteStorage) GetDatasetByNaturalKey(ctx context.Context, key storage.DatasetNaturalKey) (*types.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, schema_name, database_name, data_source_id, database_identifier,
		       definition, when_to_use, dataset_type, enabled, organization_id, yml_file,
		       model_name, created_by, updated_by, created_at, updated_at, deleted_at
		FROM datasets WHERE database_name = ? AND data_source_id = ?`,
		key.DatabaseName, key.DataSourceID.String())
	return scanDataset(row)
}

func (s *SQLiteStorage) GetDatasetBySchemaAndName(ctx context.Context, dataSourceID uuid.UUID, schemaName, name string) (*types.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, schema_name, database_name, data_source_id, database_identifier,
		       definition, when_to_use, dataset_type, enabled, organization_id, yml_file,
		       model_name, created_by, updated_by, created_at, updated_at, deleted_at
		FROM datasets WHERE data_source_id = ? AND schema_name = ? AND name = ? AND deleted_at IS NULL`,
		dataSourceID.String(), schemaName, name)
	return scanDataset(row)
}

func scanDataset(row *sql.Row) (*types.Dataset, error) {
	var d types.Dataset
	var id, dataSourceID, orgID, createdBy, updatedBy string
	var deletedAt sql.NullTime
	err := row.Scan(&id, &d.Name, &d.Schema, &d.DatabaseName, &dataSourceID, &d.DatabaseIdentifier,
		&d.Definition, &d.WhenToUse, &d.Type, &d.Enabled, &orgID, &d.YMLFile,
		&d.Model, &createdBy, &updatedBy, &d.CreatedAt, &d.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ID = uuid.MustParse(id)
	d.DataSourceID = uuid.MustParse(dataSourceID)
	d.OrganizationID = uuid.MustParse(orgID)
	if createdBy != "" {
		d.CreatedBy = uuid.MustParse(createdBy)
	}
	if updatedBy != "" {
		d.UpdatedBy = uuid.MustParse(updatedBy)
	}
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	return &d, nil
}

func (s *SQLiteStorage) ListDatasetColumns(ctx context.Context, datasetID uuid.UUID, includeDeleted bool) ([]types.DatasetColumn, error) {
	q := `SELECT dataset_id, name, col_type, description, semantic_type, dim_type, expr, nullable, deleted_at
	      FROM dataset_columns WHERE dataset_id = ?`
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	rows, err := s.db.QueryContext(ctx, q, datasetID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.DatasetColumn
	for rows.Next() {
		var c types.DatasetColumn
		var id string
		var deletedAt sql.NullTime
		if err := rows.Scan(&id, &c.Name, &c.Type, &c.Description, &c.SemanticType, &c.DimType, &c.Expr, &c.Nullable, &deletedAt); err != nil {
			return nil, err
		}
		c.DatasetID = uuid.MustParse(id)
		if deletedAt.Valid {
			c.DeletedAt = &deletedAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertDataset implements the data_source_name/env/database natural-key
// upsert: an existing row with the same (database_name,
// data_source_id) is updated in place, preserving its id.
func (t *connTx) UpsertDataset(ctx context.Context, d types.Dataset) (uuid.UUID, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO datasets (id, name, schema_name, database_name, data_source_id, database_identifier,
		                       definition, when_to_use, dataset_type, enabled, organization_id, yml_file,
		                       model_name, created_by, updated_by, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (database_name, data_source_id) DO UPDATE SET
			name = excluded.name,
			schema_name = excluded.schema_name,
			database_identifier = excluded.database_identifier,
			definition = excluded.definition,
			when_to_use = excluded.when_to_use,
			dataset_type = excluded.dataset_type,
			enabled = excluded.enabled,
			yml_file = excluded.yml_file,
			model_name = excluded.model_name,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at,
			deleted_at = NULL`,
		d.ID.String(), d.Name, d.Schema, d.DatabaseName, d.DataSourceID.String(), d.DatabaseIdentifier,
		d.Definition, d.WhenToUse, d.Type, d.Enabled, d.OrganizationID.String(), d.YMLFile,
		d.Model, d.CreatedBy.String(), d.UpdatedBy.String(), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return uuid.Nil, err
	}

	// The conflict path keeps the pre-existing id, so re-read it (spec
	// §4.C: "upsert by natural key" must return the stable dataset id, not
	// a freshly generated one that would orphan existing columns).
	var existingID string
	err = t.conn.QueryRowContext(ctx, `SELECT id FROM datasets WHERE database_name = ? AND data_source_id = ?`,
		d.DatabaseName, d.DataSourceID.String()).Scan(&existingID)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(existingID), nil
}

func (t *connTx) SoftDeleteDatasetColumns(ctx context.Context, datasetID uuid.UUID, names []string, at time.Time) error {
	for _, name := range names {
		if _, err := t.conn.ExecContext(ctx,
			`UPDATE dataset_columns SET deleted_at = ? WHERE dataset_id = ? AND name = ? AND deleted_at IS NULL`,
			at, datasetID.String(), name); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDatasetColumns applies the first-wins-per-column rule's output: by
// the time this is called the caller has already deduplicated, so this is a
// plain per-column upsert that also un-deletes a column that reappears.
func (t *connTx) UpsertDatasetColumns(ctx context.Context, cols []types.DatasetColumn) error {
	for _, c := range cols {
		if _, err := t.conn.ExecContext(ctx, `
			INSERT INTO dataset_columns (dataset_id, name, col_type, description, semantic_type, dim_type, expr, nullable, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
			ON CONFLICT (dataset_id, name) DO UPDATE SET
				col_type = excluded.col_type,
				description = excluded.description,
				semantic_type = excluded.semantic_type,
				dim_type = excluded.dim_type,
				expr = excluded.expr,
				nullable = excluded.nullable,
				deleted_at = NULL`,
			c.DatasetID.String(), c.Name, c.Type, c.Description, c.SemanticType, c.DimType, c.Expr, c.Nullable,
		); err != nil {
			return err
		}
	}
	return nil
}
