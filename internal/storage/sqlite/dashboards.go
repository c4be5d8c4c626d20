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

func (s *SQLiteStorage) GetDashboardFile(ctx context.Context, id uuid.UUID) (*types.DashboardFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, organization_id, content, version_history, created_at, updated_at, deleted_at
		FROM dashboard_files WHERE id = ?`, id.String())

	var d types.DashboardFile
	var rowID, orgID, content, versionHistory string
	var deletedAt sql.NullTime
	err := row.Scan(&rowID, &d.Name, &orgID, &content, &versionHistory, &d.CreatedAt, &d.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ID = uuid.MustParse(rowID)
	d.OrganizationID = uuid.MustParse(orgID)
	if err := json.Unmarshal([]byte(content), &d.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(versionHistory), &d.VersionHistory); err != nil {
		return nil, err
	}
	if err := rehydrateVersionHistory[types.DashboardYml](&d.VersionHistory); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	return &d, nil
}

func (t *connTx) CreateDashboardFile(ctx context.Context, d types.DashboardFile) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	content, err := json.Marshal(d.Content)
	if err != nil {
		return err
	}
	versionHistory, err := json.Marshal(d.VersionHistory)
	if err != nil {
		return err
	}
	_, err = t.conn.ExecContext(ctx, `
		INSERT INTO dashboard_files (id, name, organization_id, content, version_history, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		d.ID.String(), d.Name, d.OrganizationID.String(), string(content), string(versionHistory), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (t *connTx) SaveDashboardFile(ctx context.Context, d types.DashboardFile) error {
	content, err := json.Marshal(d.Content)
	if err != nil {
		return err
	}
	versionHistory, err := json.Marshal(d.VersionHistory)
	if err != nil {
		return err
	}
	var deletedAt sql.NullTime
	if d.DeletedAt != nil {
		deletedAt = sql.NullTime{Time: *d.DeletedAt, Valid: true}
	}
	_, err = t.conn.ExecContext(ctx, `
		UPDATE dashboard_files SET name = ?, content = ?, version_history = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		d.Name, string(content), string(versionHistory), d.UpdatedAt, deletedAt, d.ID.String(),
	)
	return err
}

// ReplaceDashboardMetricLinks rebuilds the dashboard's metric cross-reference
// table from its current row set.
func (t *connTx) ReplaceDashboardMetricLinks(ctx context.Context, dashboardID uuid.UUID, metricIDs []uuid.UUID, at time.Time) error {
	if _, err := t.conn.ExecContext(ctx, `DELETE FROM dashboard_metric_links WHERE dashboard_id = ?`, dashboardID.String()); err != nil {
		return err
	}
	seen := make(map[uuid.UUID]bool, len(metricIDs))
	for _, id := range metricIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := t.conn.ExecContext(ctx, `
			INSERT INTO dashboard_metric_links (dashboard_id, metric_file_id, created_at) VALUES (?, ?, ?)`,
			dashboardID.String(), id.String(), at,
		); err != nil {
			return err
		}
	}
	return nil
}
