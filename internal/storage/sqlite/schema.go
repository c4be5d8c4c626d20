package sqlite

const schema = `
-- Datasets table
CREATE TABLE IF NOT EXISTS datasets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    schema_name TEXT NOT NULL,
    database_name TEXT NOT NULL,
    data_source_id TEXT NOT NULL,
    database_identifier TEXT NOT NULL DEFAULT '',
    definition TEXT NOT NULL DEFAULT '',
    when_to_use TEXT NOT NULL DEFAULT '',
    dataset_type TEXT NOT NULL DEFAULT 'View',
    enabled INTEGER NOT NULL DEFAULT 1,
    organization_id TEXT NOT NULL,
    yml_file TEXT NOT NULL DEFAULT '',
    model_name TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL DEFAULT '',
    updated_by TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME,
    UNIQUE (database_name, data_source_id)
);

CREATE INDEX IF NOT EXISTS idx_datasets_org ON datasets(organization_id);
CREATE INDEX IF NOT EXISTS idx_datasets_data_source ON datasets(data_source_id);

-- Dataset columns table
CREATE TABLE IF NOT EXISTS dataset_columns (
    dataset_id TEXT NOT NULL,
    name TEXT NOT NULL,
    col_type TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    semantic_type TEXT NOT NULL DEFAULT '',
    dim_type TEXT NOT NULL DEFAULT '',
    expr TEXT NOT NULL DEFAULT '',
    nullable INTEGER NOT NULL DEFAULT 1,
    deleted_at DATETIME,
    PRIMARY KEY (dataset_id, name),
    FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
);

-- Metric files table
CREATE TABLE IF NOT EXISTS metric_files (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    organization_id TEXT NOT NULL,
    data_source_id TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '{}',       -- JSON MetricYml, latest version
    data_metadata TEXT,                       -- JSON DataMetadata, nullable
    verification TEXT NOT NULL DEFAULT 'notVerified',
    version_history TEXT NOT NULL DEFAULT '{}', -- JSON VersionHistory
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_metric_files_org ON metric_files(organization_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_metric_files_org_name ON metric_files(organization_id, name) WHERE deleted_at IS NULL;

-- Metric file <-> dataset join table, rebuilt wholesale on every metric write
CREATE TABLE IF NOT EXISTS metric_file_to_dataset (
    metric_file_id TEXT NOT NULL,
    dataset_id TEXT NOT NULL,
    metric_version_number INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (metric_file_id, dataset_id),
    FOREIGN KEY (metric_file_id) REFERENCES metric_files(id) ON DELETE CASCADE,
    FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
);

-- Dashboard files table
CREATE TABLE IF NOT EXISTS dashboard_files (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    organization_id TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '{}',       -- JSON DashboardYml, latest version
    version_history TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_dashboard_files_org ON dashboard_files(organization_id);

-- Dashboard <-> metric link table, rebuilt wholesale on every dashboard write
CREATE TABLE IF NOT EXISTS dashboard_metric_links (
    dashboard_id TEXT NOT NULL,
    metric_file_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (dashboard_id, metric_file_id),
    FOREIGN KEY (dashboard_id) REFERENCES dashboard_files(id) ON DELETE CASCADE
);

-- Asset permissions table
CREATE TABLE IF NOT EXISTS asset_permissions (
    identity_id TEXT NOT NULL,
    identity_type TEXT NOT NULL,      -- 'user' or 'team'
    asset_id TEXT NOT NULL,
    asset_type TEXT NOT NULL,         -- 'metric', 'dashboard', 'collection', 'chat_thread'
    role TEXT NOT NULL,
    deleted_at DATETIME,
    PRIMARY KEY (identity_id, identity_type, asset_id, asset_type)
);

CREATE INDEX IF NOT EXISTS idx_asset_permissions_asset ON asset_permissions(asset_id, asset_type);

-- Container membership (collections/dashboards containing other assets, for
-- permission inheritance) and favorites/ordering.
CREATE TABLE IF NOT EXISTS collection_to_asset (
    collection_id TEXT NOT NULL,
    asset_id TEXT NOT NULL,
    asset_type TEXT NOT NULL,
    order_index INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (collection_id, asset_id, asset_type)
);

CREATE TABLE IF NOT EXISTS favorites (
    user_id TEXT NOT NULL,
    asset_id TEXT NOT NULL,
    asset_type TEXT NOT NULL,
    order_index INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, asset_id, asset_type)
);

-- Organization membership, consulted by the permission gate for the
-- workspace-admin bypass.
CREATE TABLE IF NOT EXISTS org_memberships (
    user_id TEXT NOT NULL,
    organization_id TEXT NOT NULL,
    workspace_role TEXT NOT NULL DEFAULT 'viewer',
    PRIMARY KEY (user_id, organization_id)
);

CREATE TABLE IF NOT EXISTS team_members (
    user_id TEXT NOT NULL,
    team_id TEXT NOT NULL,
    PRIMARY KEY (user_id, team_id)
);

-- Key-value config and metadata, for anything not worth its own table.
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);
`
