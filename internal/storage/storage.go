// Package storage defines the interface for semantic-layer storage
// backends: datasets, metric/dashboard files and their version history,
// and asset permissions.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/untoldecay/dataplane/internal/types"
)

// ErrDBNotInitialized is returned when attempting to use a database storage feature
// (like GetConfig) when the database has not been initialized.
var ErrDBNotInitialized = errors.New("database not initialized")

// DatasetNaturalKey is (database_name, data_source_id), the key dataset
// deployment upserts against.
type DatasetNaturalKey struct {
	DatabaseName string
	DataSourceID uuid.UUID
}

// AssetRef identifies one asset for permission-inheritance lookups (spec
// §4.E step 2: "join transitively through any container assets").
type AssetRef struct {
	ID   uuid.UUID
	Type types.AssetType
}

// Transaction provides atomic multi-operation support within a single database transaction.
//
// The Transaction interface exposes a subset of Storage methods that execute within
// a single database transaction. This enables atomic workflows where multiple operations
// must either all succeed or all fail (e.g., writing a metric file and rebuilding its
// dataset join table).
//
// # Transaction Semantics
//
//   - All operations within the transaction share the same database connection
//   - Changes are not visible to other connections until commit
//   - If any operation returns an error, the transaction is rolled back
//   - If the callback function panics, the transaction is rolled back
//   - On successful return from the callback, the transaction is committed
//
// # SQLite Specifics
//
//   - Uses BEGIN IMMEDIATE mode to acquire write lock early
//   - This prevents deadlocks when multiple operations compete for the same lock
//   - IMMEDIATE mode serializes concurrent transactions properly
//
// # Example Usage
//
//	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
//	    id, err := tx.UpsertDataset(ctx, ds)
//	    if err != nil {
//	        return err // Triggers rollback
//	    }
//	    if err := tx.UpsertDatasetColumns(ctx, cols); err != nil {
//	        return err // Triggers rollback
//	    }
//	    return nil // Triggers commit
//	})
type Transaction interface {
	// Dataset operations
	UpsertDataset(ctx context.Context, d types.Dataset) (uuid.UUID, error)
	SoftDeleteDatasetColumns(ctx context.Context, datasetID uuid.UUID, names []string, at time.Time) error
	UpsertDatasetColumns(ctx context.Context, cols []types.DatasetColumn) error

	// Metric file operations
	CreateMetricFile(ctx context.Context, m types.MetricFile) error
	SaveMetricFile(ctx context.Context, m types.MetricFile) error
	ReplaceMetricFileToDataset(ctx context.Context, metricID uuid.UUID, version int, datasetIDs []uuid.UUID, at time.Time) error

	// Dashboard file operations
	CreateDashboardFile(ctx context.Context, d types.DashboardFile) error
	SaveDashboardFile(ctx context.Context, d types.DashboardFile) error
	ReplaceDashboardMetricLinks(ctx context.Context, dashboardID uuid.UUID, metricIDs []uuid.UUID, at time.Time) error

	// Permission operations
	UpsertAssetPermission(ctx context.Context, p types.AssetPermission) error
}

// Storage defines the interface for semantic-layer storage backends.
type Storage interface {
	// Datasets
	GetDatasetByNaturalKey(ctx context.Context, key DatasetNaturalKey) (*types.Dataset, error)
	GetDatasetBySchemaAndName(ctx context.Context, dataSourceID uuid.UUID, schema, name string) (*types.Dataset, error)
	ListDatasetColumns(ctx context.Context, datasetID uuid.UUID, includeDeleted bool) ([]types.DatasetColumn, error)

	// Metric files
	GetMetricFile(ctx context.Context, id uuid.UUID) (*types.MetricFile, error)
	GetMetricFileByName(ctx context.Context, organizationID uuid.UUID, name string) (*types.MetricFile, error)
	ListMetricFileDatasets(ctx context.Context, metricID uuid.UUID, version int) ([]uuid.UUID, error)

	// Dashboard files
	GetDashboardFile(ctx context.Context, id uuid.UUID) (*types.DashboardFile, error)

	// Permissions
	ListPermissions(ctx context.Context, assetID uuid.UUID, assetType types.AssetType) ([]types.AssetPermission, error)
	ListOrgMemberships(ctx context.Context, userID uuid.UUID) ([]types.OrgMembership, error)
	ListTeamIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListContainerAssets(ctx context.Context, assetID uuid.UUID, assetType types.AssetType) ([]AssetRef, error)

	// Transactions
	//
	// RunInTransaction executes a function within a database transaction.
	// The Transaction interface provides atomic multi-operation support.
	//
	// Transaction behavior:
	//   - If fn returns nil, the transaction is committed
	//   - If fn returns an error, the transaction is rolled back
	//   - If fn panics, the transaction is rolled back and the panic is re-raised
	//   - Uses BEGIN IMMEDIATE for SQLite to acquire write lock early
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error

	// Database path (for CLI diagnostics)
	Path() string

	// UnderlyingDB returns the underlying *sql.DB connection.
	// WARNING: direct database access bypasses the storage layer. Use with caution.
	UnderlyingDB() *sql.DB

	// UnderlyingConn returns a single connection from the pool for scoped use.
	// The caller MUST close the connection when done to return it to the pool.
	UnderlyingConn(ctx context.Context) (*sql.Conn, error)
}

// Config holds database configuration.
type Config struct {
	Backend string // "sqlite" or "postgres"

	// SQLite config
	Path string // database file path

	// PostgreSQL config
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}
