// Package catalog defines the warehouse-catalog collaborator interface
// that dataset deployment and metric SQL validation
// validate against and probe. Warehouse query execution
// itself is out of scope; this package only specifies the
// seam.
package catalog

import (
	"context"
	"time"

	"github.com/untoldecay/dataplane/internal/types"
)

// ColumnInfo is one warehouse column as reported by the catalog.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

// WarehouseCatalog is the read-only interface the deployment and asset
// validation paths consult. The only implementation in this repository
// is the in-memory Fake, used by the tests and by cmd/dataplane.
type WarehouseCatalog interface {
	// TableExists reports whether schema.table (optionally qualified by
	// database) exists in the given data source.
	TableExists(ctx context.Context, dataSourceID, database, schema, table string) (bool, error)
	// Columns returns the warehouse's column list for schema.table.
	Columns(ctx context.Context, dataSourceID, database, schema, table string) ([]ColumnInfo, error)
	// Probe executes sql with a row cap and returns column/row metadata.
	Probe(ctx context.Context, dataSourceID, sql string, rowCap int, timeout time.Duration) (*types.DataMetadata, error)
}

// DataSource identifies one deployable warehouse target.
type DataSource struct {
	ID       string
	Name     string
	Env      string
	Database string
}

// DataSourceResolver looks up a DataSource by its group key within an
// organization.
type DataSourceResolver interface {
	Resolve(ctx context.Context, organizationID, name, env, database string) (*DataSource, error)
}
