package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/dataplane/internal/types"
)

// Fake is an in-memory WarehouseCatalog + DataSourceResolver used by
// tests and local CLI runs without a real warehouse configured.
type Fake struct {
	Sources map[string]DataSource // key: org|name|env|database
	Tables  map[string][]ColumnInfo // key: dataSourceID|database|schema|table
	ProbeFn func(sql string) *types.DataMetadata
}

func NewFake() *Fake {
	return &Fake{Sources: map[string]DataSource{}, Tables: map[string][]ColumnInfo{}}
}

func sourceKey(org, name, env, database string) string {
	return org + "|" + name + "|" + env + "|" + database
}

func tableKey(dataSourceID, database, schema, table string) string {
	return dataSourceID + "|" + database + "|" + schema + "|" + table
}

func (f *Fake) AddSource(org string, ds DataSource) {
	f.Sources[sourceKey(org, ds.Name, ds.Env, ds.Database)] = ds
}

func (f *Fake) AddTable(dataSourceID, database, schema, table string, cols []ColumnInfo) {
	f.Tables[tableKey(dataSourceID, database, schema, table)] = cols
}

func (f *Fake) Resolve(ctx context.Context, organizationID, name, env, database string) (*DataSource, error) {
	ds, ok := f.Sources[sourceKey(organizationID, name, env, database)]
	if !ok {
		return nil, fmt.Errorf("data source %q/%q/%q not found", name, env, database)
	}
	return &ds, nil
}

func (f *Fake) TableExists(ctx context.Context, dataSourceID, database, schema, table string) (bool, error) {
	_, ok := f.Tables[tableKey(dataSourceID, database, schema, table)]
	return ok, nil
}

func (f *Fake) Columns(ctx context.Context, dataSourceID, database, schema, table string) ([]ColumnInfo, error) {
	cols, ok := f.Tables[tableKey(dataSourceID, database, schema, table)]
	if !ok {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}
	return cols, nil
}

func (f *Fake) Probe(ctx context.Context, dataSourceID, sql string, rowCap int, timeout time.Duration) (*types.DataMetadata, error) {
	if f.ProbeFn != nil {
		return f.ProbeFn(sql), nil
	}
	return &types.DataMetadata{ProbedAt: time.Now(), RowCount: 0}, nil
}
