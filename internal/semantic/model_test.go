package semantic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/types"
	"gopkg.in/yaml.v3"
)

func TestParseSingleModelDocument(t *testing.T) {
	data := []byte(`
name: orders
data_source_name: warehouse
schema: analytics
measures:
  - name: total
    type: sum
`)
	models, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, "orders", models[0].Name)
	require.Equal(t, "warehouse", models[0].DataSourceName)
	require.Len(t, models[0].Measures, 1)
	require.Equal(t, "total", models[0].Measures[0].Name)
}

func TestParseModelsListDocument(t *testing.T) {
	data := []byte(`
models:
  - name: orders
    schema: analytics
  - name: customers
    schema: analytics
`)
	models, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "orders", models[0].Name)
	require.Equal(t, "customers", models[1].Name)
}

func TestParseRejectsDocumentWithoutName(t *testing.T) {
	_, err := Parse([]byte(`description: no name here`))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolveModelValuesTakePrecedenceOverDefaults(t *testing.T) {
	m := types.Model{Name: "orders", DataSourceName: "warehouse", Schema: "analytics"}
	resolved, err := Resolve(m, Defaults{DataSourceName: "project-source", Schema: "project-schema"}, Defaults{})
	require.NoError(t, err)
	require.Equal(t, "warehouse", resolved.DataSourceName)
	require.Equal(t, "analytics", resolved.Schema)
}

func TestResolveFallsBackToProjectThenGlobalDefaults(t *testing.T) {
	m := types.Model{Name: "orders"}
	resolved, err := Resolve(m, Defaults{}, Defaults{DataSourceName: "global-source", Schema: "global-schema"})
	require.NoError(t, err)
	require.Equal(t, "global-source", resolved.DataSourceName)
	require.Equal(t, "global-schema", resolved.Schema)
}

func TestResolveProjectDefaultsBeatGlobalDefaults(t *testing.T) {
	m := types.Model{Name: "orders"}
	resolved, err := Resolve(m,
		Defaults{DataSourceName: "project-source", Schema: "project-schema"},
		Defaults{DataSourceName: "global-source", Schema: "global-schema"})
	require.NoError(t, err)
	require.Equal(t, "project-source", resolved.DataSourceName)
	require.Equal(t, "project-schema", resolved.Schema)
}

func TestResolveFailsWhenDataSourceNameUnresolved(t *testing.T) {
	m := types.Model{Name: "orders", Schema: "analytics"}
	_, err := Resolve(m, Defaults{}, Defaults{})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolveFailsWhenSchemaUnresolved(t *testing.T) {
	m := types.Model{Name: "orders", DataSourceName: "warehouse"}
	_, err := Resolve(m, Defaults{}, Defaults{})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestResolveFailsWhenNameMissing(t *testing.T) {
	_, err := Resolve(types.Model{}, Defaults{DataSourceName: "warehouse", Schema: "analytics"}, Defaults{})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSerializeOmitsFieldsMatchingDefaults(t *testing.T) {
	m := types.Model{Name: "orders", DataSourceName: "warehouse", Schema: "analytics"}
	out, err := Serialize(m, Defaults{DataSourceName: "warehouse", Schema: "analytics"})
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, "orders", back["name"])
	_, hasSource := back["data_source_name"]
	require.False(t, hasSource, "data_source_name matching ctx default should be omitted")
	_, hasSchema := back["schema"]
	require.False(t, hasSchema, "schema matching ctx default should be omitted")
}

func TestSerializeKeepsFieldsDivergingFromDefaults(t *testing.T) {
	m := types.Model{Name: "orders", DataSourceName: "warehouse", Schema: "analytics"}
	out, err := Serialize(m, Defaults{DataSourceName: "other-source", Schema: "other-schema"})
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, "warehouse", back["data_source_name"])
	require.Equal(t, "analytics", back["schema"])
}

func TestLocateSQLFindsSiblingFile(t *testing.T) {
	root := t.TempDir()
	modelsDir := filepath.Join(root, "models")
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "orders.sql"), []byte("select * from raw_orders"), 0o644))

	sql, err := LocateSQL(filepath.Join(modelsDir, "orders.yml"), types.Model{Name: "orders", Schema: "analytics"})
	require.NoError(t, err)
	require.Equal(t, "select * from raw_orders", sql)
}

func TestLocateSQLFallsBackToGeneratedSelect(t *testing.T) {
	root := t.TempDir()
	modelsDir := filepath.Join(root, "models")
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))

	sql, err := LocateSQL(filepath.Join(modelsDir, "orders.yml"), types.Model{Name: "orders", Schema: "analytics"})
	require.NoError(t, err)
	require.Equal(t, "select * from analytics.orders", sql)
}
