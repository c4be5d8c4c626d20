// Package semantic implements the typed representation of YAML semantic
// layer models and their resolution against project/global defaults
//.
package semantic

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/untoldecay/dataplane/internal/apperr"
	"github.com/untoldecay/dataplane/internal/types"
	"gopkg.in/yaml.v3"
)

// rawModel mirrors one model document's on-disk shape; it is kept
// separate from types.Model because the wire form uses snake_case and
// omits resolved defaults that the typed Model always carries.
type rawModel struct {
	Name           string               `yaml:"name"`
	Description    string               `yaml:"description,omitempty"`
	DataSourceName string               `yaml:"data_source_name,omitempty"`
	Database       string               `yaml:"database,omitempty"`
	Schema         string               `yaml:"schema,omitempty"`
	Dimensions     []rawDimension       `yaml:"dimensions,omitempty"`
	Measures       []rawMeasure         `yaml:"measures,omitempty"`
	Relationships  []rawRelationship    `yaml:"relationships,omitempty"`
}

type rawDimension struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Type        string   `yaml:"type,omitempty"`
	Searchable  bool     `yaml:"searchable,omitempty"`
	Options     []string `yaml:"options,omitempty"`
}

type rawMeasure struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Type        string `yaml:"type,omitempty"`
}

type rawRelationship struct {
	Name        string `yaml:"name"`
	PrimaryKey  string `yaml:"primary_key"`
	ForeignKey  string `yaml:"foreign_key"`
	Type        string `yaml:"type,omitempty"`
	Cardinality string `yaml:"cardinality,omitempty"`
}

// rawDocument accepts either a single-model document or a
// `{models: [...]}` document.
type rawDocument struct {
	Models []rawModel `yaml:"models"`
}

// Parse accepts either document shape and returns the sequence of
// unresolved models it describes.
func Parse(data []byte) ([]types.Model, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Models) > 0 {
		return toModels(doc.Models), nil
	}

	var single rawModel
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("invalid model yaml: %s", err))
	}
	if single.Name == "" {
		return nil, apperr.NewValidation(apperr.SubYaml, "model document has neither a top-level name nor a models list")
	}
	return toModels([]rawModel{single}), nil
}

func toModels(raws []rawModel) []types.Model {
	out := make([]types.Model, 0, len(raws))
	for _, r := range raws {
		m := types.Model{
			Name:           r.Name,
			Description:    r.Description,
			DataSourceName: r.DataSourceName,
			Database:       r.Database,
			Schema:         r.Schema,
		}
		for _, d := range r.Dimensions {
			m.Dimensions = append(m.Dimensions, types.Dimension{
				Name: d.Name, Description: d.Description, Type: d.Type,
				Searchable: d.Searchable, Options: d.Options,
			})
		}
		for _, me := range r.Measures {
			m.Measures = append(m.Measures, types.Measure{Name: me.Name, Description: me.Description, Type: me.Type})
		}
		for _, rel := range r.Relationships {
			m.Relationships = append(m.Relationships, types.Relationship{
				Name: rel.Name, PrimaryKey: rel.PrimaryKey, ForeignKey: rel.ForeignKey,
				Type: rel.Type, Cardinality: rel.Cardinality,
			})
		}
		out = append(out, m)
	}
	return out
}

// Defaults is the project/global fallback context consulted during
// Resolve.
type Defaults struct {
	DataSourceName string
	Database       string
	Schema         string
}

// Resolve fills missing data_source_name/schema/database by precedence
// model > project > global, and fails the model if data_source_name or
// schema remain absent, or if name is empty.
func Resolve(m types.Model, project, global Defaults) (types.Model, error) {
	if m.Name == "" {
		return m, apperr.NewValidation(apperr.SubYaml, "model name is required")
	}

	resolved := m
	if resolved.DataSourceName == "" {
		resolved.DataSourceName = firstNonEmpty(project.DataSourceName, global.DataSourceName)
	}
	if resolved.Database == "" {
		resolved.Database = firstNonEmpty(project.Database, global.Database)
	}
	if resolved.Schema == "" {
		resolved.Schema = firstNonEmpty(project.Schema, global.Schema)
	}

	if resolved.DataSourceName == "" {
		return resolved, apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("model %q: data_source_name could not be resolved", m.Name))
	}
	if resolved.Schema == "" {
		return resolved, apperr.NewValidation(apperr.SubYaml, fmt.Sprintf("model %q: schema could not be resolved", m.Name))
	}
	return resolved, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// canonicalFieldOrder documents the stable serialization order required
// by the round-trip serializer.
var canonicalFieldOrder = []string{"name", "description", "data_source_name", "database", "schema", "dimensions", "measures", "relationships"}

// Serialize round-trips a resolved model to canonical YAML, omitting any
// field whose value matches what resolution against ctx would have
// supplied by default — the model is "equal modulo omission" (spec
// §4.B).
func Serialize(m types.Model, ctx Defaults) ([]byte, error) {
	r := rawModel{Name: m.Name, Description: m.Description}
	if m.DataSourceName != firstNonEmpty(ctx.DataSourceName) {
		r.DataSourceName = m.DataSourceName
	}
	if m.Database != firstNonEmpty(ctx.Database) {
		r.Database = m.Database
	}
	if m.Schema != firstNonEmpty(ctx.Schema) {
		r.Schema = m.Schema
	}
	for _, d := range m.Dimensions {
		r.Dimensions = append(r.Dimensions, rawDimension{
			Name: d.Name, Description: d.Description, Type: d.Type, Searchable: d.Searchable, Options: d.Options,
		})
	}
	for _, me := range m.Measures {
		r.Measures = append(r.Measures, rawMeasure{Name: me.Name, Description: me.Description, Type: me.Type})
	}
	for _, rel := range m.Relationships {
		r.Relationships = append(r.Relationships, rawRelationship{
			Name: rel.Name, PrimaryKey: rel.PrimaryKey, ForeignKey: rel.ForeignKey, Type: rel.Type, Cardinality: rel.Cardinality,
		})
	}

	// yaml.v3 marshals struct fields in declaration order, which already
	// matches canonicalFieldOrder; nothing checks this at run time.
	_ = canonicalFieldOrder

	return yaml.Marshal(r)
}

// LocateSQL finds the SQL for a model at
// yamlPath is the sibling *.sql file one directory level up from the
// YAML's own directory, or a generated "select * from schema.name" when
// absent.
func LocateSQL(yamlPath string, m types.Model) (string, error) {
	dir := filepath.Dir(yamlPath)
	stem := strings.TrimSuffix(filepath.Base(yamlPath), filepath.Ext(yamlPath))
	sqlPath := filepath.Join(filepath.Dir(dir), stem+".sql")

	data, err := os.ReadFile(sqlPath)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read sibling sql %s: %w", sqlPath, err)
	}
	return fmt.Sprintf("select * from %s.%s", m.Schema, m.Name), nil
}
