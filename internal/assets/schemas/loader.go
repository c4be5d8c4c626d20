// Package schemas embeds the JSON Schema documents that describe each
// chart_config variant's kind-specific fields, plus the dashboard row
// layout, and compiles them lazily on first use.
package schemas

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.schema.json
var schemaFS embed.FS

const (
	Bar       = "bar"
	Line      = "line"
	Scatter   = "scatter"
	Pie       = "pie"
	Combo     = "combo"
	Metric    = "metric"
	Table     = "table"
	Dashboard = "dashboard"
)

var chartKindNames = []string{Bar, Line, Scatter, Pie, Combo, Metric, Table, Dashboard}

var (
	compileOnce sync.Once
	compiler    *jsonschema.Compiler
	compileErr  error
)

func getCompiler() (*jsonschema.Compiler, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range chartKindNames {
			data, err := schemaFS.ReadFile(schemaPath(name))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		compiler = c
	})
	return compiler, compileErr
}

func schemaPath(name string) string { return name + ".schema.json" }
func schemaURL(name string) string  { return "mem://schemas/" + name + ".schema.json" }

// Compile returns the compiled schema for the given chart kind or "dashboard".
// An unknown name is not an error: Compile reports known=false and each
// caller decides what that means (chart-config validation rejects the kind).
func Compile(name string) (*jsonschema.Schema, bool, error) {
	known := false
	for _, n := range chartKindNames {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return nil, false, nil
	}
	c, err := getCompiler()
	if err != nil {
		return nil, true, err
	}
	s, err := c.Compile(schemaURL(name))
	if err != nil {
		return nil, true, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, true, nil
}
