package assets

import (
	"sort"
	"strings"

	"github.com/untoldecay/dataplane/internal/types"
)

// defaultColumnLabelFormats derives a column_label_formats map from probe
// metadata: numeric columns get a number format, date and
// timestamp-like columns get a date format, everything else is left at
// style "string".
func defaultColumnLabelFormats(metadata *types.DataMetadata) map[string]any {
	out := map[string]any{}
	if metadata == nil {
		return out
	}
	for _, col := range metadata.Columns {
		out[col.Name] = formatForSimpleType(col.SimpleType)
	}
	return out
}

func formatForSimpleType(simpleType string) map[string]any {
	switch {
	case isNumericType(simpleType):
		return map[string]any{"style": "number", "number_format": "0,0.00"}
	case isDateType(simpleType):
		return map[string]any{"style": "date", "date_format": "YYYY-MM-DD"}
	default:
		return map[string]any{"style": "string"}
	}
}

func isNumericType(t string) bool {
	t = strings.ToLower(t)
	for _, candidate := range []string{"int", "float", "double", "numeric", "decimal", "real"} {
		if strings.Contains(t, candidate) {
			return true
		}
	}
	return false
}

func isDateType(t string) bool {
	t = strings.ToLower(t)
	return strings.Contains(t, "date") || strings.Contains(t, "timestamp")
}

// regenerateColumnLabelFormats implements the rest of step 5: defaults are
// computed from the probe, then deep-merged under the caller's existing
// user-supplied formats so any override the user made survives.
func regenerateColumnLabelFormats(metadata *types.DataMetadata, existing []types.ColumnLabelFormatEntry) []types.ColumnLabelFormatEntry {
	defaults := defaultColumnLabelFormats(metadata)
	userFormats := map[string]any{}
	for _, e := range existing {
		f := map[string]any{}
		for k, val := range map[string]string{
			"style":         e.Format.Style,
			"label":         e.Format.Label,
			"number_format": e.Format.NumberFormat,
			"date_format":   e.Format.DateFormat,
		} {
			if val != "" { // an unset field is not an override
				f[k] = val
			}
		}
		userFormats[e.Column] = f
	}
	merged := deepMergeJSON(defaults, userFormats)

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.ColumnLabelFormatEntry, 0, len(names))
	for _, name := range names {
		m, _ := merged[name].(map[string]any)
		out = append(out, types.ColumnLabelFormatEntry{Column: name, Format: types.ColumnLabelFormat{
			Style:        stringField(m, "style"),
			Label:        stringField(m, "label"),
			NumberFormat: stringField(m, "number_format"),
			DateFormat:   stringField(m, "date_format"),
		}})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
