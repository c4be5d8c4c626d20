package types

import (
	"encoding/json"
	"sort"
)

// MarshalJSON flattens ChartConfig to its wire shape: a
// discriminated "kind" field, an object-keyed column_label_formats map, and
// any per-kind fields spread at the top level from Extra.
func (c ChartConfig) MarshalJSON() ([]byte, error) {
	out := map[string]any{"kind": string(c.Kind)}
	for k, v := range c.Extra {
		out[k] = v
	}
	clf := map[string]ColumnLabelFormat{}
	for _, e := range c.Base.ColumnLabelFormats {
		clf[e.Column] = e.Format
	}
	out["column_label_formats"] = clf
	if c.Base.ColumnSettings != nil {
		out["column_settings"] = c.Base.ColumnSettings
	}
	if c.Base.Trendlines != nil {
		out["trendlines"] = c.Base.Trendlines
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: known keys populate Base and
// Kind, everything else is preserved verbatim in Extra.
func (c *ChartConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if kindRaw, ok := raw["kind"]; ok {
		var kind string
		if err := json.Unmarshal(kindRaw, &kind); err != nil {
			return err
		}
		c.Kind = ChartKind(kind)
	}
	delete(raw, "kind")

	if clfRaw, ok := raw["column_label_formats"]; ok {
		var clf map[string]ColumnLabelFormat
		if err := json.Unmarshal(clfRaw, &clf); err != nil {
			return err
		}
		names := make([]string, 0, len(clf))
		for name := range clf {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.Base.ColumnLabelFormats = append(c.Base.ColumnLabelFormats, ColumnLabelFormatEntry{Column: name, Format: clf[name]})
		}
	}
	delete(raw, "column_label_formats")

	if csRaw, ok := raw["column_settings"]; ok {
		var cs map[string]any
		if err := json.Unmarshal(csRaw, &cs); err != nil {
			return err
		}
		c.Base.ColumnSettings = cs
	}
	delete(raw, "column_settings")

	if tlRaw, ok := raw["trendlines"]; ok {
		var tl []map[string]any
		if err := json.Unmarshal(tlRaw, &tl); err != nil {
			return err
		}
		c.Base.Trendlines = tl
	}
	delete(raw, "trendlines")

	if len(raw) > 0 {
		c.Extra = map[string]any{}
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			c.Extra[k] = val
		}
	}
	return nil
}
