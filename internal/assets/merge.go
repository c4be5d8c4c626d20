package assets

// deepMergeJSON implements the chart_config merge rule: object keys
// merge recursively, arrays are replaced wholesale, scalars are replaced.
// patch wins on conflict; base is not mutated.
func deepMergeJSON(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, patchVal := range patch {
		baseVal, exists := out[k]
		if !exists {
			out[k] = patchVal
			continue
		}
		baseMap, baseIsMap := baseVal.(map[string]any)
		patchMap, patchIsMap := patchVal.(map[string]any)
		if baseIsMap && patchIsMap {
			out[k] = deepMergeJSON(baseMap, patchMap)
			continue
		}
		out[k] = patchVal // arrays and scalars: wholesale replace
	}
	return out
}
