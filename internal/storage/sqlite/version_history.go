package sqlite

import (
	"encoding/json"

	"github.com/untoldecay/dataplane/internal/types"
)

// rehydrateVersionHistory re-decodes each version's Content from the
// generic map json.Unmarshal produces for an `any` field into the
// concrete type T, so callers can type-assert v.Content.(T) after a
// restore.
func rehydrateVersionHistory[T any](h *types.VersionHistory) error {
	for version, v := range h.Versions {
		raw, err := json.Marshal(v.Content)
		if err != nil {
			return err
		}
		var typed T
		if err := json.Unmarshal(raw, &typed); err != nil {
			return err
		}
		v.Content = typed
		h.Versions[version] = v
	}
	return nil
}
