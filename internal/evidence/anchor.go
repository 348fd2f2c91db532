// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON accepts three wire shapes: a bare path string, a bare
// PageRect object, or the tagged {rect, path, document} object.
func (a *Anchor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var path string
		if err := json.Unmarshal(data, &path); err != nil {
			return fmt.Errorf("anchor path: %w", err)
		}
		*a = Anchor{Path: StructuralPath(path)}
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("anchor: %w", err)
	}

	if _, ok := probe["page"]; ok {
		var rect PageRect
		if err := json.Unmarshal(data, &rect); err != nil {
			return fmt.Errorf("anchor rect: %w", err)
		}
		*a = Anchor{Rect: &rect}
		return nil
	}

	type tagged Anchor
	var out tagged
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("anchor: %w", err)
	}
	if out.Rect != nil && out.Path != "" {
		return fmt.Errorf("%w: anchor has both rect and path", ErrInvalidItem)
	}
	*a = Anchor(out)
	return nil
}
